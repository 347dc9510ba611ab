package query

import (
	"maps"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/codec"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/reltime"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Earth radius used to turn distances into radians.
const (
	earthRadiusMiles = 3959
	earthRadiusKm    = 6371
)

// object returns the operator document held by v. Tagged values and update
// operators are never operator documents.
func object(v any) (bson.M, bool) {
	switch v.(type) {
	case nil, domain.Tagged, domain.Op:
		return nil, false
	}
	if !structure.IsObject(v) {
		return nil, false
	}
	return structure.ToMap(v)
}

type atomFunc func(any) (any, error)

// Constraint implements [domain.QueryCompiler]. Operators are resolved in
// reverse alphabetical order, so $regex comes before $options and
// $nearSphere before $maxDistance.
func (c *Compiler) Constraint(constraint any, field *domain.Field, count bool) (bson.M, bool, error) {
	doc, ok := object(constraint)
	if !ok {
		return nil, false, nil
	}

	atom := c.atomFunc(field)
	keys := slices.Sorted(maps.Keys(doc))
	slices.Reverse(keys)

	answer := bson.M{}
	for _, key := range keys {
		val := doc[key]
		var part bson.M
		var err error
		switch key {
		case "$lt", "$lte", "$gt", "$gte", "$exists", "$ne", "$eq":
			part, err = c.comparison(key, val, field, atom)
		case "$in", "$nin":
			part, err = c.membership(key, val, atom)
		case "$all":
			part, err = c.all(val)
		case "$regex":
			s, ok := val.(string)
			if !ok {
				return nil, false, domain.Invalid("bad regex: %v", val)
			}
			part = bson.M{key: s}
		case "$options":
			part = bson.M{key: val}
		case "$containedBy":
			part, err = c.containedBy(val, atom)
		case "$text":
			part, err = c.text(val)
		case "$nearSphere":
			part, err = c.nearSphere(val, doc, count)
		case "$maxDistance", "$maxDistanceInRadians", "$maxDistanceInMiles", "$maxDistanceInKilometers":
			if count {
				continue
			}
			var d float64
			d, err = maxDistance(key, val)
			part = bson.M{"$maxDistance": d}
		case "$select", "$dontSelect":
			return nil, false, domain.ErrUnsupported{Feature: "the " + key + " constraint is not supported yet"}
		case "$within":
			part, err = c.within(val)
		case "$geoWithin":
			part, err = c.geoWithin(val)
		case "$geoIntersects":
			part, err = c.geoIntersects(val)
		default:
			if strings.HasPrefix(key, "$") {
				return nil, false, domain.Invalid("bad constraint: %s", key)
			}
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		maps.Copy(answer, part)
	}
	return answer, true, nil
}

func (c *Compiler) atomFunc(field *domain.Field) atomFunc {
	if field != nil && field.Type == domain.FieldArray {
		return codec.InteriorAtom
	}
	return func(v any) (any, error) {
		res, ok, err := codec.TopLevelAtom(v, field)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.Invalid("bad atom: %v", codec.ToJSON(v))
		}
		return res, nil
	}
}

func relativeTime(v any) (string, bool) {
	switch t := v.(type) {
	case domain.RelativeTime:
		return t.Text, true
	case bson.M:
		s, ok := t["$relativeTime"].(string)
		return s, ok
	case map[string]any:
		s, ok := t["$relativeTime"].(string)
		return s, ok
	}
	return "", false
}

func (c *Compiler) comparison(key string, val any, field *domain.Field, atom atomFunc) (bson.M, error) {
	text, ok := relativeTime(val)
	if !ok {
		res, err := atom(val)
		if err != nil {
			return nil, err
		}
		return bson.M{key: res}, nil
	}

	if field != nil && field.Type != domain.FieldDate {
		return nil, domain.Invalid("$relativeTime can only be used with Date field")
	}
	switch key {
	case "$exists", "$ne", "$eq":
		return nil, codec.ErrRelativeTimePlacement
	}
	t, _, err := reltime.Parse(text, c.timeGetter.GetTime())
	if err != nil {
		c.logger.Info("error while parsing relative date", "text", text, "error", err)
		return nil, domain.Invalid("bad $relativeTime (%s) value. %s", key, err)
	}
	return bson.M{key: t}, nil
}

func (c *Compiler) membership(key string, val any, atom atomFunc) (bson.M, error) {
	list, ok := structure.ToSlice(val)
	if !ok {
		return nil, domain.Invalid("bad %s value", key)
	}
	res := bson.A{}
	for _, v := range list {
		if inner, ok := structure.ToSlice(v); ok {
			for _, i := range inner {
				a, err := atom(i)
				if err != nil {
					return nil, err
				}
				res = append(res, a)
			}
			continue
		}
		a, err := atom(v)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return bson.M{key: res}, nil
}

func (c *Compiler) all(val any) (bson.M, error) {
	list, ok := structure.ToSlice(val)
	if !ok {
		return nil, domain.Invalid("bad $all value")
	}
	res := make(bson.A, len(list))
	regexes := 0
	for n, v := range list {
		a, err := codec.InteriorAtom(v)
		if err != nil {
			return nil, err
		}
		if _, ok := a.(primitive.Regex); ok {
			regexes++
		}
		res[n] = a
	}
	if regexes > 0 && regexes != len(res) {
		return nil, domain.Invalid("All $all values must be of regex type or none: %v", res)
	}
	return bson.M{"$all": res}, nil
}

// containedBy has no native counterpart. "Every element is in arr" becomes
// "no element is outside arr", which the where compiler wraps in $nor.
func (c *Compiler) containedBy(val any, atom atomFunc) (bson.M, error) {
	list, ok := structure.ToSlice(val)
	if !ok {
		return nil, domain.Invalid("bad $containedBy: should be an array")
	}
	res := make(bson.A, len(list))
	for n, v := range list {
		a, err := atom(v)
		if err != nil {
			return nil, err
		}
		res[n] = a
	}
	return bson.M{"$elemMatch": bson.M{"$nin": res}}, nil
}

func (c *Compiler) text(val any) (bson.M, error) {
	doc, _ := object(val)
	search, ok := object(doc["$search"])
	if !ok {
		return nil, domain.Invalid("bad $text: $search, should be object")
	}
	term, ok := search["$term"].(string)
	if !ok || term == "" {
		return nil, domain.Invalid("bad $text: $term, should be string")
	}
	res := bson.M{"$search": term}

	if v, ok := search["$language"]; ok && v != nil {
		lang, ok := v.(string)
		if !ok {
			return nil, domain.Invalid("bad $text: $language, should be string")
		}
		if lang != "" {
			res["$language"] = lang
		}
	}
	for _, flag := range []string{"$caseSensitive", "$diacriticSensitive"} {
		v, ok := search[flag]
		if !ok || v == nil {
			continue
		}
		b, ok := v.(bool)
		if !ok {
			return nil, domain.Invalid("bad $text: %s, should be boolean", flag)
		}
		if b {
			res[flag] = true
		}
	}
	return bson.M{"$text": res}, nil
}

func (c *Compiler) nearSphere(val any, doc bson.M, count bool) (bson.M, error) {
	p, ok, err := codec.Point(val)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Invalid("bad $nearSphere value; should be a GeoPoint")
	}
	center := bson.A{p.Longitude, p.Latitude}
	if !count {
		return bson.M{"$nearSphere": center}, nil
	}

	// Counts cannot sort by distance, so the sphere is used as a filter.
	var distance any
	for _, key := range []string{"$maxDistance", "$maxDistanceInRadians", "$maxDistanceInMiles", "$maxDistanceInKilometers"} {
		if v, ok := doc[key]; ok {
			d, err := maxDistance(key, v)
			if err != nil {
				return nil, err
			}
			distance = d
			break
		}
	}
	return bson.M{"$geoWithin": bson.M{"$centerSphere": bson.A{center, distance}}}, nil
}

func maxDistance(key string, val any) (float64, error) {
	d, ok := structure.AsFloat(val)
	if !ok {
		return 0, domain.Invalid("bad %s value; should be a number", key)
	}
	switch key {
	case "$maxDistanceInMiles":
		return d / earthRadiusMiles, nil
	case "$maxDistanceInKilometers":
		return d / earthRadiusKm, nil
	}
	return d, nil
}

func (c *Compiler) within(val any) (bson.M, error) {
	doc, _ := object(val)
	box, ok := structure.ToSlice(doc["$box"])
	if !ok || len(box) != 2 {
		return nil, domain.Invalid("malformatted $within arg")
	}
	corners := make(bson.A, 2)
	for n, corner := range box {
		p, ok, err := codec.Point(corner)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.Invalid("malformatted $within arg")
		}
		corners[n] = bson.A{p.Longitude, p.Latitude}
	}
	return bson.M{"$within": bson.M{"$box": corners}}, nil
}

func (c *Compiler) geoWithin(val any) (bson.M, error) {
	doc, _ := object(val)
	if polygon, ok := doc["$polygon"]; ok {
		points, err := polygonPoints(polygon)
		if err != nil {
			return nil, err
		}
		return bson.M{"$geoWithin": bson.M{"$polygon": points}}, nil
	}
	if sphere, ok := doc["$centerSphere"]; ok {
		s, err := centerSphere(sphere)
		if err != nil {
			return nil, err
		}
		return bson.M{"$geoWithin": bson.M{"$centerSphere": s}}, nil
	}
	return nil, domain.Invalid("bad $geoWithin value; $polygon or $centerSphere required")
}

func polygonPoints(polygon any) (bson.A, error) {
	var points []any
	switch t := polygon.(type) {
	case domain.Polygon:
		if len(t.Coordinates) < 3 {
			return nil, domain.Invalid("bad $geoWithin value; Polygon.coordinates should contain at least 3 lon/lat pairs")
		}
		for _, c := range t.Coordinates {
			points = append(points, domain.GeoPoint{Latitude: c[0], Longitude: c[1]})
		}
	default:
		list, ok := structure.ToSlice(polygon)
		if !ok {
			return nil, domain.Invalid("bad $geoWithin value; $polygon should be Polygon object or Array of GeoPoints")
		}
		if len(list) < 3 {
			return nil, domain.Invalid("bad $geoWithin value; $polygon should contain at least 3 GeoPoints")
		}
		points = list
	}

	res := make(bson.A, len(points))
	for n, point := range points {
		p, ok, err := codec.Point(point)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, domain.Invalid("bad $geoWithin value")
		}
		res[n] = bson.A{p.Longitude, p.Latitude}
	}
	return res, nil
}

func centerSphere(v any) (bson.A, error) {
	list, ok := structure.ToSlice(v)
	if !ok || len(list) < 2 {
		return nil, domain.Invalid("bad $geoWithin value; $centerSphere should be an array of GeoPoint and distance")
	}
	p, ok, err := codec.Point(list[0])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.Invalid("bad $geoWithin value; $centerSphere geo point invalid")
	}
	d, ok := structure.AsFloat(list[1])
	if !ok || d < 0 {
		return nil, domain.Invalid("bad $geoWithin value; $centerSphere distance invalid")
	}
	return bson.A{bson.A{p.Longitude, p.Latitude}, d}, nil
}

func (c *Compiler) geoIntersects(val any) (bson.M, error) {
	doc, _ := object(val)
	point, isGeo := doc["$point"].(domain.GeoPoint)
	if !isGeo {
		return nil, domain.Invalid("bad $geoIntersect value; $point should be GeoPoint")
	}
	if err := codec.ValidateGeoPoint(point.Latitude, point.Longitude); err != nil {
		return nil, err
	}
	return bson.M{"$geoIntersects": bson.M{
		"$geometry": bson.M{"type": "Point", "coordinates": bson.A{point.Longitude, point.Latitude}},
	}}, nil
}
