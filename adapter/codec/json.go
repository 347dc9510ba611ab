package codec

import (
	"fmt"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FromJSON converts the REST form of application values, where tagged
// values are objects with a "__type" key and update operators objects with
// an "__op" key, into typed values. Objects and lists are converted
// recursively.
func FromJSON(v any) (any, error) {
	if l, ok := v.([]any); ok {
		return listFromJSON(l)
	}
	m, ok := v.(map[string]any)
	if !ok {
		if bm, isM := v.(bson.M); isM {
			m, ok = bm, true
		}
	}
	if !ok {
		return v, nil
	}

	if t, ok := m["__type"].(string); ok {
		return taggedFromJSON(t, m)
	}
	if op, ok := m["__op"].(string); ok {
		return opFromJSON(op, m)
	}
	if rt, ok := m["$relativeTime"].(string); ok && len(m) == 1 {
		return domain.RelativeTime{Text: rt}, nil
	}

	res := make(map[string]any, len(m))
	for k, val := range m {
		conv, err := FromJSON(val)
		if err != nil {
			return nil, err
		}
		res[k] = conv
	}
	return res, nil
}

func listFromJSON(l []any) ([]any, error) {
	res := make([]any, len(l))
	for n, val := range l {
		conv, err := FromJSON(val)
		if err != nil {
			return nil, err
		}
		res[n] = conv
	}
	return res, nil
}

func taggedFromJSON(typ string, m map[string]any) (any, error) {
	str := func(key string) (string, error) {
		s, ok := m[key].(string)
		if !ok {
			return "", domain.Invalid("invalid %s: %s must be a string", typ, key)
		}
		return s, nil
	}
	switch typ {
	case "Pointer":
		class, err := str("className")
		if err != nil {
			return nil, err
		}
		id, err := str("objectId")
		if err != nil {
			return nil, err
		}
		return domain.Pointer{ClassName: class, ObjectID: id}, nil
	case "Date":
		iso, err := str("iso")
		if err != nil {
			return nil, err
		}
		return domain.Date{ISO: iso}, nil
	case "Bytes":
		b, err := str("base64")
		if err != nil {
			return nil, err
		}
		return domain.Bytes{Base64: b}, nil
	case "GeoPoint":
		lat, okLat := structure.AsFloat(m["latitude"])
		lng, okLng := structure.AsFloat(m["longitude"])
		if !okLat || !okLng {
			return nil, domain.Invalid("invalid GeoPoint: latitude and longitude must be numbers")
		}
		return domain.GeoPoint{Latitude: lat, Longitude: lng}, nil
	case "Polygon":
		return polygonFromJSON(m["coordinates"])
	case "File":
		name, err := str("name")
		if err != nil {
			return nil, err
		}
		url, _ := m["url"].(string)
		return domain.File{Name: name, URL: url}, nil
	case "Relation":
		class, err := str("className")
		if err != nil {
			return nil, err
		}
		return domain.Relation{ClassName: class}, nil
	}
	return nil, domain.Invalid("invalid type: %s", typ)
}

func polygonFromJSON(v any) (domain.Polygon, error) {
	points, ok := structure.ToSlice(v)
	if !ok {
		return domain.Polygon{}, domain.Invalid("invalid Polygon: coordinates must be an array")
	}
	coords := make([][2]float64, len(points))
	for n, p := range points {
		lat, lng, ok := pair(p)
		if !ok {
			return domain.Polygon{}, domain.Invalid("invalid Polygon: coordinates must be [latitude, longitude] pairs")
		}
		coords[n] = [2]float64{lat, lng}
	}
	return domain.Polygon{Coordinates: coords}, nil
}

func opFromJSON(op string, m map[string]any) (any, error) {
	objects := func() ([]any, error) {
		l, ok := m["objects"].([]any)
		if !ok {
			return nil, nil
		}
		return listFromJSON(l)
	}
	switch op {
	case "Delete":
		return domain.Delete{}, nil
	case "Increment":
		return domain.Increment{Amount: m["amount"]}, nil
	case "SetOnInsert":
		amount, err := FromJSON(m["amount"])
		if err != nil {
			return nil, err
		}
		return domain.SetOnInsert{Value: amount}, nil
	case "Add":
		objs, err := objects()
		return domain.Add{Objects: objs}, err
	case "AddUnique":
		objs, err := objects()
		return domain.AddUnique{Objects: objs}, err
	case "Remove":
		objs, err := objects()
		return domain.Remove{Objects: objs}, err
	}
	return nil, domain.ErrUnsupported{Feature: fmt.Sprintf("The %s operator is not supported yet.", op)}
}

// ToJSON converts typed values, native timestamps and native binaries into
// their REST form, recursing into objects and lists.
func ToJSON(v any) any {
	switch t := v.(type) {
	case domain.Pointer:
		return map[string]any{"__type": "Pointer", "className": t.ClassName, "objectId": t.ObjectID}
	case domain.Date:
		return map[string]any{"__type": "Date", "iso": t.ISO}
	case domain.Bytes:
		return map[string]any{"__type": "Bytes", "base64": t.Base64}
	case domain.GeoPoint:
		return map[string]any{"__type": "GeoPoint", "latitude": t.Latitude, "longitude": t.Longitude}
	case domain.Polygon:
		coords := make([]any, len(t.Coordinates))
		for n, c := range t.Coordinates {
			coords[n] = []any{c[0], c[1]}
		}
		return map[string]any{"__type": "Polygon", "coordinates": coords}
	case domain.File:
		res := map[string]any{"__type": "File", "name": t.Name}
		if t.URL != "" {
			res["url"] = t.URL
		}
		return res
	case domain.Relation:
		return map[string]any{"__type": "Relation", "className": t.ClassName}
	case domain.RelativeTime:
		return map[string]any{"$relativeTime": t.Text}
	case domain.Regex:
		res := map[string]any{"$regex": t.Pattern}
		if t.Options != "" {
			res["$options"] = t.Options
		}
		return res
	case time.Time, primitive.DateTime:
		d, _ := DecodeDate(t)
		return ToJSON(d)
	case primitive.Binary:
		b, _ := DecodeBytes(t)
		return ToJSON(b)
	case nil, string, bool:
		return t
	}
	if structure.IsNumber(v) {
		return v
	}
	if seq, l, err := structure.Seq2(v); err == nil {
		res := make(map[string]any, l)
		for k, val := range seq {
			res[k] = ToJSON(val)
		}
		return res
	}
	if seq, l, err := structure.Seq(v); err == nil {
		res := make([]any, 0, l)
		for val := range seq {
			res = append(res, ToJSON(val))
		}
		return res
	}
	return v
}

// NestedFromStore decodes a value read from inside a stored object or list:
// native timestamps become dates, native binaries become bytes and embedded
// tagged objects become typed values.
func NestedFromStore(v any) (any, error) {
	switch t := v.(type) {
	case time.Time, primitive.DateTime:
		return DecodeDate(t)
	case primitive.Binary:
		return DecodeBytes(t)
	case nil, string, bool:
		return t, nil
	}
	if structure.IsNumber(v) {
		return v, nil
	}
	if seq, l, err := structure.Seq2(v); err == nil {
		m := make(map[string]any, l)
		for k, val := range seq {
			m[k] = val
		}
		if typ, ok := m["__type"].(string); ok {
			return taggedFromJSON(typ, m)
		}
		for k, val := range m {
			conv, err := NestedFromStore(val)
			if err != nil {
				return nil, err
			}
			m[k] = conv
		}
		return m, nil
	}
	if seq, l, err := structure.Seq(v); err == nil {
		res := make([]any, 0, l)
		for val := range seq {
			conv, err := NestedFromStore(val)
			if err != nil {
				return nil, err
			}
			res = append(res, conv)
		}
		return res, nil
	}
	return v, nil
}
