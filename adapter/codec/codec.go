// Package codec converts tagged application values to and from their store
// encoding.
package codec

import (
	"encoding/base64"
	"regexp"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ISOLayout is the canonical timestamp form: UTC with millisecond precision.
const ISOLayout = "2006-01-02T15:04:05.000Z"

var base64Value = regexp.MustCompile(`^([A-Za-z0-9+/]{4})*([A-Za-z0-9+/]{4}|[A-Za-z0-9+/]{3}=|[A-Za-z0-9+/]{2}==)$`)

// FormatISO renders t in [ISOLayout].
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// ParseISO parses a timestamp written in ISO 8601.
func ParseISO(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, domain.Invalid("invalid date: %s", s)
	}
	return t.UTC(), nil
}

// AsTime returns the instant held by a native timestamp.
func AsTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t.UTC(), true
	case primitive.DateTime:
		return t.Time().UTC(), true
	case *time.Time:
		if t != nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// IsDate reports whether v is an application timestamp.
func IsDate(v any) bool {
	_, ok := v.(domain.Date)
	return ok
}

// EncodeDate returns the native timestamp of d.
func EncodeDate(d domain.Date) (time.Time, error) {
	return ParseISO(d.ISO)
}

// IsStoreDate reports whether v is a native timestamp.
func IsStoreDate(v any) bool {
	_, ok := AsTime(v)
	return ok
}

// DecodeDate returns the application timestamp of a native one.
func DecodeDate(v any) (domain.Date, error) {
	t, ok := AsTime(v)
	if !ok {
		return domain.Date{}, domain.ErrIntegrity{Reason: "invalid stored date"}
	}
	return domain.Date{ISO: FormatISO(t)}, nil
}

// IsBytes reports whether v is an application binary blob.
func IsBytes(v any) bool {
	_, ok := v.(domain.Bytes)
	return ok
}

// EncodeBytes returns the native binary of b.
func EncodeBytes(b domain.Bytes) (primitive.Binary, error) {
	data, err := base64.StdEncoding.DecodeString(b.Base64)
	if err != nil {
		return primitive.Binary{}, domain.Invalid("invalid base64 value")
	}
	return primitive.Binary{Data: data}, nil
}

// IsStoreBytes reports whether v is a stored binary. Legacy documents may hold
// the raw base64 string.
func IsStoreBytes(v any) bool {
	switch t := v.(type) {
	case primitive.Binary:
		return true
	case string:
		return base64Value.MatchString(t)
	}
	return false
}

// DecodeBytes returns the application blob of a stored binary.
func DecodeBytes(v any) (domain.Bytes, error) {
	switch t := v.(type) {
	case primitive.Binary:
		return domain.Bytes{Base64: base64.StdEncoding.EncodeToString(t.Data)}, nil
	case string:
		if base64Value.MatchString(t) {
			return domain.Bytes{Base64: t}, nil
		}
	}
	return domain.Bytes{}, domain.ErrIntegrity{Reason: "invalid stored bytes"}
}

// IsGeoPoint reports whether v is an application geo point.
func IsGeoPoint(v any) bool {
	_, ok := v.(domain.GeoPoint)
	return ok
}

// EncodeGeoPoint returns the native [longitude, latitude] pair.
func EncodeGeoPoint(g domain.GeoPoint) (bson.A, error) {
	if err := ValidateGeoPoint(g.Latitude, g.Longitude); err != nil {
		return nil, err
	}
	return bson.A{g.Longitude, g.Latitude}, nil
}

// IsStoreGeoPoint reports whether v is a native coordinate pair.
func IsStoreGeoPoint(v any) bool {
	_, _, ok := pair(v)
	return ok
}

// DecodeGeoPoint returns the application geo point of a native pair.
func DecodeGeoPoint(v any) (domain.GeoPoint, error) {
	lng, lat, ok := pair(v)
	if !ok {
		return domain.GeoPoint{}, domain.ErrIntegrity{Reason: "invalid stored geo point"}
	}
	return domain.GeoPoint{Latitude: lat, Longitude: lng}, nil
}

func pair(v any) (float64, float64, bool) {
	l, ok := structure.ToSlice(v)
	if !ok || len(l) != 2 {
		return 0, 0, false
	}
	a, okA := structure.AsFloat(l[0])
	b, okB := structure.AsFloat(l[1])
	return a, b, okA && okB
}

// IsPolygon reports whether v is an application polygon.
func IsPolygon(v any) bool {
	_, ok := v.(domain.Polygon)
	return ok
}

// EncodePolygon returns the native GeoJSON polygon of p, closing the ring.
func EncodePolygon(p domain.Polygon) (bson.M, error) {
	ring, err := closeRing(p.Coordinates)
	if err != nil {
		return nil, err
	}
	coords := make(bson.A, len(ring))
	for n, c := range ring {
		coords[n] = bson.A{c[1], c[0]}
	}
	return bson.M{"type": "Polygon", "coordinates": bson.A{coords}}, nil
}

func closeRing(coords [][2]float64) ([][2]float64, error) {
	for _, c := range coords {
		if err := ValidateGeoPoint(c[0], c[1]); err != nil {
			return nil, err
		}
	}
	ring := make([][2]float64, len(coords), len(coords)+1)
	copy(ring, coords)
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	unique := map[[2]float64]struct{}{}
	for _, c := range ring {
		unique[c] = struct{}{}
	}
	if len(unique) < 3 {
		return nil, domain.Invalid("GeoJSON: Loop must have at least 3 different vertices")
	}
	return ring, nil
}

// IsStorePolygon reports whether v is a native GeoJSON polygon.
func IsStorePolygon(v any) bool {
	m, ok := structure.ToMap(v)
	if !ok || m["type"] != "Polygon" {
		return false
	}
	_, ok = structure.ToSlice(m["coordinates"])
	return ok
}

// DecodePolygon returns the application polygon of a native one. The closing
// point is dropped so an open ring round-trips unchanged.
func DecodePolygon(v any) (domain.Polygon, error) {
	invalid := domain.ErrIntegrity{Reason: "invalid stored polygon"}
	m, ok := structure.ToMap(v)
	if !ok || m["type"] != "Polygon" {
		return domain.Polygon{}, invalid
	}
	rings, ok := structure.ToSlice(m["coordinates"])
	if !ok || len(rings) == 0 {
		return domain.Polygon{}, invalid
	}
	ring, ok := structure.ToSlice(rings[0])
	if !ok {
		return domain.Polygon{}, invalid
	}
	coords := make([][2]float64, 0, len(ring))
	for _, c := range ring {
		lng, lat, ok := pair(c)
		if !ok {
			return domain.Polygon{}, invalid
		}
		coords = append(coords, [2]float64{lat, lng})
	}
	if len(coords) > 1 && coords[0] == coords[len(coords)-1] {
		coords = coords[:len(coords)-1]
	}
	return domain.Polygon{Coordinates: coords}, nil
}

// IsFile reports whether v is an application file reference.
func IsFile(v any) bool {
	_, ok := v.(domain.File)
	return ok
}

// EncodeFile returns the stored name of f.
func EncodeFile(f domain.File) string {
	return f.Name
}

// IsStoreFile reports whether v is a stored file name.
func IsStoreFile(v any) bool {
	_, ok := v.(string)
	return ok
}

// DecodeFile returns the application file reference of a stored name.
func DecodeFile(v any) (domain.File, error) {
	s, ok := v.(string)
	if !ok {
		return domain.File{}, domain.ErrIntegrity{Reason: "invalid stored file"}
	}
	return domain.File{Name: s}, nil
}

// IsPointer reports whether v is an application pointer.
func IsPointer(v any) bool {
	_, ok := v.(domain.Pointer)
	return ok
}

// EncodePointer returns the "<class>$<objectId>" form of p.
func EncodePointer(p domain.Pointer) string {
	return p.ClassName + "$" + p.ObjectID
}

// IsStorePointer reports whether v is a stored pointer string.
func IsStorePointer(v any) bool {
	s, ok := v.(string)
	return ok && strings.Contains(s, "$")
}

// DecodePointer returns the application pointer of a stored string. An empty
// targetClass skips the class check.
func DecodePointer(v any, targetClass string) (domain.Pointer, error) {
	s, ok := v.(string)
	if !ok {
		return domain.Pointer{}, domain.ErrIntegrity{Reason: "invalid stored pointer"}
	}
	class, id, found := strings.Cut(s, "$")
	if !found {
		return domain.Pointer{}, domain.ErrIntegrity{Reason: "invalid stored pointer"}
	}
	if targetClass != "" && class != targetClass {
		return domain.Pointer{}, domain.ErrIntegrity{Reason: "pointer to incorrect className"}
	}
	return domain.Pointer{ClassName: class, ObjectID: id}, nil
}
