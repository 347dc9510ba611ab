package codec

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-reflect"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrRelativeTimePlacement is returned when a relative time shows up outside
// of a range comparison.
var ErrRelativeTimePlacement = domain.ErrValidation{
	Reason: "$relativeTime can only be used with the $lt, $lte, $gt, and $gte operators",
}

// TopLevelAtom returns the store value of a scalar or tagged value. The
// boolean result is false when v is a list, an object or a tagged value that
// has no top level encoding, in which case the caller must recurse. A string
// given for a pointer field is read as the object id of the field's target
// class.
func TopLevelAtom(v any, field *domain.Field) (any, bool, error) {
	switch t := v.(type) {
	case nil:
		return nil, true, nil
	case string:
		if field != nil && field.Type == domain.FieldPointer {
			return EncodePointer(domain.Pointer{ClassName: field.TargetClass, ObjectID: t}), true, nil
		}
		return t, true, nil
	case bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return t, true, nil
	case time.Time, primitive.DateTime, primitive.Binary, primitive.Regex,
		primitive.ObjectID, primitive.Decimal128:
		return t, true, nil
	case []byte:
		return primitive.Binary{Data: t}, true, nil
	case domain.Pointer:
		return EncodePointer(t), true, nil
	case domain.Date:
		d, err := EncodeDate(t)
		return d, true, err
	case domain.Bytes:
		b, err := EncodeBytes(t)
		return b, true, err
	case domain.GeoPoint:
		g, err := EncodeGeoPoint(t)
		return g, true, err
	case domain.Polygon:
		p, err := EncodePolygon(t)
		return p, true, err
	case domain.File:
		return EncodeFile(t), true, nil
	case domain.Relation, domain.RelativeTime, domain.Regex, domain.Op:
		return nil, false, nil
	}
	if structure.IsObject(v) || structure.IsList(v) {
		return nil, false, nil
	}
	return nil, false, cannotTransform(v)
}

func cannotTransform(v any) error {
	return domain.Invalid("cannot transform value: %s", describe(v))
}

func describe(v any) string {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func:
		return "function"
	case reflect.Chan:
		return "channel"
	}
	return fmt.Sprintf("%T", v)
}

// InteriorAtom returns the store value of an element nested inside a list,
// an object or an update operator. Pointers are kept as embedded pointer
// objects and regex patterns become native patterns.
func InteriorAtom(v any) (any, error) {
	switch t := v.(type) {
	case domain.Pointer:
		return EmbeddedPointer(t), nil
	case domain.Date:
		return EncodeDate(t)
	case domain.Bytes:
		return EncodeBytes(t)
	case domain.Regex:
		return primitive.Regex{Pattern: t.Pattern, Options: t.Options}, nil
	case domain.GeoPoint, domain.Polygon, domain.File, domain.Relation:
		return ToJSON(t), nil
	case domain.RelativeTime:
		return nil, ErrRelativeTimePlacement
	case []byte:
		return primitive.Binary{Data: t}, nil
	case nil:
		return nil, nil
	}
	if m, ok := v.(bson.M); ok {
		if re, ok := regexObject(m); ok {
			return re, nil
		}
	} else if m, ok := v.(map[string]any); ok {
		if re, ok := regexObject(m); ok {
			return re, nil
		}
	}
	switch reflect.TypeOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return nil, cannotTransform(v)
	}
	return v, nil
}

func regexObject(m map[string]any) (primitive.Regex, bool) {
	pattern, ok := m["$regex"].(string)
	if !ok {
		return primitive.Regex{}, false
	}
	opts, _ := m["$options"].(string)
	return primitive.Regex{Pattern: pattern, Options: opts}, true
}

// EmbeddedPointer is the form of a pointer nested inside a list or object.
func EmbeddedPointer(p domain.Pointer) bson.M {
	return bson.M{"__type": "Pointer", "className": p.ClassName, "objectId": p.ObjectID}
}

// CheckNestedKeys rejects object keys that the store would read as operators
// or paths.
func CheckNestedKeys(v any) error {
	seq, _, err := structure.Seq2(v)
	if err != nil {
		return nil
	}
	for k := range seq {
		if strings.ContainsAny(k, "$.") {
			return domain.Invalid("Nested keys should not contain the '$' or '.' characters")
		}
	}
	return nil
}

// InteriorValue encodes a value stored inside a document field, recursing
// into lists and objects. Update operators found inside are flattened to
// their resulting value.
func InteriorValue(v any) (any, error) {
	switch t := v.(type) {
	case domain.Tagged, nil, time.Time, primitive.DateTime, primitive.Binary,
		primitive.Regex, primitive.ObjectID, []byte:
		return InteriorAtom(t)
	case domain.Op:
		res, _, err := FlattenOp(t)
		return res, err
	case string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return t, nil
	case bson.D:
		if err := CheckNestedKeys(t); err != nil {
			return nil, err
		}
		res := make(bson.D, 0, len(t))
		for _, e := range t {
			val, keep, err := interiorField(e.Value)
			if err != nil {
				return nil, err
			}
			if keep {
				res = append(res, bson.E{Key: e.Key, Value: val})
			}
		}
		return res, nil
	}

	if seq, l, err := structure.Seq2(v); err == nil {
		if err := CheckNestedKeys(v); err != nil {
			return nil, err
		}
		res := make(bson.M, l)
		for k, val := range seq {
			val, keep, err := interiorField(val)
			if err != nil {
				return nil, err
			}
			if keep {
				res[k] = val
			}
		}
		return res, nil
	}

	if seq, l, err := structure.Seq(v); err == nil {
		res := make(bson.A, 0, l)
		for val := range seq {
			val, err := InteriorValue(val)
			if err != nil {
				return nil, err
			}
			res = append(res, val)
		}
		return res, nil
	}

	return InteriorAtom(v)
}

func interiorField(v any) (any, bool, error) {
	if op, ok := v.(domain.Op); ok {
		return FlattenOp(op)
	}
	res, err := InteriorValue(v)
	return res, true, err
}

// FlattenOp returns the value a field holds after op is applied to a missing
// field. The boolean result is false when the field stays absent.
func FlattenOp(op domain.Op) (any, bool, error) {
	switch t := op.(type) {
	case domain.Delete:
		return nil, false, nil
	case domain.Increment:
		if !structure.IsNumber(t.Amount) {
			return nil, false, domain.Invalid("incrementing must provide a number")
		}
		return t.Amount, true, nil
	case domain.SetOnInsert:
		res, err := InteriorValue(t.Value)
		return res, err == nil, err
	case domain.Add:
		res, err := OpObjects(t.Objects, "add")
		return res, err == nil, err
	case domain.AddUnique:
		res, err := OpObjects(t.Objects, "add")
		return res, err == nil, err
	case domain.Remove:
		if t.Objects == nil {
			return nil, false, domain.Invalid("objects to remove must be an array")
		}
		return bson.A{}, true, nil
	}
	return nil, false, domain.ErrUnsupported{Feature: fmt.Sprintf("The %T operator is not supported yet.", op)}
}

// OpObjects encodes the elements of an array operator. verb names the
// operation in the error raised for a missing array.
func OpObjects(objects []any, verb string) (bson.A, error) {
	if objects == nil {
		return nil, domain.Invalid("objects to %s must be an array", verb)
	}
	res := make(bson.A, len(objects))
	for n, o := range objects {
		v, err := InteriorAtom(o)
		if err != nil {
			return nil, err
		}
		res[n] = v
	}
	return res, nil
}
