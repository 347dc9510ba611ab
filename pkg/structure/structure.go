// Package structure contains type-related operations, such as iterating over a
// value of type any and converting numbers.
package structure

import (
	"errors"
	"iter"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/goccy/go-reflect"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNilObj may be returned by [Seq] or [Seq2] when a nil value is
	// passed as argument.
	ErrNilObj = errors.New("nil object")
)

// TagName is the struct tag read when iterating over structs.
const TagName = "bson"

// ErrNonObject is returned by [Seq2] when a value that is neither a struct,
// a document nor a map with string keys is passed as argument.
type ErrNonObject struct {
	Type reflect.Type
}

func (e ErrNonObject) Error() string {
	return "value of type " + typeName(e.Type) + " is not an object"
}

// ErrNonList is returned by [Seq] when a value that is neither a slice nor an
// array is passed as argument.
type ErrNonList struct {
	Type reflect.Type
}

func (e ErrNonList) Error() string {
	return "value of type " + typeName(e.Type) + " is not a list"
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

// Seq2 returns an iterator over the fields of a map, document or struct.
// Ordered documents are visited in order.
func Seq2(obj any) (iter.Seq2[string, any], int, error) {
	if obj == nil {
		return nil, 0, ErrNilObj
	}
	if err := checkPrimitive(obj); err != nil {
		return nil, 0, err
	}
	switch t := obj.(type) {
	case bson.M:
		return iterMap(t), len(t), nil
	case map[string]any:
		return iterMap(t), len(t), nil
	case bson.D:
		return iterDoc(t), len(t), nil
	case map[string]string:
		return iterMap(t), len(t), nil
	case map[string]bool:
		return iterMap(t), len(t), nil
	case map[string]int:
		return iterMap(t), len(t), nil
	case map[string]float64:
		return iterMap(t), len(t), nil
	}
	return iterReflect(obj)
}

func checkPrimitive(obj any) error {
	switch obj.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time, *regexp.Regexp, []byte,
		primitive.DateTime, primitive.Binary, primitive.Regex,
		primitive.ObjectID, primitive.Decimal128, primitive.Timestamp:
		return ErrNonObject{Type: reflect.TypeOf(obj)}
	default:
		return nil
	}
}

func iterReflect(obj any) (iter.Seq2[string, any], int, error) {
	v := reflect.ValueNoEscapeOf(obj)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, 0, ErrNilObj
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, 0, ErrNonObject{Type: v.Type()}
		}
		return iterReflectMap(v), v.Len(), nil
	case reflect.Struct:
		i, l := iterReflectStruct(v)
		return i, l, nil
	}
	return nil, 0, ErrNonObject{Type: v.Type()}
}

func iterReflectMap(v reflect.Value) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		it := v.MapRange()
		for it.Next() {
			if !yield(it.Key().String(), it.Value().Interface()) {
				return
			}
		}
	}
}

func iterReflectStruct(v reflect.Value) (iter.Seq2[string, any], int) {
	fields := make(bson.D, 0, v.NumField())
	for k, v := range listStructFields(v) {
		fields = append(fields, bson.E{Key: k, Value: v})
	}
	return iterDoc(fields), len(fields)
}

func listStructFields(v reflect.Value) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		typ := v.Type()
		for n := range typ.NumField() {
			field := typ.Field(n)
			if field.PkgPath != "" {
				continue
			}

			name, omitEmpty := field.Name, false
			if tag, ok := field.Tag.Lookup(TagName); ok {
				if tag == "-" {
					continue
				}
				parts := strings.Split(tag, ",")
				if parts[0] != "" {
					name = parts[0]
				}
				for _, flag := range parts[1:] {
					if flag == "omitempty" {
						omitEmpty = true
					}
				}
			}
			if omitEmpty && v.Field(n).IsZero() {
				continue
			}
			if !yield(name, v.Field(n).Interface()) {
				return
			}
		}
	}
}

func iterMap[T any, M ~map[string]T](m M) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for k, v := range m {
			if !yield(k, v) {
				return
			}
		}
	}
}

func iterDoc(d bson.D) iter.Seq2[string, any] {
	return func(yield func(string, any) bool) {
		for _, e := range d {
			if !yield(e.Key, e.Value) {
				return
			}
		}
	}
}

// Seq returns an iterator over a slice or array of any type.
func Seq(obj any) (iter.Seq[any], int, error) {
	if obj == nil {
		return nil, 0, ErrNilObj
	}
	switch t := obj.(type) {
	case []any:
		return iterSlice(t), len(t), nil
	case bson.A:
		return iterSlice(t), len(t), nil
	case []string:
		return iterSlice(t), len(t), nil
	case []float64:
		return iterSlice(t), len(t), nil
	case []int:
		return iterSlice(t), len(t), nil
	case []byte, string, bson.D:
		return nil, 0, ErrNonList{Type: reflect.TypeOf(obj)}
	}

	v := reflect.ValueNoEscapeOf(obj)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, 0, ErrNilObj
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return func(yield func(any) bool) {
			for n := range v.Len() {
				if !yield(v.Index(n).Interface()) {
					return
				}
			}
		}, v.Len(), nil
	}
	return nil, 0, ErrNonList{Type: v.Type()}
}

func iterSlice[T any, S ~[]T](m S) iter.Seq[any] {
	return func(yield func(any) bool) {
		for _, v := range m {
			if !yield(v) {
				return
			}
		}
	}
}

// IsObject reports whether v can be iterated with [Seq2].
func IsObject(v any) bool {
	if v == nil {
		return false
	}
	switch v.(type) {
	case bson.M, map[string]any, bson.D:
		return true
	}
	_, _, err := Seq2(v)
	return err == nil
}

// IsList reports whether v can be iterated with [Seq].
func IsList(v any) bool {
	if v == nil {
		return false
	}
	_, _, err := Seq(v)
	return err == nil
}

// ToMap copies an object-shaped value into a [bson.M].
func ToMap(v any) (bson.M, bool) {
	seq, l, err := Seq2(v)
	if err != nil {
		return nil, false
	}
	res := make(bson.M, l)
	for k, v := range seq {
		res[k] = v
	}
	return res, true
}

// ToSlice copies a list-shaped value into a []any.
func ToSlice(v any) ([]any, bool) {
	seq, l, err := Seq(v)
	if err != nil {
		return nil, false
	}
	res := make([]any, 0, l)
	for v := range seq {
		res = append(res, v)
	}
	return res, true
}

// AsInteger converts any built-in number to int and returns a flag that informs
// if the argument is a valid integer.
func AsInteger(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int8:
		return int(t), true
	case int16:
		return int(t), true
	case int32:
		return int(t), true
	case int64:
		return int(t), true
	case uint:
		return int(t), true
	case uint8:
		return int(t), true
	case uint16:
		return int(t), true
	case uint32:
		return int(t), true
	case uint64:
		return int(t), true
	case float32:
		if trunc := math.Trunc(float64(t)); trunc == float64(t) {
			return int(trunc), true
		}
		return 0, false
	case float64:
		if trunc := math.Trunc(t); trunc == t {
			return int(trunc), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// AsFloat converts any built-in number to float64.
func AsFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}

// IsNumber reports whether v is a built-in number.
func IsNumber(v any) bool {
	_, ok := AsFloat(v)
	return ok
}
