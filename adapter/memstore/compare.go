package memstore

import (
	"bytes"
	"cmp"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Ranks of the native types, in the order the store sorts them.
const (
	rankMissing = iota
	rankNull
	rankNumber
	rankString
	rankObject
	rankArray
	rankBinary
	rankObjectID
	rankBool
	rankDate
	rankRegex
	rankOther
)

func rank(v any) int {
	switch v.(type) {
	case nil:
		return rankNull
	case string:
		return rankString
	case bson.M, map[string]any, bson.D:
		return rankObject
	case bson.A, []any:
		return rankArray
	case primitive.Binary, []byte:
		return rankBinary
	case primitive.ObjectID:
		return rankObjectID
	case bool:
		return rankBool
	case time.Time, primitive.DateTime:
		return rankDate
	case primitive.Regex:
		return rankRegex
	}
	if structure.IsNumber(v) {
		return rankNumber
	}
	return rankOther
}

// missing stands for an absent field. It sorts before every value.
type missing struct{}

// Compare orders two native values. Values of different types are ordered by
// type first.
func Compare(a, b any) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankNumber:
		fa, _ := structure.AsFloat(a)
		fb, _ := structure.AsFloat(b)
		return cmp.Compare(fa, fb)
	case rankString:
		return strings.Compare(a.(string), b.(string))
	case rankObject:
		return compareObjects(a, b)
	case rankArray:
		la, _ := structure.ToSlice(a)
		lb, _ := structure.ToSlice(b)
		return slices.CompareFunc(la, lb, Compare)
	case rankBinary:
		return bytes.Compare(binaryData(a), binaryData(b))
	case rankObjectID:
		ida, idb := a.(primitive.ObjectID), b.(primitive.ObjectID)
		return bytes.Compare(ida[:], idb[:])
	case rankBool:
		return compareBool(a.(bool), b.(bool))
	case rankDate:
		ta, _ := asTime(a)
		tb, _ := asTime(b)
		return ta.Compare(tb)
	case rankRegex:
		return strings.Compare(a.(primitive.Regex).String(), b.(primitive.Regex).String())
	}
	return 0
}

func rankOf(v any) int {
	if _, ok := v.(missing); ok {
		return rankMissing
	}
	return rank(v)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case a:
		return 1
	}
	return -1
}

// compareObjects compares field by field. Unordered documents are compared in
// key order.
func compareObjects(a, b any) int {
	da, db := orderedDoc(a), orderedDoc(b)
	for n := range min(len(da), len(db)) {
		if c := strings.Compare(da[n].Key, db[n].Key); c != 0 {
			return c
		}
		if c := Compare(da[n].Value, db[n].Value); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(da), len(db))
}

func orderedDoc(v any) bson.D {
	if d, ok := v.(bson.D); ok {
		return d
	}
	m, _ := structure.ToMap(v)
	d := make(bson.D, 0, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		d = append(d, bson.E{Key: k, Value: m[k]})
	}
	return d
}

func binaryData(v any) []byte {
	if b, ok := v.(primitive.Binary); ok {
		return b.Data
	}
	return v.([]byte)
}

func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case primitive.DateTime:
		return t.Time(), true
	}
	return time.Time{}, false
}

// Equal reports whether two native values are the same value.
func Equal(a, b any) bool {
	return Compare(a, b) == 0
}
