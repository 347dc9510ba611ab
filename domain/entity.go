package domain

import (
	"maps"

	"go.mongodb.org/mongo-driver/bson"
)

// FieldType is the declared kind of a class field.
type FieldType uint8

// Field kinds understood by the adapter.
const (
	FieldString FieldType = iota + 1
	FieldNumber
	FieldBoolean
	FieldDate
	FieldPointer
	FieldRelation
	FieldArray
	FieldObject
	FieldGeoPoint
	FieldPolygon
	FieldBytes
	FieldFile
	FieldACL
)

var fieldTypeNames = map[FieldType]string{
	FieldString:   "String",
	FieldNumber:   "Number",
	FieldBoolean:  "Boolean",
	FieldDate:     "Date",
	FieldPointer:  "Pointer",
	FieldRelation: "Relation",
	FieldArray:    "Array",
	FieldObject:   "Object",
	FieldGeoPoint: "GeoPoint",
	FieldPolygon:  "Polygon",
	FieldBytes:    "Bytes",
	FieldFile:     "File",
	FieldACL:      "ACL",
}

func (t FieldType) String() string {
	if s, ok := fieldTypeNames[t]; ok {
		return s
	}
	return "Unknown"
}

// ParseFieldType returns the FieldType named s, as returned by
// [FieldType.String].
func ParseFieldType(s string) (FieldType, bool) {
	for t, name := range fieldTypeNames {
		if name == s {
			return t, true
		}
	}
	return 0, false
}

// Field describes one declared field of a class.
type Field struct {
	Type FieldType
	// TargetClass is the referenced class for Pointer and Relation fields.
	TargetClass string
	// Options holds per-field options such as "required" and
	// "defaultValue".
	Options map[string]any
}

// Schema is the application-side description of a class.
type Schema struct {
	ClassName string
	Fields    map[string]Field
	CLP       CLP
	// Indexes maps an index name to its ordered key specification.
	Indexes map[string]bson.D
}

// Field returns the declared field, if any. It is safe to call on a nil
// schema.
func (s *Schema) Field(name string) (Field, bool) {
	if s == nil || s.Fields == nil {
		return Field{}, false
	}
	f, ok := s.Fields[name]
	return f, ok
}

// FieldPtr is like [Schema.Field] but returns nil when the field is not
// declared.
func (s *Schema) FieldPtr(name string) *Field {
	f, ok := s.Field(name)
	if !ok {
		return nil
	}
	return &f
}

// CLPState tells apart the three possible states of class-level permissions.
type CLPState uint8

const (
	// CLPUnset means no permissions were ever stored for the class.
	CLPUnset CLPState = iota
	// CLPCleared means permissions were explicitly stored as empty, which
	// locks the class down.
	CLPCleared
	// CLPSet means a permissions document is stored.
	CLPSet
)

// CLP holds class-level permissions. The zero value is unset.
type CLP struct {
	state CLPState
	doc   bson.M
}

// UnsetCLP returns permissions that were never set.
func UnsetCLP() CLP { return CLP{state: CLPUnset} }

// ClearedCLP returns explicitly empty permissions.
func ClearedCLP() CLP { return CLP{state: CLPCleared} }

// SetCLP returns permissions holding doc. A nil or empty doc is the same as
// [ClearedCLP].
func SetCLP(doc bson.M) CLP {
	if len(doc) == 0 {
		return ClearedCLP()
	}
	return CLP{state: CLPSet, doc: maps.Clone(doc)}
}

// State returns the permission state.
func (c CLP) State() CLPState { return c.state }

// Doc returns the stored permission document. It is empty unless the state is
// [CLPSet].
func (c CLP) Doc() bson.M {
	if c.state != CLPSet {
		return bson.M{}
	}
	return maps.Clone(c.doc)
}

// Effective returns the permissions the application should enforce: the
// public defaults when unset, the locked-down template when cleared, and the
// stored document layered over the locked-down template when set.
func (c CLP) Effective() bson.M {
	switch c.state {
	case CLPCleared:
		return EmptyCLP()
	case CLPSet:
		res := EmptyCLP()
		maps.Copy(res, c.doc)
		return res
	default:
		return DefaultCLP()
	}
}

// DefaultCLP is the permission document of a class with no stored permissions.
func DefaultCLP() bson.M {
	return bson.M{
		"find":            bson.M{"*": true},
		"count":           bson.M{"*": true},
		"get":             bson.M{"*": true},
		"create":          bson.M{"*": true},
		"update":          bson.M{"*": true},
		"delete":          bson.M{"*": true},
		"addField":        bson.M{"*": true},
		"protectedFields": bson.M{"*": bson.A{}},
	}
}

// EmptyCLP is the locked-down permission template.
func EmptyCLP() bson.M {
	return bson.M{
		"find":            bson.M{},
		"count":           bson.M{},
		"get":             bson.M{},
		"create":          bson.M{},
		"update":          bson.M{},
		"delete":          bson.M{},
		"addField":        bson.M{},
		"protectedFields": bson.M{},
	}
}

// IndexSpec is one entry of an index reconciliation request. An entry either
// creates an index with Keys or drops an existing one.
type IndexSpec struct {
	Keys bson.D
	Drop bool
}

// Object is an application object: field names mapped to application values.
type Object = map[string]any

// Query is an application predicate tree.
type Query = map[string]any

// Update is an application update document.
type Update = map[string]any
