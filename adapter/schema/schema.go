// Package schema builds the documents that persist class schemas: one
// document per class in the schema collection, keyed by class name, holding
// field kinds, per-field options, class-level permissions and declared
// indexes.
package schema

import (
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/codec"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
)

// CollectionName is the collection holding schema documents, before any
// collection prefix is applied.
const CollectionName = "_SCHEMA"

// Keys of the schema document.
const (
	metadataKey     = "_metadata"
	fieldOptionsKey = "fields_options"
	clpKey          = "class_permissions"
	indexesKey      = "indexes"
)

var kindNames = map[domain.FieldType]string{
	domain.FieldString:   "string",
	domain.FieldNumber:   "number",
	domain.FieldBoolean:  "boolean",
	domain.FieldDate:     "date",
	domain.FieldObject:   "object",
	domain.FieldArray:    "array",
	domain.FieldGeoPoint: "geopoint",
	domain.FieldFile:     "file",
	domain.FieldBytes:    "bytes",
	domain.FieldPolygon:  "polygon",
}

// Kind returns the stored encoding of a field kind. The boolean result is
// false for kinds that are never stored, such as ACL.
func Kind(f domain.Field) (string, bool) {
	switch f.Type {
	case domain.FieldPointer:
		return "*" + f.TargetClass, true
	case domain.FieldRelation:
		return "relation<" + f.TargetClass + ">", true
	}
	s, ok := kindNames[f.Type]
	return s, ok
}

// ParseKind is the reverse of [Kind].
func ParseKind(s string) (domain.Field, error) {
	if target, ok := strings.CutPrefix(s, "*"); ok {
		return domain.Field{Type: domain.FieldPointer, TargetClass: target}, nil
	}
	if rest, ok := strings.CutPrefix(s, "relation<"); ok && strings.HasSuffix(rest, ">") {
		return domain.Field{Type: domain.FieldRelation, TargetClass: strings.TrimSuffix(rest, ">")}, nil
	}
	if s == "map" {
		return domain.Field{Type: domain.FieldObject}, nil
	}
	for t, name := range kindNames {
		if name == s {
			return domain.Field{Type: t}, nil
		}
	}
	return domain.Field{}, domain.ErrIntegrity{Reason: "invalid schema field type: " + s}
}

// skipped reports whether a field is implied by every schema document and
// therefore not written as a declared field.
func skipped(className, name string, f domain.Field) bool {
	switch name {
	case fieldname.ObjectID, fieldname.AppCreatedAt, fieldname.AppUpdatedAt, fieldname.ACL,
		fieldname.ReadPerm, fieldname.WritePerm:
		return true
	case fieldname.HashedPassword:
		return className == fieldname.UserClass
	}
	return f.Type == domain.FieldACL
}

// Document returns the schema document of a class. The metadata sub-document
// is omitted when no field has options, permissions were never set and no
// index is declared.
func Document(className string, fields map[string]domain.Field, clp domain.CLP, indexes map[string]bson.D) (bson.M, error) {
	doc := bson.M{
		fieldname.ID:           className,
		fieldname.ObjectID:     "string",
		fieldname.AppUpdatedAt: "string",
		fieldname.AppCreatedAt: "string",
	}
	metadata := bson.M{}

	options := bson.M{}
	for name, f := range fields {
		if skipped(className, name, f) {
			continue
		}
		kind, ok := Kind(f)
		if !ok {
			return nil, domain.Invalid("invalid field type: %s", f.Type)
		}
		doc[name] = kind
		if len(f.Options) > 0 {
			opts, err := codec.InteriorValue(f.Options)
			if err != nil {
				return nil, err
			}
			options[name] = opts
		}
	}
	if len(options) > 0 {
		metadata[fieldOptionsKey] = options
	}

	switch clp.State() {
	case domain.CLPCleared:
		metadata[clpKey] = bson.M{}
	case domain.CLPSet:
		metadata[clpKey] = clp.Doc()
	}

	if len(indexes) > 0 {
		metadata[indexesKey] = indexDoc(indexes)
	}

	if len(metadata) > 0 {
		doc[metadataKey] = metadata
	}
	return doc, nil
}

func indexDoc(indexes map[string]bson.D) bson.M {
	res := make(bson.M, len(indexes))
	for name, keys := range indexes {
		res[name] = keys
	}
	return res
}

// Parse reads a schema document. The built-in fields are always declared.
func Parse(doc bson.M) (domain.Schema, error) {
	className, _ := doc[fieldname.ID].(string)
	s := domain.Schema{
		ClassName: className,
		Fields:    map[string]domain.Field{},
		CLP:       domain.UnsetCLP(),
		Indexes:   map[string]bson.D{},
	}

	metadata, _ := structure.ToMap(doc[metadataKey])
	options, _ := structure.ToMap(metadata[fieldOptionsKey])

	for key, value := range doc {
		switch key {
		case fieldname.ID, metadataKey, fieldname.ClientPerms:
			continue
		}
		kind, ok := value.(string)
		if !ok {
			return domain.Schema{}, domain.ErrIntegrity{Reason: "invalid schema field type for " + key}
		}
		f, err := ParseKind(kind)
		if err != nil {
			return domain.Schema{}, err
		}
		if opts, ok := structure.ToMap(options[key]); ok && len(opts) > 0 {
			decoded, err := codec.NestedFromStore(opts)
			if err != nil {
				return domain.Schema{}, err
			}
			f.Options, _ = decoded.(map[string]any)
		}
		s.Fields[key] = f
	}
	s.Fields[fieldname.ACL] = domain.Field{Type: domain.FieldACL}
	s.Fields[fieldname.AppCreatedAt] = domain.Field{Type: domain.FieldDate}
	s.Fields[fieldname.AppUpdatedAt] = domain.Field{Type: domain.FieldDate}
	s.Fields[fieldname.ObjectID] = domain.Field{Type: domain.FieldString}

	// A stored null reads as unset, same as a missing key. Cleared
	// permissions are always written as an empty document.
	if clp, ok := metadata[clpKey]; ok && clp != nil {
		m, ok := structure.ToMap(clp)
		if !ok {
			return domain.Schema{}, domain.ErrIntegrity{Reason: "invalid class permissions of " + className}
		}
		s.CLP = domain.SetCLP(m)
	}

	if indexes, ok := structure.ToMap(metadata[indexesKey]); ok {
		for name, keys := range indexes {
			d, err := KeysDoc(keys)
			if err != nil {
				return domain.Schema{}, err
			}
			s.Indexes[name] = d
		}
	}
	return s, nil
}

// KeysDoc reads an index key specification. Unordered maps are sorted by key
// name, so only ordered documents keep compound index order.
func KeysDoc(keys any) (bson.D, error) {
	if d, ok := keys.(bson.D); ok {
		return d, nil
	}
	m, ok := structure.ToMap(keys)
	if !ok {
		return nil, domain.ErrIntegrity{Reason: "invalid index key specification"}
	}
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	slices.Sort(names)
	d := make(bson.D, len(names))
	for n, k := range names {
		d[n] = bson.E{Key: k, Value: m[k]}
	}
	return d, nil
}

// Query selects the schema document of a class.
func Query(className string) bson.M {
	return bson.M{fieldname.ID: className}
}

// AddFieldUpdate returns the filter and update adding a field to a schema
// document. The filter does not match when the field already exists.
func AddFieldUpdate(fieldName string, f domain.Field) (bson.M, bson.M, error) {
	kind, ok := Kind(f)
	if !ok {
		return nil, nil, domain.Invalid("invalid field type: %s", f.Type)
	}
	set := bson.M{fieldName: kind}
	if len(f.Options) > 0 {
		opts, err := codec.InteriorValue(f.Options)
		if err != nil {
			return nil, nil, err
		}
		set[optionsPath(fieldName)] = opts
	}
	return bson.M{fieldName: bson.M{"$exists": false}}, bson.M{"$set": set}, nil
}

// FieldOptionsUpdate returns the filter and update replacing the options of
// an existing field.
func FieldOptionsUpdate(fieldName string, f domain.Field) (bson.M, bson.M, error) {
	opts, err := codec.InteriorValue(f.Options)
	if err != nil {
		return nil, nil, err
	}
	if opts == nil {
		opts = bson.M{}
	}
	return bson.M{fieldName: bson.M{"$exists": true}},
		bson.M{"$set": bson.M{optionsPath(fieldName): opts}}, nil
}

func optionsPath(fieldName string) string {
	return metadataKey + "." + fieldOptionsKey + "." + fieldName
}

// DeleteFieldsUpdate returns the filter and update removing fields from every
// object of a class, and the update removing them from its schema document.
func DeleteFieldsUpdate(s *domain.Schema, fieldNames []string) (filter, update, schemaUpdate bson.M) {
	unset := bson.M{}
	or := bson.A{}
	schemaUnset := bson.M{}
	for _, name := range fieldNames {
		key := name
		if f, ok := s.Field(name); ok && f.Type == domain.FieldPointer {
			key = fieldname.Pointer(name)
		}
		unset[key] = ""
		or = append(or, bson.M{key: bson.M{"$exists": true}})
		schemaUnset[name] = ""
		schemaUnset[optionsPath(name)] = ""
	}
	return bson.M{"$or": or}, bson.M{"$unset": unset}, bson.M{"$unset": schemaUnset}
}

// CLPUpdate returns the update storing class-level permissions. Unset
// permissions are removed so the defaults apply again.
func CLPUpdate(clp domain.CLP) bson.M {
	path := metadataKey + "." + clpKey
	switch clp.State() {
	case domain.CLPCleared:
		return bson.M{"$set": bson.M{path: bson.M{}}}
	case domain.CLPSet:
		return bson.M{"$set": bson.M{path: clp.Doc()}}
	}
	return bson.M{"$unset": bson.M{path: ""}}
}

// IndexesUpdate returns the update storing the declared indexes.
func IndexesUpdate(indexes map[string]bson.D) bson.M {
	return bson.M{"$set": bson.M{metadataKey + "." + indexesKey: indexDoc(indexes)}}
}
