// Package document contains the default [domain.DocumentBuilder]
// implementation, converting whole objects to stored documents and back.
package document

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/codec"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/update"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var authKey = regexp.MustCompile(`^_auth_data_[a-zA-Z0-9_]+$`)

// Builder implements [domain.DocumentBuilder].
type Builder struct {
	logger *slog.Logger
}

// NewBuilder returns a new implementation of [domain.DocumentBuilder].
func NewBuilder(opts ...Option) domain.DocumentBuilder {
	b := Builder{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return &b
}

// ForCreate implements [domain.DocumentBuilder].
func (b *Builder) ForCreate(className string, object domain.Object, schema *domain.Schema) (bson.M, error) {
	doc := bson.M{}
	if acl, ok := update.LegacyACL(object); ok {
		doc[fieldname.LegacyACL] = acl
	}
	for key, value := range object {
		if _, ok := value.(domain.Relation); ok {
			continue
		}
		if key == fieldname.AuthData && className == fieldname.UserClass {
			if err := splitAuthData(doc, value); err != nil {
				return nil, err
			}
			continue
		}
		k, v, keep, err := b.keyValue(key, value, schema)
		if err != nil {
			return nil, err
		}
		if keep {
			doc[k] = v
		}
	}

	for _, name := range []string{fieldname.AppCreatedAt, fieldname.AppUpdatedAt} {
		v, ok := doc[name]
		if !ok {
			continue
		}
		delete(doc, name)
		t, err := timestamp(v)
		if err != nil {
			return nil, err
		}
		k, _ := fieldname.Builtin(name)
		doc[k] = t
	}
	return doc, nil
}

// splitAuthData stores every provider under its own key.
func splitAuthData(doc bson.M, value any) error {
	seq, _, err := structure.Seq2(value)
	if err != nil {
		return domain.Invalid("authData should be an object")
	}
	for provider, data := range seq {
		v, err := codec.InteriorValue(data)
		if err != nil {
			return err
		}
		doc[fieldname.AuthDataKey(provider)] = v
	}
	return nil
}

func timestamp(v any) (any, error) {
	switch t := v.(type) {
	case string:
		return codec.ParseISO(t)
	case domain.Date:
		return codec.EncodeDate(t)
	}
	if t, ok := codec.AsTime(v); ok {
		return t, nil
	}
	return nil, domain.Invalid("invalid date: %v", v)
}

func (b *Builder) keyValue(key string, value any, schema *domain.Schema) (string, any, bool, error) {
	switch key {
	case fieldname.ObjectID:
		return fieldname.ID, value, true, nil
	case fieldname.ExpiresAt:
		v, err := b.timeValue(value)
		return key, v, true, err
	case fieldname.AppSession:
		return fieldname.SessionToken, value, true, nil
	case fieldname.ReadPerm, fieldname.WritePerm, fieldname.HashedPassword:
		return key, value, true, nil
	}
	if fieldname.IsPassThrough(key) {
		if fieldname.IsTimeField(key) {
			v, err := b.timeValue(value)
			return key, v, true, err
		}
		return key, value, true, nil
	}
	if _, ok := fieldname.AuthDataQuery(key); ok {
		return "", nil, false, domain.Invalid("can only query on %s", key)
	}
	if authKey.MatchString(key) {
		return key, value, true, nil
	}

	f, known := schema.Field(key)
	if _, isPointer := value.(domain.Pointer); isPointer || (known && f.Type == domain.FieldPointer && value != nil) {
		key = fieldname.Pointer(key)
	}

	atom, ok, err := codec.TopLevelAtom(value, nil)
	if err != nil {
		return "", nil, false, err
	}
	if ok {
		return key, atom, true, nil
	}
	if key == fieldname.ACL {
		return "", nil, false, domain.Invalid("There was a problem transforming an ACL.")
	}
	if op, ok := value.(domain.Op); ok {
		v, keep, err := codec.FlattenOp(op)
		return key, v, keep, err
	}
	if _, ok := value.(domain.Tagged); ok {
		v, err := codec.InteriorAtom(value)
		return key, v, true, err
	}
	if structure.IsList(value) {
		v, err := codec.InteriorValue(value)
		return key, v, true, err
	}
	if err := codec.CheckNestedKeys(value); err != nil {
		return "", nil, false, err
	}
	seq, l, err := structure.Seq2(value)
	if err != nil {
		return "", nil, false, err
	}
	res := make(bson.M, l)
	for k, v := range seq {
		if res[k], err = codec.InteriorValue(v); err != nil {
			return "", nil, false, err
		}
	}
	return key, res, true, nil
}

// timeValue coerces the ISO strings held by time fields.
func (b *Builder) timeValue(v any) (any, error) {
	atom, ok, err := codec.TopLevelAtom(v, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return codec.InteriorValue(v)
	}
	if s, ok := atom.(string); ok {
		return codec.ParseISO(s)
	}
	return atom, nil
}

// ToObject implements [domain.DocumentBuilder]. Stored pointers that the
// schema no longer declares are dropped.
func (b *Builder) ToObject(className string, doc bson.M, schema *domain.Schema) (domain.Object, error) {
	obj := domain.Object{}
	rperm, hasR := doc[fieldname.ReadPerm]
	wperm, hasW := doc[fieldname.WritePerm]
	if hasR || hasW {
		obj[fieldname.ReadPerm] = permList(rperm)
		obj[fieldname.WritePerm] = permList(wperm)
	}

	for key, value := range doc {
		switch key {
		case fieldname.ReadPerm, fieldname.WritePerm, fieldname.LegacyACL:
			continue
		case fieldname.ID:
			obj[fieldname.ObjectID] = idString(value)
			continue
		case fieldname.HashedPassword:
			obj[key] = value
			continue
		case fieldname.SessionToken:
			obj[fieldname.AppSession] = value
			continue
		case fieldname.UpdatedAt, fieldname.AppUpdatedAt,
			fieldname.CreatedAt, fieldname.AppCreatedAt,
			fieldname.LastUsed, fieldname.AppLastUsed:
			name, _ := fieldname.FromStore(key)
			d, err := codec.DecodeDate(value)
			if err != nil {
				return nil, err
			}
			obj[name] = d.ISO
			continue
		case fieldname.ExpiresAt, "_expiresAt":
			d, err := codec.DecodeDate(value)
			if err != nil {
				return nil, err
			}
			obj[fieldname.ExpiresAt] = d
			continue
		case fieldname.TimesUsed, fieldname.AppTimesUsed:
			obj[fieldname.AppTimesUsed] = value
			continue
		case fieldname.AuthData:
			if className == fieldname.UserClass {
				b.logger.Warn("ignoring authData in _User as this key is reserved to be synthesized of `_auth_data_*` keys")
				continue
			}
			v, err := codec.NestedFromStore(value)
			if err != nil {
				return nil, err
			}
			obj[key] = v
			continue
		}

		if fieldname.IsPassThrough(key) {
			v, err := passThroughValue(key, value)
			if err != nil {
				return nil, err
			}
			obj[key] = v
			continue
		}
		if provider, ok := fieldname.AuthProvider(key); ok && className == fieldname.UserClass {
			auth, _ := obj[fieldname.AuthData].(map[string]any)
			if auth == nil {
				auth = map[string]any{}
				obj[fieldname.AuthData] = auth
			}
			v, err := codec.NestedFromStore(value)
			if err != nil {
				return nil, err
			}
			auth[provider] = v
			continue
		}
		if name, ok := fieldname.StripPointer(key); ok {
			if err := b.pointer(className, obj, name, key, value, schema); err != nil {
				return nil, err
			}
			continue
		}
		if fieldname.IsReserved(key) && key != "__type" {
			return nil, domain.ErrIntegrity{Reason: "bad key in untransform: " + key}
		}

		v, err := typedValue(key, value, schema)
		if err != nil {
			return nil, err
		}
		obj[key] = v
	}

	if schema != nil {
		for name, f := range schema.Fields {
			if f.Type == domain.FieldRelation {
				obj[name] = domain.Relation{ClassName: f.TargetClass}
			}
		}
	}
	return obj, nil
}

func (b *Builder) pointer(className string, obj domain.Object, name, key string, value any, schema *domain.Schema) error {
	f, ok := schema.Field(name)
	if !ok {
		b.logger.Info("found a pointer column not in the schema, dropping it", "class", className, "field", name)
		return nil
	}
	if f.Type != domain.FieldPointer {
		b.logger.Info("found a pointer in a non-pointer column, dropping it", "class", className, "field", key)
		return nil
	}
	if value == nil {
		return nil
	}
	p, err := codec.DecodePointer(value, f.TargetClass)
	if err != nil {
		return err
	}
	obj[name] = p
	return nil
}

// typedValue decodes a regular field, using the schema to recognize values
// whose stored form is ambiguous.
func typedValue(key string, value any, schema *domain.Schema) (any, error) {
	f, known := schema.Field(key)
	if known {
		switch {
		case f.Type == domain.FieldFile && codec.IsStoreFile(value):
			return codec.DecodeFile(value)
		case f.Type == domain.FieldGeoPoint && codec.IsStoreGeoPoint(value):
			return codec.DecodeGeoPoint(value)
		case f.Type == domain.FieldPolygon && codec.IsStorePolygon(value):
			return codec.DecodePolygon(value)
		case f.Type == domain.FieldBytes && codec.IsStoreBytes(value):
			return codec.DecodeBytes(value)
		}
	}
	return codec.NestedFromStore(value)
}

func passThroughValue(key string, value any) (any, error) {
	if fieldname.IsTimeField(key) && codec.IsStoreDate(value) {
		return codec.DecodeDate(value)
	}
	return value, nil
}

func permList(v any) []any {
	l, ok := structure.ToSlice(v)
	if !ok {
		return []any{}
	}
	return l
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case primitive.ObjectID:
		return t.Hex()
	}
	return fmt.Sprint(v)
}
