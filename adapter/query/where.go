package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/codec"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
)

// globalConfigClass stores its single object under a numeric id.
const globalConfigClass = "_GlobalConfig"

// Where implements [domain.QueryCompiler].
func (c *Compiler) Where(className string, query domain.Query, schema *domain.Schema, count bool) (bson.M, error) {
	res := bson.M{}
	for key, value := range query {
		k, v, err := c.keyValue(className, key, value, schema, count)
		if err != nil {
			return nil, err
		}
		merge(res, k, v)
	}
	return res, nil
}

// merge adds a compiled pair to a filter. Several fields may contribute
// clauses to the same $nor.
func merge(res bson.M, key string, value any) {
	if key == "$nor" {
		if prev, ok := res[key].(bson.A); ok {
			if add, ok := value.(bson.A); ok {
				res[key] = append(prev, add...)
				return
			}
		}
	}
	res[key] = value
}

// asDate reads the values accepted for timestamp fields.
func asDate(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		d, err := codec.ParseISO(t)
		return d, err == nil
	case domain.Date:
		d, err := codec.EncodeDate(t)
		return d, err == nil
	}
	return codec.AsTime(v)
}

func (c *Compiler) keyValue(className, key string, value any, schema *domain.Schema, count bool) (string, any, error) {
	switch key {
	case fieldname.ObjectID:
		if className == globalConfigClass {
			if s, ok := value.(string); ok {
				if n, err := strconv.Atoi(s); err == nil {
					value = n
				}
			}
		}
		return fieldname.ID, value, nil
	case fieldname.AppTimesUsed:
		return fieldname.TimesUsed, value, nil
	case fieldname.ReadPerm, fieldname.WritePerm, "_perishable_token", "_email_verify_token", "_failed_login_count":
		return key, value, nil
	case "$or", "$and", "$nor":
		return c.subQueries(className, key, value, schema, count)
	}

	if fieldname.IsTimeField(key) {
		if k, ok := fieldname.Builtin(key); ok {
			key = k
		}
		if d, ok := asDate(value); ok {
			return key, d, nil
		}
	} else if k, ok := fieldname.Builtin(key); ok {
		key = k
	} else if k, ok := fieldname.AuthDataQuery(key); ok {
		return k, value, nil
	}

	field, known := schema.Field(key)
	var fieldPtr *domain.Field
	if known {
		fieldPtr = &field
	}
	if known && field.Type == domain.FieldPointer {
		key = fieldname.Pointer(key)
	} else if _, isPointer := value.(domain.Pointer); schema == nil && isPointer && !strings.Contains(key, ".") {
		key = fieldname.Pointer(key)
	}

	constraint, ok, err := c.Constraint(value, fieldPtr, count)
	if err != nil {
		return "", nil, err
	}
	if ok {
		if text, ok := constraint["$text"]; ok {
			return "$text", text, nil
		}
		if _, ok := constraint["$elemMatch"]; ok {
			return "$nor", bson.A{bson.M{key: constraint}}, nil
		}
		return key, constraint, nil
	}

	if known && field.Type == domain.FieldArray && !structure.IsList(value) {
		atom, err := codec.InteriorAtom(value)
		if err != nil {
			return "", nil, err
		}
		return key, bson.M{"$all": bson.A{atom}}, nil
	}

	if strings.Contains(key, ".") {
		atom, err := codec.InteriorAtom(value)
		return key, atom, err
	}
	if re, ok := value.(domain.Regex); ok {
		atom, err := codec.InteriorAtom(re)
		return key, atom, err
	}
	atom, ok, err := codec.TopLevelAtom(value, fieldPtr)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, domain.Invalid("You cannot use %v as a query parameter.", codec.ToJSON(value))
	}
	return key, atom, nil
}

func (c *Compiler) subQueries(className, key string, value any, schema *domain.Schema, count bool) (string, any, error) {
	list, ok := structure.ToSlice(value)
	if !ok {
		return "", nil, domain.Invalid("bad %s format - use an array value", key)
	}
	res := make(bson.A, len(list))
	for n, sub := range list {
		q, ok := structure.ToMap(sub)
		if !ok {
			return "", nil, domain.Invalid("bad %s format - use an array value", key)
		}
		where, err := c.Where(className, q, schema, count)
		if err != nil {
			return "", nil, err
		}
		res[n] = where
	}
	return key, res, nil
}
