// Package update contains the default [domain.UpdateCompiler]
// implementation.
package update

import (
	"strconv"
	"strings"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/codec"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
)

// Classes whose single object is stored under a numeric id.
var numericIDClasses = map[string]bool{
	"_GlobalConfig":  true,
	"_GraphQLConfig": true,
}

// Operation is a native update operator applied to one field.
type Operation struct {
	Operator string
	Arg      any
}

// Operator returns the native operation of op. Use [codec.FlattenOp] for the
// value a missing field holds after op.
func Operator(op domain.Op) (Operation, error) {
	switch t := op.(type) {
	case domain.Delete:
		return Operation{Operator: "$unset", Arg: ""}, nil
	case domain.Increment:
		if !structure.IsNumber(t.Amount) {
			return Operation{}, domain.Invalid("incrementing must provide a number")
		}
		return Operation{Operator: "$inc", Arg: t.Amount}, nil
	case domain.SetOnInsert:
		v, err := codec.InteriorValue(t.Value)
		if err != nil {
			return Operation{}, err
		}
		return Operation{Operator: "$setOnInsert", Arg: v}, nil
	case domain.Add:
		objs, err := codec.OpObjects(t.Objects, "add")
		if err != nil {
			return Operation{}, err
		}
		return Operation{Operator: "$push", Arg: bson.M{"$each": objs}}, nil
	case domain.AddUnique:
		objs, err := codec.OpObjects(t.Objects, "add")
		if err != nil {
			return Operation{}, err
		}
		return Operation{Operator: "$addToSet", Arg: bson.M{"$each": objs}}, nil
	case domain.Remove:
		objs, err := codec.OpObjects(t.Objects, "remove")
		if err != nil {
			return Operation{}, err
		}
		return Operation{Operator: "$pullAll", Arg: objs}, nil
	}
	// FlattenOp knows the same operators and reports the unknown ones.
	_, _, err := codec.FlattenOp(op)
	return Operation{}, err
}

// Compiler implements [domain.UpdateCompiler].
type Compiler struct{}

// NewCompiler returns a new implementation of [domain.UpdateCompiler].
func NewCompiler() domain.UpdateCompiler {
	return &Compiler{}
}

// Update implements [domain.UpdateCompiler]. Permission lists are also
// folded into the legacy access document.
func (c *Compiler) Update(className string, update domain.Update, schema *domain.Schema) (bson.M, error) {
	res := bson.M{}
	set := bson.M{}
	if acl, ok := LegacyACL(update); ok {
		set[fieldname.LegacyACL] = acl
	}

	for key, value := range update {
		if _, ok := value.(domain.Relation); ok {
			continue
		}
		k, v, err := c.KeyValue(className, key, value, schema)
		if err != nil {
			return nil, err
		}
		if op, ok := v.(Operation); ok {
			bucket, _ := res[op.Operator].(bson.M)
			if bucket == nil {
				bucket = bson.M{}
				res[op.Operator] = bucket
			}
			bucket[k] = op.Arg
			continue
		}
		set[k] = v
	}
	if len(set) > 0 {
		res["$set"] = set
	}
	return res, nil
}

// KeyValue compiles one field of an update. The value is an [Operation]
// when the field is changed by an update operator.
func (c *Compiler) KeyValue(className, key string, value any, schema *domain.Schema) (string, any, error) {
	restKey := key
	timeField := fieldname.IsTimeField(key)
	switch key {
	case fieldname.ObjectID, fieldname.ID:
		if numericIDClasses[className] {
			return key, numericID(value), nil
		}
		key = fieldname.ID
	case fieldname.ReadPerm, fieldname.WritePerm:
		return key, value, nil
	case fieldname.CreatedAt, fieldname.UpdatedAt, fieldname.LastUsed:
		timeField = true
	case "_expiresAt":
		key = fieldname.ExpiresAt
		timeField = true
	default:
		if k, ok := fieldname.Builtin(key); ok {
			key = k
		}
	}

	field, known := schema.Field(key)
	_, isPointer := value.(domain.Pointer)
	if (known && field.Type == domain.FieldPointer) || (!known && isPointer && !strings.Contains(key, ".")) {
		key = fieldname.Pointer(key)
	}

	atom, ok, err := codec.TopLevelAtom(value, nil)
	if err != nil {
		return "", nil, err
	}
	if ok {
		if s, isString := atom.(string); isString && timeField {
			t, err := codec.ParseISO(s)
			if err != nil {
				return "", nil, err
			}
			atom = t
		}
		if strings.Contains(restKey, ".") {
			v, err := codec.InteriorValue(value)
			return key, v, err
		}
		return key, atom, nil
	}

	if op, ok := value.(domain.Op); ok {
		operation, err := Operator(op)
		return key, operation, err
	}

	if list, ok := structure.ToSlice(value); ok {
		res := make(bson.A, len(list))
		for n, v := range list {
			if res[n], err = codec.InteriorValue(v); err != nil {
				return "", nil, err
			}
		}
		return key, res, nil
	}

	if _, ok := value.(domain.Tagged); !ok {
		if seq, l, err := structure.Seq2(value); err == nil {
			res := make(bson.M, l)
			for k, v := range seq {
				if res[k], err = codec.InteriorValue(v); err != nil {
					return "", nil, err
				}
			}
			return key, res, nil
		}
	}
	v, err := codec.InteriorAtom(value)
	return key, v, err
}

func numericID(v any) any {
	if s, ok := v.(string); ok {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return v
}

// LegacyACL folds the read and write permission lists of obj into the
// legacy access document keyed by entity. The boolean result is false when
// obj carries no permission list.
func LegacyACL(obj map[string]any) (bson.M, bool) {
	acl := bson.M{}
	found := false
	if w, ok := structure.ToSlice(obj[fieldname.WritePerm]); ok {
		found = true
		for _, e := range w {
			if s, ok := e.(string); ok {
				acl[s] = bson.M{"w": true}
			}
		}
	}
	if r, ok := structure.ToSlice(obj[fieldname.ReadPerm]); ok {
		found = true
		for _, e := range r {
			s, ok := e.(string)
			if !ok {
				continue
			}
			if entry, ok := acl[s].(bson.M); ok {
				entry["r"] = true
				continue
			}
			acl[s] = bson.M{"r": true}
		}
	}
	return acl, found
}
