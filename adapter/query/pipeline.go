package query

import (
	"maps"
	"strings"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/codec"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
)

// Pipeline implements [domain.QueryCompiler]. Stages are copied before being
// rewritten.
func (c *Compiler) Pipeline(pipeline []bson.M, schema *domain.Schema) ([]bson.M, bool, error) {
	pointerGroup := false
	res := make([]bson.M, len(pipeline))
	for n, stage := range pipeline {
		stage = maps.Clone(stage)
		if group, ok := stage["$group"]; ok {
			g := groupArgs(group, schema)
			if gm, ok := g.(bson.M); ok {
				if id, ok := gm["_id"].(string); ok && strings.Contains(id, "$"+fieldname.PointerPrefix) {
					pointerGroup = true
				}
			}
			stage["$group"] = g
		}
		if match, ok := stage["$match"]; ok {
			m, err := aggregateArgs(match, schema)
			if err != nil {
				return nil, false, err
			}
			stage["$match"] = m
		}
		if project, ok := stage["$project"]; ok {
			p, err := projectArgs(project, schema)
			if err != nil {
				return nil, false, err
			}
			stage["$project"] = p
		}
		if geoNear, ok := structure.ToMap(stage["$geoNear"]); ok {
			if q, ok := geoNear["query"]; ok {
				geoNear = maps.Clone(geoNear)
				parsed, err := aggregateArgs(q, schema)
				if err != nil {
					return nil, false, err
				}
				geoNear["query"] = parsed
				stage["$geoNear"] = geoNear
			}
		}
		res[n] = stage
	}
	return res, pointerGroup, nil
}

// renameAggregateKey maps the built-in fields usable inside stages.
func renameAggregateKey(key string) string {
	switch key {
	case fieldname.ObjectID:
		return fieldname.ID
	case fieldname.AppCreatedAt:
		return fieldname.CreatedAt
	case fieldname.AppUpdatedAt:
		return fieldname.UpdatedAt
	}
	return key
}

func aggregateArgs(v any, schema *domain.Schema) (any, error) {
	if v == nil {
		return nil, nil
	}
	if list, ok := structure.ToSlice(v); ok {
		res := make(bson.A, len(list))
		for n, item := range list {
			parsed, err := aggregateArgs(item, schema)
			if err != nil {
				return nil, err
			}
			res[n] = parsed
		}
		return res, nil
	}
	doc, ok := object(v)
	if !ok {
		return aggregateLeaf(v)
	}

	res := bson.M{}
	for key, val := range doc {
		field, known := schema.Field(key)
		switch {
		case known && field.Type == domain.FieldPointer:
			res[fieldname.Pointer(key)] = aggregatePointer(val, field)
			continue
		case known && field.Type == domain.FieldDate:
			d, err := toDate(val)
			if err != nil {
				return nil, err
			}
			res[renameAggregateKey(key)] = d
			continue
		}
		parsed, err := aggregateArgs(val, schema)
		if err != nil {
			return nil, err
		}
		res[renameAggregateKey(key)] = parsed
	}
	return res, nil
}

// aggregatePointer encodes an id compared with a pointer field. Operator
// objects such as $exists are passed down unchanged.
func aggregatePointer(v any, field domain.Field) any {
	switch t := v.(type) {
	case domain.Pointer:
		return codec.EncodePointer(t)
	case string:
		return codec.EncodePointer(domain.Pointer{ClassName: field.TargetClass, ObjectID: t})
	}
	return v
}

func aggregateLeaf(v any) (any, error) {
	if _, ok := v.(domain.Tagged); !ok {
		return v, nil
	}
	atom, ok, err := codec.TopLevelAtom(v, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		return codec.InteriorAtom(v)
	}
	return atom, nil
}

func toDate(v any) (any, error) {
	if t, ok := codec.AsTime(v); ok {
		return t, nil
	}
	switch t := v.(type) {
	case string:
		return codec.ParseISO(t)
	case domain.Date:
		return codec.EncodeDate(t)
	}
	doc, ok := object(v)
	if !ok {
		return v, nil
	}
	res := make(bson.M, len(doc))
	for k, val := range doc {
		d, err := toDate(val)
		if err != nil {
			return nil, err
		}
		res[k] = d
	}
	return res, nil
}

func projectArgs(v any, schema *domain.Schema) (any, error) {
	doc, ok := object(v)
	if !ok {
		return v, nil
	}
	res := bson.M{}
	for key, val := range doc {
		if f, ok := schema.Field(key); ok && f.Type == domain.FieldPointer {
			res[fieldname.Pointer(key)] = val
			continue
		}
		parsed, err := aggregateArgs(val, schema)
		if err != nil {
			return nil, err
		}
		res[renameAggregateKey(key)] = parsed
	}
	return res, nil
}

// groupArgs rewrites the "$field" references of a $group stage.
func groupArgs(v any, schema *domain.Schema) any {
	switch t := v.(type) {
	case string:
		name, ok := strings.CutPrefix(t, "$")
		if !ok {
			return t
		}
		if f, ok := schema.Field(name); ok && f.Type == domain.FieldPointer {
			return "$" + fieldname.Pointer(name)
		}
		switch name {
		case fieldname.AppCreatedAt:
			return "$" + fieldname.CreatedAt
		case fieldname.AppUpdatedAt:
			return "$" + fieldname.UpdatedAt
		}
		return t
	}
	if list, ok := structure.ToSlice(v); ok {
		res := make(bson.A, len(list))
		for n, item := range list {
			res[n] = groupArgs(item, schema)
		}
		return res
	}
	if doc, ok := object(v); ok {
		res := make(bson.M, len(doc))
		for k, val := range doc {
			res[k] = groupArgs(val, schema)
		}
		return res
	}
	return v
}

// FixGroupID moves the group key of aggregation results to objectId. Keys of
// results grouped by a pointer lose their class prefix and empty keys become
// nil.
func FixGroupID(results []bson.M, pointerGroup bool) {
	for _, r := range results {
		id, ok := r[fieldname.ID]
		if !ok {
			continue
		}
		if s, isString := id.(string); isString && pointerGroup {
			if _, objectID, found := strings.Cut(s, "$"); found {
				id = objectID
			}
		}
		if empty(id) {
			id = nil
		}
		r[fieldname.ObjectID] = id
		delete(r, fieldname.ID)
	}
}

func empty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	}
	if structure.IsObject(v) {
		_, l, _ := structure.Seq2(v)
		return l == 0
	}
	if structure.IsList(v) {
		_, l, _ := structure.Seq(v)
		return l == 0
	}
	return false
}
