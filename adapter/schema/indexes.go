package schema

import (
	"fmt"
	"maps"
	"slices"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
)

// IDIndex is the name of the index every collection has on _id.
const IDIndex = "_id_"

// IndexCreate is one index to be built.
type IndexCreate struct {
	Name string
	Keys bson.D
}

// Plan is the result of reconciling submitted index changes with the
// declared indexes. Drops run before Creates.
type Plan struct {
	Drops   []string
	Creates []IndexCreate
	// Indexes is the declared index map once the plan is applied.
	Indexes map[string]bson.D
}

// Empty reports whether applying the plan changes nothing in the store.
func (p Plan) Empty() bool {
	return len(p.Drops) == 0 && len(p.Creates) == 0
}

// PlanIndexes validates submitted index changes against the existing indexes
// and returns the plan applying them. No change is planned unless every entry
// is valid. When validateFields is set, new index keys must name declared
// fields.
func PlanIndexes(submitted map[string]domain.IndexSpec, existing map[string]bson.D, fields map[string]domain.Field, validateFields bool) (Plan, error) {
	if len(existing) == 0 {
		existing = map[string]bson.D{IDIndex: {{Key: fieldname.ID, Value: 1}}}
	}

	names := slices.Sorted(maps.Keys(submitted))
	for _, name := range names {
		spec := submitted[name]
		_, exists := existing[name]
		if spec.Drop {
			if !exists {
				return Plan{}, domain.Invalid("Index %s does not exist, cannot delete.", name)
			}
			if name == IDIndex {
				return Plan{}, domain.Invalid("Index %s cannot be deleted.", name)
			}
			continue
		}
		if exists {
			return Plan{}, domain.Invalid("Index %s exists, cannot update.", name)
		}
		if !validateFields {
			continue
		}
		for _, e := range spec.Keys {
			key := e.Key
			if stripped, ok := fieldname.StripPointer(key); ok {
				key = stripped
			}
			if _, ok := fields[key]; !ok {
				return Plan{}, domain.Invalid("Field %s does not exist, cannot add index.", key)
			}
		}
	}

	plan := Plan{Indexes: maps.Clone(existing)}
	for _, name := range names {
		spec := submitted[name]
		if spec.Drop {
			plan.Drops = append(plan.Drops, name)
			delete(plan.Indexes, name)
			continue
		}
		plan.Creates = append(plan.Creates, IndexCreate{Name: name, Keys: spec.Keys})
		plan.Indexes[name] = spec.Keys
	}
	return plan, nil
}

// IndexesFromStore rebuilds the declared index map from the index listing of
// a collection. Text indexes are reported with one "text" key per weighted
// field instead of their internal keys.
func IndexesFromStore(specs []bson.M) (map[string]bson.D, error) {
	res := make(map[string]bson.D, len(specs))
	for _, spec := range specs {
		name, ok := spec["name"].(string)
		if !ok {
			return nil, domain.ErrIntegrity{Reason: fmt.Sprintf("index without name: %v", spec)}
		}
		keys, err := KeysDoc(spec["key"])
		if err != nil {
			return nil, err
		}
		if !isText(keys) {
			res[name] = keys
			continue
		}
		text := make(bson.D, 0, len(keys))
		for _, e := range keys {
			if e.Key != "_fts" && e.Key != "_ftsx" {
				text = append(text, e)
			}
		}
		weights, _ := structure.ToMap(spec["weights"])
		for _, field := range slices.Sorted(maps.Keys(weights)) {
			text = append(text, bson.E{Key: field, Value: "text"})
		}
		res[name] = text
	}
	return res, nil
}

func isText(keys bson.D) bool {
	return slices.ContainsFunc(keys, func(e bson.E) bool { return e.Key == "_fts" })
}
