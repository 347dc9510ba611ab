package memstore

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/bst"
	"github.com/vinicius-lino-figueiredo/bst/adapter/avl"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
)

type bstComparer struct{}

// CompareKeys implements bst.Comparer.
func (c bstComparer) CompareKeys(a, b any) (int, error) {
	return Compare(a, b), nil
}

// CompareValues implements bst.Comparer.
func (c bstComparer) CompareValues(a, b any) (bool, error) {
	return Equal(a, b), nil
}

// index keeps the keys of one collection index. Stored values are document
// ids.
type index struct {
	model domain.IndexModel
	fold  bool
	text  bool
	tree  bst.BST[any, any]
}

func newIndex(model domain.IndexModel) *index {
	i := &index{model: model}
	for _, e := range model.Keys {
		if e.Value == "text" {
			i.text = true
		}
	}
	if strength, ok := structure.AsInteger(model.Collation["strength"]); ok && strength < 3 {
		i.fold = true
	}
	i.reset()
	return i
}

func (i *index) reset() {
	i.tree = avl.NewBST(i.model.Unique, 8, bst.Comparer[any, any](bstComparer{}))
}

// textFields lists the fields searched by a text index.
func (i *index) textFields() []string {
	var res []string
	for _, e := range i.model.Keys {
		if e.Value == "text" {
			res = append(res, e.Key)
		}
	}
	return res
}

func (i *index) spec() bson.M {
	key := bson.D{}
	weights := bson.M{}
	for _, e := range i.model.Keys {
		if e.Value == "text" {
			weights[e.Key] = 1
			continue
		}
		key = append(key, e)
	}
	if i.text {
		key = append(key, bson.E{Key: "_fts", Value: "text"}, bson.E{Key: "_ftsx", Value: 1})
	}
	spec := bson.M{"v": 2, "name": i.model.Name, "key": key}
	if i.text {
		spec["weights"] = weights
	}
	if i.model.Unique {
		spec["unique"] = true
	}
	if i.model.Sparse {
		spec["sparse"] = true
	}
	if i.model.ExpireAfter > 0 {
		spec["expireAfterSeconds"] = int64(i.model.ExpireAfter / time.Second)
	}
	if i.model.Collation != nil {
		spec["collation"] = i.model.Collation
	}
	return spec
}

func (i *index) foldKey(v any) any {
	if s, ok := v.(string); ok && i.fold {
		return strings.ToLower(s)
	}
	return v
}

// keys returns the index keys of doc. Lists held by single field indexes
// produce one key per element.
func (i *index) keys(doc bson.M) []any {
	if len(i.model.Keys) == 1 {
		values, found := lookup(doc, split(i.model.Keys[0].Key))
		if !found {
			if i.model.Sparse {
				return nil
			}
			return []any{nil}
		}
		var res []any
		for _, v := range values {
			if l, ok := v.(bson.A); ok && len(l) > 0 {
				for _, e := range l {
					res = append(res, i.foldKey(e))
				}
				continue
			}
			res = append(res, i.foldKey(v))
		}
		slices.SortFunc(res, Compare)
		return slices.CompactFunc(res, Equal)
	}

	key := make(bson.A, len(i.model.Keys))
	hasKey := false
	for n, e := range i.model.Keys {
		values, found := lookup(doc, split(e.Key))
		if found && len(values) > 0 {
			key[n] = i.foldKey(values[0])
			hasKey = true
		}
	}
	if i.model.Sparse && !hasKey {
		return nil
	}
	return []any{key}
}

// insert adds the keys of doc. Nothing is kept when a key violates
// uniqueness.
func (i *index) insert(ns string, doc bson.M) error {
	if i.text {
		return nil
	}
	id := doc["_id"]
	var added []any
	for _, k := range i.keys(doc) {
		if err := i.tree.Insert(k, id); err != nil {
			for _, a := range added {
				_ = i.tree.Delete(a, &id)
			}
			if errors.As(err, new(bst.ErrUniqueViolated)) {
				return domain.ErrDuplicateKey{Message: i.dupMessage(ns, k), Err: err}
			}
			return err
		}
		added = append(added, k)
	}
	return nil
}

func (i *index) remove(doc bson.M) {
	if i.text {
		return
	}
	id := doc["_id"]
	for _, k := range i.keys(doc) {
		_ = i.tree.Delete(k, &id)
	}
}

func (i *index) dupMessage(ns string, key any) string {
	parts := make([]string, len(i.model.Keys))
	values := bson.A{key}
	if l, ok := key.(bson.A); ok && len(i.model.Keys) > 1 {
		values = l
	}
	for n, e := range i.model.Keys {
		parts[n] = fmt.Sprintf("%s: %s", e.Key, literal(values[n]))
	}
	return fmt.Sprintf("E11000 duplicate key error collection: %s index: %s dup key: { %s }",
		ns, i.model.Name, strings.Join(parts, ", "))
}

func literal(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return fmt.Sprintf("%q", t)
	}
	return fmt.Sprint(v)
}

// indexName returns the default name of an index on keys.
func indexName(keys bson.D) string {
	parts := make([]string, 0, len(keys)*2)
	for _, e := range keys {
		parts = append(parts, e.Key, fmt.Sprint(e.Value))
	}
	return strings.Join(parts, "_")
}
