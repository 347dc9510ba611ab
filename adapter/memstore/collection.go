package memstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrBadHint is returned when a hint names no index of the collection.
var ErrBadHint = errors.New("error processing query: planner returned error :: caused by :: hint provided does not correspond to an existing index")

// Collection implements [domain.StoreCollection].
type Collection struct {
	client *Client
	name   string
	data   *collectionData
}

// Name implements [domain.StoreCollection].
func (c *Collection) Name() string { return c.name }

func (c *Collection) ns() string {
	return c.client.name + "." + c.name
}

func withMaxTime(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return ctx, func() {}
}

// read runs fn over the collection data. A missing collection reads as empty.
func (c *Collection) read(ctx context.Context, fn func(*Collection) error) error {
	if err := c.client.lock(ctx); err != nil {
		return err
	}
	defer c.client.unlock()
	data, ok := c.client.db(ctx).colls[c.name]
	if !ok {
		data = newCollectionData()
	}
	c.expire(data)
	return fn(&Collection{client: c.client, name: c.name, data: data})
}

// write runs fn over the collection data, creating the collection first.
func (c *Collection) write(ctx context.Context, fn func(*Collection) error) error {
	if err := c.client.lock(ctx); err != nil {
		return err
	}
	defer c.client.unlock()
	db := c.client.db(ctx)
	data, ok := db.colls[c.name]
	if !ok {
		data = newCollectionData()
		db.colls[c.name] = data
	}
	c.expire(data)
	db.version++
	return fn(&Collection{client: c.client, name: c.name, data: data})
}

// expire removes documents past the deadline of a TTL index.
func (c *Collection) expire(data *collectionData) {
	now := c.client.connector.timeGetter.GetTime()
	for _, i := range data.indexes {
		if i.model.ExpireAfter <= 0 || len(i.model.Keys) != 1 {
			continue
		}
		for _, doc := range data.all() {
			v, ok := get(doc, i.model.Keys[0].Key)
			if !ok {
				continue
			}
			if t, ok := asTime(v); ok && !now.Before(t.Add(i.model.ExpireAfter)) {
				data.remove(doc)
			}
		}
	}
}

func (c *Collection) matcher(filter bson.M) (*Matcher, error) {
	return NewMatcher(normalizeDoc(filter), c.data.textFields())
}

// matching returns the stored documents matched by filter.
func (c *Collection) matching(filter bson.M, fold bool) ([]bson.M, *Matcher, error) {
	if fold {
		filter, _ = foldStrings(normalizeDoc(filter)).(bson.M)
	}
	m, err := c.matcher(filter)
	if err != nil {
		return nil, nil, err
	}
	var res []bson.M
	for _, doc := range c.data.all() {
		target := doc
		if fold {
			target, _ = foldStrings(doc).(bson.M)
		}
		if m.Match(target) {
			res = append(res, doc)
		}
	}
	return res, m, nil
}

func foldStrings(v any) any {
	switch t := v.(type) {
	case string:
		return strings.ToLower(t)
	case bson.M:
		res := make(bson.M, len(t))
		for k, e := range t {
			res[k] = foldStrings(e)
		}
		return res
	case bson.A:
		res := make(bson.A, len(t))
		for n, e := range t {
			res[n] = foldStrings(e)
		}
		return res
	}
	return v
}

func (c *Collection) checkHint(hint any) error {
	switch t := hint.(type) {
	case nil:
		return nil
	case string:
		if _, ok := c.data.indexes[t]; ok {
			return nil
		}
	default:
		keys := orderedDoc(normalize(hint))
		for _, i := range c.data.indexes {
			if Equal(orderedDoc(normalize(i.model.Keys)), keys) {
				return nil
			}
		}
	}
	return ErrBadHint
}

// nextID returns an _id for a document inserted without one.
func (c *Collection) nextID() (any, error) {
	return c.client.connector.idGenerator.GenerateID(24)
}

func (c *Collection) prepare(doc bson.M) (bson.M, error) {
	res := normalizeDoc(doc)
	if _, ok := res["_id"]; !ok {
		id, err := c.nextID()
		if err != nil {
			return nil, err
		}
		res["_id"] = id
	}
	return res, nil
}

// InsertOne implements [domain.StoreCollection].
func (c *Collection) InsertOne(ctx context.Context, doc bson.M) error {
	return c.InsertMany(ctx, []bson.M{doc})
}

// InsertMany implements [domain.StoreCollection]. Insertion stops at the
// first failure, keeping the documents already inserted.
func (c *Collection) InsertMany(ctx context.Context, docs []bson.M) error {
	return c.write(ctx, func(tx *Collection) error {
		for _, doc := range docs {
			d, err := tx.prepare(doc)
			if err != nil {
				return err
			}
			if err := tx.data.insert(tx.ns(), d); err != nil {
				return err
			}
		}
		return nil
	})
}

// Find implements [domain.StoreCollection].
func (c *Collection) Find(ctx context.Context, filter bson.M, opts domain.StoreFindOptions) ([]bson.M, error) {
	ctx, cancel := withMaxTime(ctx, opts.MaxTime)
	defer cancel()
	var res []bson.M
	err := c.read(ctx, func(tx *Collection) error {
		if err := tx.checkHint(opts.Hint); err != nil {
			return err
		}
		docs, m, err := tx.matching(filter, opts.CaseInsensitive)
		if err != nil {
			return err
		}
		if opts.Explain != "" {
			res = []bson.M{tx.explain(filter, opts.Explain, len(docs))}
			return nil
		}
		if len(opts.Sort) > 0 {
			sortDocs(docs, opts.Sort)
		} else if _, ok := m.Distance(bson.M{}); ok {
			slices.SortStableFunc(docs, func(a, b bson.M) int {
				da, _ := m.Distance(a)
				db, _ := m.Distance(b)
				return compareFloat(da, db)
			})
		}
		docs = page(docs, opts.Skip, opts.Limit)
		res = make([]bson.M, 0, len(docs))
		for _, doc := range docs {
			p, err := project(normalizeDoc(doc), normalizeDoc(opts.Projection))
			if err != nil {
				return err
			}
			res = append(res, p)
		}
		return nil
	})
	return res, err
}

func compareFloat(a, b float64) int {
	switch {
	case a < b || (math.IsNaN(b) && !math.IsNaN(a)):
		return -1
	case a > b || (math.IsNaN(a) && !math.IsNaN(b)):
		return 1
	}
	return 0
}

func page(docs []bson.M, skip, limit int64) []bson.M {
	if skip > 0 {
		docs = docs[min(int(skip), len(docs)):]
	}
	if limit > 0 {
		docs = docs[:min(int(limit), len(docs))]
	}
	return docs
}

func (c *Collection) explain(filter bson.M, verbosity string, n int) bson.M {
	plan := bson.M{
		"queryPlanner": bson.M{
			"namespace":      c.ns(),
			"parsedQuery":    normalizeDoc(filter),
			"winningPlan":    bson.M{"stage": "COLLSCAN"},
			"rejectedPlans":  bson.A{},
			"indexFilterSet": false,
		},
	}
	if verbosity != "queryPlanner" {
		plan["executionStats"] = bson.M{
			"nReturned":         n,
			"totalDocsExamined": len(c.data.order),
		}
	}
	return plan
}

// Count implements [domain.StoreCollection].
func (c *Collection) Count(ctx context.Context, filter bson.M, opts domain.StoreCountOptions) (int64, error) {
	ctx, cancel := withMaxTime(ctx, opts.MaxTime)
	defer cancel()
	var n int64
	err := c.read(ctx, func(tx *Collection) error {
		if err := tx.checkHint(opts.Hint); err != nil {
			return err
		}
		docs, _, err := tx.matching(filter, false)
		if err != nil {
			return err
		}
		n = int64(len(page(docs, opts.Skip, opts.Limit)))
		return nil
	})
	return n, err
}

// EstimatedCount implements [domain.StoreCollection].
func (c *Collection) EstimatedCount(ctx context.Context, opts domain.StoreCountOptions) (int64, error) {
	ctx, cancel := withMaxTime(ctx, opts.MaxTime)
	defer cancel()
	var n int64
	err := c.read(ctx, func(tx *Collection) error {
		n = int64(len(tx.data.order))
		return nil
	})
	return n, err
}

// Distinct implements [domain.StoreCollection]. Values held in lists count
// element by element.
func (c *Collection) Distinct(ctx context.Context, field string, filter bson.M) ([]any, error) {
	var res []any
	err := c.read(ctx, func(tx *Collection) error {
		docs, _, err := tx.matching(filter, false)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			values, _ := lookup(doc, split(field))
			for _, v := range unwind(values) {
				if !slices.ContainsFunc(res, func(e any) bool { return Equal(e, v) }) {
					res = append(res, normalize(v))
				}
			}
		}
		return nil
	})
	return res, err
}

// unwind replaces every list in values with its elements.
func unwind(values []any) []any {
	res := make([]any, 0, len(values))
	for _, v := range values {
		if l, ok := v.(bson.A); ok {
			res = append(res, l...)
		} else {
			res = append(res, v)
		}
	}
	return res
}

// Aggregate implements [domain.StoreCollection].
func (c *Collection) Aggregate(ctx context.Context, pipeline []bson.M, opts domain.StoreAggregateOptions) ([]bson.M, error) {
	ctx, cancel := withMaxTime(ctx, opts.MaxTime)
	defer cancel()
	var res []bson.M
	err := c.read(ctx, func(tx *Collection) error {
		if err := tx.checkHint(opts.Hint); err != nil {
			return err
		}
		if opts.Explain {
			stages := make(bson.A, len(pipeline))
			for n, s := range pipeline {
				stages[n] = normalizeDoc(s)
			}
			res = []bson.M{{"stages": stages, "namespace": tx.ns()}}
			return nil
		}
		docs := make([]bson.M, 0, len(tx.data.order))
		for _, doc := range tx.data.all() {
			docs = append(docs, normalizeDoc(doc))
		}
		var err error
		res, err = tx.aggregate(docs, pipeline)
		return err
	})
	return res, err
}

// upsertSeed returns the document an upsert starts from: the equality
// conditions of filter.
func upsertSeed(filter bson.M) bson.M {
	seed := bson.M{}
	var walk func(f bson.M)
	walk = func(f bson.M) {
		for k, v := range f {
			if k == "$and" {
				if l, ok := v.(bson.A); ok {
					for _, e := range l {
						if sub, ok := e.(bson.M); ok {
							walk(sub)
						}
					}
				}
				continue
			}
			if strings.HasPrefix(k, "$") {
				continue
			}
			if m, ok := v.(bson.M); ok {
				if eq, ok := m["$eq"]; ok {
					_ = set(seed, k, eq)
					continue
				}
				if _, isOp, _ := isOperatorDoc(m); isOp {
					continue
				}
			}
			_ = set(seed, k, v)
		}
	}
	walk(normalizeDoc(filter))
	return seed
}

func (c *Collection) updateOne(filter, update bson.M, upsert bool) (domain.UpdateResult, bson.M, error) {
	var res domain.UpdateResult
	docs, _, err := c.matching(filter, false)
	if err != nil {
		return res, nil, err
	}
	mod := newModifier()
	if len(docs) == 0 {
		if !upsert {
			return res, nil, nil
		}
		doc, err := mod.modify(upsertSeed(filter), normalizeDoc(update), true)
		if err != nil {
			return res, nil, err
		}
		if doc, err = c.prepare(doc); err != nil {
			return res, nil, err
		}
		if err := c.data.insert(c.ns(), doc); err != nil {
			return res, nil, err
		}
		res.Upserted = 1
		return res, doc, nil
	}
	old := docs[0]
	doc, err := mod.modify(old, normalizeDoc(update), false)
	if err != nil {
		return res, nil, err
	}
	res.Matched = 1
	if Equal(old, doc) {
		return res, doc, nil
	}
	if err := c.data.replace(c.ns(), old, doc); err != nil {
		return res, nil, err
	}
	res.Modified = 1
	return res, doc, nil
}

// UpdateOne implements [domain.StoreCollection].
func (c *Collection) UpdateOne(ctx context.Context, filter, update bson.M, upsert bool) (domain.UpdateResult, error) {
	var res domain.UpdateResult
	err := c.write(ctx, func(tx *Collection) error {
		var err error
		res, _, err = tx.updateOne(filter, update, upsert)
		return err
	})
	return res, err
}

// UpdateMany implements [domain.StoreCollection].
func (c *Collection) UpdateMany(ctx context.Context, filter, update bson.M) (domain.UpdateResult, error) {
	var res domain.UpdateResult
	err := c.write(ctx, func(tx *Collection) error {
		docs, _, err := tx.matching(filter, false)
		if err != nil {
			return err
		}
		mod := newModifier()
		for _, old := range docs {
			doc, err := mod.modify(old, normalizeDoc(update), false)
			if err != nil {
				return err
			}
			res.Matched++
			if Equal(old, doc) {
				continue
			}
			if err := tx.data.replace(tx.ns(), old, doc); err != nil {
				return err
			}
			res.Modified++
		}
		return nil
	})
	return res, err
}

// FindOneAndUpdate implements [domain.StoreCollection]. The document is
// returned as updated, or nil when nothing matched.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) (bson.M, error) {
	var res bson.M
	err := c.write(ctx, func(tx *Collection) error {
		_, doc, err := tx.updateOne(filter, update, upsert)
		if doc != nil {
			res = normalizeDoc(doc)
		}
		return err
	})
	return res, err
}

// FindOneAndDelete implements [domain.StoreCollection].
func (c *Collection) FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error) {
	var res bson.M
	err := c.write(ctx, func(tx *Collection) error {
		docs, _, err := tx.matching(filter, false)
		if err != nil || len(docs) == 0 {
			return err
		}
		tx.data.remove(docs[0])
		res = docs[0]
		return nil
	})
	return res, err
}

// BulkWrite implements [domain.StoreCollection]. Models run in order and
// stop at the first failure.
func (c *Collection) BulkWrite(ctx context.Context, models []domain.WriteModel) (domain.UpdateResult, error) {
	var res domain.UpdateResult
	err := c.write(ctx, func(tx *Collection) error {
		for _, m := range models {
			r, _, err := tx.updateOne(m.Filter, m.Update, m.Upsert)
			if err != nil {
				return err
			}
			res.Matched += r.Matched
			res.Modified += r.Modified
			res.Upserted += r.Upserted
		}
		return nil
	})
	return res, err
}

// DeleteMany implements [domain.StoreCollection].
func (c *Collection) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	var n int64
	err := c.write(ctx, func(tx *Collection) error {
		docs, _, err := tx.matching(filter, false)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			tx.data.remove(doc)
		}
		n = int64(len(docs))
		return nil
	})
	return n, err
}

// CreateIndexes implements [domain.StoreCollection]. Creating an index that
// already exists with the same keys does nothing.
func (c *Collection) CreateIndexes(ctx context.Context, models []domain.IndexModel) error {
	return c.write(ctx, func(tx *Collection) error {
		for _, model := range models {
			if model.Name == "" {
				model.Name = indexName(model.Keys)
			}
			if cur, ok := tx.data.indexes[model.Name]; ok {
				if !Equal(cur.model.Keys, model.Keys) {
					return ErrIndexConflict{Name: model.Name}
				}
				continue
			}
			if model.Collation != nil {
				model.Collation = normalizeDoc(model.Collation)
			}
			i := newIndex(model)
			for _, doc := range tx.data.all() {
				if err := i.insert(tx.ns(), doc); err != nil {
					return err
				}
			}
			tx.data.addIndex(i)
		}
		return nil
	})
}

// DropIndex implements [domain.StoreCollection].
func (c *Collection) DropIndex(ctx context.Context, name string) error {
	return c.write(ctx, func(tx *Collection) error {
		if name == "_id_" {
			return fmt.Errorf("cannot drop _id index")
		}
		if _, ok := tx.data.indexes[name]; !ok {
			return ErrIndexNotFound{Name: name}
		}
		delete(tx.data.indexes, name)
		tx.data.indexOrder = slices.DeleteFunc(tx.data.indexOrder, func(n string) bool { return n == name })
		return nil
	})
}

// DropIndexes implements [domain.StoreCollection]. The _id index is kept.
func (c *Collection) DropIndexes(ctx context.Context) error {
	return c.write(ctx, func(tx *Collection) error {
		for _, name := range tx.data.indexOrder {
			if name != "_id_" {
				delete(tx.data.indexes, name)
			}
		}
		tx.data.indexOrder = []string{"_id_"}
		return nil
	})
}

// ListIndexes implements [domain.StoreCollection].
func (c *Collection) ListIndexes(ctx context.Context) ([]bson.M, error) {
	if err := c.client.lock(ctx); err != nil {
		return nil, err
	}
	defer c.client.unlock()
	data, ok := c.client.db(ctx).colls[c.name]
	if !ok {
		return nil, domain.ErrNamespaceNotFound{Namespace: c.ns()}
	}
	res := make([]bson.M, 0, len(data.indexOrder))
	for _, name := range data.indexOrder {
		res = append(res, data.indexes[name].spec())
	}
	return res, nil
}

// Drop implements [domain.StoreCollection].
func (c *Collection) Drop(ctx context.Context) error {
	if err := c.client.lock(ctx); err != nil {
		return err
	}
	defer c.client.unlock()
	db := c.client.db(ctx)
	if _, ok := db.colls[c.name]; !ok {
		return domain.ErrNamespaceNotFound{Namespace: c.ns()}
	}
	delete(db.colls, c.name)
	db.version++
	return nil
}
