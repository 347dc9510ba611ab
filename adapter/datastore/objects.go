package datastore

import (
	"context"
	"slices"

	"github.com/vinicius-lino-figueiredo/docadapter/adapter/codec"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/fieldname"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
)

// CreateObject implements [domain.StorageAdapter].
func (d *Datastore) CreateObject(ctx context.Context, className string, s domain.Schema, object domain.Object, opts ...domain.WriteOption) error {
	doc, err := d.documentBuilder.ForCreate(className, object, storeSchema(className, s))
	if err != nil {
		return err
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return err
	}
	wctx := writeContext(ctx, opts)
	return d.handleError(ctx, coll.InsertOne(wctx, doc))
}

// CreateObjects implements [domain.StorageAdapter]. Objects are inserted in
// order and the first failure stops the insertion.
func (d *Datastore) CreateObjects(ctx context.Context, className string, s domain.Schema, objects []domain.Object, opts ...domain.WriteOption) error {
	sch := storeSchema(className, s)
	docs := make([]bson.M, len(objects))
	for n, object := range objects {
		doc, err := d.documentBuilder.ForCreate(className, object, sch)
		if err != nil {
			return err
		}
		docs[n] = doc
	}
	if len(docs) == 0 {
		return nil
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return err
	}
	wctx := writeContext(ctx, opts)
	return d.handleError(ctx, coll.InsertMany(wctx, docs))
}

// Find implements [domain.StorageAdapter]. With an explain mode the store
// plan is returned as the only object.
func (d *Datastore) Find(ctx context.Context, className string, s domain.Schema, query domain.Query, opts ...domain.FindOption) ([]domain.Object, error) {
	var fo domain.FindOptions
	for _, opt := range opts {
		opt(&fo)
	}
	explain, err := explainMode(fo.Explain)
	if err != nil {
		return nil, err
	}
	if err := checkReadPreference(fo.ReadPreference); err != nil {
		return nil, err
	}
	sch := storeSchema(className, s)
	filter, err := d.queryCompiler.Where(className, query, sch, false)
	if err != nil {
		return nil, err
	}
	if err := d.ensureTextIndex(ctx, className, query, sch); err != nil {
		return nil, err
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return nil, err
	}
	docs, err := coll.Find(ctx, filter, domain.StoreFindOptions{
		Skip:            fo.Skip,
		Limit:           fo.Limit,
		Sort:            d.queryCompiler.Sort(fo.Sort, sch),
		Projection:      d.queryCompiler.Projection(fo.Keys, sch),
		ReadPreference:  fo.ReadPreference,
		Hint:            fo.Hint,
		CaseInsensitive: fo.CaseInsensitive,
		Explain:         explain,
		MaxTime:         d.maxTime,
		Comment:         fo.Comment,
	})
	if err != nil {
		return nil, d.handleError(ctx, err)
	}
	if explain != "" {
		return rawObjects(docs), nil
	}
	return d.toObjects(className, docs, sch)
}

// ensureTextIndex builds a text index for the first field searched by text
// unless one of the declared indexes covers it.
func (d *Datastore) ensureTextIndex(ctx context.Context, className string, query domain.Query, sch *domain.Schema) error {
	for field, constraint := range query {
		m, ok := structure.ToMap(constraint)
		if !ok {
			continue
		}
		if _, ok := m["$text"]; !ok {
			continue
		}
		for _, keys := range sch.Indexes {
			if slices.ContainsFunc(keys, func(e bson.E) bool { return e.Key == field }) {
				return nil
			}
		}
		d.logger.Info("creating text index", "class", className, "field", field)
		text := map[string]domain.IndexSpec{
			field + "_text": {Keys: bson.D{{Key: field, Value: "text"}}},
		}
		return d.SetIndexesWithSchemaFormat(ctx, className, text, sch.Indexes, sch.Fields)
	}
	return nil
}

// Count implements [domain.StorageAdapter]. An unrestricted count uses the
// collection metadata instead of scanning.
func (d *Datastore) Count(ctx context.Context, className string, s domain.Schema, query domain.Query, opts ...domain.CountOption) (int64, error) {
	var co domain.CountOptions
	for _, opt := range opts {
		opt(&co)
	}
	if err := checkReadPreference(co.ReadPreference); err != nil {
		return 0, err
	}
	sch := storeSchema(className, s)
	filter, err := d.queryCompiler.Where(className, query, sch, true)
	if err != nil {
		return 0, err
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return 0, err
	}
	sco := domain.StoreCountOptions{
		Skip:           co.Skip,
		Limit:          co.Limit,
		ReadPreference: co.ReadPreference,
		Hint:           co.Hint,
		MaxTime:        d.maxTime,
		Comment:        co.Comment,
	}
	var n int64
	if len(filter) == 0 && co.Hint == nil && co.Skip == 0 && co.Limit == 0 {
		n, err = coll.EstimatedCount(ctx, sco)
	} else {
		n, err = coll.Count(ctx, filter, sco)
	}
	return n, d.handleError(ctx, err)
}

// Distinct implements [domain.StorageAdapter]. Values of pointer fields are
// returned as pointers. Null values are left out.
func (d *Datastore) Distinct(ctx context.Context, className string, s domain.Schema, query domain.Query, fieldName string) ([]any, error) {
	sch := storeSchema(className, s)
	filter, err := d.queryCompiler.Where(className, query, sch, false)
	if err != nil {
		return nil, err
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return nil, err
	}
	values, err := coll.Distinct(ctx, d.queryCompiler.Key(fieldName, sch), filter)
	if err != nil {
		return nil, d.handleError(ctx, err)
	}
	f, known := sch.Field(fieldName)
	res := make([]any, 0, len(values))
	for _, v := range values {
		var val any
		switch {
		case v == nil:
			continue
		case known && f.Type == domain.FieldPointer:
			val, err = codec.DecodePointer(v, f.TargetClass)
		default:
			val, err = codec.NestedFromStore(v)
		}
		if err != nil {
			return nil, err
		}
		res = append(res, val)
	}
	return res, nil
}

// Aggregate implements [domain.StorageAdapter]. The group key of each result
// is returned as its objectId.
func (d *Datastore) Aggregate(ctx context.Context, className string, s domain.Schema, pipeline []bson.M, opts ...domain.AggregateOption) ([]domain.Object, error) {
	var ao domain.AggregateOptions
	for _, opt := range opts {
		opt(&ao)
	}
	if err := checkReadPreference(ao.ReadPreference); err != nil {
		return nil, err
	}
	sch := storeSchema(className, s)
	stages, pointerGroup, err := d.queryCompiler.Pipeline(pipeline, sch)
	if err != nil {
		return nil, err
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return nil, err
	}
	docs, err := coll.Aggregate(ctx, stages, domain.StoreAggregateOptions{
		ReadPreference: ao.ReadPreference,
		Hint:           ao.Hint,
		Explain:        ao.Explain,
		MaxTime:        d.maxTime,
		Comment:        ao.Comment,
	})
	if err != nil {
		return nil, d.handleError(ctx, err)
	}
	if ao.Explain {
		return rawObjects(docs), nil
	}
	for _, doc := range docs {
		id, ok := doc[fieldname.ID]
		if !ok {
			continue
		}
		delete(doc, fieldname.ID)
		doc[fieldname.ObjectID] = groupID(id, pointerGroup)
	}
	return d.toObjects(className, docs, sch)
}

// UpdateObjectsByQuery implements [domain.StorageAdapter]. Matching nothing is
// not an error: callers read [domain.UpdateResult.Matched] and report
// [domain.ErrObjectNotFound] themselves when they need to.
func (d *Datastore) UpdateObjectsByQuery(ctx context.Context, className string, s domain.Schema, query domain.Query, upd domain.Update, opts ...domain.WriteOption) (domain.UpdateResult, error) {
	coll, filter, u, err := d.prepareUpdate(ctx, className, s, query, upd)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	res, err := coll.UpdateMany(writeContext(ctx, opts), filter, u)
	return res, d.handleError(ctx, err)
}

// FindOneAndUpdate implements [domain.StorageAdapter]. It returns the updated
// object, or a nil object and a nil error when nothing matched. Unlike
// deletes, a miss is left for the caller to turn into
// [domain.ErrObjectNotFound].
func (d *Datastore) FindOneAndUpdate(ctx context.Context, className string, s domain.Schema, query domain.Query, upd domain.Update, opts ...domain.WriteOption) (domain.Object, error) {
	coll, filter, u, err := d.prepareUpdate(ctx, className, s, query, upd)
	if err != nil {
		return nil, err
	}
	doc, err := coll.FindOneAndUpdate(writeContext(ctx, opts), filter, u, false)
	if err != nil {
		return nil, d.handleError(ctx, err)
	}
	if doc == nil {
		return nil, nil
	}
	return d.documentBuilder.ToObject(className, doc, storeSchema(className, s))
}

// UpsertOneObject implements [domain.StorageAdapter].
func (d *Datastore) UpsertOneObject(ctx context.Context, className string, s domain.Schema, query domain.Query, upd domain.Update, opts ...domain.WriteOption) error {
	coll, filter, u, err := d.prepareUpdate(ctx, className, s, query, upd)
	if err != nil {
		return err
	}
	_, err = coll.UpdateOne(writeContext(ctx, opts), filter, u, true)
	return d.handleError(ctx, err)
}

// UpdateObjectsByBulk implements [domain.StorageAdapter]. Every entry updates
// at most one object.
func (d *Datastore) UpdateObjectsByBulk(ctx context.Context, className string, s domain.Schema, ops []domain.BulkUpdate, opts ...domain.WriteOption) (domain.UpdateResult, error) {
	sch := storeSchema(className, s)
	models := make([]domain.WriteModel, len(ops))
	for n, op := range ops {
		filter, err := d.queryCompiler.Where(className, op.Query, sch, false)
		if err != nil {
			return domain.UpdateResult{}, err
		}
		u, err := d.updateCompiler.Update(className, op.Update, sch)
		if err != nil {
			return domain.UpdateResult{}, err
		}
		models[n] = domain.WriteModel{Filter: filter, Update: u, Upsert: op.Upsert}
	}
	if len(models) == 0 {
		return domain.UpdateResult{}, nil
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return domain.UpdateResult{}, err
	}
	res, err := coll.BulkWrite(writeContext(ctx, opts), models)
	return res, d.handleError(ctx, err)
}

// DeleteObjectsByQuery implements [domain.StorageAdapter]. It returns
// [domain.ErrObjectNotFound] when nothing was deleted.
func (d *Datastore) DeleteObjectsByQuery(ctx context.Context, className string, s domain.Schema, query domain.Query, opts ...domain.WriteOption) error {
	filter, err := d.queryCompiler.Where(className, query, storeSchema(className, s), false)
	if err != nil {
		return err
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return err
	}
	n, err := coll.DeleteMany(writeContext(ctx, opts), filter)
	if err != nil {
		return d.handleError(ctx, err)
	}
	if n == 0 {
		return domain.ErrObjectNotFound
	}
	return nil
}

func (d *Datastore) prepareUpdate(ctx context.Context, className string, s domain.Schema, query domain.Query, upd domain.Update) (domain.StoreCollection, bson.M, bson.M, error) {
	sch := storeSchema(className, s)
	u, err := d.updateCompiler.Update(className, upd, sch)
	if err != nil {
		return nil, nil, nil, err
	}
	filter, err := d.queryCompiler.Where(className, query, sch, false)
	if err != nil {
		return nil, nil, nil, err
	}
	coll, err := d.collection(ctx, className)
	if err != nil {
		return nil, nil, nil, err
	}
	return coll, filter, u, nil
}

func (d *Datastore) toObjects(className string, docs []bson.M, sch *domain.Schema) ([]domain.Object, error) {
	res := make([]domain.Object, len(docs))
	for n, doc := range docs {
		obj, err := d.documentBuilder.ToObject(className, doc, sch)
		if err != nil {
			return nil, err
		}
		res[n] = obj
	}
	return res, nil
}

func rawObjects(docs []bson.M) []domain.Object {
	res := make([]domain.Object, len(docs))
	for n, doc := range docs {
		res[n] = domain.Object(doc)
	}
	return res
}
