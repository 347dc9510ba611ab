package mongostore

import (
	"context"
	"errors"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// caseInsensitive is the collation of case insensitive finds and indexes.
var caseInsensitive = &options.Collation{Locale: "en_US", Strength: 2}

// ReadPref returns the driver read preference of r. The empty value yields
// nil, leaving the client default.
func ReadPref(r domain.ReadPreference) (*readpref.ReadPref, error) {
	switch r {
	case "":
		return nil, nil
	case domain.ReadPrimary:
		return readpref.Primary(), nil
	case domain.ReadPrimaryPreferred:
		return readpref.PrimaryPreferred(), nil
	case domain.ReadSecondary:
		return readpref.Secondary(), nil
	case domain.ReadSecondaryPreferred:
		return readpref.SecondaryPreferred(), nil
	case domain.ReadNearest:
		return readpref.Nearest(), nil
	}
	return nil, domain.Invalid("Not supported read preference.")
}

// Collection implements [domain.StoreCollection].
type Collection struct {
	db   *mongo.Database
	name string
}

// Name implements [domain.StoreCollection].
func (c *Collection) Name() string { return c.name }

func (c *Collection) coll(r domain.ReadPreference) (*mongo.Collection, error) {
	rp, err := ReadPref(r)
	if err != nil {
		return nil, err
	}
	if rp == nil {
		return c.db.Collection(c.name), nil
	}
	return c.db.Collection(c.name, options.Collection().SetReadPreference(rp)), nil
}

// InsertOne implements [domain.StoreCollection].
func (c *Collection) InsertOne(ctx context.Context, doc bson.M) error {
	_, err := c.db.Collection(c.name).InsertOne(ctx, doc)
	return classify(err)
}

// InsertMany implements [domain.StoreCollection].
func (c *Collection) InsertMany(ctx context.Context, docs []bson.M) error {
	if len(docs) == 0 {
		return nil
	}
	items := make([]any, len(docs))
	for n, doc := range docs {
		items[n] = doc
	}
	_, err := c.db.Collection(c.name).InsertMany(ctx, items)
	return classify(err)
}

// Find implements [domain.StoreCollection].
func (c *Collection) Find(ctx context.Context, filter bson.M, opts domain.StoreFindOptions) ([]bson.M, error) {
	if opts.Explain != "" {
		return c.explain(ctx, opts, bson.E{Key: "find", Value: c.name}, bson.E{Key: "filter", Value: filter})
	}
	coll, err := c.coll(opts.ReadPreference)
	if err != nil {
		return nil, err
	}
	fo := options.Find()
	if opts.Skip > 0 {
		fo.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		fo.SetLimit(opts.Limit)
	}
	if len(opts.Sort) > 0 {
		fo.SetSort(opts.Sort)
	}
	if len(opts.Projection) > 0 {
		fo.SetProjection(opts.Projection)
	}
	if opts.Hint != nil {
		fo.SetHint(opts.Hint)
	}
	if opts.CaseInsensitive {
		fo.SetCollation(caseInsensitive)
	}
	if opts.MaxTime > 0 {
		fo.SetMaxTime(opts.MaxTime)
	}
	if opts.Comment != "" {
		fo.SetComment(opts.Comment)
	}
	cur, err := coll.Find(ctx, filter, fo)
	if err != nil {
		return nil, classify(err)
	}
	var res []bson.M
	if err := cur.All(ctx, &res); err != nil {
		return nil, classify(err)
	}
	return fromStoreDocs(res), nil
}

// explain runs the explain command over cmd.
func (c *Collection) explain(ctx context.Context, opts domain.StoreFindOptions, cmd ...bson.E) ([]bson.M, error) {
	if opts.Hint != nil {
		cmd = append(cmd, bson.E{Key: "hint", Value: opts.Hint})
	}
	if len(opts.Sort) > 0 {
		cmd = append(cmd, bson.E{Key: "sort", Value: opts.Sort})
	}
	if opts.Skip > 0 {
		cmd = append(cmd, bson.E{Key: "skip", Value: opts.Skip})
	}
	if opts.Limit > 0 {
		cmd = append(cmd, bson.E{Key: "limit", Value: opts.Limit})
	}
	var res bson.M
	err := c.db.RunCommand(ctx, bson.D{
		{Key: "explain", Value: bson.D(cmd)},
		{Key: "verbosity", Value: opts.Explain},
	}).Decode(&res)
	if err != nil {
		return nil, classify(err)
	}
	return []bson.M{fromStoreDoc(res)}, nil
}

// Count implements [domain.StoreCollection].
func (c *Collection) Count(ctx context.Context, filter bson.M, opts domain.StoreCountOptions) (int64, error) {
	coll, err := c.coll(opts.ReadPreference)
	if err != nil {
		return 0, err
	}
	co := options.Count()
	if opts.Skip > 0 {
		co.SetSkip(opts.Skip)
	}
	if opts.Limit > 0 {
		co.SetLimit(opts.Limit)
	}
	if opts.Hint != nil {
		co.SetHint(opts.Hint)
	}
	if opts.MaxTime > 0 {
		co.SetMaxTime(opts.MaxTime)
	}
	if opts.Comment != "" {
		co.SetComment(opts.Comment)
	}
	n, err := coll.CountDocuments(ctx, filter, co)
	return n, classify(err)
}

// EstimatedCount implements [domain.StoreCollection].
func (c *Collection) EstimatedCount(ctx context.Context, opts domain.StoreCountOptions) (int64, error) {
	coll, err := c.coll(opts.ReadPreference)
	if err != nil {
		return 0, err
	}
	eo := options.EstimatedDocumentCount()
	if opts.MaxTime > 0 {
		eo.SetMaxTime(opts.MaxTime)
	}
	if opts.Comment != "" {
		eo.SetComment(opts.Comment)
	}
	n, err := coll.EstimatedDocumentCount(ctx, eo)
	return n, classify(err)
}

// Distinct implements [domain.StoreCollection].
func (c *Collection) Distinct(ctx context.Context, field string, filter bson.M) ([]any, error) {
	res, err := c.db.Collection(c.name).Distinct(ctx, field, filter)
	if err != nil {
		return nil, classify(err)
	}
	for n, v := range res {
		res[n] = fromStore(v)
	}
	return res, nil
}

// Aggregate implements [domain.StoreCollection].
func (c *Collection) Aggregate(ctx context.Context, pipeline []bson.M, opts domain.StoreAggregateOptions) ([]bson.M, error) {
	if opts.Explain {
		return c.explain(ctx, domain.StoreFindOptions{Explain: "queryPlanner", Hint: opts.Hint},
			bson.E{Key: "aggregate", Value: c.name},
			bson.E{Key: "pipeline", Value: pipeline},
			bson.E{Key: "cursor", Value: bson.D{}},
		)
	}
	coll, err := c.coll(opts.ReadPreference)
	if err != nil {
		return nil, err
	}
	ao := options.Aggregate()
	if opts.Hint != nil {
		ao.SetHint(opts.Hint)
	}
	if opts.MaxTime > 0 {
		ao.SetMaxTime(opts.MaxTime)
	}
	if opts.Comment != "" {
		ao.SetComment(opts.Comment)
	}
	cur, err := coll.Aggregate(ctx, pipeline, ao)
	if err != nil {
		return nil, classify(err)
	}
	var res []bson.M
	if err := cur.All(ctx, &res); err != nil {
		return nil, classify(err)
	}
	return fromStoreDocs(res), nil
}

func updateResult(r *mongo.UpdateResult) domain.UpdateResult {
	if r == nil {
		return domain.UpdateResult{}
	}
	return domain.UpdateResult{Matched: r.MatchedCount, Modified: r.ModifiedCount, Upserted: r.UpsertedCount}
}

// UpdateOne implements [domain.StoreCollection].
func (c *Collection) UpdateOne(ctx context.Context, filter, update bson.M, upsert bool) (domain.UpdateResult, error) {
	r, err := c.db.Collection(c.name).UpdateOne(ctx, filter, update, options.Update().SetUpsert(upsert))
	return updateResult(r), classify(err)
}

// UpdateMany implements [domain.StoreCollection].
func (c *Collection) UpdateMany(ctx context.Context, filter, update bson.M) (domain.UpdateResult, error) {
	r, err := c.db.Collection(c.name).UpdateMany(ctx, filter, update)
	return updateResult(r), classify(err)
}

// FindOneAndUpdate implements [domain.StoreCollection]. The updated document
// is returned, or nil when nothing matched.
func (c *Collection) FindOneAndUpdate(ctx context.Context, filter, update bson.M, upsert bool) (bson.M, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After).SetUpsert(upsert)
	var res bson.M
	err := c.db.Collection(c.name).FindOneAndUpdate(ctx, filter, update, opts).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return fromStoreDoc(res), nil
}

// FindOneAndDelete implements [domain.StoreCollection].
func (c *Collection) FindOneAndDelete(ctx context.Context, filter bson.M) (bson.M, error) {
	var res bson.M
	err := c.db.Collection(c.name).FindOneAndDelete(ctx, filter).Decode(&res)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return fromStoreDoc(res), nil
}

// BulkWrite implements [domain.StoreCollection].
func (c *Collection) BulkWrite(ctx context.Context, models []domain.WriteModel) (domain.UpdateResult, error) {
	if len(models) == 0 {
		return domain.UpdateResult{}, nil
	}
	writes := make([]mongo.WriteModel, len(models))
	for n, m := range models {
		writes[n] = mongo.NewUpdateOneModel().SetFilter(m.Filter).SetUpdate(m.Update).SetUpsert(m.Upsert)
	}
	r, err := c.db.Collection(c.name).BulkWrite(ctx, writes)
	if r == nil {
		return domain.UpdateResult{}, classify(err)
	}
	return domain.UpdateResult{Matched: r.MatchedCount, Modified: r.ModifiedCount, Upserted: r.UpsertedCount}, classify(err)
}

// DeleteMany implements [domain.StoreCollection].
func (c *Collection) DeleteMany(ctx context.Context, filter bson.M) (int64, error) {
	r, err := c.db.Collection(c.name).DeleteMany(ctx, filter)
	if err != nil {
		return 0, classify(err)
	}
	return r.DeletedCount, nil
}

// CreateIndexes implements [domain.StoreCollection].
func (c *Collection) CreateIndexes(ctx context.Context, models []domain.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	indexes := make([]mongo.IndexModel, len(models))
	for n, m := range models {
		io := options.Index()
		if m.Name != "" {
			io.SetName(m.Name)
		}
		if m.Unique {
			io.SetUnique(true)
		}
		if m.Sparse {
			io.SetSparse(true)
		}
		if m.Background {
			io.SetBackground(true)
		}
		if m.ExpireAfter > 0 {
			io.SetExpireAfterSeconds(int32(m.ExpireAfter.Seconds()))
		}
		if m.Collation != nil {
			col, err := collation(m.Collation)
			if err != nil {
				return err
			}
			io.SetCollation(col)
		}
		indexes[n] = mongo.IndexModel{Keys: m.Keys, Options: io}
	}
	_, err := c.db.Collection(c.name).Indexes().CreateMany(ctx, indexes)
	return classify(err)
}

func collation(doc bson.M) (*options.Collation, error) {
	col := &options.Collation{}
	locale, ok := doc["locale"].(string)
	if !ok {
		return nil, domain.Invalid("collation locale must be a string")
	}
	col.Locale = locale
	if s, ok := doc["strength"]; ok {
		strength, ok := structure.AsInteger(s)
		if !ok {
			return nil, domain.Invalid("collation strength must be a number")
		}
		col.Strength = strength
	}
	if b, ok := doc["caseLevel"].(bool); ok {
		col.CaseLevel = b
	}
	return col, nil
}

// DropIndex implements [domain.StoreCollection].
func (c *Collection) DropIndex(ctx context.Context, name string) error {
	_, err := c.db.Collection(c.name).Indexes().DropOne(ctx, name)
	return classify(err)
}

// DropIndexes implements [domain.StoreCollection].
func (c *Collection) DropIndexes(ctx context.Context) error {
	_, err := c.db.Collection(c.name).Indexes().DropAll(ctx)
	return classify(err)
}

// ListIndexes implements [domain.StoreCollection]. Index keys keep their
// order.
func (c *Collection) ListIndexes(ctx context.Context) ([]bson.M, error) {
	cur, err := c.db.Collection(c.name).Indexes().List(ctx)
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(context.WithoutCancel(ctx))
	var res []bson.M
	for cur.Next(ctx) {
		var spec bson.M
		if err := cur.Decode(&spec); err != nil {
			return nil, err
		}
		spec = fromStoreDoc(spec)
		if raw, ok := cur.Current.Lookup("key").DocumentOK(); ok {
			var key bson.D
			if err := bson.Unmarshal(raw, &key); err != nil {
				return nil, err
			}
			spec["key"] = key
		}
		res = append(res, spec)
	}
	return res, classify(cur.Err())
}

// Drop implements [domain.StoreCollection].
func (c *Collection) Drop(ctx context.Context) error {
	return classify(c.db.Collection(c.name).Drop(ctx))
}
