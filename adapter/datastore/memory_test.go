package datastore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/timegetter"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
)

// MemoryTestSuite runs the adapter end to end over the embedded store.
type MemoryTestSuite struct {
	suite.Suite
	d      domain.StorageAdapter
	schema domain.Schema
}

func (s *MemoryTestSuite) SetupTest() {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	d, err := NewDatastore(WithURI("memory://app"), WithTimeGetter(timegetter.NewFixed(now)))
	s.Require().NoError(err)
	s.d = d
	s.schema = domain.Schema{
		ClassName: "Post",
		Fields: map[string]domain.Field{
			"title": {Type: domain.FieldString},
			"slug":  {Type: domain.FieldString},
			"score": {Type: domain.FieldNumber},
			"owner": {Type: domain.FieldPointer, TargetClass: "_User"},
		},
	}
}

func (s *MemoryTestSuite) TearDownTest() {
	s.NoError(s.d.Shutdown(ctx))
}

func (s *MemoryTestSuite) seed() {
	s.Require().NoError(s.d.CreateObjects(ctx, "Post", s.schema, []domain.Object{
		{"objectId": "a", "title": "alpha", "score": 1, "owner": domain.Pointer{ClassName: "_User", ObjectID: "u1"}},
		{"objectId": "b", "title": "beta", "score": 2, "owner": domain.Pointer{ClassName: "_User", ObjectID: "u2"}},
		{"objectId": "c", "title": "gamma", "score": 3, "owner": domain.Pointer{ClassName: "_User", ObjectID: "u1"}},
	}))
}

func (s *MemoryTestSuite) ids(objs []domain.Object) []any {
	res := make([]any, len(objs))
	for n, o := range objs {
		res[n] = o["objectId"]
	}
	return res
}

func (s *MemoryTestSuite) TestClassLifecycle() {
	exists, err := s.d.ClassExists(ctx, "Post")
	s.NoError(err)
	s.False(exists)

	created, err := s.d.CreateClass(ctx, "Post", domain.Schema{
		Fields:  map[string]domain.Field{"title": {Type: domain.FieldString}},
		CLP:     domain.SetCLP(bson.M{"find": bson.M{"*": true}}),
		Indexes: map[string]bson.D{"title_1": {{Key: "title", Value: 1}}},
	})
	s.Require().NoError(err)
	s.Equal("Post", created.ClassName)
	s.Equal(domain.Field{Type: domain.FieldString}, created.Fields["title"])
	s.Equal(domain.Field{Type: domain.FieldDate}, created.Fields["createdAt"])
	s.Equal(domain.CLPSet, created.CLP.State())
	s.Equal(map[string]bson.D{"title_1": {{Key: "title", Value: 1}}}, created.Indexes)

	exists, err = s.d.ClassExists(ctx, "Post")
	s.NoError(err)
	s.True(exists)

	_, err = s.d.CreateClass(ctx, "Post", domain.Schema{})
	s.ErrorAs(err, new(domain.ErrDuplicateValue))

	got, err := s.d.GetClass(ctx, "Post")
	s.NoError(err)
	s.Equal(created, got)

	all, err := s.d.GetAllClasses(ctx)
	s.NoError(err)
	s.Len(all, 1)

	s.NoError(s.d.SetClassLevelPermissions(ctx, "Post", domain.ClearedCLP()))
	got, err = s.d.GetClass(ctx, "Post")
	s.NoError(err)
	s.Equal(domain.CLPCleared, got.CLP.State())

	s.NoError(s.d.SetClassLevelPermissions(ctx, "Post", domain.UnsetCLP()))
	got, err = s.d.GetClass(ctx, "Post")
	s.NoError(err)
	s.Equal(domain.CLPUnset, got.CLP.State())
	s.Equal(domain.DefaultCLP(), got.CLP.Effective())

	s.NoError(s.d.AddFieldIfNotExists(ctx, "Post", "score", domain.Field{Type: domain.FieldNumber}))
	s.NoError(s.d.AddFieldIfNotExists(ctx, "Post", "score", domain.Field{Type: domain.FieldNumber}))
	s.NoError(s.d.UpdateFieldOptions(ctx, "Post", "score", domain.Field{Type: domain.FieldNumber, Options: map[string]any{"required": true}}))
	got, err = s.d.GetClass(ctx, "Post")
	s.NoError(err)
	s.Equal(domain.Field{Type: domain.FieldNumber, Options: map[string]any{"required": true}}, got.Fields["score"])

	s.NoError(s.d.DeleteClass(ctx, "Post"))
	_, err = s.d.GetClass(ctx, "Post")
	s.ErrorIs(err, domain.ErrClassNotFound)
	exists, err = s.d.ClassExists(ctx, "Post")
	s.NoError(err)
	s.False(exists)

	s.NoError(s.d.DeleteClass(ctx, "Post"))
}

func (s *MemoryTestSuite) TestGeoFields() {
	s.NoError(s.d.AddFieldIfNotExists(ctx, "Place", "location", domain.Field{Type: domain.FieldGeoPoint}))
	s.NoError(s.d.AddFieldIfNotExists(ctx, "Place", "location", domain.Field{Type: domain.FieldGeoPoint}))

	err := s.d.AddFieldIfNotExists(ctx, "Place", "center", domain.Field{Type: domain.FieldGeoPoint})
	var verr domain.ErrValidation
	s.Require().ErrorAs(err, &verr)
	s.Equal("MongoDB only supports one GeoPoint field in a class.", verr.Reason)

	s.NoError(s.d.AddFieldIfNotExists(ctx, "Place", "area", domain.Field{Type: domain.FieldPolygon}))
	specs, err := s.d.GetIndexes(ctx, "Place")
	s.NoError(err)
	names := make([]any, len(specs))
	for n, spec := range specs {
		names[n] = spec["name"]
	}
	s.ElementsMatch([]any{"_id_", "area_2dsphere"}, names)

	got, err := s.d.GetClass(ctx, "Place")
	s.NoError(err)
	s.Equal(domain.FieldPolygon, got.Fields["area"].Type)
	s.NotContains(got.Fields, "center")
}

func (s *MemoryTestSuite) TestFindAndCount() {
	s.seed()

	objs, err := s.d.Find(ctx, "Post", s.schema, domain.Query{},
		domain.WithSort(bson.D{{Key: "score", Value: -1}}),
		domain.WithLimit(2),
	)
	s.NoError(err)
	s.Equal([]any{"c", "b"}, s.ids(objs))
	s.Equal(domain.Pointer{ClassName: "_User", ObjectID: "u1"}, objs[0]["owner"])

	objs, err = s.d.Find(ctx, "Post", s.schema, domain.Query{"owner": domain.Pointer{ClassName: "_User", ObjectID: "u1"}},
		domain.WithSort(bson.D{{Key: "objectId", Value: 1}}),
		domain.WithKeys("title"),
	)
	s.NoError(err)
	s.Equal([]domain.Object{{"title": "alpha"}, {"title": "gamma"}}, objs)

	n, err := s.d.Count(ctx, "Post", s.schema, domain.Query{})
	s.NoError(err)
	s.Equal(int64(3), n)

	n, err = s.d.Count(ctx, "Post", s.schema, domain.Query{"score": bson.M{"$gte": 2}})
	s.NoError(err)
	s.Equal(int64(2), n)

	values, err := s.d.Distinct(ctx, "Post", s.schema, domain.Query{}, "owner")
	s.NoError(err)
	s.ElementsMatch([]any{
		domain.Pointer{ClassName: "_User", ObjectID: "u1"},
		domain.Pointer{ClassName: "_User", ObjectID: "u2"},
	}, values)

	objs, err = s.d.Find(ctx, "Missing", domain.Schema{}, domain.Query{})
	s.NoError(err)
	s.Empty(objs)
}

func (s *MemoryTestSuite) TestUpdates() {
	s.seed()

	res, err := s.d.UpdateObjectsByQuery(ctx, "Post", s.schema, domain.Query{"score": bson.M{"$lt": 3}}, domain.Update{"title": "low"})
	s.NoError(err)
	s.Equal(int64(2), res.Matched)

	obj, err := s.d.FindOneAndUpdate(ctx, "Post", s.schema, domain.Query{"objectId": "a"}, domain.Update{"score": domain.Increment{Amount: 10}})
	s.NoError(err)
	s.Equal("a", obj["objectId"])
	s.Equal("low", obj["title"])
	s.EqualValues(11, obj["score"])

	obj, err = s.d.FindOneAndUpdate(ctx, "Post", s.schema, domain.Query{"objectId": "nobody"}, domain.Update{"title": "x"})
	s.NoError(err)
	s.Nil(obj)

	res, err = s.d.UpdateObjectsByQuery(ctx, "Post", s.schema, domain.Query{"objectId": "nobody"}, domain.Update{"title": "x"})
	s.NoError(err)
	s.Zero(res.Matched)

	s.NoError(s.d.UpsertOneObject(ctx, "Post", s.schema, domain.Query{"objectId": "z"}, domain.Update{"title": "new"}))
	objs, err := s.d.Find(ctx, "Post", s.schema, domain.Query{"objectId": "z"})
	s.NoError(err)
	s.Equal([]domain.Object{{"objectId": "z", "title": "new"}}, objs)

	res, err = s.d.UpdateObjectsByBulk(ctx, "Post", s.schema, []domain.BulkUpdate{
		{Query: domain.Query{"objectId": "b"}, Update: domain.Update{"title": "B"}},
		{Query: domain.Query{"objectId": "y"}, Update: domain.Update{"title": "Y"}, Upsert: true},
	})
	s.NoError(err)
	s.Equal(int64(1), res.Matched)
	s.Equal(int64(1), res.Upserted)

	n, err := s.d.Count(ctx, "Post", s.schema, domain.Query{"title": bson.M{"$in": bson.A{"B", "Y"}}})
	s.NoError(err)
	s.Equal(int64(2), n)

	s.NoError(s.d.DeleteObjectsByQuery(ctx, "Post", s.schema, domain.Query{"objectId": "a"}))
	s.ErrorIs(s.d.DeleteObjectsByQuery(ctx, "Post", s.schema, domain.Query{"objectId": "a"}), domain.ErrObjectNotFound)
}

func (s *MemoryTestSuite) TestDuplicateValue() {
	s.NoError(s.d.EnsureUniqueness(ctx, "Post", s.schema, []string{"slug"}))
	s.NoError(s.d.CreateObject(ctx, "Post", s.schema, domain.Object{"objectId": "a", "slug": "hello"}))
	s.NoError(s.d.CreateObject(ctx, "Post", s.schema, domain.Object{"objectId": "b"}))

	err := s.d.CreateObject(ctx, "Post", s.schema, domain.Object{"objectId": "c", "slug": "hello"})
	var dv domain.ErrDuplicateValue
	s.Require().ErrorAs(err, &dv)
	s.Equal("slug", dv.Field)
	s.Equal("A duplicate value for a field with unique values was provided", err.Error())

	_, err = s.d.UpdateObjectsByQuery(ctx, "Post", s.schema, domain.Query{"objectId": "b"}, domain.Update{"slug": "hello"})
	s.ErrorAs(err, &dv)
}

func (s *MemoryTestSuite) TestIndexReconciliation() {
	_, err := s.d.CreateClass(ctx, "Post", s.schema)
	s.Require().NoError(err)

	s.NoError(s.d.SetIndexesWithSchemaFormat(ctx, "Post",
		map[string]domain.IndexSpec{"by_score": {Keys: bson.D{{Key: "score", Value: -1}}}}, nil, s.schema.Fields))
	got, err := s.d.GetClass(ctx, "Post")
	s.NoError(err)
	s.Equal(map[string]bson.D{
		"_id_":     {{Key: "_id", Value: 1}},
		"by_score": {{Key: "score", Value: -1}},
	}, got.Indexes)

	err = s.d.SetIndexesWithSchemaFormat(ctx, "Post",
		map[string]domain.IndexSpec{"by_score": {Keys: bson.D{{Key: "title", Value: 1}}}}, got.Indexes, s.schema.Fields)
	var verr domain.ErrValidation
	s.Require().ErrorAs(err, &verr)
	s.Equal("Index by_score exists, cannot update.", verr.Reason)

	err = s.d.SetIndexesWithSchemaFormat(ctx, "Post",
		map[string]domain.IndexSpec{"by_nope": {Keys: bson.D{{Key: "nope", Value: 1}}}}, got.Indexes, s.schema.Fields)
	s.Require().ErrorAs(err, &verr)
	s.Equal("Field nope does not exist, cannot add index.", verr.Reason)

	s.NoError(s.d.SetIndexesWithSchemaFormat(ctx, "Post", map[string]domain.IndexSpec{
		"by_score": {Drop: true},
		"by_owner": {Keys: bson.D{{Key: "_p_owner", Value: 1}}},
	}, got.Indexes, s.schema.Fields))
	got, err = s.d.GetClass(ctx, "Post")
	s.NoError(err)
	s.Equal(map[string]bson.D{
		"_id_":     {{Key: "_id", Value: 1}},
		"by_owner": {{Key: "_p_owner", Value: 1}},
	}, got.Indexes)

	s.NoError(s.d.CreateIndex(ctx, "Post", bson.D{{Key: "title", Value: 1}}))
	s.NoError(s.d.UpdateSchemaWithIndexes(ctx))
	got, err = s.d.GetClass(ctx, "Post")
	s.NoError(err)
	s.Equal(bson.D{{Key: "title", Value: 1}}, got.Indexes["title_1"])

	s.NoError(s.d.DropIndex(ctx, "Post", "title_1"))
	s.NoError(s.d.DropAllIndexes(ctx, "Post"))
	specs, err := s.d.GetIndexes(ctx, "Post")
	s.NoError(err)
	s.Len(specs, 1)
	s.Equal("_id_", specs[0]["name"])
}

func (s *MemoryTestSuite) TestTextSearchBuildsIndex() {
	_, err := s.d.CreateClass(ctx, "Post", s.schema)
	s.Require().NoError(err)
	s.seed()

	objs, err := s.d.Find(ctx, "Post", s.schema, domain.Query{
		"title": bson.M{"$text": bson.M{"$search": bson.M{"$term": "gamma"}}},
	})
	s.NoError(err)
	s.Equal([]any{"c"}, s.ids(objs))

	got, err := s.d.GetClass(ctx, "Post")
	s.NoError(err)
	s.Equal(bson.D{{Key: "title", Value: "text"}}, got.Indexes["title_text"])
}

func (s *MemoryTestSuite) TestAggregate() {
	s.seed()
	objs, err := s.d.Aggregate(ctx, "Post", s.schema, []bson.M{
		{"$group": bson.M{"_id": "$owner", "count": bson.M{"$sum": 1}}},
		{"$sort": bson.M{"_id": 1}},
	})
	s.NoError(err)
	s.Require().Len(objs, 2)
	s.Equal("u1", objs[0]["objectId"])
	s.EqualValues(2, objs[0]["count"])
	s.Equal("u2", objs[1]["objectId"])

	objs, err = s.d.Aggregate(ctx, "Post", s.schema, []bson.M{
		{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$score"}}},
	})
	s.NoError(err)
	s.Require().Len(objs, 1)
	s.Nil(objs[0]["objectId"])
	s.EqualValues(6, objs[0]["total"])
}

func (s *MemoryTestSuite) TestTransactions() {
	sess, err := s.d.CreateTransactionalSession(ctx)
	s.Require().NoError(err)
	s.NoError(s.d.CreateObject(ctx, "Post", s.schema, domain.Object{"objectId": "t1"}, domain.WithSession(sess)))

	n, err := s.d.Count(ctx, "Post", s.schema, domain.Query{"objectId": "t1"})
	s.NoError(err)
	s.Zero(n)

	s.NoError(s.d.CommitTransactionalSession(ctx, sess))
	n, err = s.d.Count(ctx, "Post", s.schema, domain.Query{"objectId": "t1"})
	s.NoError(err)
	s.Equal(int64(1), n)
	s.ErrorIs(s.d.CommitTransactionalSession(ctx, sess), domain.ErrSessionEnded)

	sess, err = s.d.CreateTransactionalSession(ctx)
	s.Require().NoError(err)
	s.NoError(s.d.DeleteObjectsByQuery(ctx, "Post", s.schema, domain.Query{"objectId": "t1"}, domain.WithSession(sess)))
	s.NoError(s.d.AbortTransactionalSession(ctx, sess))
	n, err = s.d.Count(ctx, "Post", s.schema, domain.Query{"objectId": "t1"})
	s.NoError(err)
	s.Equal(int64(1), n)
}

func (s *MemoryTestSuite) TestDeleteFields() {
	_, err := s.d.CreateClass(ctx, "Post", s.schema)
	s.Require().NoError(err)
	s.seed()

	s.NoError(s.d.DeleteFields(ctx, "Post", s.schema, []string{"score", "owner"}))
	objs, err := s.d.Find(ctx, "Post", s.schema, domain.Query{"objectId": "a"})
	s.NoError(err)
	s.Equal([]domain.Object{{"objectId": "a", "title": "alpha"}}, objs)

	got, err := s.d.GetClass(ctx, "Post")
	s.NoError(err)
	s.NotContains(got.Fields, "score")
	s.NotContains(got.Fields, "owner")
	s.Contains(got.Fields, "title")
}

func (s *MemoryTestSuite) TestDeleteAllClasses() {
	_, err := s.d.CreateClass(ctx, "Post", s.schema)
	s.Require().NoError(err)
	s.seed()

	s.NoError(s.d.DeleteAllClasses(ctx, true))
	exists, err := s.d.ClassExists(ctx, "Post")
	s.NoError(err)
	s.True(exists)
	n, err := s.d.Count(ctx, "Post", s.schema, domain.Query{})
	s.NoError(err)
	s.Zero(n)
	all, err := s.d.GetAllClasses(ctx)
	s.NoError(err)
	s.Empty(all)

	s.NoError(s.d.DeleteAllClasses(ctx, false))
	exists, err = s.d.ClassExists(ctx, "Post")
	s.NoError(err)
	s.False(exists)
}

func TestMemoryTestSuite(t *testing.T) {
	suite.Run(t, new(MemoryTestSuite))
}
