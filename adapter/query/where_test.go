package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WhereTestSuite struct {
	suite.Suite
	c      domain.QueryCompiler
	schema *domain.Schema
}

func (s *WhereTestSuite) SetupTest() {
	s.c = NewCompiler()
	s.schema = &domain.Schema{
		ClassName: "Post",
		Fields: map[string]domain.Field{
			"owner": {Type: domain.FieldPointer, TargetClass: "_User"},
			"tags":  {Type: domain.FieldArray},
			"title": {Type: domain.FieldString},
			"at":    {Type: domain.FieldDate},
		},
	}
}

func (s *WhereTestSuite) TestBuiltinKeys() {
	res, err := s.c.Where("Post", domain.Query{
		"objectId":  "abc",
		"timesUsed": 3,
		"_rperm":    bson.M{"$in": bson.A{"*"}},
	}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{
		"_id":        "abc",
		"times_used": 3,
		"_rperm":     bson.M{"$in": bson.A{"*"}},
	}, res)
}

func (s *WhereTestSuite) TestGlobalConfigID() {
	res, err := s.c.Where("_GlobalConfig", domain.Query{"objectId": "1"}, nil, false)
	s.NoError(err)
	s.Equal(bson.M{"_id": 1}, res)
}

// Time fields accept ISO strings and dates, directly or inside operators.
func (s *WhereTestSuite) TestTimeFields() {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	res, err := s.c.Where("Post", domain.Query{
		"createdAt": "2020-01-01T00:00:00.000Z",
		"updatedAt": domain.Date{ISO: "2020-01-01T00:00:00.000Z"},
		"expiresAt": ts,
	}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"_created_at": ts, "_updated_at": ts, "expiresAt": ts}, res)

	res, err = s.c.Where("Post", domain.Query{
		"createdAt": bson.M{"$gt": domain.Date{ISO: "2020-01-01T00:00:00.000Z"}},
	}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"_created_at": bson.M{"$gt": ts}}, res)
}

func (s *WhereTestSuite) TestAuthData() {
	res, err := s.c.Where("_User", domain.Query{"authData.facebook.id": "123"}, nil, false)
	s.NoError(err)
	s.Equal(bson.M{"_auth_data_facebook.id": "123"}, res)
}

func (s *WhereTestSuite) TestPointers() {
	res, err := s.c.Where("Post", domain.Query{"owner": "abc"}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"_p_owner": "_User$abc"}, res)

	res, err = s.c.Where("Post", domain.Query{
		"owner": domain.Pointer{ClassName: "_User", ObjectID: "abc"},
	}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"_p_owner": "_User$abc"}, res)

	res, err = s.c.Where("Post", domain.Query{
		"owner": bson.M{"$in": bson.A{domain.Pointer{ClassName: "_User", ObjectID: "a"}}},
	}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"_p_owner": bson.M{"$in": bson.A{"_User$a"}}}, res)
}

// Without a schema, pointer values still locate the prefixed key.
func (s *WhereTestSuite) TestPointerWithoutSchema() {
	p := domain.Pointer{ClassName: "_User", ObjectID: "abc"}
	res, err := s.c.Where("Post", domain.Query{"owner": p, "a.b": p}, nil, false)
	s.NoError(err)
	s.Equal(bson.M{
		"_p_owner": "_User$abc",
		"a.b":      bson.M{"__type": "Pointer", "className": "_User", "objectId": "abc"},
	}, res)
}

func (s *WhereTestSuite) TestLogical() {
	res, err := s.c.Where("Post", domain.Query{
		"$or": []any{
			domain.Query{"objectId": "a"},
			bson.M{"title": bson.M{"$regex": "^x"}},
		},
	}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"$or": bson.A{
		bson.M{"_id": "a"},
		bson.M{"title": bson.M{"$regex": "^x"}},
	}}, res)

	for _, op := range []string{"$or", "$and", "$nor"} {
		_, err = s.c.Where("Post", domain.Query{op: bson.M{"a": 1}}, s.schema, false)
		s.EqualError(err, "bad "+op+" format - use an array value")
	}
}

func (s *WhereTestSuite) TestTextHoisted() {
	res, err := s.c.Where("Post", domain.Query{
		"title": bson.M{"$text": bson.M{"$search": bson.M{"$term": "coffee"}}},
	}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"$text": bson.M{"$search": "coffee"}}, res)
}

// Every containment constraint adds a clause to the same $nor.
func (s *WhereTestSuite) TestContainedBy() {
	res, err := s.c.Where("Post", domain.Query{
		"tags":  bson.M{"$containedBy": []any{"a"}},
		"other": bson.M{"$containedBy": []any{1}},
	}, s.schema, false)
	s.NoError(err)
	nor, ok := res["$nor"].(bson.A)
	s.Require().True(ok)
	s.ElementsMatch(bson.A{
		bson.M{"tags": bson.M{"$elemMatch": bson.M{"$nin": bson.A{"a"}}}},
		bson.M{"other": bson.M{"$elemMatch": bson.M{"$nin": bson.A{1}}}},
	}, nor)
	s.Len(res, 1)
}

func (s *WhereTestSuite) TestArrayFieldScalar() {
	res, err := s.c.Where("Post", domain.Query{"tags": "a"}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"tags": bson.M{"$all": bson.A{"a"}}}, res)

	res, err = s.c.Where("Post", domain.Query{"tags": []any{"a"}}, s.schema, false)
	s.Error(err)
	s.Nil(res)
}

func (s *WhereTestSuite) TestRegexValue() {
	res, err := s.c.Where("Post", domain.Query{"title": domain.Regex{Pattern: "^a", Options: "i"}}, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"title": primitive.Regex{Pattern: "^a", Options: "i"}}, res)
}

func (s *WhereTestSuite) TestNotAQueryParameter() {
	_, err := s.c.Where("Post", domain.Query{"rel": domain.Relation{ClassName: "A"}}, s.schema, false)
	s.ErrorContains(err, "as a query parameter.")
	s.ErrorAs(err, new(domain.ErrValidation))
}

// Count mode turns proximity searches into filters.
func (s *WhereTestSuite) TestCount() {
	q := domain.Query{"loc": bson.M{
		"$nearSphere":  domain.GeoPoint{Latitude: 1, Longitude: 2},
		"$maxDistance": 0.5,
	}}
	res, err := s.c.Where("Post", q, s.schema, true)
	s.NoError(err)
	s.Equal(bson.M{"loc": bson.M{"$geoWithin": bson.M{"$centerSphere": bson.A{bson.A{2.0, 1.0}, 0.5}}}}, res)

	res, err = s.c.Where("Post", q, s.schema, false)
	s.NoError(err)
	s.Equal(bson.M{"loc": bson.M{"$nearSphere": bson.A{2.0, 1.0}, "$maxDistance": 0.5}}, res)
}

func (s *WhereTestSuite) TestKeySortProjection() {
	s.Equal("_id", s.c.Key("objectId", s.schema))
	s.Equal("_p_owner", s.c.Key("owner", s.schema))
	s.Equal("title", s.c.Key("title", s.schema))
	s.Equal("owner", s.c.Key("owner", nil))

	s.Equal(bson.D{{Key: "_created_at", Value: -1}, {Key: "_p_owner", Value: 1}},
		s.c.Sort(bson.D{{Key: "createdAt", Value: -1}, {Key: "owner", Value: 1}}, s.schema))
	s.Nil(s.c.Sort(nil, s.schema))

	s.Equal(bson.M{"_p_owner": 1, "_rperm": 1, "_wperm": 1, "_id": 0},
		s.c.Projection([]string{"owner", "ACL"}, s.schema))
	s.Equal(bson.M{"_id": 1}, s.c.Projection([]string{"objectId"}, s.schema))
	s.Nil(s.c.Projection(nil, s.schema))
}

func TestWhereTestSuite(t *testing.T) {
	suite.Run(t, new(WhereTestSuite))
}
