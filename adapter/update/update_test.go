package update

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docadapter/adapter/codec"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
)

type UpdateTestSuite struct {
	suite.Suite
	c      domain.UpdateCompiler
	schema *domain.Schema
}

func (s *UpdateTestSuite) SetupTest() {
	s.c = NewCompiler()
	s.schema = &domain.Schema{
		ClassName: "Post",
		Fields: map[string]domain.Field{
			"owner": {Type: domain.FieldPointer, TargetClass: "_User"},
			"likes": {Type: domain.FieldRelation, TargetClass: "_User"},
			"tags":  {Type: domain.FieldArray},
		},
	}
}

func (s *UpdateTestSuite) TestOperator() {
	testCases := []struct {
		op       domain.Op
		expected Operation
	}{
		{domain.Delete{}, Operation{Operator: "$unset", Arg: ""}},
		{domain.Increment{Amount: 5}, Operation{Operator: "$inc", Arg: 5}},
		{domain.SetOnInsert{Value: "x"}, Operation{Operator: "$setOnInsert", Arg: "x"}},
		{domain.Add{Objects: []any{1}}, Operation{Operator: "$push", Arg: bson.M{"$each": bson.A{1}}}},
		{domain.AddUnique{Objects: []any{"a"}}, Operation{Operator: "$addToSet", Arg: bson.M{"$each": bson.A{"a"}}}},
		{
			domain.Remove{Objects: []any{domain.Pointer{ClassName: "A", ObjectID: "1"}}},
			Operation{Operator: "$pullAll", Arg: bson.A{bson.M{"__type": "Pointer", "className": "A", "objectId": "1"}}},
		},
	}
	for _, tc := range testCases {
		res, err := Operator(tc.op)
		s.NoError(err)
		s.Equal(tc.expected, res)
	}
}

// The same operator yields the resulting value when flattened.
func (s *UpdateTestSuite) TestOperatorFlattened() {
	res, err := Operator(domain.Increment{Amount: 5})
	s.NoError(err)
	s.Equal(Operation{Operator: "$inc", Arg: 5}, res)

	flat, keep, err := codec.FlattenOp(domain.Increment{Amount: 5})
	s.NoError(err)
	s.True(keep)
	s.Equal(5, flat)

	_, keep, err = codec.FlattenOp(domain.Delete{})
	s.NoError(err)
	s.False(keep)
}

func (s *UpdateTestSuite) TestOperatorErrors() {
	_, err := Operator(domain.Increment{Amount: "1"})
	s.EqualError(err, "incrementing must provide a number")

	_, err = Operator(domain.Add{})
	s.EqualError(err, "objects to add must be an array")

	_, err = Operator(domain.Remove{})
	s.EqualError(err, "objects to remove must be an array")
}

func (s *UpdateTestSuite) TestUpdate() {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := s.c.Update("Post", domain.Update{
		"title":     "hello",
		"updatedAt": "2020-01-01T00:00:00.000Z",
		"count":     domain.Increment{Amount: 1},
		"gone":      domain.Delete{},
		"tags":      domain.AddUnique{Objects: []any{"a"}},
		"owner":     domain.Pointer{ClassName: "_User", ObjectID: "u1"},
		"likes":     domain.Relation{ClassName: "_User"},
		"meta":      map[string]any{"at": domain.Date{ISO: "2020-01-01T00:00:00.000Z"}},
		"list":      []any{domain.GeoPoint{Latitude: 1, Longitude: 2}},
	}, s.schema)
	s.NoError(err)
	s.Equal(bson.M{
		"$set": bson.M{
			"title":       "hello",
			"_updated_at": ts,
			"_p_owner":    "_User$u1",
			"meta":        bson.M{"at": ts},
			"list":        bson.A{map[string]any{"__type": "GeoPoint", "latitude": 1.0, "longitude": 2.0}},
		},
		"$inc":      bson.M{"count": 1},
		"$unset":    bson.M{"gone": ""},
		"$addToSet": bson.M{"tags": bson.M{"$each": bson.A{"a"}}},
	}, res)
}

// Permission lists are kept and also folded into the legacy document.
func (s *UpdateTestSuite) TestUpdateACL() {
	res, err := s.c.Update("Post", domain.Update{
		"_rperm": []any{"*", "u1"},
		"_wperm": []any{"u1"},
	}, s.schema)
	s.NoError(err)
	s.Equal(bson.M{"$set": bson.M{
		"_rperm": []any{"*", "u1"},
		"_wperm": []any{"u1"},
		"_acl": bson.M{
			"*":  bson.M{"r": true},
			"u1": bson.M{"r": true, "w": true},
		},
	}}, res)
}

func (s *UpdateTestSuite) TestDottedKeys() {
	res, err := s.c.Update("Post", domain.Update{
		"a.b": 1,
		"a.c": domain.Pointer{ClassName: "A", ObjectID: "1"},
	}, s.schema)
	s.NoError(err)
	s.Equal(bson.M{"$set": bson.M{
		"a.b": 1,
		"a.c": bson.M{"__type": "Pointer", "className": "A", "objectId": "1"},
	}}, res)
}

func (s *UpdateTestSuite) TestNumericID() {
	res, err := s.c.Update("_GlobalConfig", domain.Update{"objectId": "1", "params": map[string]any{}}, nil)
	s.NoError(err)
	s.Equal(bson.M{"$set": bson.M{"objectId": 1, "params": bson.M{}}}, res)
}

func (s *UpdateTestSuite) TestErrors() {
	_, err := s.c.Update("Post", domain.Update{"updatedAt": "yesterday"}, s.schema)
	s.ErrorAs(err, new(domain.ErrValidation))

	_, err = s.c.Update("Post", domain.Update{"n": domain.Increment{Amount: "x"}}, s.schema)
	s.EqualError(err, "incrementing must provide a number")

	_, err = s.c.Update("Post", domain.Update{"o": map[string]any{"a": map[string]any{"$x": 1}}}, s.schema)
	s.EqualError(err, "Nested keys should not contain the '$' or '.' characters")
}

func TestUpdateTestSuite(t *testing.T) {
	suite.Run(t, new(UpdateTestSuite))
}
