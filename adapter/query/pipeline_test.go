package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
)

type PipelineTestSuite struct {
	suite.Suite
	c      domain.QueryCompiler
	schema *domain.Schema
}

func (s *PipelineTestSuite) SetupTest() {
	s.c = NewCompiler()
	s.schema = &domain.Schema{
		ClassName: "Post",
		Fields: map[string]domain.Field{
			"owner":     {Type: domain.FieldPointer, TargetClass: "_User"},
			"createdAt": {Type: domain.FieldDate},
			"score":     {Type: domain.FieldNumber},
		},
	}
}

func (s *PipelineTestSuite) TestGroupByPointer() {
	in := []bson.M{{"$group": bson.M{"_id": "$owner", "total": bson.M{"$sum": "$score"}}}}
	res, pointerGroup, err := s.c.Pipeline(in, s.schema)
	s.NoError(err)
	s.True(pointerGroup)
	s.Equal([]bson.M{{"$group": bson.M{"_id": "$_p_owner", "total": bson.M{"$sum": "$score"}}}}, res)
	s.Equal("$owner", in[0]["$group"].(bson.M)["_id"])
}

func (s *PipelineTestSuite) TestGroupBuiltins() {
	res, pointerGroup, err := s.c.Pipeline([]bson.M{{"$group": bson.M{
		"_id": bson.M{"day": bson.M{"$dayOfYear": "$createdAt"}},
		"max": bson.M{"$max": "$updatedAt"},
	}}}, s.schema)
	s.NoError(err)
	s.False(pointerGroup)
	s.Equal([]bson.M{{"$group": bson.M{
		"_id": bson.M{"day": bson.M{"$dayOfYear": "$_created_at"}},
		"max": bson.M{"$max": "$_updated_at"},
	}}}, res)
}

func (s *PipelineTestSuite) TestMatch() {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	res, _, err := s.c.Pipeline([]bson.M{{"$match": bson.M{
		"owner":     "abc",
		"objectId":  "x",
		"createdAt": bson.M{"$gte": "2020-01-01T00:00:00.000Z"},
		"$or":       bson.A{bson.M{"owner": bson.M{"$exists": true}}},
	}}}, s.schema)
	s.NoError(err)
	s.Equal([]bson.M{{"$match": bson.M{
		"_p_owner":    "_User$abc",
		"_id":         "x",
		"_created_at": bson.M{"$gte": ts},
		"$or":         bson.A{bson.M{"_p_owner": bson.M{"$exists": true}}},
	}}}, res)

	_, _, err = s.c.Pipeline([]bson.M{{"$match": bson.M{"createdAt": "yesterday"}}}, s.schema)
	s.ErrorAs(err, new(domain.ErrValidation))
}

func (s *PipelineTestSuite) TestProject() {
	res, _, err := s.c.Pipeline([]bson.M{{"$project": bson.M{
		"owner":     1,
		"objectId":  1,
		"updatedAt": 1,
		"score":     1,
	}}}, s.schema)
	s.NoError(err)
	s.Equal([]bson.M{{"$project": bson.M{
		"_p_owner":    1,
		"_id":         1,
		"_updated_at": 1,
		"score":       1,
	}}}, res)
}

func (s *PipelineTestSuite) TestGeoNear() {
	res, _, err := s.c.Pipeline([]bson.M{{"$geoNear": bson.M{
		"near":  bson.M{"type": "Point", "coordinates": bson.A{1, 2}},
		"query": bson.M{"owner": "abc"},
	}}}, s.schema)
	s.NoError(err)
	s.Equal([]bson.M{{"$geoNear": bson.M{
		"near":  bson.M{"type": "Point", "coordinates": bson.A{1, 2}},
		"query": bson.M{"_p_owner": "_User$abc"},
	}}}, res)
}

func (s *PipelineTestSuite) TestFixGroupID() {
	results := []bson.M{
		{"_id": "_User$abc", "total": 2},
		{"_id": "", "total": 1},
		{"total": 3},
	}
	FixGroupID(results, true)
	s.Equal([]bson.M{
		{"objectId": "abc", "total": 2},
		{"objectId": nil, "total": 1},
		{"total": 3},
	}, results)

	results = []bson.M{{"_id": "a$b"}, {"_id": bson.M{}}, {"_id": 4}}
	FixGroupID(results, false)
	s.Equal([]bson.M{{"objectId": "a$b"}, {"objectId": nil}, {"objectId": 4}}, results)
}

func TestPipelineTestSuite(t *testing.T) {
	suite.Run(t, new(PipelineTestSuite))
}
