package memstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
)

type ModifierTestSuite struct {
	suite.Suite
	m *modifier
}

func (s *ModifierTestSuite) SetupTest() {
	s.m = newModifier()
}

func (s *ModifierTestSuite) TestOperators() {
	doc := bson.M{"_id": "1", "n": 1, "f": 1.5, "tags": bson.A{"a", "b"}, "sub": bson.M{"x": 1}}
	testCases := []struct {
		update   bson.M
		expected bson.M
	}{
		{bson.M{"$set": bson.M{"sub.y": 2}}, bson.M{"_id": "1", "n": 1, "f": 1.5, "tags": bson.A{"a", "b"}, "sub": bson.M{"x": 1, "y": 2}}},
		{bson.M{"$unset": bson.M{"sub": ""}}, bson.M{"_id": "1", "n": 1, "f": 1.5, "tags": bson.A{"a", "b"}}},
		{bson.M{"$inc": bson.M{"n": 2, "f": 1, "m": 3}}, bson.M{"_id": "1", "n": 3, "f": 2.5, "m": 3, "tags": bson.A{"a", "b"}, "sub": bson.M{"x": 1}}},
		{bson.M{"$push": bson.M{"tags": bson.M{"$each": bson.A{"c", "d"}, "$slice": -3}}}, bson.M{"_id": "1", "n": 1, "f": 1.5, "tags": bson.A{"b", "c", "d"}, "sub": bson.M{"x": 1}}},
		{bson.M{"$addToSet": bson.M{"tags": bson.M{"$each": bson.A{"a", "c"}}}}, bson.M{"_id": "1", "n": 1, "f": 1.5, "tags": bson.A{"a", "b", "c"}, "sub": bson.M{"x": 1}}},
		{bson.M{"$pullAll": bson.M{"tags": bson.A{"a"}}}, bson.M{"_id": "1", "n": 1, "f": 1.5, "tags": bson.A{"b"}, "sub": bson.M{"x": 1}}},
		{bson.M{"$pop": bson.M{"tags": -1}}, bson.M{"_id": "1", "n": 1, "f": 1.5, "tags": bson.A{"b"}, "sub": bson.M{"x": 1}}},
		{bson.M{"$max": bson.M{"n": 5}, "$min": bson.M{"f": 2}}, bson.M{"_id": "1", "n": 5, "f": 1.5, "tags": bson.A{"a", "b"}, "sub": bson.M{"x": 1}}},
	}
	for _, tc := range testCases {
		res, err := s.m.modify(doc, tc.update, false)
		s.NoError(err)
		s.Equal(tc.expected, res, "%v", tc.update)
	}
	s.Equal(bson.M{"_id": "1", "n": 1, "f": 1.5, "tags": bson.A{"a", "b"}, "sub": bson.M{"x": 1}}, doc)
}

func (s *ModifierTestSuite) TestReplace() {
	res, err := s.m.modify(bson.M{"_id": "1", "a": 1}, bson.M{"b": 2}, false)
	s.NoError(err)
	s.Equal(bson.M{"_id": "1", "b": 2}, res)

	_, err = s.m.modify(bson.M{"_id": "1"}, bson.M{"_id": "2"}, false)
	s.ErrorIs(err, ErrImmutableID)
}

func (s *ModifierTestSuite) TestSetOnInsert() {
	update := bson.M{"$setOnInsert": bson.M{"a": 1}, "$set": bson.M{"b": 2}}
	res, err := s.m.modify(bson.M{}, update, false)
	s.NoError(err)
	s.Equal(bson.M{"b": 2}, res)

	res, err = s.m.modify(bson.M{}, update, true)
	s.NoError(err)
	s.Equal(bson.M{"a": 1, "b": 2}, res)
}

func (s *ModifierTestSuite) TestErrors() {
	_, err := s.m.modify(bson.M{}, bson.M{"$set": bson.M{"a": 1}, "b": 1}, false)
	s.ErrorIs(err, ErrMixedOperators)

	_, err = s.m.modify(bson.M{}, bson.M{"$rename": bson.M{"a": "b"}}, false)
	s.ErrorAs(err, new(ErrUnknownModifier))

	_, err = s.m.modify(bson.M{"a": "x"}, bson.M{"$inc": bson.M{"a": 1}}, false)
	s.ErrorAs(err, new(ErrModFieldType))

	_, err = s.m.modify(bson.M{"a": 1}, bson.M{"$push": bson.M{"a": 1}}, false)
	s.ErrorAs(err, new(ErrModFieldType))

	_, err = s.m.modify(bson.M{"_id": "1"}, bson.M{"$set": bson.M{"_id": "2"}}, false)
	s.ErrorIs(err, ErrImmutableID)
}

func TestModifierTestSuite(t *testing.T) {
	suite.Run(t, new(ModifierTestSuite))
}

type AggregateTestSuite struct {
	suite.Suite
}

func (s *AggregateTestSuite) TestProject() {
	doc := bson.M{"_id": "1", "a": 1, "b": bson.M{"c": 2}, "d": 3}

	res, err := project(doc, bson.M{"a": 1, "b.c": true})
	s.NoError(err)
	s.Equal(bson.M{"_id": "1", "a": 1, "b": bson.M{"c": 2}}, res)

	res, err = project(doc, bson.M{"a": 0, "_id": 0})
	s.NoError(err)
	s.Equal(bson.M{"b": bson.M{"c": 2}, "d": 3}, res)

	res, err = project(doc, bson.M{"_id": 0, "x": "$b.c"})
	s.NoError(err)
	s.Equal(bson.M{"x": 2}, res)

	_, err = project(doc, bson.M{"a": 1, "d": 0})
	s.Error(err)
}

func (s *AggregateTestSuite) TestGroupAccumulators() {
	docs := []bson.M{
		{"k": "a", "n": 1, "t": "x"},
		{"k": "a", "n": 3, "t": "x"},
		{"k": "b", "n": 2, "t": "y"},
	}
	res, err := groupStage(docs, bson.M{
		"_id":   "$k",
		"avg":   bson.M{"$avg": "$n"},
		"min":   bson.M{"$min": "$n"},
		"max":   bson.M{"$max": "$n"},
		"first": bson.M{"$first": "$n"},
		"last":  bson.M{"$last": "$n"},
		"all":   bson.M{"$push": "$n"},
		"set":   bson.M{"$addToSet": "$t"},
	})
	s.NoError(err)
	s.Equal([]bson.M{
		{"_id": "a", "avg": 2.0, "min": 1, "max": 3, "first": 1, "last": 3, "all": bson.A{1, 3}, "set": bson.A{"x"}},
		{"_id": "b", "avg": 2.0, "min": 2, "max": 2, "first": 2, "last": 2, "all": bson.A{2}, "set": bson.A{"y"}},
	}, res)
}

func (s *AggregateTestSuite) TestStages() {
	docs := []bson.M{
		{"_id": "1", "tags": bson.A{"a", "b"}},
		{"_id": "2", "tags": bson.A{"c"}},
		{"_id": "3"},
	}
	res, err := unwindStage(docs, "$tags")
	s.NoError(err)
	s.Len(res, 3)

	res, err = countStage(res, "total")
	s.NoError(err)
	s.Equal([]bson.M{{"total": 3}}, res)

	res, err = skipStage(docs, 2)
	s.NoError(err)
	s.Len(res, 1)

	res, err = limitStage(docs, 2)
	s.NoError(err)
	s.Len(res, 2)

	_, err = limitStage(docs, 0)
	s.Error(err)
}

func (s *AggregateTestSuite) TestDateParts() {
	v, err := evaluate(bson.M{"d": time.Date(2024, 3, 5, 10, 20, 30, 0, time.UTC)}, bson.M{"$month": "$d"})
	s.NoError(err)
	s.Equal(3, v)

	_, err = evaluate(bson.M{}, bson.M{"$nope": 1})
	s.ErrorAs(err, new(ErrUnknownExpression))
}

func (s *AggregateTestSuite) TestCompareOrder() {
	values := []any{"a", nil, bson.M{}, 2, true, missing{}, bson.A{}}
	for n := 1; n < len(values); n++ {
		s.NotEqual(0, Compare(values[n-1], values[n]))
	}
	s.Equal(-1, Compare(missing{}, nil))
	s.Equal(-1, Compare(nil, 1))
	s.Equal(-1, Compare(1, "a"))
	s.Equal(-1, Compare("a", bson.M{}))
	s.Equal(0, Compare(1, 1.0))
	s.True(Equal(bson.M{"a": 1, "b": 2}, bson.D{{Key: "a", Value: 1}, {Key: "b", Value: 2}}))
}

func TestAggregateTestSuite(t *testing.T) {
	suite.Run(t, new(AggregateTestSuite))
}
