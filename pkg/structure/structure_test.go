package structure

import (
	"fmt"
	"maps"
	"slices"
	"testing"
	"time"

	"github.com/goccy/go-reflect"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type StructureTestSuite struct {
	suite.Suite
}

func (s *StructureTestSuite) TestSeq2Maps() {
	now := time.Now()
	testCases := []struct {
		in       any
		expected map[string]any
	}{
		{in: bson.M{"a": 1}, expected: map[string]any{"a": 1}},
		{in: map[string]any{"b": "c"}, expected: map[string]any{"b": "c"}},
		{in: map[string]string{"d": "e"}, expected: map[string]any{"d": "e"}},
		{in: map[string]bool{"f": true}, expected: map[string]any{"f": true}},
		{in: map[string]int{"g": 2}, expected: map[string]any{"g": 2}},
		{in: map[string]float64{"h": 1.5}, expected: map[string]any{"h": 1.5}},
		{in: map[string]time.Time{"i": now}, expected: map[string]any{"i": now}},
		{in: &map[string]int8{"j": 3}, expected: map[string]any{"j": int8(3)}},
	}
	for _, tc := range testCases {
		s.Run(fmt.Sprintf("%T", tc.in), func() {
			seq, l, err := Seq2(tc.in)
			s.Require().NoError(err)
			s.Equal(len(tc.expected), l)
			s.Equal(tc.expected, maps.Collect(seq))
		})
	}
}

// Ordered documents keep their order.
func (s *StructureTestSuite) TestSeq2Ordered() {
	doc := bson.D{{Key: "z", Value: 1}, {Key: "a", Value: 2}, {Key: "m", Value: 3}}
	seq, l, err := Seq2(doc)
	s.Require().NoError(err)
	s.Equal(3, l)
	var keys []string
	for k := range seq {
		keys = append(keys, k)
	}
	s.Equal([]string{"z", "a", "m"}, keys)
}

func (s *StructureTestSuite) TestSeq2Struct() {
	testCase := struct {
		unexported  int
		Plain       string
		Renamed     bool   `bson:"renamed"`
		Skipped     string `bson:"-"`
		OmitEmpty   string `bson:"omit,omitempty"`
		KeepNonZero int    `bson:"keep,omitempty"`
	}{
		unexported:  1,
		Plain:       "yes",
		Renamed:     true,
		Skipped:     "no",
		KeepNonZero: 7,
	}
	seq, l, err := Seq2(testCase)
	s.Require().NoError(err)
	s.Equal(3, l)
	s.Equal(map[string]any{"Plain": "yes", "renamed": true, "keep": 7}, maps.Collect(seq))
}

func (s *StructureTestSuite) TestSeq2Primitive() {
	primitives := []any{
		1, int8(1), uint64(1), float32(1), "str", true,
		time.Now(), []byte("gief"), primitive.Binary{Data: []byte{1}},
		primitive.Regex{Pattern: "a"}, primitive.NewDateTimeFromTime(time.Now()),
	}
	for _, p := range primitives {
		s.Run(fmt.Sprintf("%T", p), func() {
			seq2, length, err := Seq2(p)
			s.Nil(seq2)
			s.Zero(length)
			var e ErrNonObject
			s.Require().ErrorAs(err, &e)
			s.Equal(reflect.TypeOf(p), e.Type)
		})
	}
}

func (s *StructureTestSuite) TestSeq2Invalid() {
	_, _, err := Seq2(nil)
	s.ErrorIs(err, ErrNilObj)

	_, _, err = Seq2((*map[string]string)(nil))
	s.ErrorIs(err, ErrNilObj)

	_, _, err = Seq2(map[int]string{1: "a"})
	s.ErrorAs(err, new(ErrNonObject))

	_, _, err = Seq2([]any{1})
	s.ErrorAs(err, new(ErrNonObject))
}

func (s *StructureTestSuite) TestSeq() {
	testCases := []any{
		[]any{1, "a"}, bson.A{1, "a"}, []string{"1", "2"}, []float64{1, 2},
		[]int{1, 2}, [2]int{1, 2}, &[]any{1, "a"}, []int64{1, 2},
	}
	for _, tc := range testCases {
		s.Run(fmt.Sprintf("%T", tc), func() {
			seq, l, err := Seq(tc)
			s.Require().NoError(err)
			s.Equal(2, l)
			s.Len(slices.Collect(seq), 2)
		})
	}

	_, _, err := Seq("abc")
	s.ErrorAs(err, new(ErrNonList))
	_, _, err = Seq([]byte("abc"))
	s.ErrorAs(err, new(ErrNonList))
	_, _, err = Seq(bson.M{})
	s.ErrorAs(err, new(ErrNonList))
	_, _, err = Seq(nil)
	s.ErrorIs(err, ErrNilObj)
}

func (s *StructureTestSuite) TestConversions() {
	m, ok := ToMap(bson.D{{Key: "a", Value: 1}})
	s.True(ok)
	s.Equal(bson.M{"a": 1}, m)
	_, ok = ToMap(12)
	s.False(ok)

	l, ok := ToSlice([]string{"x"})
	s.True(ok)
	s.Equal([]any{"x"}, l)
	_, ok = ToSlice(bson.M{})
	s.False(ok)

	s.True(IsObject(bson.M{}))
	s.True(IsObject(struct{ A int }{}))
	s.False(IsObject(nil))
	s.False(IsObject("a"))
	s.True(IsList(bson.A{}))
	s.False(IsList(nil))
}

func (s *StructureTestSuite) TestNumbers() {
	i, ok := AsInteger(int64(4))
	s.True(ok)
	s.Equal(4, i)
	i, ok = AsInteger(4.0)
	s.True(ok)
	s.Equal(4, i)
	_, ok = AsInteger(4.5)
	s.False(ok)
	_, ok = AsInteger("4")
	s.False(ok)

	f, ok := AsFloat(uint8(3))
	s.True(ok)
	s.Equal(3.0, f)
	_, ok = AsFloat("3")
	s.False(ok)

	s.True(IsNumber(float32(1)))
	s.False(IsNumber(true))
}

func TestStructureTestSuite(t *testing.T) {
	suite.Run(t, new(StructureTestSuite))
}
