package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type JSONTestSuite struct {
	suite.Suite
}

func (s *JSONTestSuite) TestFromJSONTagged() {
	in := map[string]any{
		"owner":  map[string]any{"__type": "Pointer", "className": "_User", "objectId": "u1"},
		"when":   map[string]any{"__type": "Date", "iso": "2020-01-01T00:00:00.000Z"},
		"blob":   map[string]any{"__type": "Bytes", "base64": "AA=="},
		"where":  map[string]any{"__type": "GeoPoint", "latitude": 1.0, "longitude": 2.0},
		"area":   map[string]any{"__type": "Polygon", "coordinates": []any{[]any{0.0, 0.0}, []any{0.0, 1.0}, []any{1.0, 1.0}}},
		"pic":    map[string]any{"__type": "File", "name": "a.png", "url": "http://x/a.png"},
		"likes":  map[string]any{"__type": "Relation", "className": "_User"},
		"nested": []any{map[string]any{"$relativeTime": "in 1 day"}},
	}
	out, err := FromJSON(in)
	s.Require().NoError(err)
	s.Equal(map[string]any{
		"owner":  domain.Pointer{ClassName: "_User", ObjectID: "u1"},
		"when":   domain.Date{ISO: "2020-01-01T00:00:00.000Z"},
		"blob":   domain.Bytes{Base64: "AA=="},
		"where":  domain.GeoPoint{Latitude: 1, Longitude: 2},
		"area":   domain.Polygon{Coordinates: [][2]float64{{0, 0}, {0, 1}, {1, 1}}},
		"pic":    domain.File{Name: "a.png", URL: "http://x/a.png"},
		"likes":  domain.Relation{ClassName: "_User"},
		"nested": []any{domain.RelativeTime{Text: "in 1 day"}},
	}, out)
}

func (s *JSONTestSuite) TestFromJSONOps() {
	out, err := FromJSON(map[string]any{
		"a": map[string]any{"__op": "Delete"},
		"b": map[string]any{"__op": "Increment", "amount": 2.0},
		"c": map[string]any{"__op": "AddUnique", "objects": []any{"x"}},
		"d": map[string]any{"__op": "Remove", "objects": []any{map[string]any{"__type": "Pointer", "className": "A", "objectId": "1"}}},
		"e": map[string]any{"__op": "SetOnInsert", "amount": 1.0},
		"f": map[string]any{"__op": "Add"},
	})
	s.Require().NoError(err)
	s.Equal(map[string]any{
		"a": domain.Delete{},
		"b": domain.Increment{Amount: 2.0},
		"c": domain.AddUnique{Objects: []any{"x"}},
		"d": domain.Remove{Objects: []any{domain.Pointer{ClassName: "A", ObjectID: "1"}}},
		"e": domain.SetOnInsert{Value: 1.0},
		"f": domain.Add{},
	}, out)

	_, err = FromJSON(map[string]any{"__op": "Batch"})
	s.EqualError(err, "The Batch operator is not supported yet.")
	s.ErrorAs(err, new(domain.ErrUnsupported))
}

func (s *JSONTestSuite) TestFromJSONInvalid() {
	_, err := FromJSON(map[string]any{"__type": "Pointer", "className": 1})
	s.ErrorAs(err, new(domain.ErrValidation))
	_, err = FromJSON(map[string]any{"__type": "Unknown"})
	s.EqualError(err, "invalid type: Unknown")
	_, err = FromJSON(map[string]any{"__type": "GeoPoint", "latitude": "1"})
	s.ErrorAs(err, new(domain.ErrValidation))
}

func (s *JSONTestSuite) TestToJSON() {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out := ToJSON(bson.M{
		"p":    domain.Pointer{ClassName: "A", ObjectID: "1"},
		"t":    ts,
		"b":    primitive.Binary{Data: []byte{0}},
		"list": bson.A{1, domain.File{Name: "f"}},
		"poly": domain.Polygon{Coordinates: [][2]float64{{1, 2}}},
	})
	s.Equal(map[string]any{
		"p":    map[string]any{"__type": "Pointer", "className": "A", "objectId": "1"},
		"t":    map[string]any{"__type": "Date", "iso": "2020-01-01T00:00:00.000Z"},
		"b":    map[string]any{"__type": "Bytes", "base64": "AA=="},
		"list": []any{1, map[string]any{"__type": "File", "name": "f"}},
		"poly": map[string]any{"__type": "Polygon", "coordinates": []any{[]any{1.0, 2.0}}},
	}, out)
}

// Embedded tagged objects, timestamps and binaries come back typed.
func (s *JSONTestSuite) TestNestedFromStore() {
	ts := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	out, err := NestedFromStore(bson.M{
		"list": bson.A{bson.M{"__type": "Pointer", "className": "A", "objectId": "1"}, ts},
		"bin":  primitive.Binary{Data: []byte{0}},
		"n":    3,
	})
	s.NoError(err)
	s.Equal(map[string]any{
		"list": []any{domain.Pointer{ClassName: "A", ObjectID: "1"}, domain.Date{ISO: "2020-01-01T00:00:00.000Z"}},
		"bin":  domain.Bytes{Base64: "AA=="},
		"n":    3,
	}, out)
}

func TestJSONTestSuite(t *testing.T) {
	suite.Run(t, new(JSONTestSuite))
}
