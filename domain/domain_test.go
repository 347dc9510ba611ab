package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
)

type DomainTestSuite struct {
	suite.Suite
}

func (s *DomainTestSuite) TestOptions() {
	var fos domain.FindOptions
	fo := []domain.FindOption{
		domain.WithSkip(2),
		domain.WithLimit(3),
		domain.WithSort(bson.D{{Key: "a", Value: -1}}),
		domain.WithKeys("a", "b"),
		domain.WithReadPreference(domain.ReadNearest),
		domain.WithHint("a_1"),
		domain.WithCaseInsensitive(true),
		domain.WithExplain(true),
		domain.WithComment("c"),
	}
	for _, opt := range fo {
		opt(&fos)
	}
	s.Equal(domain.FindOptions{
		Skip:            2,
		Limit:           3,
		Sort:            bson.D{{Key: "a", Value: -1}},
		Keys:            []string{"a", "b"},
		ReadPreference:  domain.ReadNearest,
		Hint:            "a_1",
		CaseInsensitive: true,
		Explain:         true,
		Comment:         "c",
	}, fos)

	var cos domain.CountOptions
	for _, opt := range []domain.CountOption{
		domain.WithCountSkip(1),
		domain.WithCountLimit(2),
		domain.WithCountReadPreference(domain.ReadSecondary),
		domain.WithCountHint("h"),
		domain.WithCountComment("c"),
	} {
		opt(&cos)
	}
	s.Equal(domain.CountOptions{Skip: 1, Limit: 2, ReadPreference: domain.ReadSecondary, Hint: "h", Comment: "c"}, cos)

	var ios domain.IndexOptions
	for _, opt := range []domain.IndexOption{
		domain.WithIndexName("n"),
		domain.WithIndexCaseInsensitive(true),
		domain.WithIndexTTL(time.Minute),
		domain.WithIndexSparse(false),
		domain.WithIndexType("text"),
	} {
		opt(&ios)
	}
	s.Equal("n", ios.Name)
	s.True(ios.CaseInsensitive)
	s.Equal(time.Minute, ios.TTL)
	s.Require().NotNil(ios.Sparse)
	s.False(*ios.Sparse)
	s.Equal("text", ios.Type)
}

// The three permission states are kept apart.
func (s *DomainTestSuite) TestCLPStates() {
	var zero domain.CLP
	s.Equal(domain.CLPUnset, zero.State())
	s.Equal(domain.DefaultCLP(), zero.Effective())

	cleared := domain.ClearedCLP()
	s.Equal(domain.CLPCleared, cleared.State())
	s.Equal(domain.EmptyCLP(), cleared.Effective())
	s.Empty(cleared.Doc())

	s.Equal(domain.CLPCleared, domain.SetCLP(nil).State())
	s.Equal(domain.CLPCleared, domain.SetCLP(bson.M{}).State())

	set := domain.SetCLP(bson.M{"find": bson.M{"role:admin": true}})
	s.Equal(domain.CLPSet, set.State())
	eff := set.Effective()
	s.Equal(bson.M{"role:admin": true}, eff["find"])
	s.Equal(bson.M{}, eff["get"])
}

// Modifying the source document does not leak into stored permissions.
func (s *DomainTestSuite) TestCLPCopies() {
	doc := bson.M{"find": bson.M{"*": true}}
	clp := domain.SetCLP(doc)
	doc["get"] = bson.M{}
	s.NotContains(clp.Doc(), "get")
}

func (s *DomainTestSuite) TestFieldTypeNames() {
	for t := domain.FieldString; t <= domain.FieldACL; t++ {
		parsed, ok := domain.ParseFieldType(t.String())
		s.True(ok)
		s.Equal(t, parsed)
	}
	_, ok := domain.ParseFieldType("Nope")
	s.False(ok)
	s.Equal("Unknown", domain.FieldType(0).String())
}

func (s *DomainTestSuite) TestSchemaField() {
	var nilSchema *domain.Schema
	_, ok := nilSchema.Field("a")
	s.False(ok)
	s.Nil(nilSchema.FieldPtr("a"))

	sch := &domain.Schema{Fields: map[string]domain.Field{
		"owner": {Type: domain.FieldPointer, TargetClass: "_User"},
	}}
	s.Equal(&domain.Field{Type: domain.FieldPointer, TargetClass: "_User"}, sch.FieldPtr("owner"))
}

func (s *DomainTestSuite) TestErrors() {
	inner := errors.New("E11000")
	var err error = domain.ErrDuplicateValue{Field: "email", Err: inner}
	s.ErrorIs(err, inner)
	var dup domain.ErrDuplicateValue
	s.ErrorAs(err, &dup)
	s.Equal("email", dup.Field)

	err = domain.Invalid("bad %s", "thing")
	s.EqualError(err, "bad thing")
	s.ErrorAs(err, new(domain.ErrValidation))

	s.ErrorIs(domain.ErrAuthorization{Err: inner}, inner)
	s.ErrorIs(domain.ErrTransport{Err: inner}, inner)
	s.ErrorIs(domain.ErrDuplicateKey{Message: "m", Err: inner}, inner)
	s.EqualError(domain.ErrNamespaceNotFound{Namespace: "db.c"}, "ns not found: db.c")
}

func TestDomainTestSuite(t *testing.T) {
	suite.Run(t, new(DomainTestSuite))
}
