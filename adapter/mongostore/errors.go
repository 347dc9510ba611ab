package mongostore

import (
	"errors"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Server error codes.
const (
	codeUnauthorized      = 13
	codeAuthFailed        = 18
	codeNamespaceNotFound = 26
)

// classify maps driver errors to the domain errors the orchestrator
// inspects. Other errors are returned as they are.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicateKey{Message: duplicateMessage(err), Err: err}
	}
	var se mongo.ServerError
	if errors.As(err, &se) {
		switch {
		case se.HasErrorCode(codeUnauthorized), se.HasErrorCode(codeAuthFailed):
			return domain.ErrAuthorization{Err: err}
		case se.HasErrorCode(codeNamespaceNotFound), se.HasErrorMessage("ns not found"):
			return domain.ErrNamespaceNotFound{Namespace: err.Error()}
		}
	}
	if errors.Is(err, mongo.ErrClientDisconnected) || mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		strings.Contains(err.Error(), "server selection error") {
		return domain.ErrTransport{Err: err}
	}
	if strings.Contains(err.Error(), "Authentication failed") {
		return domain.ErrAuthorization{Err: err}
	}
	return err
}

// duplicateMessage returns the server text of the first duplicate key error.
func duplicateMessage(err error) string {
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				return e.Message
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				return e.Message
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		return ce.Message
	}
	return err.Error()
}

// fromStore converts decoded driver values into the shapes used by the
// document builder: ordered documents become maps and dates become times.
func fromStore(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Timestamp:
		return time.Unix(int64(t.T), 0).UTC()
	case bson.D:
		res := make(bson.M, len(t))
		for _, e := range t {
			res[e.Key] = fromStore(e.Value)
		}
		return res
	case bson.M:
		res := make(bson.M, len(t))
		for k, e := range t {
			res[k] = fromStore(e)
		}
		return res
	case bson.A:
		res := make(bson.A, len(t))
		for n, e := range t {
			res[n] = fromStore(e)
		}
		return res
	}
	return v
}

func fromStoreDoc(doc bson.M) bson.M {
	if doc == nil {
		return nil
	}
	return fromStore(doc).(bson.M)
}

func fromStoreDocs(docs []bson.M) []bson.M {
	for n, doc := range docs {
		docs[n] = fromStoreDoc(doc)
	}
	return docs
}
