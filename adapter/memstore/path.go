package memstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// normalize deep copies a document into the shape kept in memory: objects are
// bson.M, lists are bson.A and timestamps are UTC times.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, primitive.ObjectID, primitive.Regex:
		return t
	case time.Time:
		return t.UTC()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.Binary:
		return primitive.Binary{Subtype: t.Subtype, Data: append([]byte(nil), t.Data...)}
	case []byte:
		return primitive.Binary{Data: append([]byte(nil), t...)}
	}
	if structure.IsNumber(v) {
		return v
	}
	if seq, l, err := structure.Seq2(v); err == nil {
		res := make(bson.M, l)
		for k, val := range seq {
			res[k] = normalize(val)
		}
		return res
	}
	if seq, l, err := structure.Seq(v); err == nil {
		res := make(bson.A, 0, l)
		for val := range seq {
			res = append(res, normalize(val))
		}
		return res
	}
	return v
}

func normalizeDoc(doc bson.M) bson.M {
	res, _ := normalize(doc).(bson.M)
	if res == nil {
		res = bson.M{}
	}
	return res
}

func split(path string) []string {
	return strings.Split(path, ".")
}

// lookup returns the values found at addr. Lists met before the last part are
// traversed element by element unless the part is a position.
func lookup(v any, addr []string) ([]any, bool) {
	if len(addr) == 0 {
		return []any{v}, true
	}
	switch t := v.(type) {
	case bson.M:
		child, ok := t[addr[0]]
		if !ok {
			return nil, false
		}
		return lookup(child, addr[1:])
	case bson.A:
		if n, err := strconv.Atoi(addr[0]); err == nil {
			if n < 0 || n >= len(t) {
				return nil, false
			}
			return lookup(t[n], addr[1:])
		}
		var res []any
		for _, item := range t {
			if _, ok := item.(bson.M); !ok {
				continue
			}
			if found, ok := lookup(item, addr); ok {
				res = append(res, found...)
			}
		}
		return res, len(res) > 0
	}
	return nil, false
}

// get returns the single value at a dotted path, without list traversal.
func get(doc bson.M, path string) (any, bool) {
	var cur any = doc
	for _, part := range split(path) {
		switch t := cur.(type) {
		case bson.M:
			v, ok := t[part]
			if !ok {
				return nil, false
			}
			cur = v
		case bson.A:
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 || n >= len(t) {
				return nil, false
			}
			cur = t[n]
		default:
			return nil, false
		}
	}
	return cur, true
}

// set stores value at a dotted path, creating intermediate objects.
func set(doc bson.M, path string, value any) error {
	parts := split(path)
	var cur any = doc
	for n, part := range parts {
		last := n == len(parts)-1
		switch t := cur.(type) {
		case bson.M:
			if last {
				t[part] = value
				return nil
			}
			next, ok := t[part]
			if !ok || next == nil {
				next = bson.M{}
				t[part] = next
			}
			cur = next
		case bson.A:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(t) {
				return fmt.Errorf("cannot create field '%s' in element %v", part, t)
			}
			if last {
				t[i] = value
				return nil
			}
			if t[i] == nil {
				t[i] = bson.M{}
			}
			cur = t[i]
		default:
			return fmt.Errorf("cannot create field '%s' in element {%s: %v}", part, strings.Join(parts[:n], "."), t)
		}
	}
	return nil
}

// unset removes the value at a dotted path. List elements are set to null.
func unset(doc bson.M, path string) {
	parts := split(path)
	var cur any = doc
	for n, part := range parts {
		last := n == len(parts)-1
		switch t := cur.(type) {
		case bson.M:
			if last {
				delete(t, part)
				return
			}
			cur = t[part]
		case bson.A:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(t) {
				return
			}
			if last {
				t[i] = nil
				return
			}
			cur = t[i]
		default:
			return
		}
	}
}
