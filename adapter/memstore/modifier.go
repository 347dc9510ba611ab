package memstore

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrMixedOperators is returned when an update mixes operators and
	// plain fields.
	ErrMixedOperators = errors.New("cannot mix modifiers and normal fields")
	// ErrNonObject is returned when the argument of an update operator is
	// not an object.
	ErrNonObject = errors.New("modifier value must be an object")
	// ErrImmutableID is returned when an update changes _id.
	ErrImmutableID = errors.New("Performing an update on the path '_id' would modify the immutable field '_id'")
)

// ErrModFieldType is returned when an operator meets a stored field of an
// unexpected type.
type ErrModFieldType struct {
	Mod    string
	Want   string
	Actual any
}

// Error implements [error].
func (e ErrModFieldType) Error() string {
	return fmt.Sprintf("%s expects %s field, got %T", e.Mod, e.Want, e.Actual)
}

// ErrModArgType is returned when an operator argument has an unexpected type.
type ErrModArgType struct {
	Mod    string
	Want   string
	Actual any
}

// Error implements [error].
func (e ErrModArgType) Error() string {
	return fmt.Sprintf("%s expects %s arg, got %T", e.Mod, e.Want, e.Actual)
}

// ErrUnknownModifier is returned for update operators that are not supported.
type ErrUnknownModifier struct {
	Name string
}

// Error implements [error].
func (e ErrUnknownModifier) Error() string {
	return fmt.Sprintf("Unknown modifier: %s", e.Name)
}

type modFunc func(doc bson.M, path string, arg any) error

type modifier struct {
	mods map[string]modFunc
}

func newModifier() *modifier {
	m := &modifier{}
	m.mods = map[string]modFunc{
		"$set":      set,
		"$unset":    m.unset,
		"$inc":      m.inc,
		"$push":     m.push,
		"$addToSet": m.addToSet,
		"$pullAll":  m.pullAll,
		"$pop":      m.pop,
		"$max":      m.max,
		"$min":      m.min,
	}
	return m
}

// modify returns the result of applying update to doc, which is left
// untouched. $setOnInsert only applies when inserting is set. An update
// without operators replaces the document, keeping its _id.
func (m *modifier) modify(doc bson.M, update bson.M, inserting bool) (bson.M, error) {
	dollar := 0
	for k := range update {
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	if dollar > 0 && dollar != len(update) {
		return nil, ErrMixedOperators
	}

	if dollar == 0 {
		res := normalizeDoc(update)
		if id, ok := doc["_id"]; ok {
			if newID, ok := res["_id"]; ok && !Equal(id, newID) {
				return nil, ErrImmutableID
			}
			res["_id"] = id
		}
		return res, nil
	}

	res := normalizeDoc(doc)
	for _, name := range slices.Sorted(maps.Keys(update)) {
		args, ok := structure.ToMap(update[name])
		if !ok {
			return nil, ErrNonObject
		}
		fn, ok := m.mods[name]
		if name == "$setOnInsert" {
			if !inserting {
				continue
			}
			fn, ok = set, true
		}
		if !ok {
			return nil, ErrUnknownModifier{Name: name}
		}
		for _, path := range slices.Sorted(maps.Keys(args)) {
			if err := fn(res, path, normalize(args[path])); err != nil {
				return nil, fmt.Errorf("modifying field %q: %w", path, err)
			}
		}
	}

	if id, ok := doc["_id"]; ok && !Equal(id, res["_id"]) {
		return nil, ErrImmutableID
	}
	return res, nil
}

func (m *modifier) unset(doc bson.M, path string, _ any) error {
	unset(doc, path)
	return nil
}

func (m *modifier) inc(doc bson.M, path string, v any) error {
	if !structure.IsNumber(v) {
		return ErrModArgType{Mod: "$inc", Want: "number", Actual: v}
	}
	cur, ok := get(doc, path)
	if !ok || cur == nil {
		return set(doc, path, v)
	}
	if !structure.IsNumber(cur) {
		return ErrModFieldType{Mod: "$inc", Want: "number", Actual: cur}
	}
	return set(doc, path, add(cur, v))
}

// add keeps integer sums integral.
func add(a, b any) any {
	if isFloat(a) || isFloat(b) {
		fa, _ := structure.AsFloat(a)
		fb, _ := structure.AsFloat(b)
		return fa + fb
	}
	ia, _ := structure.AsInteger(a)
	ib, _ := structure.AsInteger(b)
	return ia + ib
}

func isFloat(v any) bool {
	switch v.(type) {
	case float32, float64:
		return true
	}
	return false
}

func (m *modifier) array(doc bson.M, mod, path string) (bson.A, error) {
	cur, ok := get(doc, path)
	if !ok || cur == nil {
		return bson.A{}, nil
	}
	l, ok := cur.(bson.A)
	if !ok {
		return nil, ErrModFieldType{Mod: mod, Want: "array", Actual: cur}
	}
	return l, nil
}

// each returns the items of a {$each: [...]} argument, or the argument itself.
func each(mod string, v any) (bson.A, error) {
	d, ok := v.(bson.M)
	if !ok {
		return bson.A{v}, nil
	}
	items, ok := d["$each"]
	if !ok {
		return bson.A{v}, nil
	}
	l, ok := items.(bson.A)
	if !ok {
		return nil, ErrModArgType{Mod: mod, Want: "array", Actual: items}
	}
	return l, nil
}

func (m *modifier) push(doc bson.M, path string, v any) error {
	l, err := m.array(doc, "$push", path)
	if err != nil {
		return err
	}
	items, err := each("$push", v)
	if err != nil {
		return err
	}
	res := append(slices.Clone(l), items...)
	if d, ok := v.(bson.M); ok {
		if s, ok := d["$slice"]; ok {
			n, ok := structure.AsInteger(s)
			if !ok {
				return ErrModArgType{Mod: "$slice", Want: "integer", Actual: s}
			}
			if n >= 0 {
				res = res[:min(n, len(res))]
			} else {
				res = res[len(res)+max(n, -len(res)):]
			}
		}
	}
	return set(doc, path, res)
}

func (m *modifier) addToSet(doc bson.M, path string, v any) error {
	l, err := m.array(doc, "$addToSet", path)
	if err != nil {
		return err
	}
	items, err := each("$addToSet", v)
	if err != nil {
		return err
	}
	res := slices.Clone(l)
	for _, item := range items {
		if !slices.ContainsFunc(res, func(e any) bool { return Equal(e, item) }) {
			res = append(res, item)
		}
	}
	return set(doc, path, res)
}

func (m *modifier) pullAll(doc bson.M, path string, v any) error {
	remove, ok := v.(bson.A)
	if !ok {
		return ErrModArgType{Mod: "$pullAll", Want: "array", Actual: v}
	}
	cur, ok := get(doc, path)
	if !ok {
		return nil
	}
	l, ok := cur.(bson.A)
	if !ok {
		return ErrModFieldType{Mod: "$pullAll", Want: "array", Actual: cur}
	}
	res := make(bson.A, 0, len(l))
	for _, item := range l {
		if !slices.ContainsFunc(remove, func(r any) bool { return Equal(r, item) }) {
			res = append(res, item)
		}
	}
	return set(doc, path, res)
}

func (m *modifier) pop(doc bson.M, path string, v any) error {
	n, ok := structure.AsInteger(v)
	if !ok {
		return ErrModArgType{Mod: "$pop", Want: "integer", Actual: v}
	}
	cur, ok := get(doc, path)
	if !ok {
		return nil
	}
	l, ok := cur.(bson.A)
	if !ok {
		return ErrModFieldType{Mod: "$pop", Want: "array", Actual: cur}
	}
	if len(l) == 0 {
		return nil
	}
	if n < 0 {
		return set(doc, path, l[1:])
	}
	return set(doc, path, l[:len(l)-1])
}

func (m *modifier) max(doc bson.M, path string, v any) error {
	cur, ok := get(doc, path)
	if !ok || Compare(cur, v) < 0 {
		return set(doc, path, v)
	}
	return nil
}

func (m *modifier) min(doc bson.M, path string, v any) error {
	cur, ok := get(doc, path)
	if !ok || Compare(cur, v) > 0 {
		return set(doc, path, v)
	}
	return nil
}
