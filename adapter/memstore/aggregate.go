package memstore

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrUnknownStage is returned for unsupported aggregation stages.
type ErrUnknownStage struct {
	Stage string
}

// Error implements [error].
func (e ErrUnknownStage) Error() string {
	return fmt.Sprintf("Unrecognized pipeline stage name: '%s'", e.Stage)
}

// ErrUnknownExpression is returned for unsupported aggregation expression or
// accumulator operators.
type ErrUnknownExpression struct {
	Operator string
}

// Error implements [error].
func (e ErrUnknownExpression) Error() string {
	return fmt.Sprintf("Unrecognized expression '%s'", e.Operator)
}

type stageFunc func(docs []bson.M, arg any) ([]bson.M, error)

func (c *Collection) stages() map[string]stageFunc {
	return map[string]stageFunc{
		"$match":   c.matchStage,
		"$sort":    sortStage,
		"$skip":    skipStage,
		"$limit":   limitStage,
		"$project": projectStage,
		"$count":   countStage,
		"$group":   groupStage,
		"$unwind":  unwindStage,
	}
}

func (c *Collection) aggregate(docs []bson.M, pipeline []bson.M) ([]bson.M, error) {
	stages := c.stages()
	for _, stage := range pipeline {
		if len(stage) != 1 {
			return nil, fmt.Errorf("a pipeline stage specification object must contain exactly one field")
		}
		for name, arg := range stage {
			fn, ok := stages[name]
			if !ok {
				return nil, ErrUnknownStage{Stage: name}
			}
			var err error
			if docs, err = fn(docs, normalize(arg)); err != nil {
				return nil, err
			}
		}
	}
	return docs, nil
}

func (c *Collection) matchStage(docs []bson.M, arg any) ([]bson.M, error) {
	filter, ok := arg.(bson.M)
	if !ok {
		return nil, ErrCompArgType{Comp: "$match", Want: "object", Actual: arg}
	}
	m, err := NewMatcher(filter, c.data.textFields())
	if err != nil {
		return nil, err
	}
	res := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		if m.Match(doc) {
			res = append(res, doc)
		}
	}
	return res, nil
}

func sortStage(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := arg.(bson.M)
	if !ok {
		return nil, ErrCompArgType{Comp: "$sort", Want: "object", Actual: arg}
	}
	sortDocs(docs, orderedDoc(spec))
	return docs, nil
}

// sortDocs sorts in place, keeping the order of equal documents.
func sortDocs(docs []bson.M, spec bson.D) {
	if len(spec) == 0 {
		return
	}
	slices.SortStableFunc(docs, func(a, b bson.M) int {
		for _, e := range spec {
			va, ok := get(a, e.Key)
			if !ok {
				va = missing{}
			}
			vb, ok := get(b, e.Key)
			if !ok {
				vb = missing{}
			}
			c := Compare(va, vb)
			if dir, _ := structure.AsInteger(e.Value); dir < 0 {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
}

func skipStage(docs []bson.M, arg any) ([]bson.M, error) {
	n, ok := structure.AsInteger(arg)
	if !ok || n < 0 {
		return nil, ErrCompArgType{Comp: "$skip", Want: "non negative integer", Actual: arg}
	}
	return docs[min(n, len(docs)):], nil
}

func limitStage(docs []bson.M, arg any) ([]bson.M, error) {
	n, ok := structure.AsInteger(arg)
	if !ok || n <= 0 {
		return nil, ErrCompArgType{Comp: "$limit", Want: "positive integer", Actual: arg}
	}
	return docs[:min(n, len(docs))], nil
}

func projectStage(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := arg.(bson.M)
	if !ok {
		return nil, ErrCompArgType{Comp: "$project", Want: "object", Actual: arg}
	}
	res := make([]bson.M, len(docs))
	for n, doc := range docs {
		p, err := project(doc, spec)
		if err != nil {
			return nil, err
		}
		res[n] = p
	}
	return res, nil
}

// project applies an inclusion or exclusion projection. Inclusions may also
// compute fields from expressions.
func project(doc bson.M, spec bson.M) (bson.M, error) {
	if len(spec) == 0 {
		return doc, nil
	}
	exclusion := true
	for k, v := range spec {
		if k != "_id" && (!isFlag(v) || truthy(v)) {
			exclusion = false
		}
	}
	if exclusion {
		res := normalizeDoc(doc)
		for k := range spec {
			unset(res, k)
		}
		return res, nil
	}

	res := bson.M{}
	if id, ok := doc["_id"]; ok {
		if v, given := spec["_id"]; !given || truthy(v) {
			res["_id"] = id
		}
	}
	for k, v := range spec {
		if k == "_id" {
			continue
		}
		if isFlag(v) {
			if !truthy(v) {
				return nil, fmt.Errorf("cannot do exclusion on field %s in inclusion projection", k)
			}
			if val, ok := get(doc, k); ok {
				if err := set(res, k, val); err != nil {
					return nil, err
				}
			}
			continue
		}
		val, err := evaluate(doc, v)
		if err != nil {
			return nil, err
		}
		if err := set(res, k, val); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func isFlag(v any) bool {
	_, isBool := v.(bool)
	return isBool || structure.IsNumber(v)
}

func countStage(docs []bson.M, arg any) ([]bson.M, error) {
	name, ok := arg.(string)
	if !ok || name == "" || strings.HasPrefix(name, "$") || strings.Contains(name, ".") {
		return nil, ErrCompArgType{Comp: "$count", Want: "field name", Actual: arg}
	}
	if len(docs) == 0 {
		return []bson.M{}, nil
	}
	return []bson.M{{name: len(docs)}}, nil
}

func unwindStage(docs []bson.M, arg any) ([]bson.M, error) {
	path, ok := arg.(string)
	if doc, isDoc := arg.(bson.M); isDoc {
		path, ok = doc["path"].(string)
	}
	path, hasPrefix := strings.CutPrefix(path, "$")
	if !ok || !hasPrefix {
		return nil, ErrCompArgType{Comp: "$unwind", Want: "field path", Actual: arg}
	}
	var res []bson.M
	for _, doc := range docs {
		v, found := get(doc, path)
		if !found || v == nil {
			continue
		}
		l, isList := v.(bson.A)
		if !isList {
			res = append(res, doc)
			continue
		}
		for _, item := range l {
			d := normalizeDoc(doc)
			if err := set(d, path, item); err != nil {
				return nil, err
			}
			res = append(res, d)
		}
	}
	return res, nil
}

type group struct {
	id   any
	acc  bson.M
	seen map[string]int
}

func groupStage(docs []bson.M, arg any) ([]bson.M, error) {
	spec, ok := arg.(bson.M)
	if !ok {
		return nil, ErrCompArgType{Comp: "$group", Want: "object", Actual: arg}
	}
	idExpr, ok := spec["_id"]
	if !ok {
		return nil, fmt.Errorf("a group specification must include an _id")
	}

	var groups []*group
	for _, doc := range docs {
		id, err := evaluate(doc, idExpr)
		if err != nil {
			return nil, err
		}
		var g *group
		for _, candidate := range groups {
			if Equal(candidate.id, id) {
				g = candidate
				break
			}
		}
		if g == nil {
			g = &group{id: id, acc: bson.M{}, seen: map[string]int{}}
			groups = append(groups, g)
		}
		for field, accSpec := range spec {
			if field == "_id" {
				continue
			}
			if err := accumulate(g, field, doc, accSpec); err != nil {
				return nil, err
			}
		}
	}

	res := make([]bson.M, len(groups))
	for n, g := range groups {
		out := bson.M{"_id": g.id}
		for field, v := range g.acc {
			if sum, ok := v.(avg); ok {
				if sum.n == 0 {
					out[field] = nil
				} else {
					out[field] = sum.total / float64(sum.n)
				}
				continue
			}
			out[field] = v
		}
		res[n] = out
	}
	return res, nil
}

type avg struct {
	total float64
	n     int
}

func accumulate(g *group, field string, doc bson.M, spec any) error {
	m, ok := spec.(bson.M)
	if !ok || len(m) != 1 {
		return fmt.Errorf("the field '%s' must be an accumulator object", field)
	}
	for op, expr := range m {
		v, err := evaluate(doc, expr)
		if err != nil {
			return err
		}
		first := g.seen[field] == 0
		g.seen[field]++
		cur := g.acc[field]
		switch op {
		case "$sum":
			if first {
				cur = 0
			}
			if structure.IsNumber(v) {
				cur = add(cur, v)
			}
		case "$avg":
			a, _ := cur.(avg)
			if f, ok := structure.AsFloat(v); ok {
				a.total += f
				a.n++
			}
			cur = a
		case "$min":
			if v != nil && (first || cur == nil || Compare(v, cur) < 0) {
				cur = v
			}
		case "$max":
			if v != nil && (first || Compare(v, cur) > 0) {
				cur = v
			}
		case "$first":
			if first {
				cur = v
			}
		case "$last":
			cur = v
		case "$push":
			l, _ := cur.(bson.A)
			cur = append(l, v)
		case "$addToSet":
			l, _ := cur.(bson.A)
			if !slices.ContainsFunc(l, func(e any) bool { return Equal(e, v) }) {
				l = append(l, v)
			}
			cur = l
		default:
			return ErrUnknownExpression{Operator: op}
		}
		g.acc[field] = cur
	}
	return nil
}

// evaluate computes an aggregation expression against doc.
func evaluate(doc bson.M, expr any) (any, error) {
	switch t := expr.(type) {
	case string:
		if path, ok := strings.CutPrefix(t, "$"); ok {
			v, _ := get(doc, path)
			return v, nil
		}
		return t, nil
	case bson.A:
		res := make(bson.A, len(t))
		for n, item := range t {
			v, err := evaluate(doc, item)
			if err != nil {
				return nil, err
			}
			res[n] = v
		}
		return res, nil
	case bson.M:
		if len(t) == 1 {
			for op, arg := range t {
				if strings.HasPrefix(op, "$") {
					return operator(doc, op, arg)
				}
			}
		}
		res := make(bson.M, len(t))
		for k, item := range t {
			v, err := evaluate(doc, item)
			if err != nil {
				return nil, err
			}
			res[k] = v
		}
		return res, nil
	}
	return expr, nil
}

var dateParts = map[string]func(time.Time) int{
	"$year":       func(t time.Time) int { return t.Year() },
	"$month":      func(t time.Time) int { return int(t.Month()) },
	"$dayOfMonth": func(t time.Time) int { return t.Day() },
	"$dayOfYear":  func(t time.Time) int { return t.YearDay() },
	"$dayOfWeek":  func(t time.Time) int { return int(t.Weekday()) + 1 },
	"$hour":       func(t time.Time) int { return t.Hour() },
	"$minute":     func(t time.Time) int { return t.Minute() },
	"$second":     func(t time.Time) int { return t.Second() },
}

func operator(doc bson.M, op string, arg any) (any, error) {
	if part, ok := dateParts[op]; ok {
		v, err := evaluate(doc, arg)
		if err != nil {
			return nil, err
		}
		t, ok := asTime(v)
		if !ok {
			return nil, fmt.Errorf("can't convert from BSON type %T to Date", v)
		}
		return part(t.UTC()), nil
	}
	if op == "$literal" {
		return arg, nil
	}
	return nil, ErrUnknownExpression{Operator: op}
}
