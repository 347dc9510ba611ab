package memstore

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/vinicius-lino-figueiredo/docadapter/pkg/structure"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrMixedConditions is returned when an operator document mixes
	// operators and plain fields.
	ErrMixedConditions = errors.New("cannot mix operators and normal fields")
	// ErrTextIndexRequired is returned by $text queries on collections
	// without a text index.
	ErrTextIndexRequired = errors.New("text index required for $text query")
)

// ErrUnknownOperator is returned for unsupported top-level operators.
type ErrUnknownOperator struct {
	Operator string
}

// Error implements [error].
func (e ErrUnknownOperator) Error() string {
	return fmt.Sprintf("unknown top level operator: %s", e.Operator)
}

// ErrUnknownComparison is returned for unsupported field operators.
type ErrUnknownComparison struct {
	Comparison string
}

// Error implements [error].
func (e ErrUnknownComparison) Error() string {
	return fmt.Sprintf("unknown operator: %s", e.Comparison)
}

// ErrCompArgType is returned when an operator argument has an unexpected type.
type ErrCompArgType struct {
	Comp   string
	Want   string
	Actual any
}

// Error implements [error].
func (e ErrCompArgType) Error() string {
	return fmt.Sprintf("%s value should be of type %s, got %T", e.Comp, e.Want, e.Actual)
}

// Logic operators.
const (
	And uint8 = iota
	Or
	Nor
)

// Field operators.
const (
	Eq uint8 = iota
	Ne
	Lt
	Lte
	Gt
	Gte
	In
	Nin
	All
	Exists
	Regex
	ElemMatch
	Not
	Size
	Near
	CenterSphere
	Box
	PolygonWithin
	Intersects
)

// LogicOp combines field rules and nested operators.
type LogicOp struct {
	Type  uint8
	Rules []FieldRule
	Sub   []LogicOp
	Text  *TextSearch
}

// FieldRule holds every condition applied to one field.
type FieldRule struct {
	Path  string
	Addr  []string
	Conds []Cond
}

// Cond is a single operator applied to a field.
type Cond struct {
	Op    uint8
	Val   any
	List  []any
	Re    *regexp.Regexp
	Conds []Cond
	Doc   *LogicOp
	Point [2]float64
	// Radius is the angular distance of sphere operators. Negative means
	// unbounded.
	Radius float64
	Ring   [][2]float64
}

// TextSearch is a compiled $text operator.
type TextSearch struct {
	Terms         []string
	Negated       []string
	CaseSensitive bool
	Fields        []string
}

// Matcher tests documents against a compiled filter.
type Matcher struct {
	root LogicOp
	near *FieldRule
}

// NewMatcher compiles filter. textFields lists the fields covered by the text
// index of the collection, if any.
func NewMatcher(filter bson.M, textFields []string) (*Matcher, error) {
	m := &Matcher{}
	root, err := m.compile(filter, textFields)
	if err != nil {
		return nil, err
	}
	m.root = root
	return m, nil
}

func (m *Matcher) compile(filter bson.M, textFields []string) (LogicOp, error) {
	lo := LogicOp{Type: And}
	for key, value := range filter {
		switch key {
		case "$and", "$or", "$nor":
			sub, err := m.logic(key, value, textFields)
			if err != nil {
				return lo, err
			}
			lo.Sub = append(lo.Sub, sub)
		case "$text":
			t, err := textSearch(value, textFields)
			if err != nil {
				return lo, err
			}
			lo.Text = t
		case "$comment":
		default:
			if strings.HasPrefix(key, "$") {
				return lo, ErrUnknownOperator{Operator: key}
			}
			rule, err := m.fieldRule(key, value)
			if err != nil {
				return lo, err
			}
			lo.Rules = append(lo.Rules, rule)
		}
	}
	return lo, nil
}

func (m *Matcher) logic(name string, v any, textFields []string) (LogicOp, error) {
	types := map[string]uint8{"$and": And, "$or": Or, "$nor": Nor}
	list, ok := structure.ToSlice(v)
	if !ok || len(list) == 0 {
		return LogicOp{}, ErrCompArgType{Comp: name, Want: "non empty array", Actual: v}
	}
	lo := LogicOp{Type: types[name], Sub: make([]LogicOp, 0, len(list))}
	for _, item := range list {
		doc, ok := structure.ToMap(item)
		if !ok {
			return lo, ErrCompArgType{Comp: name, Want: "object", Actual: item}
		}
		sub, err := m.compile(doc, textFields)
		if err != nil {
			return lo, err
		}
		lo.Sub = append(lo.Sub, sub)
	}
	return lo, nil
}

func textSearch(v any, fields []string) (*TextSearch, error) {
	doc, ok := structure.ToMap(v)
	if !ok {
		return nil, ErrCompArgType{Comp: "$text", Want: "object", Actual: v}
	}
	if len(fields) == 0 {
		return nil, ErrTextIndexRequired
	}
	search, ok := doc["$search"].(string)
	if !ok {
		return nil, ErrCompArgType{Comp: "$search", Want: "string", Actual: doc["$search"]}
	}
	t := &TextSearch{Fields: fields}
	t.CaseSensitive, _ = doc["$caseSensitive"].(bool)
	for _, word := range strings.Fields(search) {
		if neg, ok := strings.CutPrefix(word, "-"); ok {
			t.Negated = append(t.Negated, words(neg)...)
			continue
		}
		t.Terms = append(t.Terms, words(word)...)
	}
	return t, nil
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isOperatorDoc(v any) (bson.M, bool, error) {
	doc, ok := v.(bson.M)
	if !ok || len(doc) == 0 {
		return nil, false, nil
	}
	dollar := 0
	for k := range doc {
		if strings.HasPrefix(k, "$") {
			dollar++
		}
	}
	if dollar == 0 {
		return nil, false, nil
	}
	if dollar != len(doc) {
		return nil, false, ErrMixedConditions
	}
	return doc, true, nil
}

func (m *Matcher) fieldRule(path string, v any) (FieldRule, error) {
	rule := FieldRule{Path: path, Addr: split(path)}
	v = normalize(v)
	if re, ok := v.(primitive.Regex); ok {
		r, err := compileRegex(re.Pattern, re.Options)
		if err != nil {
			return rule, err
		}
		rule.Conds = []Cond{{Op: Regex, Re: r}}
		return rule, nil
	}
	doc, ok, err := isOperatorDoc(v)
	if err != nil {
		return rule, err
	}
	if !ok {
		rule.Conds = []Cond{{Op: Eq, Val: v}}
		return rule, nil
	}
	rule.Conds, err = m.conds(doc)
	if err != nil {
		return rule, err
	}
	for _, c := range rule.Conds {
		if c.Op == Near {
			r := rule
			m.near = &r
		}
	}
	return rule, nil
}

func (m *Matcher) conds(doc bson.M) ([]Cond, error) {
	res := make([]Cond, 0, len(doc))
	for key, arg := range doc {
		var c Cond
		var err error
		switch key {
		case "$eq":
			c = Cond{Op: Eq, Val: arg}
		case "$ne":
			c = Cond{Op: Ne, Val: arg}
		case "$lt":
			c = Cond{Op: Lt, Val: arg}
		case "$lte":
			c = Cond{Op: Lte, Val: arg}
		case "$gt":
			c = Cond{Op: Gt, Val: arg}
		case "$gte":
			c = Cond{Op: Gte, Val: arg}
		case "$in", "$nin", "$all":
			c, err = listCond(key, arg)
		case "$exists":
			c = Cond{Op: Exists, Val: truthy(arg)}
		case "$regex":
			options, _ := doc["$options"].(string)
			c, err = regexCond(arg, options)
		case "$options", "$maxDistance":
			continue
		case "$elemMatch":
			c, err = m.elemMatch(arg)
		case "$not":
			c, err = m.not(arg)
		case "$size":
			n, ok := structure.AsInteger(arg)
			if !ok {
				return nil, ErrCompArgType{Comp: "$size", Want: "integer", Actual: arg}
			}
			c = Cond{Op: Size, Val: n}
		case "$nearSphere":
			c, err = nearCond(arg, doc["$maxDistance"])
		case "$geoWithin", "$within":
			c, err = withinCond(key, arg)
		case "$geoIntersects":
			c, err = intersectsCond(arg)
		default:
			return nil, ErrUnknownComparison{Comparison: key}
		}
		if err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	return res, nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	}
	if f, ok := structure.AsFloat(v); ok {
		return f != 0
	}
	return true
}

func listCond(name string, arg any) (Cond, error) {
	ops := map[string]uint8{"$in": In, "$nin": Nin, "$all": All}
	list, ok := arg.(bson.A)
	if !ok {
		return Cond{}, ErrCompArgType{Comp: name, Want: "array", Actual: arg}
	}
	c := Cond{Op: ops[name], List: make([]any, len(list))}
	for n, item := range list {
		if re, ok := item.(primitive.Regex); ok {
			r, err := compileRegex(re.Pattern, re.Options)
			if err != nil {
				return c, err
			}
			c.List[n] = r
			continue
		}
		c.List[n] = item
	}
	return c, nil
}

func regexCond(arg any, options string) (Cond, error) {
	var pattern string
	switch t := arg.(type) {
	case string:
		pattern = t
	case primitive.Regex:
		pattern = t.Pattern
		if options == "" {
			options = t.Options
		}
	default:
		return Cond{}, ErrCompArgType{Comp: "$regex", Want: "string", Actual: arg}
	}
	r, err := compileRegex(pattern, options)
	if err != nil {
		return Cond{}, err
	}
	return Cond{Op: Regex, Re: r}, nil
}

func compileRegex(pattern, options string) (*regexp.Regexp, error) {
	flags := ""
	for _, o := range options {
		switch o {
		case 'i', 'm', 's':
			flags += string(o)
		case 'x':
			pattern = stripExtended(pattern)
		}
	}
	if flags != "" {
		pattern = "(?" + flags + ")" + pattern
	}
	return regexp.Compile(pattern)
}

// stripExtended removes the whitespace and comments ignored by extended
// patterns.
func stripExtended(pattern string) string {
	var b strings.Builder
	escaped, comment := false, false
	for _, r := range pattern {
		switch {
		case comment:
			comment = r != '\n'
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			b.WriteRune(r)
			escaped = true
		case r == '#':
			comment = true
		case unicode.IsSpace(r):
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (m *Matcher) elemMatch(arg any) (Cond, error) {
	doc, ok := structure.ToMap(arg)
	if !ok {
		return Cond{}, ErrCompArgType{Comp: "$elemMatch", Want: "object", Actual: arg}
	}
	ops, isOps, err := isOperatorDoc(doc)
	if err != nil {
		return Cond{}, err
	}
	if isOps {
		conds, err := m.conds(ops)
		return Cond{Op: ElemMatch, Conds: conds}, err
	}
	lo, err := m.compile(doc, nil)
	if err != nil {
		return Cond{}, err
	}
	return Cond{Op: ElemMatch, Doc: &lo}, nil
}

func (m *Matcher) not(arg any) (Cond, error) {
	if re, ok := arg.(primitive.Regex); ok {
		r, err := compileRegex(re.Pattern, re.Options)
		return Cond{Op: Not, Conds: []Cond{{Op: Regex, Re: r}}}, err
	}
	doc, ok, err := isOperatorDoc(arg)
	if err != nil {
		return Cond{}, err
	}
	if !ok {
		return Cond{}, ErrCompArgType{Comp: "$not", Want: "operator object", Actual: arg}
	}
	conds, err := m.conds(doc)
	return Cond{Op: Not, Conds: conds}, err
}

func point(v any) ([2]float64, bool) {
	l, ok := structure.ToSlice(v)
	if !ok || len(l) != 2 {
		return [2]float64{}, false
	}
	lng, ok1 := structure.AsFloat(l[0])
	lat, ok2 := structure.AsFloat(l[1])
	return [2]float64{lng, lat}, ok1 && ok2
}

func nearCond(arg, maxDistance any) (Cond, error) {
	p, ok := point(arg)
	if !ok {
		return Cond{}, ErrCompArgType{Comp: "$nearSphere", Want: "coordinate pair", Actual: arg}
	}
	c := Cond{Op: Near, Point: p, Radius: -1}
	if maxDistance != nil {
		d, ok := structure.AsFloat(maxDistance)
		if !ok {
			return Cond{}, ErrCompArgType{Comp: "$maxDistance", Want: "number", Actual: maxDistance}
		}
		c.Radius = d
	}
	return c, nil
}

func withinCond(name string, arg any) (Cond, error) {
	doc, ok := structure.ToMap(arg)
	if !ok {
		return Cond{}, ErrCompArgType{Comp: name, Want: "object", Actual: arg}
	}
	if sphere, ok := doc["$centerSphere"]; ok {
		l, ok := structure.ToSlice(sphere)
		if !ok || len(l) != 2 {
			return Cond{}, ErrCompArgType{Comp: "$centerSphere", Want: "[point, radius]", Actual: sphere}
		}
		p, ok := point(l[0])
		if !ok {
			return Cond{}, ErrCompArgType{Comp: "$centerSphere", Want: "coordinate pair", Actual: l[0]}
		}
		r := -1.0
		if l[1] != nil {
			if r, ok = structure.AsFloat(l[1]); !ok {
				return Cond{}, ErrCompArgType{Comp: "$centerSphere", Want: "number", Actual: l[1]}
			}
		}
		return Cond{Op: CenterSphere, Point: p, Radius: r}, nil
	}
	if box, ok := doc["$box"]; ok {
		ring, err := points("$box", box)
		if err != nil || len(ring) != 2 {
			return Cond{}, ErrCompArgType{Comp: "$box", Want: "two coordinate pairs", Actual: box}
		}
		return Cond{Op: Box, Ring: ring}, nil
	}
	if polygon, ok := doc["$polygon"]; ok {
		ring, err := points("$polygon", polygon)
		if err != nil {
			return Cond{}, err
		}
		return Cond{Op: PolygonWithin, Ring: ring}, nil
	}
	return Cond{}, ErrUnknownComparison{Comparison: name}
}

func points(name string, v any) ([][2]float64, error) {
	l, ok := structure.ToSlice(v)
	if !ok {
		return nil, ErrCompArgType{Comp: name, Want: "array", Actual: v}
	}
	res := make([][2]float64, len(l))
	for n, item := range l {
		p, ok := point(item)
		if !ok {
			return nil, ErrCompArgType{Comp: name, Want: "coordinate pair", Actual: item}
		}
		res[n] = p
	}
	return res, nil
}

func intersectsCond(arg any) (Cond, error) {
	doc, _ := structure.ToMap(arg)
	geometry, _ := structure.ToMap(doc["$geometry"])
	if geometry["type"] != "Point" {
		return Cond{}, ErrCompArgType{Comp: "$geoIntersects", Want: "Point geometry", Actual: arg}
	}
	p, ok := point(geometry["coordinates"])
	if !ok {
		return Cond{}, ErrCompArgType{Comp: "$geometry", Want: "coordinate pair", Actual: geometry["coordinates"]}
	}
	return Cond{Op: Intersects, Point: p}, nil
}

// Match reports whether doc satisfies the filter.
func (m *Matcher) Match(doc bson.M) bool {
	return matchLogic(doc, m.root)
}

// Distance returns the distance in radians between doc and the point of a
// $nearSphere condition. The boolean result is false when the filter has no
// such condition.
func (m *Matcher) Distance(doc bson.M) (float64, bool) {
	if m.near == nil {
		return 0, false
	}
	var center [2]float64
	for _, c := range m.near.Conds {
		if c.Op == Near {
			center = c.Point
		}
	}
	values, _ := lookup(doc, m.near.Addr)
	best := math.Inf(1)
	for _, v := range values {
		if p, ok := point(v); ok {
			best = math.Min(best, sphereDistance(center, p))
		}
	}
	return best, true
}

func matchLogic(doc bson.M, lo LogicOp) bool {
	switch lo.Type {
	case Or:
		for _, sub := range lo.Sub {
			if matchLogic(doc, sub) {
				return true
			}
		}
		return false
	case Nor:
		for _, sub := range lo.Sub {
			if matchLogic(doc, sub) {
				return false
			}
		}
		return true
	}
	for _, rule := range lo.Rules {
		if !matchRule(doc, rule) {
			return false
		}
	}
	for _, sub := range lo.Sub {
		if !matchLogic(doc, sub) {
			return false
		}
	}
	if lo.Text != nil && !matchText(doc, lo.Text) {
		return false
	}
	return true
}

func matchRule(doc bson.M, rule FieldRule) bool {
	values, found := lookup(doc, rule.Addr)
	for _, c := range rule.Conds {
		if !matchCond(values, found, c) {
			return false
		}
	}
	return true
}

// candidates returns the values and, for lists, their elements.
func candidates(values []any) []any {
	res := make([]any, 0, len(values))
	for _, v := range values {
		res = append(res, v)
		if l, ok := v.(bson.A); ok {
			res = append(res, l...)
		}
	}
	return res
}

func matchCond(values []any, found bool, c Cond) bool {
	switch c.Op {
	case Eq:
		return equals(values, found, c.Val)
	case Ne:
		return !equals(values, found, c.Val)
	case Lt, Lte, Gt, Gte:
		for _, v := range candidates(values) {
			if rank(v) == rank(c.Val) && compareOp(c.Op, Compare(v, c.Val)) {
				return true
			}
		}
		return false
	case In:
		return in(values, found, c.List)
	case Nin:
		return !in(values, found, c.List)
	case All:
		return all(values, c.List)
	case Exists:
		return found == c.Val.(bool)
	case Regex:
		return slicesAny(candidates(values), func(v any) bool {
			s, ok := v.(string)
			return ok && c.Re.MatchString(s)
		})
	case ElemMatch:
		return slicesAny(values, func(v any) bool {
			l, ok := v.(bson.A)
			return ok && slicesAny(l, func(e any) bool { return elemMatches(e, c) })
		})
	case Not:
		for _, sub := range c.Conds {
			if !matchCond(values, found, sub) {
				return true
			}
		}
		return false
	case Size:
		return slicesAny(values, func(v any) bool {
			l, ok := v.(bson.A)
			return ok && len(l) == c.Val.(int)
		})
	case Near, CenterSphere:
		return slicesAny(values, func(v any) bool {
			p, ok := point(v)
			return ok && (c.Radius < 0 || sphereDistance(c.Point, p) <= c.Radius)
		})
	case Box:
		return slicesAny(values, func(v any) bool {
			p, ok := point(v)
			return ok && inBox(p, c.Ring[0], c.Ring[1])
		})
	case PolygonWithin:
		return slicesAny(values, func(v any) bool {
			p, ok := point(v)
			return ok && inPolygon(p, c.Ring)
		})
	case Intersects:
		return slicesAny(values, func(v any) bool {
			ring, ok := polygonRing(v)
			return ok && inPolygon(c.Point, ring)
		})
	}
	return false
}

func elemMatches(e any, c Cond) bool {
	if c.Doc != nil {
		doc, ok := e.(bson.M)
		return ok && matchLogic(doc, *c.Doc)
	}
	for _, sub := range c.Conds {
		if !matchCond([]any{e}, true, sub) {
			return false
		}
	}
	return true
}

func compareOp(op uint8, c int) bool {
	switch op {
	case Lt:
		return c < 0
	case Lte:
		return c <= 0
	case Gt:
		return c > 0
	}
	return c >= 0
}

func equals(values []any, found bool, want any) bool {
	if !found {
		return want == nil
	}
	return slicesAny(candidates(values), func(v any) bool { return Equal(v, want) })
}

func in(values []any, found bool, list []any) bool {
	for _, item := range list {
		if re, ok := item.(*regexp.Regexp); ok {
			if matchCond(values, found, Cond{Op: Regex, Re: re}) {
				return true
			}
			continue
		}
		if equals(values, found, item) {
			return true
		}
	}
	return false
}

func all(values []any, list []any) bool {
	if len(list) == 0 {
		return false
	}
	for _, item := range list {
		if em, ok := item.(bson.M); ok {
			if arg, ok := em["$elemMatch"]; ok {
				c, err := (&Matcher{}).elemMatch(arg)
				if err != nil || !matchCond(values, true, c) {
					return false
				}
				continue
			}
		}
		if !in(values, true, []any{item}) {
			return false
		}
	}
	return true
}

func slicesAny(l []any, fn func(any) bool) bool {
	for _, v := range l {
		if fn(v) {
			return true
		}
	}
	return false
}

func matchText(doc bson.M, t *TextSearch) bool {
	var tokens []string
	for _, field := range t.Fields {
		values, _ := lookup(doc, split(field))
		for _, v := range candidates(values) {
			if s, ok := v.(string); ok {
				tokens = append(tokens, words(s)...)
			}
		}
	}
	has := func(term string) bool {
		for _, tok := range tokens {
			if tok == term || (!t.CaseSensitive && strings.EqualFold(tok, term)) {
				return true
			}
		}
		return false
	}
	for _, term := range t.Negated {
		if has(term) {
			return false
		}
	}
	for _, term := range t.Terms {
		if has(term) {
			return true
		}
	}
	return false
}

const earthRadians = math.Pi / 180

// sphereDistance returns the central angle between two [lng, lat] points.
func sphereDistance(a, b [2]float64) float64 {
	lat1, lat2 := a[1]*earthRadians, b[1]*earthRadians
	dLat := lat2 - lat1
	dLng := (b[0] - a[0]) * earthRadians
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

func inBox(p, a, b [2]float64) bool {
	return p[0] >= math.Min(a[0], b[0]) && p[0] <= math.Max(a[0], b[0]) &&
		p[1] >= math.Min(a[1], b[1]) && p[1] <= math.Max(a[1], b[1])
}

// inPolygon tests p against ring with the even-odd rule. Points on a vertex
// are inside.
func inPolygon(p [2]float64, ring [][2]float64) bool {
	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		a, b := ring[i], ring[j]
		if a == p {
			return true
		}
		if (a[1] > p[1]) != (b[1] > p[1]) &&
			p[0] < (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1])+a[0] {
			inside = !inside
		}
	}
	return inside
}

func polygonRing(v any) ([][2]float64, bool) {
	doc, ok := v.(bson.M)
	if !ok || doc["type"] != "Polygon" {
		return nil, false
	}
	rings, ok := doc["coordinates"].(bson.A)
	if !ok || len(rings) == 0 {
		return nil, false
	}
	ring, err := points("coordinates", rings[0])
	return ring, err == nil
}
