package extractor

import (
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// strValue is a statically known string expression. A list holds its
// elements in order; a non-list holds one or more alternatives (more than
// one when it depends on a loop variable).
type strValue struct {
	items []string
	list  bool
}

func scalar(s string) strValue { return strValue{items: []string{s}} }

// scope holds the static bindings visible at a point in the source.
// A nil entry shadows a binding of the same name in an outer scope.
type scope struct {
	parent *scope
	strs   map[string]*strValue
	params map[string]*paramExpr
	vars   map[string]string // name bound to an entity lookup of this variable
}

func newScope(parent *scope) *scope {
	return &scope{
		parent: parent,
		strs:   make(map[string]*strValue),
		params: make(map[string]*paramExpr),
		vars:   make(map[string]string),
	}
}

func (s *scope) lookupStr(name string) (strValue, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.strs[name]; ok {
			if v == nil {
				return strValue{}, false
			}
			return *v, true
		}
	}
	return strValue{}, false
}

func (s *scope) lookupParam(name string) (*paramExpr, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if p, ok := cur.params[name]; ok {
			return p, p != nil
		}
	}
	return nil, false
}

func (s *scope) lookupVar(name string) (string, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, v != ""
		}
	}
	return "", false
}

// bind records what a name refers to after an assignment, shadowing any
// other kind of binding of the same name.
func (s *scope) bind(name string, str *strValue, param *paramExpr, variable string) {
	s.strs[name] = str
	s.params[name] = param
	s.vars[name] = variable
}

// evaluator statically evaluates string and list-of-string expressions.
type evaluator struct {
	src   []byte
	sc    *scope
	notes []string
}

func newEvaluator(src []byte, sc *scope) *evaluator {
	return &evaluator{src: src, sc: sc}
}

func (e *evaluator) note(format string, args ...any) {
	e.notes = append(e.notes, fmt.Sprintf(format, args...))
}

// resolve evaluates a list-valued expression into a tagged result.
func (e *evaluator) resolve(n *sitter.Node) Resolution {
	e.notes = nil
	v, ok := e.eval(n)
	if !ok {
		return PartiallyResolved(nil, fmt.Sprintf("cannot evaluate %s", compact(text(n, e.src))))
	}
	if len(e.notes) > 0 {
		return PartiallyResolved(v.items, strings.Join(e.notes, "; "))
	}
	return Resolved(v.items)
}

func (e *evaluator) eval(n *sitter.Node) (strValue, bool) {
	if n == nil {
		return strValue{}, false
	}
	switch n.Type() {
	case "string":
		return e.evalString(n)
	case "concatenated_string":
		s, ok := stringLiteral(n, e.src)
		if !ok {
			return strValue{}, false
		}
		return scalar(s), true
	case "parenthesized_expression":
		inner := namedChildren(n)
		if len(inner) != 1 {
			return strValue{}, false
		}
		return e.eval(inner[0])
	case "identifier":
		return e.sc.lookupStr(text(n, e.src))
	case "list", "tuple", "set":
		return e.evalList(n)
	case "binary_operator":
		return e.evalConcat(n)
	case "call":
		return e.evalCall(n)
	case "list_comprehension", "generator_expression", "set_comprehension":
		return e.evalComprehension(n)
	}
	return strValue{}, false
}

func (e *evaluator) evalString(n *sitter.Node) (strValue, bool) {
	shape, ok := shapeOf(n, e.src)
	if !ok {
		return strValue{}, false
	}
	parts := interpolations(n)
	if len(parts) == 0 {
		return scalar(unescape(string(e.src[shape.bodyStart:shape.bodyEnd]))), true
	}
	// f-string: splice evaluated interpolations between literal runs
	out := []string{""}
	pos := shape.bodyStart
	for _, part := range parts {
		lit := unescape(string(e.src[pos:part.StartByte()]))
		expr := part.ChildByFieldName("expression")
		if expr == nil {
			if inner := namedChildren(part); len(inner) > 0 {
				expr = inner[0]
			}
		}
		v, ok := e.eval(expr)
		if !ok || v.list {
			return strValue{}, false
		}
		out = product(appendAll(out, lit), v.items)
		pos = part.EndByte()
	}
	out = appendAll(out, unescape(string(e.src[pos:shape.bodyEnd])))
	return strValue{items: out}, true
}

func (e *evaluator) evalList(n *sitter.Node) (strValue, bool) {
	out := strValue{list: true}
	for _, el := range namedChildren(n) {
		if el.Type() == "list_splat" {
			inner := namedChildren(el)
			if len(inner) == 1 {
				if v, ok := e.eval(inner[0]); ok && v.list {
					out.items = append(out.items, v.items...)
					continue
				}
			}
			e.note("skipped %s", compact(text(el, e.src)))
			continue
		}
		v, ok := e.eval(el)
		if !ok || v.list {
			e.note("skipped %s", compact(text(el, e.src)))
			continue
		}
		out.items = append(out.items, v.items...)
	}
	return out, true
}

func (e *evaluator) evalConcat(n *sitter.Node) (strValue, bool) {
	op := n.ChildByFieldName("operator")
	if op == nil || text(op, e.src) != "+" {
		return strValue{}, false
	}
	l, ok := e.eval(n.ChildByFieldName("left"))
	if !ok {
		return strValue{}, false
	}
	r, ok := e.eval(n.ChildByFieldName("right"))
	if !ok {
		return strValue{}, false
	}
	switch {
	case l.list && r.list:
		return strValue{items: append(append([]string{}, l.items...), r.items...), list: true}, true
	case !l.list && !r.list:
		return strValue{items: product(l.items, r.items)}, true
	}
	return strValue{}, false
}

var stringMethods = map[string]func(string) string{
	"lower":      strings.ToLower,
	"upper":      strings.ToUpper,
	"strip":      strings.TrimSpace,
	"title":      titleCase,
	"capitalize": capitalize,
}

func (e *evaluator) evalCall(n *sitter.Node) (strValue, bool) {
	fn := n.ChildByFieldName("function")
	args := positionalArgs(n)
	switch {
	case fn != nil && fn.Type() == "attribute":
		method := text(fn.ChildByFieldName("attribute"), e.src)
		transform, known := stringMethods[method]
		if !known || len(args) != 0 {
			return strValue{}, false
		}
		v, ok := e.eval(fn.ChildByFieldName("object"))
		if !ok || v.list {
			return strValue{}, false
		}
		out := make([]string, len(v.items))
		for i, s := range v.items {
			out[i] = transform(s)
		}
		return strValue{items: out}, true
	case fn != nil && fn.Type() == "identifier":
		name := text(fn, e.src)
		if len(args) != 1 {
			return strValue{}, false
		}
		v, ok := e.eval(args[0])
		if !ok {
			return strValue{}, false
		}
		switch name {
		case "list", "tuple":
			if v.list {
				return v, true
			}
		case "sorted":
			if v.list {
				items := append([]string{}, v.items...)
				sort.Strings(items)
				return strValue{items: items, list: true}, true
			}
		case "str":
			if !v.list {
				return v, true
			}
		}
	}
	return strValue{}, false
}

func (e *evaluator) evalComprehension(n *sitter.Node) (strValue, bool) {
	body := n.ChildByFieldName("body")
	var clauses []*sitter.Node
	for _, c := range namedChildren(n) {
		if c.Type() == "for_in_clause" || c.Type() == "if_clause" {
			clauses = append(clauses, c)
		}
	}
	if body == nil || len(clauses) == 0 {
		return strValue{}, false
	}
	out := strValue{list: true}
	if !e.generate(body, clauses, e.sc, &out) {
		return strValue{}, false
	}
	return out, true
}

func (e *evaluator) generate(body *sitter.Node, clauses []*sitter.Node, sc *scope, out *strValue) bool {
	saved := e.sc
	e.sc = sc
	defer func() { e.sc = saved }()

	if len(clauses) == 0 {
		v, ok := e.eval(body)
		if !ok || v.list {
			return false
		}
		out.items = append(out.items, v.items...)
		return true
	}

	clause := clauses[0]
	if clause.Type() == "if_clause" {
		cond := namedChildren(clause)
		if len(cond) != 1 {
			return false
		}
		keep, ok := e.condition(cond[0])
		if !ok {
			e.note("filter %s is not statically determinable", compact(text(cond[0], e.src)))
			return false
		}
		if !keep {
			return true
		}
		return e.generate(body, clauses[1:], sc, out)
	}

	left := clause.ChildByFieldName("left")
	if left == nil || left.Type() != "identifier" {
		return false
	}
	iter, ok := e.eval(clause.ChildByFieldName("right"))
	if !ok {
		return false
	}
	name := text(left, e.src)
	for _, item := range iter.items {
		inner := newScope(sc)
		v := scalar(item)
		inner.bind(name, &v, nil, "")
		if !e.generate(body, clauses[1:], inner, out) {
			return false
		}
	}
	return true
}

// condition evaluates simple comparison filters against loop variables.
func (e *evaluator) condition(n *sitter.Node) (bool, bool) {
	switch n.Type() {
	case "parenthesized_expression":
		inner := namedChildren(n)
		if len(inner) == 1 {
			return e.condition(inner[0])
		}
	case "not_operator":
		arg := n.ChildByFieldName("argument")
		if b, ok := e.condition(arg); ok {
			return !b, true
		}
	case "boolean_operator":
		l, lok := e.condition(n.ChildByFieldName("left"))
		r, rok := e.condition(n.ChildByFieldName("right"))
		if !lok || !rok {
			return false, false
		}
		if text(n.ChildByFieldName("operator"), e.src) == "and" {
			return l && r, true
		}
		return l || r, true
	case "comparison_operator":
		operands := namedChildren(n)
		if len(operands) != 2 {
			return false, false
		}
		op := compact(string(e.src[operands[0].EndByte():operands[1].StartByte()]))
		l, ok := e.eval(operands[0])
		if !ok || l.list || len(l.items) != 1 {
			return false, false
		}
		r, ok := e.eval(operands[1])
		if !ok {
			return false, false
		}
		return compare(l.items[0], op, r)
	}
	return false, false
}

func compare(left, op string, right strValue) (bool, bool) {
	switch op {
	case "==", "!=":
		if right.list || len(right.items) != 1 {
			return false, false
		}
		return (left == right.items[0]) == (op == "=="), true
	case "in", "not in":
		var found bool
		if right.list {
			for _, item := range right.items {
				if item == left {
					found = true
					break
				}
			}
		} else if len(right.items) == 1 {
			found = strings.Contains(right.items[0], left)
		} else {
			return false, false
		}
		return found == (op == "in"), true
	}
	return false, false
}

func product(prefixes, suffixes []string) []string {
	out := make([]string, 0, len(prefixes)*len(suffixes))
	for _, p := range prefixes {
		for _, s := range suffixes {
			out = append(out, p+s)
		}
	}
	return out
}

func appendAll(prefixes []string, suffix string) []string {
	out := make([]string, len(prefixes))
	for i, p := range prefixes {
		out[i] = p + suffix
	}
	return out
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// compact collapses whitespace so source fragments fit on one line.
func compact(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
