package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// paramExpr is a statically known position in the parameter tree, possibly
// followed by a runtime-keyed lookup.
type paramExpr struct {
	path   string
	lookup LookupKind
	key    string
	keyVar string // variable providing the key, when known
}

func (p paramExpr) extend(segment string) paramExpr {
	if p.lookup != LookupNone {
		return p
	}
	if p.path == "" {
		p.path = segment
	} else {
		p.path += "." + segment
	}
	return p
}

var (
	aggregators     = map[string]bool{"add": true, "aggr": true}
	variableGetters = map[string]bool{"variable": true, "get_variable": true}
	paramGetters    = map[string]bool{"parameter": true, "get_parameter": true}
	listFormulas    = map[string]bool{"sum_of_variables": true, "add_variables": true}
)

// visitor walks one variable class and records what it references.
type visitor struct {
	src      []byte
	opts     *Options
	refs     *refBuilder
	sc       *scope
	entity   string // entity argument of the current formula
	paramsFn string // parameters argument of the current formula
	attr     string // attribute or formula being visited, for diagnostics
	skip     map[nodeKey]bool
}

func newVisitor(src []byte, opts *Options, refs *refBuilder, module *scope) *visitor {
	return &visitor{
		src:      src,
		opts:     opts,
		refs:     refs,
		sc:       module,
		paramsFn: "parameters",
		skip:     make(map[nodeKey]bool),
	}
}

func (v *visitor) visitClass(class *sitter.Node) {
	for _, stmt := range namedChildren(class.ChildByFieldName("body")) {
		if a := assignmentOf(stmt); a != nil {
			v.classAttribute(a)
			continue
		}
		fn := definitionOf(stmt)
		if fn.Type() == "function_definition" && isFormulaName(text(fn.ChildByFieldName("name"), v.src)) {
			v.visitFormula(fn)
		}
	}
}

func (v *visitor) classAttribute(a *sitter.Node) {
	left, right := a.ChildByFieldName("left"), a.ChildByFieldName("right")
	if left == nil || right == nil || left.Type() != "identifier" {
		return
	}
	name := text(left, v.src)
	v.attr = name
	switch name {
	case "adds":
		v.nameList(right, RoleAdds)
	case "subtracts":
		v.nameList(right, RoleSubtracts)
	case "defined_for":
		conds := definedFor(newEvaluator(v.src, v.sc), right, v.src)
		if len(conds) == 0 {
			v.refs.unresolved(name, compact(text(right, v.src)), "applicability condition is not static")
		}
		for _, c := range conds {
			if c.constant {
				v.refs.addVariable(VariableReference{Name: c.name, Role: RoleDefinedFor, Constant: true})
				continue
			}
			v.refs.addName(c.name, RoleDefinedFor)
		}
	case "formula":
		// formula = sum_of_variables([...])
		if right.Type() != "call" {
			return
		}
		fn := right.ChildByFieldName("function")
		if fn == nil || !listFormulas[text(fn, v.src)] {
			return
		}
		if args := positionalArgs(right); len(args) > 0 {
			v.nameList(args[0], RoleAdds)
		}
	}
}

// nameList records every name of a statically evaluated list.
func (v *visitor) nameList(n *sitter.Node, role VariableRole) {
	res := newEvaluator(v.src, v.sc).resolve(n)
	for _, name := range res.Values {
		v.refs.addName(name, role)
	}
	if res.Partial() {
		v.refs.unresolved(v.attr, compact(text(n, v.src)), res.Note)
	}
}

func (v *visitor) visitFormula(fn *sitter.Node) {
	var args []string
	for _, p := range namedChildren(fn.ChildByFieldName("parameters")) {
		switch p.Type() {
		case "identifier":
			args = append(args, text(p, v.src))
		case "typed_parameter", "default_parameter", "typed_default_parameter":
			if id := firstIdentifier(p); id != nil {
				args = append(args, text(id, v.src))
			}
		}
	}

	fv := *v
	fv.sc = newScope(v.sc)
	fv.attr = text(fn.ChildByFieldName("name"), v.src)
	fv.entity = ""
	fv.paramsFn = "parameters"
	if len(args) > 0 {
		fv.entity = args[0]
	}
	if len(args) > 2 {
		fv.paramsFn = args[2]
	}
	for _, a := range args {
		fv.sc.bind(a, nil, nil, "")
	}
	fv.walk(fn.ChildByFieldName("body"))
}

func firstIdentifier(n *sitter.Node) *sitter.Node {
	if name := n.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
		return name
	}
	for _, c := range namedChildren(n) {
		if c.Type() == "identifier" {
			return c
		}
	}
	return nil
}

func (v *visitor) walk(n *sitter.Node) {
	if n == nil || v.skip[keyOf(n)] {
		return
	}
	switch n.Type() {
	case "comment":
		return
	case "assignment":
		v.assignment(n)
		return
	case "for_statement":
		v.forStatement(n)
		return
	case "string":
		v.stringRef(n)
	case "call":
		v.call(n)
	}
	v.maybeParam(n)
	for _, c := range namedChildren(n) {
		v.walk(c)
	}
}

func (v *visitor) assignment(n *sitter.Node) {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	if right == nil {
		return
	}
	if left == nil || left.Type() != "identifier" {
		v.walk(left)
		v.walk(right)
		return
	}
	name := text(left, v.src)

	if pe, ok := v.paramExpr(right); ok {
		v.skip[keyOf(right)] = true
		if pe.lookup != LookupNone && pe.path != "" {
			v.refs.addParam(ParameterReference{Path: pe.path, Usage: UsageValue, Lookup: pe.lookup, Key: pe.key})
		}
		if pe.keyVar != "" {
			v.refs.addVariable(VariableReference{Name: pe.keyVar, Role: RoleDepends})
		}
		bound := *pe
		v.sc.bind(name, nil, &bound, "")
		return
	}

	v.walk(right)
	if target := v.entityTarget(right); target != "" {
		v.sc.bind(name, nil, nil, target)
		return
	}
	ev := newEvaluator(v.src, v.sc)
	if val, ok := ev.eval(right); ok && len(ev.notes) == 0 {
		v.sc.bind(name, &val, nil, "")
		return
	}
	v.sc.bind(name, nil, nil, "")
}

// forStatement binds the loop variable to every element of a static
// iterable, so entity lookups inside the loop resolve to each name.
func (v *visitor) forStatement(n *sitter.Node) {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	v.walk(right)
	if left != nil && left.Type() == "identifier" {
		ev := newEvaluator(v.src, v.sc)
		if val, ok := ev.eval(right); ok && len(val.items) > 0 {
			v.sc.bind(text(left, v.src), &strValue{items: val.items}, nil, "")
		} else {
			v.sc.bind(text(left, v.src), nil, nil, "")
		}
	}
	v.walk(n.ChildByFieldName("body"))
	v.walk(n.ChildByFieldName("alternative"))
}

func (v *visitor) stringRef(n *sitter.Node) {
	s, ok := stringLiteral(n, v.src)
	if ok && v.opts.IsParameterPath(s) && !strings.ContainsAny(s, " \t\n") {
		v.refs.addParam(ParameterReference{Path: s, Usage: UsageValue})
	}
}

func (v *visitor) call(n *sitter.Node) {
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return
	}
	args := positionalArgs(n)
	switch fn.Type() {
	case "identifier":
		name := text(fn, v.src)
		switch {
		case aggregators[name]:
			if len(args) >= 3 {
				v.aggregate(args[2], RoleAdds)
			}
		case name == v.entity || v.opts.isEntity(name):
			v.entityCall(args)
		}
	case "attribute":
		method := text(fn.ChildByFieldName("attribute"), v.src)
		switch {
		case variableGetters[method]:
			v.entityCall(args)
		case paramGetters[method]:
			if len(args) > 0 {
				if s, ok := stringLiteral(args[0], v.src); ok {
					v.skip[keyOf(args[0])] = true
					v.refs.addParam(ParameterReference{Path: s, Usage: UsageValue})
				}
			}
		default:
			if root, _, ok := attributeChain(fn, v.src); ok && (root == v.entity || v.opts.isEntity(root)) {
				v.entityCall(args)
			}
		}
	}
}

// aggregate records the list argument of add(entity, period, list).
func (v *visitor) aggregate(list *sitter.Node, role VariableRole) {
	v.skip[keyOf(list)] = true
	if pe, ok := v.paramExpr(list); ok && pe.path != "" {
		v.refs.addParam(ParameterReference{Path: pe.path, Usage: UsageVariableList, Role: role})
		return
	}
	v.nameList(list, role)
}

// entityCall records entity(name, period) style lookups. Calls whose first
// argument is not a name (entity.sum(x), entity.any(x)) are ignored unless
// they clearly look like a lookup with a period argument.
func (v *visitor) entityCall(args []*sitter.Node) {
	if len(args) == 0 {
		return
	}
	first := args[0]
	ev := newEvaluator(v.src, v.sc)
	if val, ok := ev.eval(first); ok && !val.list {
		v.skip[keyOf(first)] = true
		for _, name := range val.items {
			v.refs.addName(name, RoleDepends)
		}
		return
	}
	if len(args) >= 2 && strings.HasPrefix(text(args[1], v.src), "period") && first.Type() != "call" {
		v.refs.unresolved(v.attr, compact(text(first, v.src)), "dynamic variable name")
	}
}

// entityTarget returns the variable looked up by an entity call, if the
// expression is exactly such a call.
func (v *visitor) entityTarget(n *sitter.Node) string {
	if n == nil || n.Type() != "call" {
		return ""
	}
	fn := n.ChildByFieldName("function")
	if fn == nil {
		return ""
	}
	root, _, ok := attributeChain(fn, v.src)
	if !ok || !(root == v.entity || v.opts.isEntity(root)) {
		return ""
	}
	args := positionalArgs(n)
	if len(args) == 0 {
		return ""
	}
	s, ok := stringLiteral(args[0], v.src)
	if !ok || v.opts.IsParameterPath(s) {
		return ""
	}
	return s
}

// maybeParam records the outermost node of a parameter access chain.
func (v *visitor) maybeParam(n *sitter.Node) {
	switch n.Type() {
	case "identifier", "attribute", "subscript", "call", "parenthesized_expression":
	default:
		return
	}
	if v.isNameSlot(n) || v.extendsParam(n) {
		return
	}
	pe, ok := v.paramExpr(n)
	if !ok || pe.path == "" {
		return
	}
	v.refs.addParam(ParameterReference{Path: pe.path, Usage: UsageValue, Lookup: pe.lookup, Key: pe.key})
	if pe.keyVar != "" {
		v.refs.addVariable(VariableReference{Name: pe.keyVar, Role: RoleDepends})
	}
}

// isNameSlot reports identifiers that name something rather than read it.
func (v *visitor) isNameSlot(n *sitter.Node) bool {
	if n.Type() != "identifier" {
		return false
	}
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "attribute":
		return sameNode(parent.ChildByFieldName("attribute"), n)
	case "keyword_argument", "function_definition", "class_definition", "default_parameter", "typed_parameter":
		return sameNode(parent.ChildByFieldName("name"), n) || parent.Type() == "typed_parameter"
	case "parameters", "lambda_parameters":
		return true
	}
	return false
}

// extendsParam reports whether the parent continues the same chain.
func (v *visitor) extendsParam(n *sitter.Node) bool {
	parent := n.Parent()
	if parent == nil {
		return false
	}
	switch parent.Type() {
	case "attribute":
		if !sameNode(parent.ChildByFieldName("object"), n) {
			return false
		}
	case "subscript":
		if !sameNode(parent.ChildByFieldName("value"), n) {
			return false
		}
	case "call":
		if !sameNode(parent.ChildByFieldName("function"), n) {
			return false
		}
	case "parenthesized_expression":
	default:
		return false
	}
	_, ok := v.paramExpr(parent)
	return ok
}

func (v *visitor) paramExpr(n *sitter.Node) (*paramExpr, bool) {
	if n == nil {
		return nil, false
	}
	switch n.Type() {
	case "identifier":
		return v.sc.lookupParam(text(n, v.src))
	case "parenthesized_expression":
		inner := namedChildren(n)
		if len(inner) == 1 {
			return v.paramExpr(inner[0])
		}
	case "call":
		fn := n.ChildByFieldName("function")
		if fn == nil {
			return nil, false
		}
		if fn.Type() == "identifier" && text(fn, v.src) == v.paramsFn && v.paramsFn != "" {
			return &paramExpr{}, true
		}
		if fn.Type() == "attribute" && text(fn.ChildByFieldName("attribute"), v.src) == "calc" {
			base, ok := v.paramExpr(fn.ChildByFieldName("object"))
			if !ok {
				return nil, false
			}
			out := *base
			if out.lookup == LookupNone {
				out.lookup = LookupBracket
				if args := positionalArgs(n); len(args) > 0 {
					out.key, out.keyVar = v.lookupKey(args[0])
				}
			}
			return &out, true
		}
	case "attribute":
		base, ok := v.paramExpr(n.ChildByFieldName("object"))
		if !ok {
			return nil, false
		}
		name := text(n.ChildByFieldName("attribute"), v.src)
		if name == "calc" {
			out := *base
			return &out, true
		}
		out := base.extend(name)
		return &out, true
	case "subscript":
		base, ok := v.paramExpr(n.ChildByFieldName("value"))
		if !ok {
			return nil, false
		}
		out := *base
		if out.lookup != LookupNone {
			return &out, true
		}
		sub := n.ChildByFieldName("subscript")
		if s, ok := stringLiteral(sub, v.src); ok {
			out = out.extend(s)
			return &out, true
		}
		if sub != nil && sub.Type() == "integer" {
			out = out.extend(text(sub, v.src))
			return &out, true
		}
		if dotted, ok := dottedName(sub, v.src); ok && isEnumConstant(dotted) {
			out = out.extend(lastSegment(dotted))
			return &out, true
		}
		out.lookup = LookupMap
		out.key, out.keyVar = v.lookupKey(sub)
		return &out, true
	}
	return nil, false
}

// lookupKey names the runtime key of a bracket or map lookup.
func (v *visitor) lookupKey(n *sitter.Node) (key, keyVar string) {
	if n == nil {
		return "", ""
	}
	if n.Type() == "identifier" {
		name := text(n, v.src)
		if target, ok := v.sc.lookupVar(name); ok {
			return target, target
		}
		return name, ""
	}
	if target := v.entityTarget(n); target != "" {
		return target, target
	}
	return compact(text(n, v.src)), ""
}
