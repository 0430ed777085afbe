package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// nodeKey identifies a node within one tree without relying on wrapper
// pointer identity.
type nodeKey struct {
	start, end uint32
	typ        string
}

func keyOf(n *sitter.Node) nodeKey {
	if n == nil {
		return nodeKey{}
	}
	return nodeKey{n.StartByte(), n.EndByte(), n.Type()}
}

func sameNode(a, b *sitter.Node) bool {
	if a == nil || b == nil {
		return false
	}
	return keyOf(a) == keyOf(b)
}

func text(n *sitter.Node, src []byte) string {
	if n == nil {
		return ""
	}
	return string(src[n.StartByte():n.EndByte()])
}

// namedChildren skips comments, which tree-sitter attaches anywhere.
func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// positionalArgs returns the non-keyword arguments of a call.
func positionalArgs(call *sitter.Node) []*sitter.Node {
	args := call.ChildByFieldName("arguments")
	if args == nil || args.Type() != "argument_list" {
		return nil
	}
	var out []*sitter.Node
	for _, a := range namedChildren(args) {
		if a.Type() == "keyword_argument" {
			continue
		}
		out = append(out, a)
	}
	return out
}

// assignmentOf unwraps `expression_statement > assignment`.
func assignmentOf(stmt *sitter.Node) *sitter.Node {
	if stmt == nil || stmt.Type() != "expression_statement" {
		return nil
	}
	for _, c := range namedChildren(stmt) {
		if c.Type() == "assignment" {
			return c
		}
	}
	return nil
}

// definitionOf unwraps decorated definitions.
func definitionOf(n *sitter.Node) *sitter.Node {
	if n != nil && n.Type() == "decorated_definition" {
		if d := n.ChildByFieldName("definition"); d != nil {
			return d
		}
	}
	return n
}

// attributeChain flattens `a.b.c` into its root identifier and the
// attribute names. ok is false when the chain is not rooted at a plain
// identifier.
func attributeChain(n *sitter.Node, src []byte) (root string, parts []string, ok bool) {
	for n != nil && n.Type() == "attribute" {
		parts = append([]string{text(n.ChildByFieldName("attribute"), src)}, parts...)
		n = n.ChildByFieldName("object")
	}
	if n == nil || n.Type() != "identifier" {
		return "", nil, false
	}
	return text(n, src), parts, true
}

// dottedName renders identifiers and attribute chains as dotted text.
func dottedName(n *sitter.Node, src []byte) (string, bool) {
	root, parts, ok := attributeChain(n, src)
	if !ok {
		return "", false
	}
	return strings.Join(append([]string{root}, parts...), "."), true
}

type stringShape struct {
	prefix     string
	bodyStart  uint32
	bodyEnd    uint32
	formatting bool
}

// shapeOf locates the body of a string literal between its quotes.
func shapeOf(n *sitter.Node, src []byte) (stringShape, bool) {
	raw := text(n, src)
	i := 0
	for i < len(raw) && strings.ContainsRune("rRbBuUfF", rune(raw[i])) {
		i++
	}
	rest := raw[i:]
	quote := ""
	switch {
	case strings.HasPrefix(rest, `"""`), strings.HasPrefix(rest, `'''`):
		quote = rest[:3]
	case strings.HasPrefix(rest, `"`), strings.HasPrefix(rest, `'`):
		quote = rest[:1]
	default:
		return stringShape{}, false
	}
	if len(rest) < 2*len(quote) {
		return stringShape{}, false
	}
	prefix := raw[:i]
	return stringShape{
		prefix:     prefix,
		bodyStart:  n.StartByte() + uint32(i+len(quote)),
		bodyEnd:    n.EndByte() - uint32(len(quote)),
		formatting: strings.ContainsAny(prefix, "fF"),
	}, true
}

// interpolations returns the `{...}` children of an f-string in order.
func interpolations(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	count := int(n.NamedChildCount())
	for i := 0; i < count; i++ {
		c := n.NamedChild(i)
		if c != nil && c.Type() == "interpolation" {
			out = append(out, c)
		}
	}
	return out
}

// stringLiteral returns the value of a plain (non-interpolated) string.
func stringLiteral(n *sitter.Node, src []byte) (string, bool) {
	if n == nil {
		return "", false
	}
	switch n.Type() {
	case "string":
		shape, ok := shapeOf(n, src)
		if !ok || len(interpolations(n)) > 0 {
			return "", false
		}
		return unescape(string(src[shape.bodyStart:shape.bodyEnd])), true
	case "concatenated_string":
		var sb strings.Builder
		for _, part := range namedChildren(n) {
			s, ok := stringLiteral(part, src)
			if !ok {
				return "", false
			}
			sb.WriteString(s)
		}
		return sb.String(), true
	case "parenthesized_expression":
		inner := namedChildren(n)
		if len(inner) == 1 {
			return stringLiteral(inner[0], src)
		}
	}
	return "", false
}

var escapes = strings.NewReplacer(`\"`, `"`, `\'`, `'`, `\\`, `\`, `\n`, "\n", `\t`, "\t")

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	return escapes.Replace(s)
}

// isEnumConstant reports whether a dotted name ends in an UPPER_CASE member
// such as StateCode.CA or filing_status.possible_values.JOINT.
func isEnumConstant(dotted string) bool {
	idx := strings.LastIndex(dotted, ".")
	if idx < 0 || idx == len(dotted)-1 {
		return false
	}
	last := dotted[idx+1:]
	return last == strings.ToUpper(last) && strings.ToLower(last) != last
}
