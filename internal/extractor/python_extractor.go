package extractor

import (
	"strings"
	"unicode"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// PythonExtractor implements LanguageExtractor for rule modules written as
// Python classes deriving from Variable or Enum.
type PythonExtractor struct{}

func (p *PythonExtractor) GetLanguage() *sitter.Language {
	return python.GetLanguage()
}

func (p *PythonExtractor) GetQuery() string {
	return `(class_definition) @class`
}

func (p *PythonExtractor) ExtractUnit(captureName string, node *sitter.Node, file *SourceFile) *Unit {
	if captureName != "class" || !isTopLevel(node) {
		return nil
	}
	switch classKind(node, file.Source) {
	case "variable":
		return &Unit{Variable: p.extractVariable(node, file)}
	case "enum":
		return &Unit{Enum: p.extractEnum(node, file)}
	}
	return nil
}

func isTopLevel(class *sitter.Node) bool {
	parent := class.Parent()
	if parent != nil && parent.Type() == "decorated_definition" {
		parent = parent.Parent()
	}
	return parent != nil && parent.Type() == "module"
}

// classKind inspects the base classes: Variable or Enum, possibly qualified.
func classKind(class *sitter.Node, src []byte) string {
	for _, base := range namedChildren(class.ChildByFieldName("superclasses")) {
		name, ok := dottedName(base, src)
		if !ok {
			continue
		}
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		switch name {
		case "Variable":
			return "variable"
		case "Enum":
			return "enum"
		}
	}
	return ""
}

func (p *PythonExtractor) extractVariable(class *sitter.Node, file *SourceFile) *VariableDefinition {
	src := file.Source
	def := &VariableDefinition{
		Name:        text(class.ChildByFieldName("name"), src),
		Filepath:    file.Path,
		StartLine:   int(class.StartPoint().Row) + 1,
		EndLine:     int(class.EndPoint().Row) + 1,
		Source:      string(src),
		ContentHash: file.Hash,
	}

	ev := newEvaluator(src, file.scope)
	for _, stmt := range namedChildren(class.ChildByFieldName("body")) {
		if a := assignmentOf(stmt); a != nil {
			left, right := a.ChildByFieldName("left"), a.ChildByFieldName("right")
			if left == nil || right == nil || left.Type() != "identifier" {
				continue
			}
			switch text(left, src) {
			case "label":
				def.Label = scalarText(ev, right)
			case "documentation":
				def.Documentation = strings.TrimSpace(scalarText(ev, right))
			case "entity":
				def.Entity = entityID(lastSegment(text(right, src)))
			case "value_type":
				def.ValueType = valueTypeOf(text(right, src))
			case "definition_period":
				def.DefinitionPeriod = strings.ToLower(lastSegment(scalarOrText(ev, right, src)))
			case "unit":
				def.Unit = unitOf(ev, right, src)
			case "adds":
				def.Adds = ev.resolve(right).Values
			case "subtracts":
				def.Subtracts = ev.resolve(right).Values
			case "defined_for":
				for _, c := range definedFor(ev, right, src) {
					def.DefinedFor = append(def.DefinedFor, c.name)
				}
			case "possible_values":
				def.PossibleValues = lastSegment(text(right, src))
			case "formula":
				def.HasFormula = true
			}
			continue
		}
		fn := definitionOf(stmt)
		if fn.Type() == "function_definition" && isFormulaName(text(fn.ChildByFieldName("name"), src)) {
			def.HasFormula = true
		}
	}
	if def.PossibleValues != "" && def.ValueType == "" {
		def.ValueType = ValueEnumeration
	}
	return def
}

func (p *PythonExtractor) extractEnum(class *sitter.Node, file *SourceFile) *EnumDefinition {
	src := file.Source
	en := &EnumDefinition{
		Name:     text(class.ChildByFieldName("name"), src),
		Filepath: file.Path,
	}
	for _, stmt := range namedChildren(class.ChildByFieldName("body")) {
		a := assignmentOf(stmt)
		if a == nil {
			continue
		}
		left := a.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			continue
		}
		constant := text(left, src)
		if strings.HasPrefix(constant, "_") {
			continue
		}
		label, ok := stringLiteral(a.ChildByFieldName("right"), src)
		if !ok {
			label = constant
		}
		en.Values = append(en.Values, EnumValue{Constant: constant, Label: label})
	}
	return en
}

func isFormulaName(name string) bool {
	return strings.HasPrefix(name, "formula")
}

// scalarText evaluates a string-valued attribute, falling back to nothing.
func scalarText(ev *evaluator, n *sitter.Node) string {
	if s, ok := stringLiteral(n, ev.src); ok {
		return s
	}
	if v, ok := ev.eval(n); ok && !v.list && len(v.items) == 1 {
		return v.items[0]
	}
	return ""
}

func scalarOrText(ev *evaluator, n *sitter.Node, src []byte) string {
	if s := scalarText(ev, n); s != "" {
		return s
	}
	return text(n, src)
}

func lastSegment(dotted string) string {
	dotted = strings.TrimSpace(dotted)
	if idx := strings.LastIndex(dotted, "."); idx >= 0 {
		return dotted[idx+1:]
	}
	return dotted
}

var entityIDs = map[string]string{
	"Person":      "person",
	"TaxUnit":     "tax_unit",
	"Household":   "household",
	"Family":      "family",
	"SPMUnit":     "spm_unit",
	"MaritalUnit": "marital_unit",
	"BenUnit":     "benunit",
	"State":       "state",
}

// entityID maps an entity class name to its snake-case id.
func entityID(class string) string {
	if id, ok := entityIDs[class]; ok {
		return id
	}
	var sb strings.Builder
	runes := []rune(class)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && unicode.IsLower(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1]) && i > 0 && unicode.IsUpper(runes[i-1])
			if prevLower || nextLower {
				sb.WriteByte('_')
			}
			sb.WriteRune(unicode.ToLower(r))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func valueTypeOf(raw string) ValueType {
	switch lastSegment(raw) {
	case "float":
		return ValueNumeric
	case "int":
		return ValueInteger
	case "bool":
		return ValueBoolean
	case "str":
		return ValueString
	case "Enum":
		return ValueEnumeration
	case "date":
		return ValueDate
	}
	return ValueType(strings.ToLower(lastSegment(raw)))
}

var currencyUnits = map[string]string{
	"USD": "currency-USD",
	"GBP": "currency-GBP",
	"EUR": "currency-EUR",
}

func unitOf(ev *evaluator, n *sitter.Node, src []byte) string {
	if s := scalarText(ev, n); s != "" {
		return s
	}
	name := lastSegment(text(n, src))
	if unit, ok := currencyUnits[name]; ok {
		return unit
	}
	return strings.ToLower(name)
}

type condition struct {
	name     string
	constant bool
}

// definedFor reads an applicability condition: a variable name, an enum
// constant, or a list of either.
func definedFor(ev *evaluator, n *sitter.Node, src []byte) []condition {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "list", "tuple":
		var out []condition
		for _, el := range namedChildren(n) {
			out = append(out, definedFor(ev, el, src)...)
		}
		return out
	case "identifier", "attribute":
		if v, ok := ev.eval(n); ok && !v.list {
			return namesOf(v.items)
		}
		dotted, ok := dottedName(n, src)
		if !ok {
			return nil
		}
		return []condition{{name: dotted, constant: strings.Contains(dotted, ".") || isEnumConstant(dotted)}}
	}
	if v, ok := ev.eval(n); ok {
		return namesOf(v.items)
	}
	return nil
}

func namesOf(items []string) []condition {
	out := make([]condition, 0, len(items))
	for _, s := range items {
		out = append(out, condition{name: s})
	}
	return out
}
