package extractor

import (
	"context"
	"fmt"
	"os"

	sitter "github.com/smacker/go-tree-sitter"
)

// Extractor orchestrates the extraction process using language-specific extractors.
type Extractor struct {
	langExtractor LanguageExtractor
	langName      string
	opts          Options
}

// NewExtractor creates a new extractor for a given rule language.
func NewExtractor(lang string, opts Options) (*Extractor, error) {
	var langExt LanguageExtractor
	switch lang {
	case "python":
		langExt = &PythonExtractor{}
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	if len(opts.ParameterPrefixes) == 0 {
		opts.ParameterPrefixes = DefaultOptions().ParameterPrefixes
	}
	return &Extractor{langExtractor: langExt, langName: lang, opts: opts}, nil
}

// Options returns the classification options in effect.
func (e *Extractor) Options() Options {
	return e.opts
}

// IsParameterPath reports whether a name addresses the parameter tree.
func (e *Extractor) IsParameterPath(name string) bool {
	return e.opts.IsParameterPath(name)
}

// ExtractFromFile parses a single source file and extracts its declarations.
func (e *Extractor) ExtractFromFile(path string) (*FileResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}
	return e.ExtractFromSource(path, src)
}

// ExtractFromSource extracts variable and enum declarations from source text.
func (e *Extractor) ExtractFromSource(path string, src []byte) (*FileResult, error) {
	tree, err := e.parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	file := &SourceFile{
		Path:   path,
		Source: src,
		Hash:   HashSource(src),
		scope:  moduleScope(root, src),
	}

	query, err := sitter.NewQuery([]byte(e.langExtractor.GetQuery()), e.langExtractor.GetLanguage())
	if err != nil {
		return nil, fmt.Errorf("failed to create query: %w", err)
	}
	defer query.Close()

	qc := sitter.NewQueryCursor()
	defer qc.Close()
	qc.Exec(query, root)

	result := &FileResult{Filepath: path}
	for {
		m, ok := qc.NextMatch()
		if !ok {
			break
		}
		for _, c := range m.Captures {
			unit := e.langExtractor.ExtractUnit(query.CaptureNameForId(c.Index), c.Node, file)
			if unit == nil {
				continue
			}
			if unit.Variable != nil {
				result.Variables = append(result.Variables, unit.Variable)
			}
			if unit.Enum != nil {
				result.Enums = append(result.Enums, unit.Enum)
			}
		}
	}

	attachLocalEnums(result)
	return result, nil
}

// Extract derives the reference set of a definition from its source text.
// It never fails: problems are reported as unresolved references.
func (e *Extractor) Extract(def *VariableDefinition) *ReferenceSet {
	b := newRefBuilder(def.Name, &e.opts)
	src := []byte(def.Source)

	tree, err := e.parse(src)
	if err != nil {
		b.unresolved("source", def.Filepath, err.Error())
		return b.result()
	}
	defer tree.Close()

	root := tree.RootNode()
	class := findClass(root, src, def.Name)
	if class == nil {
		b.unresolved("source", def.Name, "class definition not found")
		return b.result()
	}

	v := newVisitor(src, &e.opts, b, moduleScope(root, src))
	v.visitClass(class)
	return b.result()
}

func (e *Extractor) parse(src []byte) (*sitter.Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(e.langExtractor.GetLanguage())
	return parser.ParseCtx(context.Background(), nil, src)
}

func findClass(root *sitter.Node, src []byte, name string) *sitter.Node {
	for _, stmt := range namedChildren(root) {
		def := definitionOf(stmt)
		if def.Type() != "class_definition" {
			continue
		}
		if text(def.ChildByFieldName("name"), src) == name {
			return def
		}
	}
	return nil
}

// moduleScope evaluates top-level string and list constants.
func moduleScope(root *sitter.Node, src []byte) *scope {
	sc := newScope(nil)
	for _, stmt := range namedChildren(root) {
		a := assignmentOf(stmt)
		if a == nil {
			continue
		}
		left := a.ChildByFieldName("left")
		if left == nil || left.Type() != "identifier" {
			continue
		}
		ev := newEvaluator(src, sc)
		if v, ok := ev.eval(a.ChildByFieldName("right")); ok && len(ev.notes) == 0 {
			sc.bind(text(left, src), &v, nil, "")
		}
	}
	return sc
}

func attachLocalEnums(result *FileResult) {
	if len(result.Enums) == 0 {
		return
	}
	byName := make(map[string]*EnumDefinition, len(result.Enums))
	for _, en := range result.Enums {
		byName[en.Name] = en
	}
	for _, v := range result.Variables {
		if en, ok := byName[v.PossibleValues]; ok && len(v.Enum) == 0 {
			v.Enum = append([]EnumValue(nil), en.Values...)
		}
	}
}
