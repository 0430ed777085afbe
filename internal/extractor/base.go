package extractor

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Unit is one declaration captured from a source file.
type Unit struct {
	Variable *VariableDefinition
	Enum     *EnumDefinition
}

// SourceFile is a parsed file handed to a language extractor.
type SourceFile struct {
	Path   string
	Source []byte
	Hash   string
	scope  *scope // module-level static bindings
}

// LanguageExtractor defines the interface that each rule-language parser must implement.
type LanguageExtractor interface {
	GetLanguage() *sitter.Language
	GetQuery() string
	ExtractUnit(captureName string, node *sitter.Node, file *SourceFile) *Unit
}

// Options tune how references are classified.
type Options struct {
	// ParameterPrefixes mark dotted names that address the parameter tree.
	ParameterPrefixes []string
	// EntityNames are callable entity roots in formulas, in addition to the
	// formula's own entity argument.
	EntityNames []string
}

func DefaultOptions() Options {
	return Options{
		ParameterPrefixes: []string{"gov."},
		EntityNames: []string{
			"person", "tax_unit", "household", "family", "spm_unit", "marital_unit", "benunit", "state",
		},
	}
}

// IsParameterPath reports whether a dotted name belongs to the parameter
// namespace. Such names are never treated as variables.
func (o *Options) IsParameterPath(name string) bool {
	for _, prefix := range o.ParameterPrefixes {
		if prefix != "" && strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func (o *Options) isEntity(name string) bool {
	for _, e := range o.EntityNames {
		if e == name {
			return true
		}
	}
	return false
}
