package index

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"path/filepath"
	"sort"

	"rulegraph/internal/extractor"
	"rulegraph/internal/git"
	"rulegraph/internal/retrieval"
)

// Repository is the read-only set of variable definitions of one dataset.
type Repository struct {
	defs    map[string]*extractor.VariableDefinition
	names   []string
	enums   map[string]*extractor.EnumDefinition
	version string
}

// NewRepository indexes parsed files. Files are taken in path order; when a
// name is declared twice the first declaration wins and the rest are
// logged. Enum metadata is linked across files by possible_values.
func NewRepository(files []*extractor.FileResult, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	sorted := append([]*extractor.FileResult(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Filepath < sorted[j].Filepath })

	r := &Repository{
		defs:  make(map[string]*extractor.VariableDefinition),
		enums: make(map[string]*extractor.EnumDefinition),
	}
	for _, f := range sorted {
		for _, en := range f.Enums {
			if _, ok := r.enums[en.Name]; !ok {
				r.enums[en.Name] = en
			}
		}
		for _, def := range f.Variables {
			if prev, ok := r.defs[def.Name]; ok {
				logger.Warn("duplicate variable ignored", "name", def.Name, "kept", prev.Filepath, "ignored", def.Filepath)
				continue
			}
			r.defs[def.Name] = def
			r.names = append(r.names, def.Name)
		}
	}
	sort.Strings(r.names)

	hash := sha256.New()
	for _, name := range r.names {
		def := r.defs[name]
		if def.PossibleValues != "" && len(def.Enum) == 0 {
			if en, ok := r.enums[def.PossibleValues]; ok {
				def.Enum = append([]extractor.EnumValue(nil), en.Values...)
			}
		}
		hash.Write([]byte(name))
		hash.Write([]byte{0})
		hash.Write([]byte(def.ContentHash))
		hash.Write([]byte{0})
	}
	r.version = hex.EncodeToString(hash.Sum(nil)[:8])
	return r
}

// Get returns a definition by name. Absent names are not an error; callers
// treat them as leaves.
func (r *Repository) Get(name string) (*extractor.VariableDefinition, bool) {
	def, ok := r.defs[name]
	return def, ok
}

// All returns every definition sorted by name.
func (r *Repository) All() []*extractor.VariableDefinition {
	out := make([]*extractor.VariableDefinition, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.defs[name])
	}
	return out
}

// Enum returns an enumeration class by name.
func (r *Repository) Enum(name string) (*extractor.EnumDefinition, bool) {
	en, ok := r.enums[name]
	return en, ok
}

// Enums returns every enumeration class sorted by name.
func (r *Repository) Enums() []*extractor.EnumDefinition {
	out := make([]*extractor.EnumDefinition, 0, len(r.enums))
	for _, en := range r.enums {
		out = append(out, en)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Search ranks definitions by name and label.
func (r *Repository) Search(query string, cfg retrieval.Config) ([]retrieval.Match, error) {
	return retrieval.Search(r.All(), query, cfg)
}

func (r *Repository) Len() int {
	return len(r.names)
}

// Version identifies the corpus content: it changes whenever any
// definition's source changes.
func (r *Repository) Version() string {
	return r.version
}

// Changed returns the names of the definitions whose source lines are
// touched by changes, sorted. Deleted files contribute nothing since
// their definitions are no longer in the repository.
func (r *Repository) Changed(changes []git.ChangedFile) []string {
	byPath := make(map[string]git.ChangedFile, len(changes))
	for _, c := range changes {
		if !c.Deleted {
			byPath[filepath.Clean(c.Path)] = c
		}
	}
	var out []string
	for _, name := range r.names {
		def := r.defs[name]
		path, err := filepath.Abs(def.Filepath)
		if err != nil {
			continue
		}
		if c, ok := byPath[path]; ok && c.Touches(def.StartLine, def.EndLine) {
			out = append(out, name)
		}
	}
	return out
}
