package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is one raw parameter document, addressed relative to its base
// directory (gov/irs/credits/eitc/max.yaml -> gov.irs.credits.eitc.max).
type File struct {
	RelPath string
	Data    []byte
}

// Metadata is the descriptive block attached to a parameter node.
type Metadata struct {
	Unit          string   `json:"unit,omitempty"`
	ThresholdUnit string   `json:"threshold_unit,omitempty"`
	Label         string   `json:"label,omitempty"`
	Period        string   `json:"period,omitempty"`
	Description   string   `json:"description,omitempty"`
	Breakdown     []string `json:"breakdown,omitempty"`
}

// Entry is one dated value. Value holds float64, bool, string or []string.
type Entry struct {
	Date  string `json:"date"`
	Value any    `json:"value"`
}

// Series is a time series sorted oldest to newest.
type Series []Entry

// Bracket is one breakpoint of a bracket schedule.
type Bracket struct {
	Threshold Series `json:"threshold,omitempty"`
	Amount    Series `json:"amount,omitempty"`
	Rate      Series `json:"rate,omitempty"`
}

type node struct {
	meta     Metadata
	values   Series
	brackets []Bracket
	children map[string]*node
	order    []string
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

func (n *node) child(key string) *node {
	if c, ok := n.children[key]; ok {
		return c
	}
	c := newNode()
	n.children[key] = c
	n.order = append(n.order, key)
	return c
}

// Tree is an immutable parameter hierarchy built from YAML documents.
type Tree struct {
	root  *node
	files int
}

// reserved keys never become child nodes
var reserved = map[string]bool{
	"metadata":      true,
	"description":   true,
	"documentation": true,
	"reference":     true,
	"values":        true,
	"brackets":      true,
}

// BuildTree parses parameter documents into a tree. Files that fail to parse
// are skipped; their errors are joined into the returned error while the
// tree holds everything else.
func BuildTree(files []File) (*Tree, error) {
	sorted := append([]File(nil), files...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].RelPath < sorted[j].RelPath })

	t := &Tree{root: newNode()}
	var errs []error
	for _, f := range sorted {
		if err := t.add(f); err != nil {
			errs = append(errs, fmt.Errorf("parameter file %s: %w", f.RelPath, err))
			continue
		}
		t.files++
	}
	return t, errors.Join(errs...)
}

// LoadDir reads every YAML document under dir.
func LoadDir(dir string) ([]File, error) {
	var files []File
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(d.Name())
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, File{RelPath: filepath.ToSlash(rel), Data: data})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load parameters from %s: %w", dir, err)
	}
	return files, nil
}

// LoadTree reads and parses a parameter directory.
func LoadTree(dir string) (*Tree, error) {
	files, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	return BuildTree(files)
}

// Files returns the number of documents in the tree.
func (t *Tree) Files() int {
	return t.files
}

func (t *Tree) add(f File) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(f.Data, &doc); err != nil {
		return err
	}
	if empty(&doc) {
		return nil
	}
	body := &doc
	if body.Kind == yaml.DocumentNode {
		body = body.Content[0]
	}
	if body.Kind != yaml.MappingNode {
		return fmt.Errorf("expected a mapping, got %s", kindName(body.Kind))
	}

	rel := strings.TrimSuffix(strings.TrimSuffix(f.RelPath, ".yaml"), ".yml")
	segments := strings.Split(rel, "/")
	if segments[len(segments)-1] == "index" {
		segments = segments[:len(segments)-1]
	}

	n := t.root
	for _, s := range segments {
		n = n.child(s)
	}
	return fill(n, body)
}

func fill(n *node, m *yaml.Node) error {
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i].Value, m.Content[i+1]
		switch {
		case key == "metadata":
			readMetadata(&n.meta, val)
		case key == "description":
			n.meta.Description = strings.TrimSpace(val.Value)
		case key == "values":
			s, err := readSeries(val)
			if err != nil {
				return fmt.Errorf("values: %w", err)
			}
			n.values = s
		case key == "brackets":
			b, err := readBrackets(val)
			if err != nil {
				return fmt.Errorf("brackets: %w", err)
			}
			n.brackets = b
		case reserved[key]:
		case isDate(key):
			v, err := entryValue(val)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			n.values = insertEntry(n.values, Entry{Date: key, Value: v})
		default:
			c := n.child(key)
			switch val.Kind {
			case yaml.MappingNode:
				if err := fill(c, val); err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
			case yaml.ScalarNode, yaml.SequenceNode:
				v, err := entryValue(val)
				if err != nil {
					return fmt.Errorf("%s: %w", key, err)
				}
				c.values = Series{{Value: v}}
			}
		}
	}
	return nil
}

func readMetadata(meta *Metadata, m *yaml.Node) {
	if m.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(m.Content); i += 2 {
		key, val := m.Content[i].Value, m.Content[i+1]
		switch key {
		case "unit":
			meta.Unit = val.Value
		case "threshold_unit":
			meta.ThresholdUnit = val.Value
		case "label":
			meta.Label = val.Value
		case "period":
			meta.Period = val.Value
		case "breakdown":
			for _, b := range val.Content {
				if b.Kind == yaml.ScalarNode {
					meta.Breakdown = append(meta.Breakdown, b.Value)
				}
			}
		}
	}
}

func readSeries(m *yaml.Node) (Series, error) {
	if m.Kind != yaml.MappingNode {
		v, err := entryValue(m)
		if err != nil {
			return nil, err
		}
		return Series{{Value: v}}, nil
	}
	var s Series
	for i := 0; i+1 < len(m.Content); i += 2 {
		v, err := entryValue(m.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", m.Content[i].Value, err)
		}
		s = insertEntry(s, Entry{Date: m.Content[i].Value, Value: v})
	}
	return s, nil
}

func readBrackets(seq *yaml.Node) ([]Bracket, error) {
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("expected a sequence, got %s", kindName(seq.Kind))
	}
	out := make([]Bracket, 0, len(seq.Content))
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		var b Bracket
		for i := 0; i+1 < len(item.Content); i += 2 {
			key, val := item.Content[i].Value, item.Content[i+1]
			if val.Kind == yaml.MappingNode {
				if values := mappingValue(val, "values"); values != nil {
					val = values
				}
			}
			s, err := readSeries(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			switch key {
			case "threshold":
				b.Threshold = s
			case "amount":
				b.Amount = s
			case "rate":
				b.Rate = s
			}
		}
		out = append(out, b)
	}
	return out, nil
}

// entryValue decodes a dated value: a number, boolean, string, a list of
// scalars, or a mapping carrying a "value" key.
func entryValue(n *yaml.Node) (any, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int", "!!float":
			var f float64
			if err := n.Decode(&f); err != nil {
				return nil, err
			}
			return f, nil
		case "!!bool":
			var b bool
			if err := n.Decode(&b); err != nil {
				return nil, err
			}
			return b, nil
		case "!!null":
			return nil, nil
		}
		return n.Value, nil
	case yaml.SequenceNode:
		items := make([]string, 0, len(n.Content))
		for _, c := range n.Content {
			if c.Kind == yaml.ScalarNode {
				items = append(items, c.Value)
			}
		}
		return items, nil
	case yaml.MappingNode:
		if v := mappingValue(n, "value"); v != nil {
			return entryValue(v)
		}
		return nil, fmt.Errorf("line %d: mapping without a value key", n.Line)
	case yaml.AliasNode:
		return entryValue(n.Alias)
	}
	return nil, fmt.Errorf("line %d: unsupported value", n.Line)
}

func mappingValue(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func insertEntry(s Series, e Entry) Series {
	i := sort.Search(len(s), func(i int) bool { return s[i].Date >= e.Date })
	if i < len(s) && s[i].Date == e.Date {
		s[i] = e
		return s
	}
	s = append(s, Entry{})
	copy(s[i+1:], s[i:])
	s[i] = e
	return s
}

// isDate matches YYYY-MM-DD keys.
func isDate(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i, r := range s {
		if i == 4 || i == 7 {
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	}
	return "document"
}
