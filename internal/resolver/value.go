package resolver

import (
	"strings"
	"time"
)

// Kind is the shape a parameter path resolves to.
type Kind string

const (
	KindScalar      Kind = "scalar"
	KindList        Kind = "list"
	KindBrackets    Kind = "brackets"
	KindBreakdown   Kind = "breakdown"
	KindUnavailable Kind = "unavailable"
)

const dateLayout = "2006-01-02"

// Value is a resolved parameter. A missing path resolves to KindUnavailable,
// never to an error.
type Value struct {
	Path     string    `json:"path"`
	Kind     Kind      `json:"kind"`
	Metadata Metadata  `json:"metadata"`
	Series   Series    `json:"series,omitempty"`
	Brackets []Bracket `json:"brackets,omitempty"`
	// Column is set when one bracket column was addressed (thresholds, amounts, rates).
	Column string    `json:"column,omitempty"`
	Keys   []string  `json:"keys,omitempty"`
	Source string    `json:"source,omitempty"` // chain stage that answered
	AsOf   time.Time `json:"-"`

	node *node
}

// Unavailable is the marker for a path that does not resolve.
func Unavailable(path string) Value {
	return Value{Path: path, Kind: KindUnavailable}
}

func (v Value) Available() bool {
	return v.Kind != KindUnavailable
}

// Current returns the entry in effect at AsOf, or the latest entry when
// AsOf is zero.
func (v Value) Current() (Entry, bool) {
	return v.Series.At(v.AsOf)
}

// List returns the current list of names for a list parameter.
func (v Value) List() []string {
	if v.Kind != KindList {
		return nil
	}
	e, ok := v.Current()
	if !ok {
		return nil
	}
	items, _ := e.Value.([]string)
	return items
}

// Child resolves one key of a breakdown.
func (v Value) Child(key string) Value {
	if v.node == nil {
		return Unavailable(v.Path + "." + key)
	}
	c, ok := v.node.children[key]
	if !ok {
		return Unavailable(v.Path + "." + key)
	}
	child := valueOf(v.Path+"."+key, c, v.AsOf)
	child.Metadata = child.Metadata.inherit(v.Metadata)
	return child
}

// At returns the entry in effect at asOf. Undated entries apply always.
func (s Series) At(asOf time.Time) (Entry, bool) {
	if len(s) == 0 {
		return Entry{}, false
	}
	if asOf.IsZero() {
		return s[len(s)-1], true
	}
	cutoff := asOf.Format(dateLayout)
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Date <= cutoff {
			return s[i], true
		}
	}
	return Entry{}, false
}

// Resolve looks up a dotted path. Nested keys descend the tree; a trailing
// thresholds, amounts or rates segment selects one bracket column.
func (t *Tree) Resolve(path string, asOf time.Time) Value {
	if t == nil || path == "" {
		return Unavailable(path)
	}
	n := t.root
	var meta Metadata
	segments := strings.Split(path, ".")
	for i, s := range segments {
		c, ok := n.children[s]
		if ok {
			n = c
			meta = n.meta.inherit(meta)
			continue
		}
		if i == len(segments)-1 && len(n.brackets) > 0 {
			if col := bracketColumn(s); col != "" {
				v := valueOf(strings.Join(segments[:i], "."), n, asOf)
				v.Path = path
				v.Column = col
				v.Metadata = meta
				return v
			}
		}
		return Unavailable(path)
	}
	v := valueOf(path, n, asOf)
	v.Metadata = meta
	return v
}

// inherit fills the unit and period fields a breakdown child leaves empty
// from its parent.
func (m Metadata) inherit(parent Metadata) Metadata {
	if m.Unit == "" {
		m.Unit = parent.Unit
	}
	if m.ThresholdUnit == "" {
		m.ThresholdUnit = parent.ThresholdUnit
	}
	if m.Period == "" {
		m.Period = parent.Period
	}
	return m
}

func bracketColumn(segment string) string {
	switch segment {
	case "thresholds", "threshold":
		return "threshold"
	case "amounts", "amount":
		return "amount"
	case "rates", "rate":
		return "rate"
	}
	return ""
}

func valueOf(path string, n *node, asOf time.Time) Value {
	v := Value{Path: path, Metadata: n.meta, AsOf: asOf, node: n}
	switch {
	case len(n.values) > 0:
		v.Series = n.values
		v.Kind = KindScalar
		if e, ok := n.values.At(time.Time{}); ok {
			if _, isList := e.Value.([]string); isList {
				v.Kind = KindList
			}
		}
	case len(n.brackets) > 0:
		v.Kind = KindBrackets
		v.Brackets = n.brackets
	case len(n.order) > 0:
		v.Kind = KindBreakdown
		v.Keys = n.order
	default:
		v.Kind = KindUnavailable
	}
	return v
}

// ParseDate reads an optional YYYY-MM-DD date; empty yields the zero time.
func ParseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func numberOf(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	}
	return 0, false
}
