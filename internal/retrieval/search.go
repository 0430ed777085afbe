package retrieval

import (
	"errors"
	"sort"
	"strings"

	"rulegraph/internal/extractor"
)

// ErrQueryTooShort is returned for queries below Config.MinQueryLength.
var ErrQueryTooShort = errors.New("query too short")

// Config controls search ranking and truncation.
type Config struct {
	Limit          int
	MinQueryLength int
}

func DefaultConfig() Config {
	return Config{
		Limit:          50,
		MinQueryLength: 2,
	}
}

// Rank orders match quality; lower is better.
type Rank int

const (
	RankExact Rank = iota
	RankPrefix
	RankNameSubstring
	RankLabelSubstring
	RankTokens
)

// Match is one search hit.
type Match struct {
	Definition *extractor.VariableDefinition
	Rank       Rank
}

// Search ranks definitions against a query: exact name, name prefix,
// substring of the name, substring of the label, then, for queries of
// several words, all words present in name or label. Ties break on shorter
// name, then name.
func Search(defs []*extractor.VariableDefinition, query string, cfg Config) ([]Match, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if len([]rune(q)) < cfg.MinQueryLength {
		return nil, ErrQueryTooShort
	}
	tokens := tokenize(q)

	var matches []Match
	for _, def := range defs {
		if def == nil {
			continue
		}
		if rank, ok := rankOf(def, q, tokens); ok {
			matches = append(matches, Match{Definition: def, Rank: rank})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.Rank != b.Rank {
			return a.Rank < b.Rank
		}
		if len(a.Definition.Name) != len(b.Definition.Name) {
			return len(a.Definition.Name) < len(b.Definition.Name)
		}
		return a.Definition.Name < b.Definition.Name
	})

	if cfg.Limit > 0 && len(matches) > cfg.Limit {
		matches = matches[:cfg.Limit]
	}
	return matches, nil
}

func rankOf(def *extractor.VariableDefinition, q string, tokens []string) (Rank, bool) {
	name := strings.ToLower(def.Name)
	label := strings.ToLower(def.Label)
	switch {
	case name == q:
		return RankExact, true
	case strings.HasPrefix(name, q):
		return RankPrefix, true
	case strings.Contains(name, q):
		return RankNameSubstring, true
	case label != "" && strings.Contains(label, q):
		return RankLabelSubstring, true
	}
	if len(tokens) < 2 {
		return 0, false
	}
	for _, tok := range tokens {
		if !strings.Contains(name, tok) && !strings.Contains(label, tok) {
			return 0, false
		}
	}
	return RankTokens, true
}

// tokenize splits on whitespace only, so a snake_case query stays one
// token and matches by substring alone.
func tokenize(q string) []string {
	return strings.Fields(q)
}
