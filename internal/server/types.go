package server

import (
	"time"

	"rulegraph/internal/analysis"
	"rulegraph/internal/generator"
	"rulegraph/internal/graph"
	"rulegraph/internal/resolver"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

type HealthResponse struct {
	Success   bool      `json:"success"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// DatasetInfo describes one configured country.
type DatasetInfo struct {
	Country   string     `json:"country"`
	Label     string     `json:"label"`
	Loaded    bool       `json:"loaded"`
	Origin    string     `json:"origin,omitempty"`
	Variables int        `json:"variables,omitempty"`
	Version   string     `json:"version,omitempty"`
	LoadedAt  *time.Time `json:"loadedAt,omitempty"`
}

type CountriesResponse struct {
	Success   bool          `json:"success"`
	Default   string        `json:"default"`
	Countries []DatasetInfo `json:"countries"`
}

// VariableSummary is one entry of a variable listing or search result.
type VariableSummary struct {
	Name          string `json:"name"`
	Label         string `json:"label"`
	HasParameters bool   `json:"hasParameters"`
}

type VariablesResponse struct {
	Success   bool              `json:"success"`
	Country   string            `json:"country"`
	Variables []VariableSummary `json:"variables"`
	Total     int               `json:"total"`
}

type SearchResponse struct {
	Success bool              `json:"success"`
	Country string            `json:"country"`
	Query   string            `json:"query"`
	Results []VariableSummary `json:"results"`
}

type VariableResponse struct {
	Success  bool                       `json:"success"`
	Country  string                     `json:"country"`
	Variable *generator.VariableDetails `json:"variable"`
}

type GraphResponse struct {
	Success bool                       `json:"success"`
	Country string                     `json:"country"`
	Graph   *generator.RenderableGraph `json:"graph,omitempty"`
	Mermaid string                     `json:"mermaid,omitempty"`
	Stats   graph.Stats                `json:"stats"`
}

// StageInfo is what one parameter source answered for a path.
type StageInfo struct {
	Source string        `json:"source"`
	Kind   resolver.Kind `json:"kind"`
}

type ParameterInfo struct {
	Path        string            `json:"path"`
	Label       string            `json:"label"`
	Description string            `json:"description,omitempty"`
	Unit        string            `json:"unit,omitempty"`
	Value       string            `json:"value"`
	Structure   resolver.Value    `json:"structure"`
	Stages      []StageInfo       `json:"stages"`
	UsedBy      []string          `json:"usedBy"`
	Metadata    resolver.Metadata `json:"metadata"`
}

type ParameterResponse struct {
	Success   bool           `json:"success"`
	Country   string         `json:"country"`
	Parameter *ParameterInfo `json:"parameter"`
}

type ImpactResponse struct {
	Success bool                   `json:"success"`
	Country string                 `json:"country"`
	Impact  *analysis.ImpactReport `json:"impact"`
}

type ReloadResponse struct {
	Success bool        `json:"success"`
	Dataset DatasetInfo `json:"dataset"`
}
