package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

const parameterSchemaURL = "rulegraph://parameter.schema.json"

// parameterSchema describes the documents BuildTree understands. Keys it
// does not name are child parameters and stay unconstrained.
const parameterSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "dated": {
      "type": "object",
      "propertyNames": {"pattern": "^[0-9]{4}-[0-9]{2}-[0-9]{2}$"}
    },
    "series": {
      "anyOf": [
        {"$ref": "#/$defs/dated"},
        {"type": ["number", "boolean", "string", "array", "null"]}
      ]
    },
    "column": {
      "anyOf": [
        {"$ref": "#/$defs/series"},
        {
          "type": "object",
          "required": ["values"],
          "properties": {"values": {"$ref": "#/$defs/dated"}}
        }
      ]
    }
  },
  "type": "object",
  "properties": {
    "description": {"type": "string"},
    "metadata": {
      "type": "object",
      "properties": {
        "unit": {"type": "string"},
        "threshold_unit": {"type": "string"},
        "label": {"type": "string"},
        "period": {"type": "string"},
        "breakdown": {"type": "array", "items": {"type": "string"}}
      }
    },
    "values": {"$ref": "#/$defs/series"},
    "brackets": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "threshold": {"$ref": "#/$defs/column"},
          "amount": {"$ref": "#/$defs/column"},
          "rate": {"$ref": "#/$defs/column"}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(parameterSchemaURL, strings.NewReader(parameterSchema)); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = compiler.Compile(parameterSchemaURL)
	})
	return schema, schemaErr
}

// Problem is one defect found in a parameter document.
type Problem struct {
	File     string `json:"file"`
	Location string `json:"location"`
	Message  string `json:"message"`
}

func (p Problem) String() string {
	if p.Location == "" {
		return fmt.Sprintf("%s: %s", p.File, p.Message)
	}
	return fmt.Sprintf("%s: %s: %s", p.File, p.Location, p.Message)
}

// Lint checks parameter documents against the parameter schema. Problems
// are sorted by file, then location.
func Lint(files []File) ([]Problem, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("parameter schema: %w", err)
	}
	var problems []Problem
	for _, f := range files {
		var doc yaml.Node
		if err := yaml.Unmarshal(f.Data, &doc); err != nil {
			problems = append(problems, Problem{File: f.RelPath, Message: err.Error()})
			continue
		}
		if empty(&doc) {
			continue
		}
		if err := s.Validate(plain(&doc)); err != nil {
			var ve *jsonschema.ValidationError
			if !errors.As(err, &ve) {
				return nil, err
			}
			for _, leaf := range leaves(ve) {
				problems = append(problems, Problem{File: f.RelPath, Location: leaf.InstanceLocation, Message: leaf.Message})
			}
		}
	}
	sort.SliceStable(problems, func(i, j int) bool {
		if problems[i].File != problems[j].File {
			return problems[i].File < problems[j].File
		}
		return problems[i].Location < problems[j].Location
	})
	return problems, nil
}

// empty reports a document with no content. Unmarshalling an empty file
// leaves the node zero.
func empty(doc *yaml.Node) bool {
	return doc.Kind == 0 || (doc.Kind == yaml.DocumentNode && len(doc.Content) == 0)
}

func leaves(ve *jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*jsonschema.ValidationError{ve}
	}
	var out []*jsonschema.ValidationError
	for _, c := range ve.Causes {
		out = append(out, leaves(c)...)
	}
	return out
}

// plain converts a YAML node into the JSON data model. Mapping keys are
// kept as written, so dates stay strings.
func plain(n *yaml.Node) any {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return plain(n.Content[0])
	case yaml.AliasNode:
		return plain(n.Alias)
	case yaml.MappingNode:
		m := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			m[n.Content[i].Value] = plain(n.Content[i+1])
		}
		return m
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			items = append(items, plain(c))
		}
		return items
	}
	switch n.ShortTag() {
	case "!!int", "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return f
		}
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b
		}
	case "!!null":
		return nil
	}
	return n.Value
}
