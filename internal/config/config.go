package config

import (
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultStopVariables are variables whose definitions pull in large,
// uninteresting subtrees (demographics, filing status, raw income inputs).
var DefaultStopVariables = []string{
	"county_str",
	"state_group_str",
	"is_married",
	"is_child",
	"is_tax_unit_dependent",
	"is_tax_unit_head",
	"is_tax_unit_spouse",
	"monthly_age",
	"is_full_time_student",
	"tax_unit_married",
	"filing_status",
	"immigration_status",
	"employment_income",
	"self_employment_income",
}

type Config struct {
	Server struct {
		Addr  string `yaml:"addr"`
		Watch bool   `yaml:"watch"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
	Graph struct {
		DefaultMaxDepth      int      `yaml:"default_max_depth"`
		DefaultStopVariables []string `yaml:"default_stop_variables"`
		SearchLimit          int      `yaml:"search_limit"`
	} `yaml:"graph"`
	Extractor struct {
		ParameterPrefixes []string `yaml:"parameter_prefixes"`
		EntityNames       []string `yaml:"entity_names"`
	} `yaml:"extractor"`
	Telemetry struct {
		TraceStdout bool `yaml:"trace_stdout"`
	} `yaml:"telemetry"`
	Datasets map[string]Dataset `yaml:"datasets"`
}

// Dataset locates one country's rule corpus. Snapshot, when set, takes
// precedence over the source directories.
type Dataset struct {
	Label          string   `yaml:"label"`
	VariablesDir   string   `yaml:"variables_dir"`
	ParametersDirs []string `yaml:"parameters_dirs"`
	Snapshot       string   `yaml:"snapshot"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Addr = ":5001"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Graph.DefaultMaxDepth = 10
	cfg.Graph.DefaultStopVariables = append([]string(nil), DefaultStopVariables...)
	cfg.Graph.SearchLimit = 50
	cfg.Extractor.ParameterPrefixes = []string{"gov."}
	cfg.Extractor.EntityNames = []string{
		"person", "tax_unit", "household", "family", "spm_unit", "marital_unit", "benunit", "state",
	}
	cfg.Datasets = map[string]Dataset{
		"us": {
			Label:        "United States",
			VariablesDir: "../policyengine-us/policyengine_us/variables",
			ParametersDirs: []string{
				"../policyengine-us/policyengine_us/parameters",
			},
		},
	}
	return &cfg
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config on top of defaults
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with Environment Variables if present
	if addr := os.Getenv("RULEGRAPH_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if level := os.Getenv("RULEGRAPH_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if format := os.Getenv("RULEGRAPH_LOG_FORMAT"); format != "" {
		cfg.Log.Format = format
	}

	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Graph.DefaultMaxDepth <= 0 {
		c.Graph.DefaultMaxDepth = 10
	}
	if c.Graph.SearchLimit <= 0 {
		c.Graph.SearchLimit = 50
	}
	if len(c.Extractor.ParameterPrefixes) == 0 {
		c.Extractor.ParameterPrefixes = []string{"gov."}
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
}

// Countries returns the configured dataset ids in sorted order.
func (c *Config) Countries() []string {
	out := make([]string, 0, len(c.Datasets))
	for id := range c.Datasets {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
