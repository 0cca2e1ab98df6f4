// Package config loads the anonymizer configuration file: classification
// rules, transform options, failure mode, and the mapping store path.
// Files are YAML (JSON being a YAML subset, plain JSON configs work too)
// and are validated against an embedded CUE schema before use.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/engine"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/rules"
	"github.com/ShadowStrikeHQ/dso-data-format-anonymizer/internal/transform"
)

//go:embed schema.cue
var schemaCUE string

// Rule is one classification rule as written in the config file.
type Rule struct {
	Pattern string `yaml:"pattern"`
	Type    string `yaml:"type"`
}

// Transforms holds the per-type transform options.
type Transforms struct {
	DatePatterns  []string          `yaml:"date_patterns"`
	TokenPrefixes map[string]string `yaml:"token_prefixes"`
	Redact        string            `yaml:"redact"`
}

// CSV holds options for delimited-text documents.
type CSV struct {
	Delimiter string `yaml:"delimiter"`
}

// Config is the resolved configuration consumed by the engine and the
// document readers.
type Config struct {
	Rules       []Rule     `yaml:"rules"`
	Mode        string     `yaml:"mode"`
	MappingPath string     `yaml:"mapping_path"`
	Transforms  Transforms `yaml:"transforms"`
	CSV         CSV        `yaml:"csv"`
}

// Load reads, schema-validates, and decodes a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes configuration bytes. The source name is used in schema
// error messages.
func Parse(data []byte, source string) (*Config, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", source, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("config %s is empty", source)
	}

	if err := validateSchema(raw, source); err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", source, err)
	}
	return &cfg, nil
}

// validateSchema unifies the decoded document with the embedded CUE
// schema. Wrong types, bad enum values, and missing required fields are
// rejected here before the typed decode.
func validateSchema(raw any, source string) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("internal schema error: %w", err)
	}

	value := ctx.Encode(raw)
	if err := value.Err(); err != nil {
		return fmt.Errorf("config %s: %w", source, err)
	}

	unified := schema.Unify(value)
	// Concrete(true) also catches missing required fields, which unify
	// alone leaves merely incomplete.
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config %s: %s", source, cueerrors.Details(err, nil))
	}
	return nil
}

// EngineOptions translates the file configuration into resolved engine
// options. Persister and logger are supplied by the caller.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.Options{
		Mode: engine.Mode(c.Mode),
		Transforms: transform.Options{
			DatePatterns: c.Transforms.DatePatterns,
			Redact:       transform.RedactPolicy(c.Transforms.Redact),
		},
	}
	for _, r := range c.Rules {
		opts.Rules = append(opts.Rules, rules.Rule{
			Pattern: r.Pattern,
			Type:    rules.SemanticType(r.Type),
		})
	}
	if len(c.Transforms.TokenPrefixes) > 0 {
		opts.Transforms.TokenPrefixes = make(map[rules.SemanticType]string, len(c.Transforms.TokenPrefixes))
		for name, prefix := range c.Transforms.TokenPrefixes {
			opts.Transforms.TokenPrefixes[rules.SemanticType(name)] = prefix
		}
	}
	return opts
}

// CSVDelimiter returns the configured delimiter rune, defaulting to a
// comma. Multi-rune delimiters are rejected.
func (c *Config) CSVDelimiter() (rune, error) {
	if c.CSV.Delimiter == "" {
		return ',', nil
	}
	runes := []rune(c.CSV.Delimiter)
	if len(runes) != 1 {
		return 0, fmt.Errorf("csv delimiter must be a single character, got %q", c.CSV.Delimiter)
	}
	return runes[0], nil
}
