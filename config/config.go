package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"go.uber.org/multierr"

	"github.com/wippyai/luabridge/errors"
	"github.com/wippyai/luabridge/meta"
	"github.com/wippyai/luabridge/naming"
)

// Format is a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatOf picks the format from a file extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	}
	return "", false
}

// Config holds bridge settings loaded from a file.
type Config struct {
	Naming      Naming     `yaml:"naming" toml:"naming"`
	TypeMetakey *bool      `yaml:"type_metakey" toml:"type_metakey"`
	Log         Log        `yaml:"log" toml:"log"`
	Bulk        []BulkRule `yaml:"bulk" toml:"bulk"`
}

// Naming is the file form of naming.Policy. FirstLower defaults to true.
type Naming struct {
	FirstLower       *bool  `yaml:"first_lower" toml:"first_lower"`
	Underscore       bool   `yaml:"underscore" toml:"underscore"`
	Lowercase        bool   `yaml:"lowercase" toml:"lowercase"`
	Scope            string `yaml:"scope" toml:"scope"`
	ApplyToOverrides bool   `yaml:"apply_to_overrides" toml:"apply_to_overrides"`
}

// Log configures the bridge logger.
type Log struct {
	Level       string `yaml:"level" toml:"level"` // debug, info, warn, error or off
	Development bool   `yaml:"development" toml:"development"`
	Encoding    string `yaml:"encoding" toml:"encoding"` // json or console
}

// BulkRule registers a catalog type with every exported method and field,
// minus the skipped ones, under optional renames.
type BulkRule struct {
	Type   string            `yaml:"type" toml:"type"`
	Rename map[string]string `yaml:"rename" toml:"rename"`
	Skip   []string          `yaml:"skip" toml:"skip"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{}
}

// Load reads a YAML or TOML file, chosen by extension.
func Load(path string) (*Config, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, errors.Unsupported(errors.PhaseConfig, fmt.Sprintf("config format of %s", path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindNotFound, err, "cannot read "+path)
	}
	cfg, err := Parse(data, format)
	if err != nil {
		if be, ok := errors.As(err); ok {
			be.Path = append([]string{path}, be.Path...)
		}
		return nil, err
	}
	return cfg, nil
}

// Parse decodes and validates data. Unknown keys are rejected.
func Parse(data []byte, format Format) (*Config, error) {
	cfg := Default()
	switch format {
	case FormatYAML:
		if err := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField()).Decode(cfg); err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse yaml")
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse toml")
		}
		if keys := md.Undecoded(); len(keys) > 0 {
			return nil, errors.InvalidInput(errors.PhaseConfig, fmt.Sprintf("unknown key %s", keys[0]))
		}
	default:
		return nil, errors.Unsupported(errors.PhaseConfig, fmt.Sprintf("config format %q", format))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem in the configuration.
func (c *Config) Validate() error {
	var errs error
	if _, err := naming.ParseScope(c.Naming.Scope); err != nil {
		errs = multierr.Append(errs, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "naming.scope"))
	}
	if _, err := c.level(); err != nil {
		errs = multierr.Append(errs, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log.level"))
	}
	switch c.Log.Encoding {
	case "", "json", "console":
	default:
		errs = multierr.Append(errs, errors.InvalidInput(errors.PhaseConfig,
			fmt.Sprintf("log.encoding: unknown encoding %q", c.Log.Encoding)))
	}

	seen := make(map[string]bool, len(c.Bulk))
	for i, r := range c.Bulk {
		switch {
		case r.Type == "":
			errs = multierr.Append(errs, errors.InvalidInput(errors.PhaseConfig,
				fmt.Sprintf("bulk[%d]: type is required", i)))
		case seen[r.Type]:
			errs = multierr.Append(errs, errors.InvalidInput(errors.PhaseConfig,
				fmt.Sprintf("bulk[%d]: duplicate rule for %s", i, r.Type)))
		}
		seen[r.Type] = true
	}
	return errs
}

// NamingPolicy returns the configured casing policy.
func (c *Config) NamingPolicy() (naming.Policy, error) {
	scope, err := naming.ParseScope(c.Naming.Scope)
	if err != nil {
		return naming.Policy{}, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "naming.scope")
	}
	firstLower := true
	if c.Naming.FirstLower != nil {
		firstLower = *c.Naming.FirstLower
	}
	return naming.Policy{
		FirstLower:       firstLower,
		Underscore:       c.Naming.Underscore,
		Lowercase:        c.Naming.Lowercase,
		ApplyToOverrides: c.Naming.ApplyToOverrides,
		Scope:            scope,
	}, nil
}

// Metakey reports whether metatables carry __type. Defaults to true.
func (c *Config) Metakey() bool {
	return c.TypeMetakey == nil || *c.TypeMetakey
}

// Rule returns the bulk rule for a catalog type name.
func (c *Config) Rule(typeName string) (BulkRule, bool) {
	for _, r := range c.Bulk {
		if r.Type == typeName {
			return r, true
		}
	}
	return BulkRule{}, false
}

// Filter turns the rule into a registration filter.
func (r BulkRule) Filter() meta.Filter {
	skip := make(map[string]bool, len(r.Skip))
	for _, s := range r.Skip {
		skip[s] = true
	}
	return func(native string) (string, bool) {
		if skip[native] {
			return "", false
		}
		return r.Rename[native], true
	}
}
