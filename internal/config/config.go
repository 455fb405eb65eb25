// Package config handles loading optimizer configuration from files and the
// environment.
//
// Configuration can be specified in a JSON file named asmopt.json or
// .asmoptrc, or a YAML file named asmopt.yaml or asmopt.yml. The config file
// is searched for in the input's directory and its parents. ASMOPT_*
// environment variables override the file, and CLI flags override both.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/HugoDaniel/asmopt/internal/diagnostic"
)

// Config represents the configuration file structure.
// All fields are optional and will use default values if not specified.
type Config struct {
	// Passes lists the passes to run, in order
	Passes []string `json:"passes,omitempty" yaml:"passes,omitempty"`

	// PreciseF32 starts the run with float32 semantics
	PreciseF32 *bool `json:"preciseF32,omitempty" yaml:"preciseF32,omitempty"`

	// MemSafe replaces eliminate with eliminateMemSafe
	MemSafe *bool `json:"memSafe,omitempty" yaml:"memSafe,omitempty"`

	// Globals maps global names to minified names
	Globals map[string]string `json:"globals,omitempty" yaml:"globals,omitempty"`

	// GlobalsFile names a JSON or YAML file holding the globals table,
	// relative to the config file
	GlobalsFile string `json:"globalsFile,omitempty" yaml:"globalsFile,omitempty"`

	// Emit selects the output format: json or js
	Emit string `json:"emit,omitempty" yaml:"emit,omitempty"`

	// LogLevel is one of debug, info, warn or error
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
}

// ConfigFileNames are the names searched for config files, in order of preference.
var ConfigFileNames = []string{
	"asmopt.json",
	".asmoptrc",
	"asmopt.yaml",
	"asmopt.yml",
}

// DefaultPasses is the pass list used when none is configured.
var DefaultPasses = []string{"asm", "eliminate", "simplifyExpressions", "simplifyIfs", "registerize"}

// Environment variables read by ApplyEnv.
const (
	EnvPasses     = "ASMOPT_PASSES"
	EnvPreciseF32 = "ASMOPT_PRECISE_F32"
	EnvLogLevel   = "ASMOPT_LOG_LEVEL"
	EnvEmit       = "ASMOPT_EMIT"
)

// Load searches for a config file starting from the given directory
// and walking up to parent directories. Returns nil if no config file is found.
func Load(startDir string) (*Config, string, error) {
	dir := startDir
	for {
		for _, name := range ConfigFileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				cfg, err := LoadFile(path)
				return cfg, path, err
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, "", nil
		}
		dir = parent
	}
}

// LoadFile loads configuration from a specific file path. Files ending in
// .yaml or .yml are read as YAML, everything else as JSON. A relative
// GlobalsFile is resolved against the config file's directory.
func LoadFile(path string) (*Config, error) {
	var cfg Config
	if err := decodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.GlobalsFile != "" && !filepath.IsAbs(cfg.GlobalsFile) {
		cfg.GlobalsFile = filepath.Join(filepath.Dir(path), cfg.GlobalsFile)
	}
	return &cfg, nil
}

// LoadGlobals reads a global name table from a JSON or YAML file.
func LoadGlobals(path string) (map[string]string, error) {
	var globals map[string]string
	if err := decodeFile(path, &globals); err != nil {
		return nil, err
	}
	return globals, nil
}

func decodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, v)
	default:
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return &diagnostic.ConfigError{Code: diagnostic.CodeBadConfig, Message: "parsing " + path, Err: err}
	}
	return nil
}

// ApplyEnv overrides fields with any ASMOPT_* environment variables that
// are set. ASMOPT_PASSES is a comma or space separated list.
func (c *Config) ApplyEnv() {
	if env.Has(EnvPasses) {
		c.Passes = SplitPasses(env.Str(EnvPasses))
	}
	if env.Has(EnvPreciseF32) {
		precise := env.Bool(EnvPreciseF32)
		c.PreciseF32 = &precise
	}
	if env.Has(EnvLogLevel) {
		c.LogLevel = env.Str(EnvLogLevel)
	}
	if env.Has(EnvEmit) {
		c.Emit = env.Str(EnvEmit)
	}
}

// SplitPasses splits a pass list written as one string.
func SplitPasses(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
}

// ----------------------------------------------------------------------------
// Resolved Settings
// ----------------------------------------------------------------------------

// Settings is a fully resolved configuration.
type Settings struct {
	Passes     []string
	PreciseF32 bool
	Globals    map[string]string
	Emit       string
	LogLevel   string
}

// ToSettings converts a Config to Settings, using defaults for unset
// fields and loading GlobalsFile. Inline globals win over the file's.
func (c *Config) ToSettings() (Settings, error) {
	s := Settings{
		Passes:   DefaultPasses,
		Emit:     "json",
		LogLevel: "info",
	}

	if len(c.Passes) > 0 {
		s.Passes = c.Passes
	}
	if c.PreciseF32 != nil {
		s.PreciseF32 = *c.PreciseF32
	}
	if c.Emit != "" {
		s.Emit = c.Emit
	}
	if c.LogLevel != "" {
		s.LogLevel = c.LogLevel
	}

	if c.GlobalsFile != "" || len(c.Globals) > 0 {
		s.Globals = make(map[string]string)
	}
	if c.GlobalsFile != "" {
		globals, err := LoadGlobals(c.GlobalsFile)
		if err != nil {
			return s, err
		}
		for name, short := range globals {
			s.Globals[name] = short
		}
	}
	for name, short := range c.Globals {
		s.Globals[name] = short
	}

	if c.MemSafe != nil && *c.MemSafe {
		s.Passes = withMemSafe(s.Passes)
	}
	return s, s.validate()
}

func withMemSafe(passes []string) []string {
	out := make([]string, len(passes))
	for i, name := range passes {
		if name == "eliminate" {
			name = "eliminateMemSafe"
		}
		out[i] = name
	}
	return out
}

func (s Settings) validate() error {
	switch s.Emit {
	case "json", "js":
	default:
		return &diagnostic.ConfigError{Code: diagnostic.CodeBadConfig, Message: fmt.Sprintf("emit must be json or js, got %q", s.Emit)}
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return &diagnostic.ConfigError{Code: diagnostic.CodeBadConfig, Message: fmt.Sprintf("unknown log level %q", s.LogLevel)}
	}
	return nil
}

// MergeOptions carries CLI flags. Zero values mean "not specified".
type MergeOptions struct {
	Passes      []string
	PreciseF32  *bool
	MemSafe     *bool
	GlobalsFile string
	Emit        string
	Verbose     bool
}

// Merge merges CLI options with config file options.
// CLI options override config file options when specified.
func (c *Config) Merge(cli MergeOptions) (Settings, error) {
	merged := *c
	if len(cli.Passes) > 0 {
		merged.Passes = cli.Passes
	}
	if cli.PreciseF32 != nil {
		merged.PreciseF32 = cli.PreciseF32
	}
	if cli.MemSafe != nil {
		merged.MemSafe = cli.MemSafe
	}
	if cli.GlobalsFile != "" {
		merged.GlobalsFile = cli.GlobalsFile
	}
	if cli.Emit != "" {
		merged.Emit = cli.Emit
	}
	if cli.Verbose {
		merged.LogLevel = "debug"
	}
	return merged.ToSettings()
}
