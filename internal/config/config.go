// Package config loads probelog settings from YAML, the environment and
// built-in defaults, and validates the result against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Environment variables that override file settings.
const (
	EnvTraceDir = "PROBELOG_TRACE_DIR"
	EnvCatalog  = "PROBELOG_CATALOG"
	EnvLogLevel = "PROBELOG_LOG_LEVEL"
)

// DefaultDirName is the trace directory created under the user's home.
const DefaultDirName = ".probelog"

// Config is the resolved probelog configuration.
type Config struct {
	// TraceDir is where trace files are created.
	TraceDir string `yaml:"trace_dir" json:"trace_dir"`

	// Catalog is an optional sqlite database that records runs.
	Catalog string `yaml:"catalog" json:"catalog,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Engine EngineConfig `yaml:"engine" json:"engine"`
}

// EngineConfig tunes the ordering engine.
type EngineConfig struct {
	IdleBackoffInitial time.Duration `yaml:"idle_backoff_initial" json:"idle_backoff_initial"`
	IdleBackoffMax     time.Duration `yaml:"idle_backoff_max" json:"idle_backoff_max"`
	StallRetries       int           `yaml:"stall_retries" json:"stall_retries"`
	ShutdownGrace      time.Duration `yaml:"shutdown_grace" json:"shutdown_grace"`
	BufferSize         int           `yaml:"buffer_size" json:"buffer_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		TraceDir: defaultTraceDir(),
		LogLevel: "info",
		Engine: EngineConfig{
			IdleBackoffInitial: time.Millisecond,
			IdleBackoffMax:     50 * time.Millisecond,
			StallRetries:       10,
			ShutdownGrace:      500 * time.Millisecond,
			BufferSize:         64 * 1024,
		},
	}
}

func defaultTraceDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultDirName
	}
	return filepath.Join(home, DefaultDirName)
}

// Load resolves configuration in order: defaults, the YAML file at path (if
// path is non-empty), then environment overrides. The result is validated.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	cfg.TraceDir = expandHome(cfg.TraceDir)
	cfg.Catalog = expandHome(cfg.Catalog)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates without consulting the
// environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	// Strict: a misspelled key is an error, not a silently ignored setting.
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv(EnvTraceDir); ok && v != "" {
		cfg.TraceDir = v
	}
	if v, ok := os.LookupEnv(EnvCatalog); ok {
		cfg.Catalog = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Validate checks cfg against the embedded schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}

// Level returns the slog level for LogLevel.
func (c Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
