// Package config handles Osaurus configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/osaurus/config.yaml, /config/config.yaml,
// /etc/osaurus/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "osaurus", "config.yaml"))
	}

	paths = append(paths, "/config/config.yaml") // Container convention
	paths = append(paths, "/etc/osaurus/config.yaml")
	return paths
}

// searchPathsFunc is indirected so tests can point it at a temp directory
// without racing real config files on the developer/deploy machine.
var searchPathsFunc = DefaultSearchPaths

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches searchPathsFunc() and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	paths := searchPathsFunc()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", paths)
}

// PricingEntry holds per-million-token USD pricing for a model, used by
// internal/usage's ComputeCost to price backend-reported token counts
// when the backend does not report cost directly.
type PricingEntry struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Config holds all Osaurus process configuration, corresponding to the
// persisted options of spec.md §6.2.
type Config struct {
	Port            int      `yaml:"port"`
	ExposeToNetwork bool     `yaml:"exposeToNetwork"`
	AllowedOrigins  []string `yaml:"allowedOrigins"`

	GenTopP             float64 `yaml:"genTopP"`
	GenKVBits           *int    `yaml:"genKVBits"`
	GenKVGroupSize      int     `yaml:"genKVGroupSize"`
	GenQuantizedKVStart int     `yaml:"genQuantizedKVStart"`
	GenMaxKVSize        *int    `yaml:"genMaxKVSize"`
	GenPrefillStepSize  int     `yaml:"genPrefillStepSize"`

	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	// StreamBatchChars, StreamBatchMillis, ToolProbeTokens, and
	// ToolProbeBytes hold the micro-batching and probe-phase thresholds of
	// spec.md §4.5.1-2. They are set from defaults, then overridden by the
	// OSU_* environment variables in applyEnvOverrides.
	StreamBatchChars  int
	StreamBatchMillis int
	ToolProbeTokens   int
	ToolProbeBytes    int

	// Pricing maps model name to USD-per-million-token rates, consulted by
	// internal/usage.ComputeCost when a backend does not report cost
	// directly. Models absent from this table are treated as free.
	Pricing map[string]PricingEntry `yaml:"pricing"`
}

// Host returns the bind address derived from ExposeToNetwork, per
// spec.md §4.8: when exposeToNetwork is set the server binds all
// interfaces, otherwise it binds loopback only.
func (c *Config) Host() string {
	if c.ExposeToNetwork {
		return "0.0.0.0"
	}
	return "127.0.0.1"
}

// Load reads configuration from a YAML file, expands environment
// variables, applies defaults for any unset fields, applies OSU_*
// environment overrides, and validates the result. After Load returns
// successfully, all fields are usable without additional nil/empty checks.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		// Expand environment variables (e.g., ${OSAURUS_DATA_DIR}). This is
		// a convenience for container deployments; the recommended approach
		// is to put values directly in the config file.
		expanded := os.ExpandEnv(string(data))

		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, err
		}
	}

	cfg.applyDefaults()
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// applyDefaults fills in zero-value fields with sensible defaults.
// Called automatically by Load. After this, callers can read any field
// without checking for empty strings or zero values.
func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 1337
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	if c.GenTopP == 0 {
		c.GenTopP = 1.0
	}
	if c.GenKVGroupSize == 0 {
		c.GenKVGroupSize = 64
	}
	if c.GenPrefillStepSize == 0 {
		c.GenPrefillStepSize = 512
	}
	if c.StreamBatchChars == 0 {
		c.StreamBatchChars = 256
	}
	if c.StreamBatchMillis == 0 {
		c.StreamBatchMillis = 16
	}
	if c.ToolProbeTokens == 0 {
		c.ToolProbeTokens = 12
	}
	if c.ToolProbeBytes == 0 {
		c.ToolProbeBytes = 2048
	}
}

// applyEnvOverrides applies the OSU_* environment variables documented in
// spec.md §6.2. Malformed values are ignored, leaving the prior setting in
// place, since these overrides are an operational convenience rather than
// a validated input surface.
func (c *Config) applyEnvOverrides() {
	if v, ok := intEnv("OSU_PORT"); ok {
		c.Port = v
	}
	if v, ok := intEnv("OSU_STREAM_BATCH_CHARS"); ok {
		c.StreamBatchChars = v
	}
	if v, ok := intEnv("OSU_STREAM_BATCH_MS"); ok {
		c.StreamBatchMillis = v
	}
	if v, ok := intEnv("OSU_TOOL_PROBE_TOKENS"); ok {
		c.ToolProbeTokens = v
	}
	if v, ok := intEnv("OSU_TOOL_PROBE_BYTES"); ok {
		c.ToolProbeBytes = v
	}
}

func intEnv(name string) (int, bool) {
	s := os.Getenv(name)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Validate checks that the configuration is internally consistent.
// It runs after applyDefaults and applyEnvOverrides, so it can assume
// defaults are populated. Returns an error describing the first problem
// found, or nil.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", c.Port)
	}
	if c.GenTopP < 0 || c.GenTopP > 1 {
		return fmt.Errorf("genTopP %f out of range (0-1)", c.GenTopP)
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Default returns a default configuration suitable for local development.
// All defaults are already applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}
