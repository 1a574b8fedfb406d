// Package config provides configuration loading and structs for the PAMA server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug       bool              `yaml:"debug"`
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Terminology TerminologyConfig `yaml:"terminology"`
	Search      SearchConfig      `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the draft store location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// TerminologyConfig points at ValueSet files. Empty paths use the built-in reference data.
type TerminologyConfig struct {
	ProceduresPath string `yaml:"procedures_path"`
	ReasonsPath    string `yaml:"reasons_path"`
	// Watch rebuilds an index when its file changes.
	Watch bool `yaml:"watch"`
}

// SearchConfig holds debounce, result cap and ranking settings.
type SearchConfig struct {
	DebounceMS       int     `yaml:"debounce_ms"`
	MaxResults       int     `yaml:"max_results"`
	DefaultOptions   int     `yaml:"default_options"`
	SearchBoost      float64 `yaml:"search_boost"`
	CodeBoost        float64 `yaml:"code_boost"`
	PrefixBoost      float64 `yaml:"prefix_boost"`
	FuzzyBoost       float64 `yaml:"fuzzy_boost"`
	Fuzziness        *int    `yaml:"fuzziness"`
	SessionCacheSize int     `yaml:"session_cache_size"`
}

// FuzzinessOrDefault returns the fuzzy edit distance; defaults to 1 when unset. 0 disables fuzzy matching.
func (s *SearchConfig) FuzzinessOrDefault() int {
	if s.Fuzziness != nil {
		return *s.Fuzziness
	}
	return 1
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Terminology.ProceduresPath != "" {
		cfg.Terminology.ProceduresPath = expandPath(cfg.Terminology.ProceduresPath, configDir)
	}
	if cfg.Terminology.ReasonsPath != "" {
		cfg.Terminology.ReasonsPath = expandPath(cfg.Terminology.ReasonsPath, configDir)
	}

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) || path == ":memory:" {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
