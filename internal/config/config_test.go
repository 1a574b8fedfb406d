package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
search:
  max_results: 25
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Search.MaxResults != 25 {
		t.Errorf("max_results = %d, want 25", cfg.Search.MaxResults)
	}
	if cfg.Search.DebounceMS != 200 {
		t.Errorf("debounce_ms = %d, want default 200", cfg.Search.DebounceMS)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
	if cfg.Terminology.ProceduresPath != "" || cfg.Terminology.ReasonsPath != "" {
		t.Errorf("unset terminology paths should stay empty: %+v", cfg.Terminology)
	}
}

func TestLoad_debugTrue(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./data/db/drafts.db"
terminology:
  procedures_path: "./valuesets/procedures.json"
  watch: true
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "db", "drafts.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantProc := filepath.Join(dir, "valuesets", "procedures.json")
	if cfg.Terminology.ProceduresPath != wantProc {
		t.Errorf("procedures_path = %s, want %s", cfg.Terminology.ProceduresPath, wantProc)
	}
	if !cfg.Terminology.Watch {
		t.Error("watch should be true")
	}
}

func TestLoad_memoryDatabaseKept(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  database_path: \":memory:\"\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Storage.DatabasePath != ":memory:" {
		t.Errorf("database_path = %s, want :memory:", cfg.Storage.DatabasePath)
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Search.DebounceMS != 200 || cfg.Search.MaxResults != 50 {
		t.Errorf("search defaults: got debounce=%d max=%d", cfg.Search.DebounceMS, cfg.Search.MaxResults)
	}
	if cfg.Search.DefaultOptions != 10 {
		t.Errorf("default_options: got %d", cfg.Search.DefaultOptions)
	}
	if cfg.Search.SearchBoost != 3.0 || cfg.Search.CodeBoost != 2.0 {
		t.Errorf("boosts: got search=%f code=%f", cfg.Search.SearchBoost, cfg.Search.CodeBoost)
	}
	if cfg.Search.FuzzinessOrDefault() != 1 {
		t.Errorf("fuzziness: got %d", cfg.Search.FuzzinessOrDefault())
	}
	if cfg.Search.SessionCacheSize != 1024 {
		t.Errorf("session_cache_size: got %d", cfg.Search.SessionCacheSize)
	}
}

func TestSearchConfig_FuzzinessOrDefault(t *testing.T) {
	t.Run("nil_returns_one", func(t *testing.T) {
		s := &SearchConfig{}
		if got := s.FuzzinessOrDefault(); got != 1 {
			t.Errorf("FuzzinessOrDefault() = %d, want 1", got)
		}
	})
	t.Run("zero_disables", func(t *testing.T) {
		z := 0
		s := &SearchConfig{Fuzziness: &z}
		ApplyDefaults(&Config{Search: *s})
		if got := s.FuzzinessOrDefault(); got != 0 {
			t.Errorf("FuzzinessOrDefault() = %d, want 0", got)
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
	if loaded.Search.FuzzinessOrDefault() != 1 {
		t.Errorf("loaded fuzziness: got %d", loaded.Search.FuzzinessOrDefault())
	}
}
