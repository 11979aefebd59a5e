package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig() should validate, got: %v", err)
	}
}

func TestConfigFromFile_MergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "graphdb.yaml")
	yamlBody := "server:\n  httpAddr: \":9999\"\nhnsw:\n  embeddingDim: 128\n"
	if err := os.WriteFile(path, []byte(yamlBody), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := ConfigFromFile(path)
	if err != nil {
		t.Fatalf("ConfigFromFile: %v", err)
	}
	if cfg.Server.HTTPAddr != ":9999" {
		t.Fatalf("HTTPAddr = %q, want :9999", cfg.Server.HTTPAddr)
	}
	if cfg.HNSW.EmbeddingDim != 128 {
		t.Fatalf("EmbeddingDim = %d, want 128", cfg.HNSW.EmbeddingDim)
	}
	// Fields absent from the file retain their defaults.
	if cfg.Compaction.TombstoneThreshold != DefaultConfig().Compaction.TombstoneThreshold {
		t.Fatalf("unset field should retain default")
	}
}

func TestConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("GRAPHDB_HTTP_ADDR", ":8080")
	t.Setenv("GRAPHDB_EMBEDDING_DIM", "64")
	t.Setenv("GRAPHDB_REGISTRY_ENABLED", "true")

	cfg := ConfigFromEnv(DefaultConfig())
	if cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr = %q, want :8080", cfg.Server.HTTPAddr)
	}
	if cfg.HNSW.EmbeddingDim != 64 {
		t.Fatalf("EmbeddingDim = %d, want 64", cfg.HNSW.EmbeddingDim)
	}
	if !cfg.Registry.Enabled {
		t.Fatalf("Registry.Enabled should be true")
	}
}

func TestApplyCLI_OverridesWinLast(t *testing.T) {
	t.Setenv("GRAPHDB_HTTP_ADDR", ":8080")
	cfg := ConfigFromEnv(DefaultConfig())

	addr := ":1234"
	cfg.ApplyCLI(CLIOverrides{HTTPAddr: &addr})
	if cfg.Server.HTTPAddr != ":1234" {
		t.Fatalf("CLI override should win, got %q", cfg.Server.HTTPAddr)
	}
}

func TestValidate_RejectsInvertedEfConstruction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HNSW.EfConstruction = 1
	cfg.HNSW.M = 16
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error when efConstruction < m")
	}
}

func TestValidate_RejectsZeroDataPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.DataPath = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for empty dataPath")
	}
}

func TestEngineConfig_ProjectsFields(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.DataPath = "/tmp/example"
	cfg.HNSW.EmbeddingDim = 256

	ec := cfg.EngineConfig()
	if ec.DataDir != "/tmp/example" {
		t.Fatalf("DataDir = %q", ec.DataDir)
	}
	if ec.EmbeddingDim != 256 {
		t.Fatalf("EmbeddingDim = %d", ec.EmbeddingDim)
	}
}

func TestLoadConfig_NoPathUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.HTTPAddr != DefaultConfig().Server.HTTPAddr {
		t.Fatalf("expected default httpAddr")
	}
}

func TestConfigFromEnv_DurationParsing(t *testing.T) {
	t.Setenv("GRAPHDB_READ_TIMEOUT", "5s")
	cfg := ConfigFromEnv(DefaultConfig())
	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Fatalf("ReadTimeout = %v, want 5s", cfg.Server.ReadTimeout)
	}
}
