package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Workers != runtime.NumCPU() {
		t.Errorf("Expected %d workers, got %d", runtime.NumCPU(), cfg.Workers)
	}
	if cfg.LibraryPath != "normtree.db" || cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("Unexpected defaults %+v", cfg)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "normtree.yaml")
	content := "patterns_dir: ./patterns\nlibrary_path: /var/lib/normtree.db\nworkers: 2\nseed: 42\nlog_format: json\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	envPath := filepath.Join(dir, ".env")
	if err := os.WriteFile(envPath, []byte("NORMTREE_LOG_LEVEL=debug\nNORMTREE_WORKERS=3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NORMTREE_WORKERS", "8")
	// godotenv sets variables for the process; make sure they are unset
	// afterwards.
	t.Setenv("NORMTREE_LOG_LEVEL", "")
	os.Unsetenv("NORMTREE_LOG_LEVEL")

	cfg, err := Load(path, envPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.PatternsDir != "./patterns" || cfg.LibraryPath != "/var/lib/normtree.db" || cfg.Seed != 42 || cfg.LogFormat != "json" {
		t.Errorf("Expected file values, got %+v", cfg)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("Expected .env log level debug, got %s", cfg.LogLevel)
	}
	if cfg.Workers != 8 {
		t.Errorf("Expected the environment to win over .env, got %d workers", cfg.Workers)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	noEnv := filepath.Join(dir, "none.env")

	if _, err := Load(filepath.Join(dir, "missing.yaml"), noEnv); err == nil {
		t.Error("Expected an error for a missing config file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("workers: [1"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(bad, noEnv); err == nil {
		t.Error("Expected an error for malformed YAML")
	}

	t.Setenv("NORMTREE_WORKERS", "many")
	if _, err := Load("", noEnv); err == nil {
		t.Error("Expected an error for a non-numeric worker count")
	}

	t.Setenv("NORMTREE_WORKERS", "0")
	if _, err := Load("", noEnv); err == nil {
		t.Error("Expected an error for zero workers")
	}
}

func TestApplyEnvSeed(t *testing.T) {
	cfg := Default()
	env := map[string]string{"NORMTREE_SEED": "7", "NORMTREE_PATTERNS_DIR": "/p"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("applyEnv failed: %v", err)
	}
	if cfg.Seed != 7 || cfg.PatternsDir != "/p" {
		t.Errorf("Unexpected config %+v", cfg)
	}

	env["NORMTREE_SEED"] = "-1"
	if err := cfg.applyEnv(lookup); err == nil {
		t.Error("Expected an error for a negative seed")
	}
}
