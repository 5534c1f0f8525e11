package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/amonks/taskgraph/internal/config"
	"github.com/amonks/taskgraph/internal/testsupport"
)

func writeGlobalConfig(t *testing.T, homeDir, content string) {
	t.Helper()
	configDir := filepath.Join(homeDir, ".config", "taskgraph")
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		t.Fatalf("failed to create config dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "config.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write global config: %v", err)
	}
}

func writeProjectConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, config.ProjectFile), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write project config: %v", err)
	}
}

func TestLoad_NotFound(t *testing.T) {
	homeDir := testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg == nil {
		t.Fatal("expected non-nil config")
	}
	if cfg.Store.Backend != "" {
		t.Errorf("expected empty backend, got %q", cfg.Store.Backend)
	}
	if cfg.Addr() != config.DefaultAddr {
		t.Errorf("Addr() = %q, expected %q", cfg.Addr(), config.DefaultAddr)
	}

	dataDir, err := cfg.DataDir()
	if err != nil {
		t.Fatalf("data dir: %v", err)
	}
	if expected := filepath.Join(homeDir, ".local", "share", "taskgraph"); dataDir != expected {
		t.Errorf("DataDir() = %q, expected %q", dataDir, expected)
	}
}

func TestLoad_Full(t *testing.T) {
	testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeProjectConfig(t, tmpDir, `
[store]
backend = "sqlite"
dir = "/var/lib/taskgraph"

[server]
addr = ":9000"

[user]
name = "alice"
`)

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Backend = %q, expected %q", cfg.Store.Backend, "sqlite")
	}
	if cfg.Store.Dir != "/var/lib/taskgraph" {
		t.Errorf("Dir = %q, expected %q", cfg.Store.Dir, "/var/lib/taskgraph")
	}
	if cfg.Addr() != ":9000" {
		t.Errorf("Addr() = %q, expected %q", cfg.Addr(), ":9000")
	}
	if cfg.User.Name != "alice" {
		t.Errorf("User.Name = %q, expected %q", cfg.User.Name, "alice")
	}
}

func TestLoad_RelativeProjectDir(t *testing.T) {
	testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeProjectConfig(t, tmpDir, `
[store]
dir = ".taskgraph"
`)

	cfg, err := config.Load(tmpDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if expected := filepath.Join(tmpDir, ".taskgraph"); cfg.Store.Dir != expected {
		t.Errorf("Dir = %q, expected %q", cfg.Store.Dir, expected)
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeProjectConfig(t, tmpDir, `[store
backend = "jsonl"`)

	if _, err := config.Load(tmpDir); err == nil {
		t.Error("expected error for invalid TOML")
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	testsupport.SetupTestHome(t)
	tmpDir := t.TempDir()

	writeProjectConfig(t, tmpDir, `
[store]
engine = "postgres"
`)

	if _, err := config.Load(tmpDir); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestLoad_UsesGlobalWhenProjectMissing(t *testing.T) {
	homeDir := testsupport.SetupTestHome(t)
	writeGlobalConfig(t, homeDir, `
[store]
backend = "sqlite"

[user]
name = "global-user"
`)

	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Store.Backend != "sqlite" {
		t.Errorf("Backend = %q, expected %q", cfg.Store.Backend, "sqlite")
	}
	if cfg.User.Name != "global-user" {
		t.Errorf("User.Name = %q, expected %q", cfg.User.Name, "global-user")
	}
}

func TestLoad_ProjectOverridesGlobal(t *testing.T) {
	homeDir := testsupport.SetupTestHome(t)
	writeGlobalConfig(t, homeDir, `
[store]
backend = "sqlite"
dir = "/global/data"

[user]
name = "global-user"
`)

	repoDir := t.TempDir()
	writeProjectConfig(t, repoDir, `
[store]
backend = "jsonl"

[server]
addr = ":7000"
`)

	cfg, err := config.Load(repoDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Store.Backend != "jsonl" {
		t.Errorf("Backend = %q, expected %q", cfg.Store.Backend, "jsonl")
	}
	if cfg.Store.Dir != "/global/data" {
		t.Errorf("Dir = %q, expected %q", cfg.Store.Dir, "/global/data")
	}
	if cfg.Server.Addr != ":7000" {
		t.Errorf("Addr = %q, expected %q", cfg.Server.Addr, ":7000")
	}
	if cfg.User.Name != "global-user" {
		t.Errorf("User.Name = %q, expected %q", cfg.User.Name, "global-user")
	}
}

func TestLoad_ProjectEmptyOverridesGlobal(t *testing.T) {
	homeDir := testsupport.SetupTestHome(t)
	writeGlobalConfig(t, homeDir, `
[user]
name = "global-user"
`)

	repoDir := t.TempDir()
	writeProjectConfig(t, repoDir, `
[user]
name = ""
`)

	cfg, err := config.Load(repoDir)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.User.Name != "" {
		t.Errorf("User.Name = %q, expected empty", cfg.User.Name)
	}
}

func TestActor(t *testing.T) {
	testsupport.SetupTestHome(t)
	t.Setenv("USER", "shell-user")
	t.Setenv(config.ActorEnv, "")

	cfg := &config.Config{}
	if got := cfg.Actor(); got != "shell-user" {
		t.Errorf("Actor() = %q, expected %q", got, "shell-user")
	}

	cfg.User.Name = "configured"
	if got := cfg.Actor(); got != "configured" {
		t.Errorf("Actor() = %q, expected %q", got, "configured")
	}

	t.Setenv(config.ActorEnv, "from-env")
	if got := cfg.Actor(); got != "from-env" {
		t.Errorf("Actor() = %q, expected %q", got, "from-env")
	}
}
