package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.API.Root != "https://itch.io" {
		t.Errorf("Expected default root https://itch.io, got %s", cfg.API.Root)
	}
	if cfg.API.Cooldown != 130*time.Millisecond {
		t.Errorf("Expected default cooldown 130ms, got %v", cfg.API.Cooldown)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Expected postgres driver, got %s", cfg.Database.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("api:\n  root: http://file.test\n  cooldown: 250ms\nredis:\n  addr: localhost:6379\n")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	t.Setenv("ITCHDESK_CONFIG", path)
	t.Setenv("ITCHDESK_API_ROOT", "http://env.test")
	t.Setenv("LET_ME_IN", "1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.API.Root != "http://env.test" {
		t.Errorf("Expected env to override file, got %s", cfg.API.Root)
	}
	if cfg.API.Cooldown != 250*time.Millisecond {
		t.Errorf("Expected cooldown from file, got %v", cfg.API.Cooldown)
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Errorf("Expected redis addr from file, got %s", cfg.Redis.Addr)
	}
	if cfg.API.Timeout != 30*time.Second {
		t.Errorf("Expected default timeout to survive, got %v", cfg.API.Timeout)
	}
	if !cfg.Debug {
		t.Error("Expected LET_ME_IN to enable debug")
	}
}

func TestLoad_BadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("api: [unclosed"), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("ITCHDESK_CONFIG", path)

	if _, err := Load(); err == nil {
		t.Fatal("Expected parse error, got nil")
	}
}

func TestLoad_BadDuration(t *testing.T) {
	t.Setenv("ITCHDESK_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("ITCHDESK_COOLDOWN", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("Expected duration error, got nil")
	}
}

func TestRegisterFlags(t *testing.T) {
	cfg := Defaults()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)

	if err := fs.Parse([]string{"-cooldown", "1s", "-debug"}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.API.Cooldown != time.Second {
		t.Errorf("Expected cooldown 1s, got %v", cfg.API.Cooldown)
	}
	if !cfg.Debug {
		t.Error("Expected debug flag to be set")
	}
	if cfg.API.Root != "https://itch.io" {
		t.Errorf("Expected untouched root, got %s", cfg.API.Root)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"EmptyRoot", func(c *Config) { c.API.Root = "" }},
		{"ZeroTimeout", func(c *Config) { c.API.Timeout = 0 }},
		{"EmptyKeyFile", func(c *Config) { c.Credentials.File = "" }},
		{"DSNWithoutDriver", func(c *Config) { c.Database.DSN = "host=x"; c.Database.Driver = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error, got nil")
			}
		})
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Setenv("ITCHDESK_CONFIG", path)

	cfg := Defaults()
	cfg.API.Root = "http://saved.test"
	cfg.Credentials.Secret = "do-not-write"
	if err := cfg.Save(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if loaded.API.Root != "http://saved.test" {
		t.Errorf("Expected saved root, got %s", loaded.API.Root)
	}
	if loaded.Credentials.Secret != "" {
		t.Error("Expected secret to stay out of the config file")
	}
}
