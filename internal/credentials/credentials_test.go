package credentials

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "key")
	store := New(path, "correct horse")

	if err := store.Save("api-key-123"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	key, err := store.Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if key != "api-key-123" {
		t.Errorf("Expected 'api-key-123', got '%s'", key)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat key file: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestSave_NotPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	store := New(path, "pw")

	if err := store.Save("visible-key"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	data, _ := os.ReadFile(path)
	if bytes.Contains(data, []byte("visible-key")) {
		t.Error("Expected key file not to contain the key in clear")
	}
}

func TestSave_Empty(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "key"), "pw")
	if err := store.Save(""); err == nil {
		t.Fatal("Expected error saving an empty key, got nil")
	}
}

func TestLoad_Missing(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "key"), "pw")

	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials, got %v", err)
	}
}

func TestLoad_WrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := New(path, "right").Save("k"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if _, err := New(path, "wrong").Load(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
}

func TestLoad_Truncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("short"), 0600); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}

	if _, err := New(path, "pw").Load(); !errors.Is(err, ErrCorrupt) {
		t.Errorf("Expected ErrCorrupt, got %v", err)
	}
}

func TestClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	store := New(path, "pw")

	if err := store.Clear(); err != nil {
		t.Errorf("Expected clearing an empty store to succeed, got %v", err)
	}
	if err := store.Save("k"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := store.Load(); !errors.Is(err, ErrNoCredentials) {
		t.Errorf("Expected ErrNoCredentials after Clear, got %v", err)
	}
}

func TestNew_DefaultPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := New(path, "").Save("host-bound"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	key, err := New(path, "").Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if key != "host-bound" {
		t.Errorf("Expected 'host-bound', got '%s'", key)
	}
	if New(path, "").Path() != path {
		t.Error("Expected Path to return the key file")
	}
}
