package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/alexbotov/itchdesk/internal/database"
	"github.com/alexbotov/itchdesk/internal/mockapi"
	"github.com/alexbotov/itchdesk/pkg/itchio"
)

type cliEnv struct {
	t       *testing.T
	srv     *httptest.Server
	seeded  *mockapi.Seeded
	backend *mockapi.Backend
	keyFile string
}

func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("ITCHDESK_CONFIG", filepath.Join(dir, "missing.yaml"))
	t.Setenv("ITCHDESK_DB_DSN", "")
	t.Setenv("ITCHDESK_REDIS_ADDR", "")
	t.Setenv("ITCHDESK_METRICS_ADDR", "")
	t.Setenv("LET_ME_IN", "")

	backend := mockapi.NewBackend()
	seeded := mockapi.Seed(backend)
	srv := httptest.NewServer(mockapi.New(backend).SetupRouter(false))
	t.Cleanup(srv.Close)

	return &cliEnv{t: t, srv: srv, seeded: seeded, backend: backend, keyFile: filepath.Join(dir, "key")}
}

// exec runs a command with the shared flags pointing at the mock server
func (e *cliEnv) exec(name string, args ...string) (string, error) {
	e.t.Helper()
	full := append([]string{name,
		"-api-root", e.srv.URL,
		"-key-file", e.keyFile,
		"-cooldown", "1ms",
	}, args...)

	var out bytes.Buffer
	err := run(context.Background(), full, &out)
	return out.String(), err
}

func (e *cliEnv) login() {
	e.t.Helper()
	if _, err := e.exec("login", "-username", mockapi.DemoUsername, "-password", mockapi.DemoPassword); err != nil {
		e.t.Fatalf("Login failed: %v", err)
	}
}

func TestRun_Usage(t *testing.T) {
	if err := run(context.Background(), nil, &bytes.Buffer{}); !errors.Is(err, errUsage) {
		t.Errorf("Expected errUsage, got %v", err)
	}

	e := setupCLI(t)
	e.login()
	if _, err := e.exec("frobnicate"); !errors.Is(err, errUsage) {
		t.Errorf("Expected errUsage for unknown command, got %v", err)
	}
}

func TestRun_LoginAndMe(t *testing.T) {
	e := setupCLI(t)

	out, err := e.exec("login", "-username", mockapi.DemoUsername, "-password", mockapi.DemoPassword)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Logged in as "+mockapi.DemoUsername) {
		t.Errorf("Unexpected login output: %s", out)
	}

	out, err = e.exec("me")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, `"username": "demo"`) {
		t.Errorf("Expected user in output, got %s", out)
	}
}

func TestRun_LoginWithKey(t *testing.T) {
	e := setupCLI(t)

	if _, err := e.exec("login", "-key", mockapi.DemoKey); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := e.exec("login", "-key", "wrong-key"); err == nil {
		t.Error("Expected error for an invalid key, got nil")
	}
}

func TestRun_LoginBadPassword(t *testing.T) {
	e := setupCLI(t)

	_, err := e.exec("login", "-username", mockapi.DemoUsername, "-password", "nope")
	if err == nil || !strings.Contains(err.Error(), mockapi.MsgBadCredentials) {
		t.Errorf("Expected credentials error, got %v", err)
	}
}

func TestRun_NotLoggedIn(t *testing.T) {
	e := setupCLI(t)

	if _, err := e.exec("me"); err == nil || !strings.Contains(err.Error(), "not logged in") {
		t.Errorf("Expected not logged in error, got %v", err)
	}
}

func TestRun_Logout(t *testing.T) {
	e := setupCLI(t)
	e.login()

	if _, err := e.exec("logout"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := e.exec("games"); err == nil {
		t.Error("Expected error after logout, got nil")
	}
}

func TestRun_Listings(t *testing.T) {
	e := setupCLI(t)
	e.login()

	tests := []struct {
		args []string
		want string
	}{
		{[]string{"games"}, "Lantern Keeper"},
		{[]string{"keys"}, "Tidewright"},
		{[]string{"collections"}, "To play"},
		{[]string{"collections", "-id", strconv.FormatInt(e.seeded.Collection.ID, 10)}, "Moss Garden"},
		{[]string{"search", "moss"}, "Moss Garden"},
		{[]string{"game", strconv.FormatInt(e.seeded.Free.ID, 10)}, "Moss Garden"},
		{[]string{"uploads", strconv.FormatInt(e.seeded.Free.ID, 10)}, "moss-garden.dmg"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := e.exec(tt.args[0], tt.args[1:]...)
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("Expected output to contain %q, got %s", tt.want, out)
			}
		})
	}
}

func TestRun_PaidUploadsWithKey(t *testing.T) {
	e := setupCLI(t)
	e.login()
	gameID := strconv.FormatInt(e.seeded.Paid.ID, 10)
	keyID := strconv.FormatInt(e.seeded.OwnedKey.ID, 10)

	out, err := e.exec("uploads", gameID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if strings.TrimSpace(out) != "[]" {
		t.Errorf("Expected no public uploads, got %s", out)
	}

	out, err = e.exec("uploads", "-download-key", keyID, gameID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "tidewright-1.2.zip") {
		t.Errorf("Expected uploads through the key, got %s", out)
	}
}

func TestRun_Download(t *testing.T) {
	e := setupCLI(t)
	e.login()

	out, err := e.exec("uploads", strconv.FormatInt(e.seeded.Free.ID, 10))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	start := strings.Index(out, `"id": `)
	if start < 0 {
		t.Fatalf("No upload id in %s", out)
	}
	rest := out[start+len(`"id": `):]
	uploadID := rest[:strings.IndexAny(rest, ",\n")]

	out, err = e.exec("download", uploadID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "https://cdn.itch.test/uploads/"+uploadID+"/") {
		t.Errorf("Unexpected download link: %s", out)
	}
}

func TestRun_Sync(t *testing.T) {
	e := setupCLI(t)
	e.login()

	out, err := e.exec("sync")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Synced demo: 1 games, 1 purchases, 1 collections") {
		t.Errorf("Unexpected sync output: %s", out)
	}
}

func TestRun_RunsNeedsDatabase(t *testing.T) {
	e := setupCLI(t)

	if _, err := e.exec("runs"); err == nil {
		t.Error("Expected error without a database, got nil")
	}
}

func TestRun_LocalNeedsDatabase(t *testing.T) {
	e := setupCLI(t)
	e.login()

	for _, args := range [][]string{
		{"games", "-local"},
		{"keys", "-local"},
		{"download", "-game", strconv.FormatInt(e.seeded.Paid.ID, 10), "1"},
	} {
		if _, err := e.exec(args[0], args[1:]...); err == nil || !strings.Contains(err.Error(), "needs a database") {
			t.Errorf("%v: expected database error, got %v", args, err)
		}
	}
}

// withDatabase points the CLI at a clean test database, skipping without one
func withDatabase(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("ITCHDESK_TEST_DSN")
	if dsn == "" {
		t.Skip("ITCHDESK_TEST_DSN not set")
	}
	db, err := database.New("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate: %v", err)
	}
	if err := db.CleanData(); err != nil {
		t.Fatalf("Failed to clean: %v", err)
	}
	return dsn
}

func TestRun_SyncedLibrary(t *testing.T) {
	e := setupCLI(t)
	dsn := withDatabase(t)
	e.login()
	extra := e.backend.AddUpload(e.seeded.Paid.ID, itchio.Upload{Filename: "tidewright-soundtrack.zip"})

	if _, err := e.exec("sync", "-db", dsn); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	out, err := e.exec("games", "-db", dsn, "-local")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Lantern Keeper") {
		t.Errorf("Expected developed game from the database, got %s", out)
	}

	out, err = e.exec("keys", "-db", dsn, "-local")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Tidewright") {
		t.Errorf("Expected purchased game from the database, got %s", out)
	}

	// a paid upload resolves once the key is found through its game
	uploadID := strconv.FormatInt(extra.ID, 10)
	if _, err := e.exec("download", "-db", dsn, uploadID); err == nil {
		t.Error("Expected a paid upload to fail without a download key")
	}
	out, err = e.exec("download", "-db", dsn, "-game", strconv.FormatInt(e.seeded.Paid.ID, 10), uploadID)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "tidewright-soundtrack.zip") {
		t.Errorf("Unexpected download link: %s", out)
	}
}

func TestRun_Help(t *testing.T) {
	e := setupCLI(t)

	if _, err := e.exec("games", "-h"); err != nil {
		t.Errorf("Expected -h to succeed, got %v", err)
	}
}
