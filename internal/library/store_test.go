package library

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/alexbotov/itchdesk/internal/database"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := os.Getenv("ITCHDESK_TEST_DSN")
	if dsn == "" {
		t.Skip("ITCHDESK_TEST_DSN not set")
	}

	db, err := database.New("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}

	// Ensure schema exists (idempotent)
	if err := db.Migrate(); err != nil {
		t.Logf("Migration note: %v", err)
	}
	if err := db.CleanData(); err != nil {
		t.Fatalf("Failed to clean data: %v", err)
	}

	t.Cleanup(func() {
		db.CleanData()
		db.Close()
	})
	return NewStore(db.DB)
}

func TestStore_SyncPersists(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	tr := newRouteTransport(libraryRoutes())
	svc := New(WithStore(store))

	res, err := svc.Sync(ctx, newTestSession(tr))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	owned, err := store.OwnedGames(ctx, 7)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(owned) != 2 {
		t.Fatalf("Expected 2 owned games, got %d", len(owned))
	}
	if owned[0].ID != 2 || owned[0].Title != "Bought" {
		t.Errorf("Expected game 2 'Bought', got %d '%s'", owned[0].ID, owned[0].Title)
	}

	developed, err := store.DevelopedGames(ctx, 7)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(developed) != 1 || developed[0].Title != "X-Moon" {
		t.Errorf("Expected developed game 'X-Moon', got %v", developed)
	}

	keyID, err := svc.DownloadKey(ctx, 7, 2)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if keyID != 100 {
		t.Errorf("Expected download key 100, got %d", keyID)
	}

	runs, err := store.Runs(ctx, &RunFilter{UserID: 7})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != res.Run.ID {
		t.Fatalf("Expected the sync run to be recorded, got %v", runs)
	}
	if runs[0].FinishedAt == nil || runs[0].OwnedKeys != 2 || runs[0].Error != "" {
		t.Errorf("Unexpected run: %+v", runs[0])
	}
}

func TestStore_ResyncKeepsTitles(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	svc := New(WithStore(store))

	if _, err := svc.Sync(ctx, newTestSession(newRouteTransport(libraryRoutes()))); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	// Second sync sees the purchase without its embedded game
	routes := libraryRoutes()
	routes["/my-owned-keys?page=1"] = `{"owned_keys":[{"id":100,"game_id":2}],"page":1,"per_page":2}`
	if _, err := svc.Sync(ctx, newTestSession(newRouteTransport(routes))); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	owned, err := store.OwnedGames(ctx, 7)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(owned) == 0 || owned[0].Title != "Bought" {
		t.Errorf("Expected stored title to survive, got %v", owned)
	}
}

func TestStore_FailedRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	routes := libraryRoutes()
	routes["/my-collections"] = `{"errors":["server busy"]}`
	svc := New(WithStore(store))

	if _, err := svc.Sync(ctx, newTestSession(newRouteTransport(routes))); err == nil {
		t.Fatal("Expected error, got nil")
	}

	runs, err := store.Runs(ctx, &RunFilter{FailedOnly: true, Limit: 10})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("Expected 1 failed run, got %d", len(runs))
	}
	if runs[0].Error == "" {
		t.Error("Expected run error to be stored")
	}

	// Nothing from the failed sync is saved
	if _, err := store.DownloadKeyFor(ctx, 7, 2); !errors.Is(err, ErrNoDownloadKey) {
		t.Errorf("Expected ErrNoDownloadKey, got %v", err)
	}
}
