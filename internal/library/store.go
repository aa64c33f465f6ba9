package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alexbotov/itchdesk/pkg/itchio"
	"github.com/google/uuid"
)

// ErrNoDownloadKey is returned when the user owns no key for a game
var ErrNoDownloadKey = errors.New("no download key owned for game")

// SyncRun records one library sync
type SyncRun struct {
	ID          string     `json:"id"`
	UserID      int64      `json:"user_id,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Games       int        `json:"games"`
	OwnedKeys   int        `json:"owned_keys"`
	Collections int        `json:"collections"`
	Error       string     `json:"error,omitempty"`
}

// RunFilter narrows Runs
type RunFilter struct {
	UserID     int64
	From       time.Time
	To         time.Time
	FailedOnly bool
	Limit      int
}

// Store persists synced library data
type Store struct {
	db *sql.DB
}

// NewStore creates a store over an open, migrated database
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save writes a snapshot in a single transaction
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	userID := snap.User.ID

	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, url, cover_url, developer, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username, display_name = EXCLUDED.display_name,
			url = EXCLUDED.url, cover_url = EXCLUDED.cover_url,
			developer = EXCLUDED.developer, updated_at = EXCLUDED.updated_at
	`, userID, snap.User.Username, snap.User.DisplayName, snap.User.URL, snap.User.CoverURL,
		snap.User.Developer, now)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	for i := range snap.Games {
		if err := upsertGame(ctx, tx, &snap.Games[i], now); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO developed_games (user_id, game_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING
		`, userID, snap.Games[i].ID)
		if err != nil {
			return fmt.Errorf("failed to link game %d: %w", snap.Games[i].ID, err)
		}
	}

	for _, key := range snap.OwnedKeys {
		game := itchio.Game{ID: key.GameID}
		if key.Game != nil {
			game = *key.Game
		}
		if err := upsertGame(ctx, tx, &game, now); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO owned_keys (id, user_id, game_id, downloads, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO UPDATE SET
				downloads = EXCLUDED.downloads, updated_at = EXCLUDED.updated_at
		`, key.ID, userID, game.ID, key.Downloads, key.CreatedAt, now)
		if err != nil {
			return fmt.Errorf("failed to save owned key %d: %w", key.ID, err)
		}
	}

	for _, c := range snap.Collections {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO collections (id, user_id, title, games_count, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET
				title = EXCLUDED.title, games_count = EXCLUDED.games_count,
				updated_at = EXCLUDED.updated_at
		`, c.ID, userID, c.Title, c.GamesCount, now)
		if err != nil {
			return fmt.Errorf("failed to save collection %d: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// upsertGame keeps the richest copy: an owned key carrying only a game id
// does not wipe a title stored by an earlier sync.
func upsertGame(ctx context.Context, tx *sql.Tx, g *itchio.Game, now time.Time) error {
	data, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to encode game %d: %w", g.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO games (id, title, short_text, url, cover_url, classification, min_price,
		                   p_windows, p_linux, p_osx, p_android, data, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			title = CASE WHEN EXCLUDED.title = '' THEN games.title ELSE EXCLUDED.title END,
			short_text = COALESCE(NULLIF(EXCLUDED.short_text, ''), games.short_text),
			url = CASE WHEN EXCLUDED.url = '' THEN games.url ELSE EXCLUDED.url END,
			cover_url = COALESCE(NULLIF(EXCLUDED.cover_url, ''), games.cover_url),
			classification = COALESCE(NULLIF(EXCLUDED.classification, ''), games.classification),
			min_price = EXCLUDED.min_price,
			p_windows = EXCLUDED.p_windows, p_linux = EXCLUDED.p_linux,
			p_osx = EXCLUDED.p_osx, p_android = EXCLUDED.p_android,
			data = CASE WHEN EXCLUDED.title = '' THEN games.data ELSE EXCLUDED.data END,
			updated_at = EXCLUDED.updated_at
	`, g.ID, g.Title, g.ShortText, g.URL, g.CoverURL, g.Classification, g.MinPrice,
		g.PWindows, g.PLinux, g.POSX, g.PAndroid, string(data), now)
	if err != nil {
		return fmt.Errorf("failed to save game %d: %w", g.ID, err)
	}
	return nil
}

// OwnedGames lists the games a user holds a download key for
func (s *Store) OwnedGames(ctx context.Context, userID int64) ([]itchio.Game, error) {
	return s.queryGames(ctx, `
		SELECT g.data FROM games g
		WHERE g.id IN (SELECT game_id FROM owned_keys WHERE user_id = $1)
		ORDER BY g.id
	`, userID)
}

// DevelopedGames lists the games a user publishes
func (s *Store) DevelopedGames(ctx context.Context, userID int64) ([]itchio.Game, error) {
	return s.queryGames(ctx, `
		SELECT g.data FROM games g
		JOIN developed_games d ON d.game_id = g.id
		WHERE d.user_id = $1
		ORDER BY g.id
	`, userID)
}

func (s *Store) queryGames(ctx context.Context, query string, args ...interface{}) ([]itchio.Game, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var games []itchio.Game
	for rows.Next() {
		var data sql.NullString
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var g itchio.Game
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &g); err != nil {
				return nil, fmt.Errorf("failed to decode stored game: %w", err)
			}
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// DownloadKeyFor returns the id of a download key the user owns for a game
func (s *Store) DownloadKeyFor(ctx context.Context, userID, gameID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM owned_keys WHERE user_id = $1 AND game_id = $2
		ORDER BY id LIMIT 1
	`, userID, gameID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoDownloadKey
		}
		return 0, err
	}
	return id, nil
}

// StartRun inserts a sync run and returns it
func (s *Store) StartRun(ctx context.Context) (*SyncRun, error) {
	run := &SyncRun{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, started_at) VALUES ($1, $2)
	`, run.ID, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to start sync run: %w", err)
	}
	return run, nil
}

// FinishRun stores the outcome of a run
func (s *Store) FinishRun(ctx context.Context, run *SyncRun) error {
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	var userID interface{}
	if run.UserID != 0 {
		userID = run.UserID
	}
	var runErr interface{}
	if run.Error != "" {
		runErr = run.Error
	}

	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs SET user_id = $2, finished_at = $3, games = $4,
			owned_keys = $5, collections = $6, error = $7
		WHERE id = $1
	`, run.ID, userID, run.FinishedAt, run.Games, run.OwnedKeys, run.Collections, runErr)
	if err != nil {
		return fmt.Errorf("failed to finish sync run: %w", err)
	}
	return nil
}

// Runs lists sync runs, newest first
func (s *Store) Runs(ctx context.Context, filter *RunFilter) ([]*SyncRun, error) {
	query := `SELECT id, user_id, started_at, finished_at, games, owned_keys, collections, error
			  FROM sync_runs WHERE 1=1`
	args := []interface{}{}
	paramIdx := 1

	if filter != nil {
		if filter.UserID != 0 {
			query += fmt.Sprintf(" AND user_id = $%d", paramIdx)
			args = append(args, filter.UserID)
			paramIdx++
		}
		if !filter.From.IsZero() {
			query += fmt.Sprintf(" AND started_at >= $%d", paramIdx)
			args = append(args, filter.From)
			paramIdx++
		}
		if !filter.To.IsZero() {
			query += fmt.Sprintf(" AND started_at <= $%d", paramIdx)
			args = append(args, filter.To)
			paramIdx++
		}
		if filter.FailedOnly {
			query += " AND error IS NOT NULL"
		}
	}

	query += " ORDER BY started_at DESC"

	if filter != nil && filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", paramIdx)
		args = append(args, filter.Limit)
	} else {
		query += " LIMIT 100"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*SyncRun
	for rows.Next() {
		var run SyncRun
		var userID sql.NullInt64
		var finishedAt sql.NullTime
		var runErr sql.NullString

		err := rows.Scan(&run.ID, &userID, &run.StartedAt, &finishedAt,
			&run.Games, &run.OwnedKeys, &run.Collections, &runErr)
		if err != nil {
			return nil, err
		}
		run.UserID = userID.Int64
		if finishedAt.Valid {
			run.FinishedAt = &finishedAt.Time
		}
		run.Error = runErr.String

		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
