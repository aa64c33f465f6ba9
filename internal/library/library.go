// Package library mirrors a user's itch.io library into the local database
// and answers game and upload lookups with as few API requests as possible.
package library

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/alexbotov/itchdesk/internal/cache"
	"github.com/alexbotov/itchdesk/pkg/itchio"
	"github.com/google/uuid"
)

// maxKeyPages bounds the owned-keys walk against servers that ignore paging
const maxKeyPages = 100

// DefaultGameTTL is how long a game lookup is served from cache
const DefaultGameTTL = 10 * time.Minute

// Snapshot is everything one sync fetched
type Snapshot struct {
	User        itchio.User         `json:"user"`
	Games       []itchio.Game       `json:"games"`
	OwnedKeys   []itchio.OwnedKey   `json:"owned_keys"`
	Collections []itchio.Collection `json:"collections"`
}

// SyncResult is returned by Sync
type SyncResult struct {
	Run      *SyncRun
	Snapshot *Snapshot
}

// Service provides library operations
type Service struct {
	store   *Store
	cache   cache.Cache
	gameTTL time.Duration
}

type Option func(*Service)

// WithStore persists syncs. Without it Sync only fetches.
func WithStore(store *Store) Option {
	return func(s *Service) { s.store = store }
}

// WithCache sets the game lookup cache
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithGameTTL sets how long game lookups stay cached
func WithGameTTL(ttl time.Duration) Option {
	return func(s *Service) { s.gameTTL = ttl }
}

// New creates a new library service
func New(opts ...Option) *Service {
	s := &Service{
		cache:   cache.NewMemory(),
		gameTTL: DefaultGameTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the backing store, nil when syncs are not persisted
func (s *Service) Store() *Store {
	return s.store
}

// Sync fetches the user's profile, developed games, purchases and
// collections and, with a store configured, saves them and records the run.
func (s *Service) Sync(ctx context.Context, sess *itchio.Session) (*SyncResult, error) {
	run := &SyncRun{ID: uuid.New().String(), StartedAt: time.Now().UTC()}
	if s.store != nil {
		started, err := s.store.StartRun(ctx)
		if err != nil {
			return nil, err
		}
		run = started
	}

	snap, err := s.fetch(ctx, sess)
	if snap != nil {
		run.UserID = snap.User.ID
		run.Games = len(snap.Games)
		run.OwnedKeys = len(snap.OwnedKeys)
		run.Collections = len(snap.Collections)
	}
	if err == nil && s.store != nil {
		err = s.store.Save(ctx, snap)
	}

	if err != nil {
		run.Error = err.Error()
	}
	if s.store != nil {
		if ferr := s.store.FinishRun(ctx, run); ferr != nil {
			log.Printf("library: %v", ferr)
		}
	} else {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}

	if err != nil {
		return &SyncResult{Run: run}, fmt.Errorf("sync failed: %w", err)
	}
	return &SyncResult{Run: run, Snapshot: snap}, nil
}

func (s *Service) fetch(ctx context.Context, sess *itchio.Session) (*Snapshot, error) {
	snap := &Snapshot{}

	body, err := sess.Me(ctx)
	if err != nil {
		return nil, err
	}
	var me itchio.MeResult
	if err := body.Decode(&me); err != nil {
		return nil, err
	}
	snap.User = me.User

	body, err = sess.MyGames(ctx, nil)
	if err != nil {
		return snap, err
	}
	var games itchio.GamesResult
	if err := body.Decode(&games); err != nil {
		return snap, err
	}
	snap.Games = games.Games

	keys, err := s.ownedKeys(ctx, sess)
	if err != nil {
		return snap, err
	}
	snap.OwnedKeys = keys

	body, err = sess.MyCollections(ctx)
	if err != nil {
		return snap, err
	}
	var cols itchio.CollectionsResult
	if err := body.Decode(&cols); err != nil {
		return snap, err
	}
	snap.Collections = cols.Collections

	return snap, nil
}

// ownedKeys walks my-owned-keys page by page until a short or empty page
func (s *Service) ownedKeys(ctx context.Context, sess *itchio.Session) ([]itchio.OwnedKey, error) {
	var all []itchio.OwnedKey
	for page := 1; page <= maxKeyPages; page++ {
		body, err := sess.MyOwnedKeys(ctx, itchio.Data{"page": page})
		if err != nil {
			return all, err
		}
		var res itchio.OwnedKeysResult
		if err := body.Decode(&res); err != nil {
			return all, err
		}
		all = append(all, res.OwnedKeys...)

		if len(res.OwnedKeys) == 0 || res.PerPage == 0 || int64(len(res.OwnedKeys)) < res.PerPage {
			break
		}
	}
	return all, nil
}

func gameCacheKey(id int64) string {
	return "game:" + strconv.FormatInt(id, 10)
}

// Game returns a game, from cache when a fresh copy exists
func (s *Service) Game(ctx context.Context, sess *itchio.Session, gameID int64) (*itchio.Game, error) {
	key := gameCacheKey(gameID)

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		log.Printf("library: cache read %s: %v", key, err)
	} else if ok {
		var g itchio.Game
		if err := json.Unmarshal(raw, &g); err == nil {
			return &g, nil
		}
		if err := s.cache.Delete(ctx, key); err != nil {
			log.Printf("library: cache delete %s: %v", key, err)
		}
	}

	body, err := sess.Game(ctx, gameID)
	if err != nil {
		return nil, err
	}
	var res itchio.GameResult
	if err := body.Decode(&res); err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(res.Game); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.gameTTL); err != nil {
			log.Printf("library: cache write %s: %v", key, err)
		}
	}
	return &res.Game, nil
}

// Forget drops a cached game
func (s *Service) Forget(ctx context.Context, gameID int64) error {
	return s.cache.Delete(ctx, gameCacheKey(gameID))
}

// DownloadKey finds a key the user owns for a game in the synced library.
// It returns 0 without a store or without a key.
func (s *Service) DownloadKey(ctx context.Context, userID, gameID int64) (int64, error) {
	if s.store == nil {
		return 0, nil
	}
	id, err := s.store.DownloadKeyFor(ctx, userID, gameID)
	if errors.Is(err, ErrNoDownloadKey) {
		return 0, nil
	}
	return id, err
}

// Uploads lists a game's files. Purchased games are listed through the
// download key, which also reveals uploads hidden from the public listing.
func (s *Service) Uploads(ctx context.Context, sess *itchio.Session, gameID, downloadKeyID int64) ([]itchio.Upload, error) {
	var body itchio.Body
	var err error
	if downloadKeyID != 0 {
		body, err = sess.DownloadKeyUploads(ctx, downloadKeyID)
		if err == nil {
			// download-key/uploads is not normalized by the session
			if v, ok := body[itchio.FieldUploads]; ok {
				body[itchio.FieldUploads] = itchio.EnsureArray(v)
			}
		}
	} else {
		body, err = sess.GameUploads(ctx, gameID)
	}
	if err != nil {
		return nil, err
	}

	var res itchio.UploadsResult
	if err := body.Decode(&res); err != nil {
		return nil, err
	}
	if res.Uploads == nil {
		res.Uploads = []itchio.Upload{}
	}
	return res.Uploads, nil
}

// DownloadURL resolves a short-lived link to an upload's file
func (s *Service) DownloadURL(ctx context.Context, sess *itchio.Session, uploadID, downloadKeyID int64) (string, error) {
	var body itchio.Body
	var err error
	if downloadKeyID != 0 {
		body, err = sess.DownloadUploadWithKey(ctx, downloadKeyID, uploadID)
	} else {
		body, err = sess.DownloadUpload(ctx, uploadID)
	}
	if err != nil {
		return "", err
	}

	var res itchio.DownloadURL
	if err := body.Decode(&res); err != nil {
		return "", err
	}
	if res.URL == "" {
		return "", fmt.Errorf("no url for upload %d", uploadID)
	}
	return res.URL, nil
}
