// Package mockapi is an in-process stand-in for the itch.io API. It serves
// the same paths and envelopes, including the habit of encoding empty lists
// as {}, so clients can be exercised end to end without network access.
package mockapi

import (
	"sort"
	"strconv"
	"sync"

	"github.com/alexbotov/itchdesk/pkg/itchio"
	"github.com/google/uuid"
)

// DefaultPerPage is the page size of paged listings
const DefaultPerPage = 50

// account is a user with its credentials and library
type account struct {
	user      itchio.User
	password  string
	key       itchio.APIKey
	developed []int64
	owned     []itchio.OwnedKey
	colls     []int64
}

// Backend holds the fake server's data
type Backend struct {
	mu sync.RWMutex

	accounts    map[string]*account // by API key
	byUsername  map[string]*account
	games       map[int64]itchio.Game
	collections map[int64]itchio.Collection
	collGames   map[int64][]int64
	uploads     map[int64][]itchio.Upload // by game
	perPage     int

	nextID   int64
	failNext []int
	hits     map[string]int
	limits   limiterStore
}

// NewBackend creates an empty backend
func NewBackend() *Backend {
	return &Backend{
		accounts:    make(map[string]*account),
		byUsername:  make(map[string]*account),
		games:       make(map[int64]itchio.Game),
		collections: make(map[int64]itchio.Collection),
		collGames:   make(map[int64][]int64),
		uploads:     make(map[int64][]itchio.Upload),
		perPage:     DefaultPerPage,
		nextID:      1000,
		hits:        make(map[string]int),
	}
}

// SetPerPage changes the page size of paged listings
func (b *Backend) SetPerPage(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n > 0 {
		b.perPage = n
	}
}

func (b *Backend) id() int64 {
	b.nextID++
	return b.nextID
}

// AddUser registers an account and returns its API key. An empty key is
// generated.
func (b *Backend) AddUser(user itchio.User, password, key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if user.ID == 0 {
		user.ID = b.id()
	}
	if key == "" {
		key = uuid.New().String()
	}
	acc := &account{
		user:     user,
		password: password,
		key:      itchio.APIKey{ID: b.id(), Key: key, UserID: user.ID},
	}
	b.accounts[key] = acc
	b.byUsername[user.Username] = acc
	return key
}

// AddGame stores a game, developed by the owner of ownerKey when non-empty
func (b *Backend) AddGame(ownerKey string, game itchio.Game) itchio.Game {
	b.mu.Lock()
	defer b.mu.Unlock()

	if game.ID == 0 {
		game.ID = b.id()
	}
	if acc, ok := b.accounts[ownerKey]; ok {
		u := acc.user
		game.User = &u
		acc.developed = append(acc.developed, game.ID)
	}
	b.games[game.ID] = game
	return game
}

// AddUpload attaches a file to a game
func (b *Backend) AddUpload(gameID int64, upload itchio.Upload) itchio.Upload {
	b.mu.Lock()
	defer b.mu.Unlock()

	if upload.ID == 0 {
		upload.ID = b.id()
	}
	upload.GameID = gameID
	b.uploads[gameID] = append(b.uploads[gameID], upload)
	return upload
}

// Purchase gives the owner of key a download key for a game
func (b *Backend) Purchase(key string, gameID int64) itchio.OwnedKey {
	b.mu.Lock()
	defer b.mu.Unlock()

	ok := itchio.OwnedKey{ID: b.id(), GameID: gameID}
	if g, found := b.games[gameID]; found {
		ok.Game = &g
	}
	if acc, found := b.accounts[key]; found {
		acc.owned = append(acc.owned, ok)
	}
	return ok
}

// AddCollection creates a collection for the owner of key
func (b *Backend) AddCollection(key, title string, gameIDs ...int64) itchio.Collection {
	b.mu.Lock()
	defer b.mu.Unlock()

	c := itchio.Collection{ID: b.id(), Title: title, GamesCount: int64(len(gameIDs))}
	b.collections[c.ID] = c
	b.collGames[c.ID] = append([]int64(nil), gameIDs...)
	if acc, found := b.accounts[key]; found {
		acc.colls = append(acc.colls, c.ID)
	}
	return c
}

// FailNext makes the next request answer with status before any routing
func (b *Backend) FailNext(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext = append(b.failNext, status)
}

func (b *Backend) takeFailure() (int, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.failNext) == 0 {
		return 0, false
	}
	status := b.failNext[0]
	b.failNext = b.failNext[1:]
	return status, true
}

func (b *Backend) hit(route string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits[route]++
}

// Hits returns how many requests matched a route template, such as
// "/{key}/game/{id}"
func (b *Backend) Hits(route string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hits[route]
}

// TotalHits returns the number of requests served
func (b *Backend) TotalHits() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, c := range b.hits {
		n += c
	}
	return n
}

// account returns a copy of the account holding key
func (b *Backend) account(key string) (account, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	acc, ok := b.accounts[key]
	if !ok {
		return account{}, false
	}
	cp := *acc
	cp.developed = append([]int64(nil), acc.developed...)
	cp.owned = append([]itchio.OwnedKey(nil), acc.owned...)
	cp.colls = append([]int64(nil), acc.colls...)
	return cp, true
}

func (b *Backend) login(username, password string) (itchio.APIKey, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	acc, ok := b.byUsername[username]
	if !ok || acc.password != password {
		return itchio.APIKey{}, false
	}
	return acc.key, true
}

func (b *Backend) gamesByID(ids []int64) []itchio.Game {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]itchio.Game, 0, len(ids))
	for _, id := range ids {
		if g, ok := b.games[id]; ok {
			out = append(out, g)
		}
	}
	return out
}

func (b *Backend) game(id int64) (itchio.Game, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	g, ok := b.games[id]
	return g, ok
}

func (b *Backend) collection(id int64) (itchio.Collection, []int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	c, ok := b.collections[id]
	return c, b.collGames[id], ok
}

func (b *Backend) search(query string) []itchio.Game {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []itchio.Game
	for _, g := range b.games {
		if containsFold(g.Title, query) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (b *Backend) gameUploads(gameID int64) []itchio.Upload {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]itchio.Upload(nil), b.uploads[gameID]...)
}

// upload finds an upload by id across games
func (b *Backend) upload(id int64) (itchio.Upload, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, list := range b.uploads {
		for _, u := range list {
			if u.ID == id {
				return u, true
			}
		}
	}
	return itchio.Upload{}, false
}

func (b *Backend) page() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.perPage
}

// downloadURL is the link handed out for an upload
func downloadURL(u itchio.Upload) string {
	return "https://cdn.itch.test/uploads/" + strconv.FormatInt(u.ID, 10) + "/" + u.Filename
}
