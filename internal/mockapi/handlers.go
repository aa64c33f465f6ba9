package mockapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/alexbotov/itchdesk/pkg/itchio"
	"github.com/gorilla/mux"
)

// Error messages, worded like the upstream API
const (
	MsgInvalidKey      = "invalid key"
	MsgBadCredentials  = "Incorrect username or password"
	MsgInvalidGame     = "invalid game"
	MsgInvalidUpload   = "invalid upload"
	MsgInvalidColl     = "invalid collection"
	MsgInvalidDownload = "invalid download key"
	MsgMustPurchase    = "you must purchase this game to download it"
	MsgMissingQuery    = "missing query"
)

// Handler serves the fake API over a Backend
type Handler struct {
	backend *Backend
}

// New creates a new API handler
func New(backend *Backend) *Handler {
	return &Handler{backend: backend}
}

// Backend returns the data the handler serves
func (h *Handler) Backend() *Backend {
	return h.backend
}

// Response helpers

// respondJSON writes body with HTTP 200. Application-level failures are
// reported in the body, not the status.
func respondJSON(w http.ResponseWriter, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(body)
}

func respondErrors(w http.ResponseWriter, messages ...string) {
	respondJSON(w, map[string]interface{}{"errors": messages})
}

func respondStatus(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status)
	w.Write([]byte(http.StatusText(status)))
}

// list encodes an empty slice as {}, the way the upstream API does
func list[T any](items []T) interface{} {
	if len(items) == 0 {
		return struct{}{}
	}
	return items
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return id, err == nil
}

// pageParam reads ?page=, defaulting to 1
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func paginate[T any](items []T, page, perPage int) []T {
	start := (page - 1) * perPage
	if start >= len(items) {
		return nil
	}
	end := start + perPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// === Authentication ===

// Login handles POST /api/1/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		respondStatus(w, http.StatusBadRequest)
		return
	}

	key, ok := h.backend.login(r.PostForm.Get("username"), r.PostForm.Get("password"))
	if !ok {
		respondErrors(w, MsgBadCredentials)
		return
	}
	respondJSON(w, itchio.LoginResult{Key: key})
}

// === Account ===

// Me handles GET and POST /api/1/{key}/me
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	acc := accountFrom(r)
	respondJSON(w, map[string]interface{}{"user": acc.user})
}

// MyGames handles GET /api/1/{key}/my-games
func (h *Handler) MyGames(w http.ResponseWriter, r *http.Request) {
	acc := accountFrom(r)
	respondJSON(w, map[string]interface{}{
		"games": list(h.backend.gamesByID(acc.developed)),
	})
}

// MyOwnedKeys handles GET /api/1/{key}/my-owned-keys
func (h *Handler) MyOwnedKeys(w http.ResponseWriter, r *http.Request) {
	acc := accountFrom(r)
	page := pageParam(r)
	perPage := h.backend.page()

	respondJSON(w, map[string]interface{}{
		"owned_keys": list(paginate(acc.owned, page, perPage)),
		"page":       page,
		"per_page":   perPage,
	})
}

// MyCollections handles GET /api/1/{key}/my-collections
func (h *Handler) MyCollections(w http.ResponseWriter, r *http.Request) {
	acc := accountFrom(r)
	colls := make([]itchio.Collection, 0, len(acc.colls))
	for _, id := range acc.colls {
		if c, _, ok := h.backend.collection(id); ok {
			colls = append(colls, c)
		}
	}
	respondJSON(w, map[string]interface{}{"collections": list(colls)})
}

// === Games ===

// Game handles GET /api/1/{key}/game/{id}
func (h *Handler) Game(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondErrors(w, MsgInvalidGame)
		return
	}
	game, ok := h.backend.game(id)
	if !ok {
		respondErrors(w, MsgInvalidGame)
		return
	}
	respondJSON(w, itchio.GameResult{Game: game})
}

// GameUploads handles GET /api/1/{key}/game/{id}/uploads. Paid games list
// no uploads here; buyers see them through their download key.
func (h *Handler) GameUploads(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondErrors(w, MsgInvalidGame)
		return
	}
	game, ok := h.backend.game(id)
	if !ok {
		respondErrors(w, MsgInvalidGame)
		return
	}

	var uploads []itchio.Upload
	if game.MinPrice == 0 {
		uploads = h.backend.gameUploads(id)
	}
	respondJSON(w, map[string]interface{}{"uploads": list(uploads)})
}

// Search handles GET /api/1/{key}/search/games
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		respondErrors(w, MsgMissingQuery)
		return
	}
	respondJSON(w, map[string]interface{}{"games": list(h.backend.search(query))})
}

// === Collections ===

// Collection handles GET /api/1/{key}/collection/{id}
func (h *Handler) Collection(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondErrors(w, MsgInvalidColl)
		return
	}
	c, _, ok := h.backend.collection(id)
	if !ok {
		respondErrors(w, MsgInvalidColl)
		return
	}
	respondJSON(w, itchio.CollectionResult{Collection: c})
}

// CollectionGames handles GET /api/1/{key}/collection/{id}/games
func (h *Handler) CollectionGames(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondErrors(w, MsgInvalidColl)
		return
	}
	_, gameIDs, ok := h.backend.collection(id)
	if !ok {
		respondErrors(w, MsgInvalidColl)
		return
	}

	page := pageParam(r)
	perPage := h.backend.page()
	games := h.backend.gamesByID(paginate(gameIDs, page, perPage))

	respondJSON(w, map[string]interface{}{
		"games":    list(games),
		"page":     page,
		"per_page": perPage,
	})
}

// === Uploads ===

// ownedKey finds the caller's download key named in the path
func (h *Handler) ownedKey(r *http.Request) (itchio.OwnedKey, bool) {
	id, ok := pathID(r, "download_key_id")
	if !ok {
		return itchio.OwnedKey{}, false
	}
	for _, k := range accountFrom(r).owned {
		if k.ID == id {
			return k, true
		}
	}
	return itchio.OwnedKey{}, false
}

// DownloadKeyUploads handles GET /api/1/{key}/download-key/{download_key_id}/uploads
func (h *Handler) DownloadKeyUploads(w http.ResponseWriter, r *http.Request) {
	dk, ok := h.ownedKey(r)
	if !ok {
		respondErrors(w, MsgInvalidDownload)
		return
	}
	respondJSON(w, map[string]interface{}{"uploads": list(h.backend.gameUploads(dk.GameID))})
}

// DownloadKeyDownload handles
// GET /api/1/{key}/download-key/{download_key_id}/download/{upload_id}
func (h *Handler) DownloadKeyDownload(w http.ResponseWriter, r *http.Request) {
	dk, ok := h.ownedKey(r)
	if !ok {
		respondErrors(w, MsgInvalidDownload)
		return
	}
	uploadID, ok := pathID(r, "upload_id")
	if !ok {
		respondErrors(w, MsgInvalidUpload)
		return
	}
	upload, ok := h.backend.upload(uploadID)
	if !ok || upload.GameID != dk.GameID {
		respondErrors(w, MsgInvalidUpload)
		return
	}
	respondJSON(w, itchio.DownloadURL{URL: downloadURL(upload)})
}

// UploadDownload handles GET /api/1/{key}/upload/{upload_id}/download
func (h *Handler) UploadDownload(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := pathID(r, "upload_id")
	if !ok {
		respondErrors(w, MsgInvalidUpload)
		return
	}
	upload, ok := h.backend.upload(uploadID)
	if !ok {
		respondErrors(w, MsgInvalidUpload)
		return
	}
	if game, found := h.backend.game(upload.GameID); found && game.MinPrice > 0 {
		respondErrors(w, MsgMustPurchase)
		return
	}
	respondJSON(w, itchio.DownloadURL{URL: downloadURL(upload)})
}
