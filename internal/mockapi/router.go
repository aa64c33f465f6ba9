package mockapi

import (
	"net/http"

	"github.com/alexbotov/itchdesk/pkg/itchio"
	"github.com/gorilla/mux"
)

// APIPrefix is where the API is mounted
const APIPrefix = itchio.APIPath

// SetupRouter creates and configures the HTTP router
func (h *Handler) SetupRouter(verbose bool) *mux.Router {
	r := mux.NewRouter()

	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware(verbose))
	r.NotFoundHandler = http.HandlerFunc(NotFoundHandler)

	api := r.PathPrefix(APIPrefix).Subrouter()
	api.Use(h.CountingMiddleware)

	// Login (no key)
	api.HandleFunc("/login", h.Login).Methods("POST")

	// Everything else is addressed by API key
	keyed := api.PathPrefix("/{key}").Subrouter()
	keyed.Use(h.RateLimitMiddleware)
	keyed.Use(h.KeyMiddleware)

	// Account
	keyed.HandleFunc("/me", h.Me).Methods("GET", "POST")
	keyed.HandleFunc("/my-games", h.MyGames).Methods("GET")
	keyed.HandleFunc("/my-owned-keys", h.MyOwnedKeys).Methods("GET")
	keyed.HandleFunc("/my-collections", h.MyCollections).Methods("GET")

	// Games
	keyed.HandleFunc("/game/{id}", h.Game).Methods("GET")
	keyed.HandleFunc("/game/{id}/uploads", h.GameUploads).Methods("GET")
	keyed.HandleFunc("/search/games", h.Search).Methods("GET")

	// Collections
	keyed.HandleFunc("/collection/{id}", h.Collection).Methods("GET")
	keyed.HandleFunc("/collection/{id}/games", h.CollectionGames).Methods("GET")

	// Uploads
	keyed.HandleFunc("/download-key/{download_key_id}/uploads", h.DownloadKeyUploads).Methods("GET")
	keyed.HandleFunc("/download-key/{download_key_id}/download/{upload_id}", h.DownloadKeyDownload).Methods("GET")
	keyed.HandleFunc("/upload/{upload_id}/download", h.UploadDownload).Methods("GET")

	return r
}

// NotFoundHandler handles 404 errors
func NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	respondStatus(w, http.StatusNotFound)
}
