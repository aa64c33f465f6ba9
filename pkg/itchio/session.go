package itchio

import (
	"context"
	"fmt"
)

// Session is the API as seen by one user: every path is prefixed with the
// user's API key. Sessions are cheap; create one per login and drop it when
// done, there is nothing to close.
type Session struct {
	client *Client
	key    string
}

// NewSession binds an API key to a client
func NewSession(client *Client, key string) *Session {
	return &Session{
		client: client,
		key:    key,
	}
}

// Key returns the API key this session is bound to
func (s *Session) Key() string {
	return s.key
}

// Client returns the shared client behind this session
func (s *Session) Client() *Client {
	return s.client
}

// Request issues method on /{key}{path}
func (s *Session) Request(ctx context.Context, method, path string, data Data) (Body, error) {
	if s.key == "" {
		return nil, ErrEmptyKey
	}
	return s.client.Request(ctx, method, "/"+s.key+path, data)
}

// requestArray is Request followed by normalization of one array field
func (s *Session) requestArray(ctx context.Context, path string, data Data, field string) (Body, error) {
	res, err := s.Request(ctx, "get", path, data)
	if err != nil {
		return nil, err
	}
	normalizeField(res, field)
	return res, nil
}

// MyGames lists the games the user develops
// TODO: the endpoint is paged; callers only ever see the first page.
func (s *Session) MyGames(ctx context.Context, params Data) (Body, error) {
	return s.requestArray(ctx, "/my-games", params, FieldGames)
}

// MyOwnedKeys lists the user's purchases
func (s *Session) MyOwnedKeys(ctx context.Context, params Data) (Body, error) {
	return s.requestArray(ctx, "/my-owned-keys", params, FieldOwnedKeys)
}

// Me returns the user's profile
func (s *Session) Me(ctx context.Context) (Body, error) {
	return s.Request(ctx, "get", "/me", nil)
}

// MyCollections lists the user's collections
func (s *Session) MyCollections(ctx context.Context) (Body, error) {
	return s.requestArray(ctx, "/my-collections", nil, FieldCollections)
}

// Game fetches a single game
func (s *Session) Game(ctx context.Context, gameID int64) (Body, error) {
	return s.Request(ctx, "get", fmt.Sprintf("/game/%d", gameID), nil)
}

// Collection fetches a single collection
func (s *Session) Collection(ctx context.Context, collectionID int64) (Body, error) {
	return s.Request(ctx, "get", fmt.Sprintf("/collection/%d", collectionID), nil)
}

// CollectionGames fetches one page of a collection's games. Pages start at 1.
func (s *Session) CollectionGames(ctx context.Context, collectionID int64, page int) (Body, error) {
	if page < 1 {
		page = 1
	}
	return s.Request(ctx, "get", fmt.Sprintf("/collection/%d/games", collectionID), Data{
		"page": page,
	})
}

// Search looks games up by title
func (s *Session) Search(ctx context.Context, query string) (Body, error) {
	return s.requestArray(ctx, "/search/games", Data{"query": query}, FieldGames)
}

// DownloadKeyUploads lists the uploads a download key gives access to
func (s *Session) DownloadKeyUploads(ctx context.Context, downloadKeyID int64) (Body, error) {
	return s.Request(ctx, "get", fmt.Sprintf("/download-key/%d/uploads", downloadKeyID), nil)
}

// DownloadUploadWithKey resolves a download URL for an upload through a download key
func (s *Session) DownloadUploadWithKey(ctx context.Context, downloadKeyID, uploadID int64) (Body, error) {
	return s.Request(ctx, "get", fmt.Sprintf("/download-key/%d/download/%d", downloadKeyID, uploadID), nil)
}

// GameUploads lists the uploads of a game
func (s *Session) GameUploads(ctx context.Context, gameID int64) (Body, error) {
	return s.requestArray(ctx, fmt.Sprintf("/game/%d/uploads", gameID), nil, FieldUploads)
}

// DownloadUpload resolves a download URL for a free upload
func (s *Session) DownloadUpload(ctx context.Context, uploadID int64) (Body, error) {
	return s.Request(ctx, "get", fmt.Sprintf("/upload/%d/download", uploadID), nil)
}
