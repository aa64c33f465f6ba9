package itchio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// DefaultAPIRoot is the public itch.io host
const DefaultAPIRoot = "https://itch.io"

// APIPath is appended to the API root to form the base of every request
const APIPath = "/api/1"

// SourceDesktop is sent by both login endpoints
const SourceDesktop = "desktop"

// Fields of a response body that are documented as arrays
const (
	FieldGames       = "games"
	FieldOwnedKeys   = "owned_keys"
	FieldCollections = "collections"
	FieldUploads     = "uploads"
)

// Data holds the parameters of a request: a mapping of names to scalars
type Data map[string]interface{}

// Response is what a Transport hands back: the wire status and the raw JSON body
type Response struct {
	StatusCode int
	Body       json.RawMessage
}

// Body is a decoded JSON response object
type Body map[string]interface{}

// Decode re-decodes the body into a typed value
func (b Body) Decode(v interface{}) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("failed to marshal body: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to decode body: %w", err)
	}
	return nil
}

// decodeBody parses a raw body, keeping numbers as json.Number
func decodeBody(raw []byte) (Body, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Body{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var body Body
	if err := dec.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if body == nil {
		body = Body{}
	}
	return body, nil
}

// Diagnostic is emitted once per completed transport call
type Diagnostic struct {
	WaitMS    int64  `json:"wait_ms"`
	HTTPMS    int64  `json:"http_ms"`
	Method    string `json:"method"`
	ShortPath string `json:"short_path"`
	DataJSON  string `json:"data_json"`
}

// DiagnosticSink receives request diagnostics. Implementations must not block.
type DiagnosticSink interface {
	Record(d Diagnostic)
}

// ClientConfig holds the configuration for the itch.io client
type ClientConfig struct {
	APIRoot string
	// Cooldown is the minimum spacing between requests; negative disables
	// pacing and zero picks the default.
	Cooldown time.Duration
	Timeout  time.Duration
}

// DefaultConfig returns a default client configuration
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		APIRoot:  DefaultAPIRoot,
		Cooldown: 130 * time.Millisecond,
		Timeout:  30 * time.Second,
	}
}

// User is an itch.io account
type User struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	DisplayName   string `json:"display_name,omitempty"`
	URL           string `json:"url,omitempty"`
	CoverURL      string `json:"cover_url,omitempty"`
	Developer     bool   `json:"developer,omitempty"`
	PressUser     bool   `json:"press_user,omitempty"`
	Gamer         bool   `json:"gamer,omitempty"`
	StillCoverURL string `json:"still_cover_url,omitempty"`
}

// Game is a page on itch.io
type Game struct {
	ID             int64  `json:"id"`
	Title          string `json:"title"`
	ShortText      string `json:"short_text,omitempty"`
	URL            string `json:"url"`
	CoverURL       string `json:"cover_url,omitempty"`
	Type           string `json:"type,omitempty"`
	Classification string `json:"classification,omitempty"`
	MinPrice       int64  `json:"min_price,omitempty"`
	CanBeBought    bool   `json:"can_be_bought,omitempty"`
	PWindows       bool   `json:"p_windows,omitempty"`
	PLinux         bool   `json:"p_linux,omitempty"`
	POSX           bool   `json:"p_osx,omitempty"`
	PAndroid       bool   `json:"p_android,omitempty"`
	User           *User  `json:"user,omitempty"`
	CreatedAt      string `json:"created_at,omitempty"`
	PublishedAt    string `json:"published_at,omitempty"`
}

// OwnedKey is a download key: proof of purchase of a game
type OwnedKey struct {
	ID        int64  `json:"id"`
	GameID    int64  `json:"game_id"`
	Game      *Game  `json:"game,omitempty"`
	Downloads int64  `json:"downloads,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Collection is a user-curated list of games
type Collection struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	GamesCount int64  `json:"games_count,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// Upload is a downloadable file attached to a game
type Upload struct {
	ID       int64  `json:"id"`
	GameID   int64  `json:"game_id,omitempty"`
	Filename string `json:"filename"`
	Size     int64  `json:"size,omitempty"`
	PWindows bool   `json:"p_windows,omitempty"`
	PLinux   bool   `json:"p_linux,omitempty"`
	POSX     bool   `json:"p_osx,omitempty"`
	PAndroid bool   `json:"p_android,omitempty"`
}

// DownloadURL is a short-lived link to an upload's file
type DownloadURL struct {
	URL string `json:"url"`
}

// APIKey is returned by a password login
type APIKey struct {
	ID     int64  `json:"id"`
	Key    string `json:"key"`
	UserID int64  `json:"user_id"`
}

// LoginResult is the result of LoginWithPassword
type LoginResult struct {
	Key APIKey `json:"key"`
}

// MeResult is the result of Me and LoginKey
type MeResult struct {
	User User `json:"user"`
}

// GameResult is the result of Game
type GameResult struct {
	Game Game `json:"game"`
}

// GamesResult is the result of MyGames, Search and CollectionGames
type GamesResult struct {
	Games   []Game `json:"games"`
	Page    int64  `json:"page,omitempty"`
	PerPage int64  `json:"per_page,omitempty"`
}

// OwnedKeysResult is the result of MyOwnedKeys
type OwnedKeysResult struct {
	OwnedKeys []OwnedKey `json:"owned_keys"`
	Page      int64      `json:"page,omitempty"`
	PerPage   int64      `json:"per_page,omitempty"`
}

// CollectionsResult is the result of MyCollections
type CollectionsResult struct {
	Collections []Collection `json:"collections"`
}

// CollectionResult is the result of Collection
type CollectionResult struct {
	Collection Collection `json:"collection"`
}

// UploadsResult is the result of GameUploads and DownloadKeyUploads
type UploadsResult struct {
	Uploads []Upload `json:"uploads"`
}
