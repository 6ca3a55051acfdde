// client.go - HuggingFace Hub Client fuer Modell-Abfragen
// Stellt einen HTTP-Client fuer den HuggingFace Hub bereit.
// Enthaelt: Client-Optionen, Model-Info-Abfrage, Fehlerbehandlung.
package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/pictaflux/flowpaint/version"
)

// Konstanten fuer die HuggingFace Hub API
const (
	DefaultHubURL        = "https://huggingface.co"
	DefaultAPIURL        = "https://huggingface.co/api"
	DefaultClientTimeout = 1800 // Sekunden; ONNX-Exporte sind mehrere GB gross
	EnvHFToken           = "HF_TOKEN"
	EnvHFEndpoint        = "HF_ENDPOINT"
)

// Fehler-Definitionen
var (
	ErrModelNotFound   = errors.New("modell nicht gefunden")
	ErrUnauthorized    = errors.New("authentifizierung fehlgeschlagen")
	ErrRateLimited     = errors.New("rate limit ueberschritten")
	ErrNetworkError    = errors.New("netzwerkfehler")
	ErrInvalidModelID  = errors.New("ungueltige modell-id")
	ErrInvalidResponse = errors.New("ungueltige server-antwort")
)

// APIModelInfo enthaelt Metadaten eines Hub-Repositories aus der API
type APIModelInfo struct {
	ID           string       `json:"id"`
	SHA          string       `json:"sha"`
	LastModified time.Time    `json:"lastModified"`
	Private      bool         `json:"private"`
	Gated        any          `json:"gated"` // bool oder string (false, "auto", "manual")
	Tags         []string     `json:"tags"`
	Downloads    int64        `json:"downloads"`
	Siblings     []APISibling `json:"siblings"`
}

// IsGated prueft ob das Repository einen Zugriffs-Token erfordert
func (m *APIModelInfo) IsGated() bool {
	switch v := m.Gated.(type) {
	case bool:
		return v
	case string:
		return v != "" && v != "false"
	default:
		return false
	}
}

// APISibling repraesentiert eine Datei im Hub-Repository
type APISibling struct {
	Filename string   `json:"rfilename"`
	Size     int64    `json:"size"`
	BlobID   string   `json:"blobId"`
	LFS      *LFSInfo `json:"lfs,omitempty"`
}

// LFSInfo enthaelt LFS-Metadaten fuer grosse Dateien
type LFSInfo struct {
	Size        int64  `json:"size"`
	SHA256      string `json:"sha256"`
	PointerSize int64  `json:"pointerSize"`
}

// FileSize gibt die tatsaechliche Dateigroesse zurueck (LFS-Blobs melden
// die Blob-Groesse separat vom Pointer)
func (s *APISibling) FileSize() int64 {
	if s.LFS != nil && s.LFS.Size > 0 {
		return s.LFS.Size
	}
	return s.Size
}

// Client ist der HuggingFace Hub Client
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiURL     string
	token      string
	userAgent  string
}

// ClientOption ist eine Funktion zur Konfiguration des Clients
type ClientOption func(*Client)

// WithToken setzt den HuggingFace API Token
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithBaseURL setzt eine eigene Hub-URL (Mirror oder Test-Server)
func WithBaseURL(url string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(url, "/")
		c.apiURL = c.baseURL + "/api"
	}
}

// WithClientTimeout setzt das HTTP-Timeout
func WithClientTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

// WithHTTPClient setzt einen eigenen HTTP-Client
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = httpClient }
}

// NewClient erstellt einen Hub-Client; Token und Endpoint kommen aus
// HF_TOKEN bzw. HF_ENDPOINT, Optionen ueberschreiben beides
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultClientTimeout * time.Second},
		baseURL:    DefaultHubURL,
		apiURL:     DefaultAPIURL,
		token:      os.Getenv(EnvHFToken),
		userAgent:  "flowpaint/" + version.Version,
	}
	if endpoint := os.Getenv(EnvHFEndpoint); endpoint != "" {
		WithBaseURL(endpoint)(c)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetModelInfo ruft Metadaten eines Repositories ab
func (c *Client) GetModelInfo(modelID string) (*APIModelInfo, error) {
	return c.GetModelInfoWithContext(context.Background(), modelID)
}

// GetModelInfoWithContext ruft Metadaten mit Context ab; blobs=true liefert
// die echten Dateigroessen fuer LFS-Eintraege
func (c *Client) GetModelInfoWithContext(ctx context.Context, modelID string) (*APIModelInfo, error) {
	if err := validateModelID(modelID); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/models/%s?blobs=true", c.apiURL, modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()
	if err := c.handleResponseError(resp); err != nil {
		return nil, err
	}
	var info APIModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &info, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) handleResponseError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return nil
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
			return fmt.Errorf("%w: status %d - %s", ErrInvalidResponse, resp.StatusCode, string(body))
		}
		return nil
	}
}

func validateModelID(modelID string) error {
	if modelID == "" {
		return fmt.Errorf("%w: modell-id darf nicht leer sein", ErrInvalidModelID)
	}
	parts := strings.Split(modelID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: erwartet format 'owner/model'", ErrInvalidModelID)
	}
	return nil
}
