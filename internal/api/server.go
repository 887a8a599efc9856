package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"katalog-linkow/internal/archive"
	"katalog-linkow/internal/catalog"
	"katalog-linkow/internal/codec"
	"katalog-linkow/internal/collab"
	"katalog-linkow/internal/config"
	"katalog-linkow/internal/tree"
	"katalog-linkow/internal/websocket"
	"katalog-linkow/internal/zipper"
)

// Server owns the in-memory forest. Every mutating handler takes mu, so
// the tree has a single logical owner even though chi serves requests
// concurrently.
type Server struct {
	config  *config.Config
	mu      sync.Mutex
	forest  *tree.Forest
	store   *codec.Store
	vault   *codec.Vault
	secrets *codec.SecretCache
	builder *catalog.Builder
	wsHub   *websocket.Hub
	tags    collab.TagRegistry

	sessionMu sync.Mutex
	sessions  map[string]time.Time // refresh token -> expiry
}

func NewServer(cfg *config.Config, forest *tree.Forest, store *codec.Store, vault *codec.Vault, secrets *codec.SecretCache, wsHub *websocket.Hub) *Server {
	s := &Server{
		config:   cfg,
		forest:   forest,
		store:    store,
		vault:    vault,
		secrets:  secrets,
		wsHub:    wsHub,
		tags:     collab.StaticTags{},
		sessions: make(map[string]time.Time),
	}
	s.builder = catalog.New(s.passwordProvider())
	return s
}

func (s *Server) zipConfig() zipper.Config {
	z := s.config.Zip
	cfg := zipper.DefaultConfig()
	if z.DeleteRetries > 0 {
		cfg.DeleteRetries = z.DeleteRetries
	}
	if z.DeleteRetryDelayMS > 0 {
		cfg.DeleteRetryDelay = time.Duration(z.DeleteRetryDelayMS) * time.Millisecond
	}
	if z.CatalogRetries > 0 {
		cfg.CatalogRetries = z.CatalogRetries
	}
	if z.CatalogBackoffMS > 0 {
		cfg.CatalogBackoff = time.Duration(z.CatalogBackoffMS) * time.Millisecond
	}
	return cfg
}

// engine builds a per-request archive engine carrying the confirmation
// answer the client already gave via the request flag.
func (s *Server) engine(confirmed bool) *zipper.Engine {
	return zipper.NewEngine(s.builder, flagConfirmer(confirmed), s.statusReporter(), s.zipConfig())
}

func (s *Server) archiveService(confirmed bool) *archive.Service {
	return archive.NewService(s.forest, s.store, flagConfirmer(confirmed), s.statusReporter())
}

// flagConfirmer answers every confirmation with the flag the HTTP
// client sent. The actual dialog happened on the client's side.
type flagConfirmer bool

func (f flagConfirmer) Confirm(title, message string) bool { return bool(f) }

type hubReporter struct {
	hub *websocket.Hub
}

func (r hubReporter) ReportStatus(text string) {
	if r.hub == nil {
		return
	}
	msg, _ := json.Marshal(map[string]interface{}{
		"event_type": "status",
		"payload":    map[string]string{"text": text},
	})
	r.hub.Publish(msg)
}

func (s *Server) statusReporter() collab.StatusReporter {
	return hubReporter{hub: s.wsHub}
}

// secretsProvider resolves category passwords from the session cache,
// honouring the root's protection mode.
type secretsProvider struct {
	secrets *codec.SecretCache
}

func (p secretsProvider) PasswordForCategory(category *tree.Node) (string, bool) {
	if category == nil || category.Category == nil {
		return "", false
	}
	switch category.Category.PasswordProtection {
	case tree.ProtectionGlobal:
		return p.secrets.Global()
	case tree.ProtectionOwn:
		return p.secrets.ForCategory(category.Name())
	default:
		return "", false
	}
}

func (s *Server) passwordProvider() collab.PasswordProvider {
	return secretsProvider{secrets: s.secrets}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
