package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/acemcp/acemcp/internal/config"
	"github.com/acemcp/acemcp/internal/registry"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Searcher is the indexing facade the tool-execution endpoint delegates to.
type Searcher interface {
	SearchContext(ctx context.Context, projectRoot, query string) (string, error)
}

// Server is the administrative web interface: status, configuration view,
// manual tool execution, and a live log feed.
type Server struct {
	cfg         *config.Config
	store       *registry.Store
	searcher    Searcher
	broadcaster *Broadcaster
	router      chi.Router
	httpServer  *http.Server
	startTime   time.Time
}

// New creates the admin server. The broadcaster should already be wired
// into the logging setup so the /ws/logs feed carries process logs.
func New(cfg *config.Config, store *registry.Store, searcher Searcher, broadcaster *Broadcaster, port int) *Server {
	s := &Server{
		cfg:         cfg,
		store:       store,
		searcher:    searcher,
		broadcaster: broadcaster,
		startTime:   time.Now(),
	}
	s.router = s.buildRouter()
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.router,
	}
	return s
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// No request logger middleware: stdout belongs to the MCP stdio
	// transport when both servers share a process.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(90 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/", s.handleIndex)
	r.Get("/api/config", s.handleConfig)
	r.Get("/api/status", s.handleStatus)
	r.Post("/api/tools/execute", s.handleExecuteTool)
	r.Get("/ws/logs", s.handleLogStream)

	return r
}

// Router exposes the handler for tests.
func (s *Server) Router() chi.Router { return s.router }

// Start serves HTTP until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("web admin interface listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

const indexPage = `<!DOCTYPE html>
<html>
<head><title>acemcp</title></head>
<body>
<h1>acemcp</h1>
<p>Code-indexing and semantic-search bridge.</p>
<ul>
<li><a href="/api/status">status</a></li>
<li><a href="/api/config">configuration</a></li>
</ul>
<p>Connect to <code>/ws/logs</code> for the live log feed.</p>
</body>
</html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexPage))
}

// handleConfig returns the active settings snapshot with the token masked.
func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"base_url":               s.cfg.BaseURL,
		"token":                  config.MaskToken(s.cfg.Token),
		"batch_size":             s.cfg.BatchSize,
		"max_lines_per_blob":     s.cfg.MaxLinesPerBlob,
		"max_concurrent_uploads": s.cfg.MaxConcurrentUploads,
		"max_retries":            s.cfg.MaxRetries,
		"retry_delay":            s.cfg.RetryDelay,
		"text_extensions":        s.cfg.TextExtensions,
		"exclude_patterns":       s.cfg.ExcludePatterns,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.Projects()
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}

	totalIdentities := 0
	for _, n := range projects {
		totalIdentities += n
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"version":          Version,
		"uptime_seconds":   int(time.Since(s.startTime).Seconds()),
		"projects":         len(projects),
		"total_identities": totalIdentities,
		"log_clients":      s.broadcaster.ClientCount(),
	})
}

type executeToolRequest struct {
	Tool      string            `json:"tool"`
	Arguments map[string]string `json:"arguments"`
}

// handleExecuteTool runs a named tool. Dispatch is a closed enumeration:
// only search_context exists, anything else is an explicit error.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	var req executeToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid request body"})
		return
	}

	switch req.Tool {
	case "search_context":
		text, err := s.searcher.SearchContext(r.Context(), req.Arguments["project_root_path"], req.Arguments["query"])
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"type": "text", "text": fmt.Sprintf("Error: %v", err)})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"type": "text", "text": text})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": fmt.Sprintf("unknown tool: %s", req.Tool)})
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleLogStream upgrades to a websocket and streams broadcast log lines
// until the client disconnects.
func (s *Server) handleLogStream(w http.ResponseWriter, r *http.Request) {
	c, err := s.broadcaster.register()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.broadcaster.unregister(c)
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	defer s.broadcaster.unregister(c)

	// Reader goroutine: detect client disconnect.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-c.ch:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
