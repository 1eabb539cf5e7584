// Package server exposes tasks over REST and conversations over WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/ShayCichocki/tasktalk/internal/llm"
	"github.com/ShayCichocki/tasktalk/internal/session"
	"github.com/ShayCichocki/tasktalk/internal/tools"
)

const defaultShutdownTimeout = 5 * time.Second

// Options configures a Server.
type Options struct {
	AllowedOrigins []string
	// TokenDelay paces word-by-word answer frames. Zero disables the pause.
	TokenDelay      time.Duration
	ShutdownTimeout time.Duration
	// Tracker, when set, is reported by /health.
	Tracker *llm.TokenTracker
	Version string
}

// Server is the HTTP front end.
type Server struct {
	store    tools.TaskStore
	sessions *session.Manager
	opts     Options
	origins  map[string]bool
	router   *mux.Router
	upgrader websocket.Upgrader
}

// New creates a server over store and sessions.
func New(store tools.TaskStore, sessions *session.Manager, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	s := &Server{
		store:    store,
		sessions: sessions,
		opts:     opts,
		origins:  make(map[string]bool, len(opts.AllowedOrigins)),
	}
	for _, o := range opts.AllowedOrigins {
		s.origins[strings.TrimRight(o, "/")] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleInfo).Methods(http.MethodGet)
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/todos").Subrouter()
	api.HandleFunc("", s.handleListTodos).Methods(http.MethodGet)
	api.HandleFunc("/", s.handleListTodos).Methods(http.MethodGet)
	api.HandleFunc("", s.handleCreateTodo).Methods(http.MethodPost)
	api.HandleFunc("/", s.handleCreateTodo).Methods(http.MethodPost)
	api.HandleFunc("/{id}", s.handleGetTodo).Methods(http.MethodGet)
	api.HandleFunc("/{id}", s.handleUpdateTodo).Methods(http.MethodPut)
	api.HandleFunc("/{id}", s.handleDeleteTodo).Methods(http.MethodDelete)

	r.HandleFunc("/ws/chat", s.handleChat)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusNotFound, "Not Found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})

	s.router = r
	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.cors(s.router)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully within the configured timeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[server] shutdown error: %v", err)
		}
	}()

	log.Printf("[server] listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type infoResponse struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Status    string `json:"status"`
	WebSocket string `json:"websocket"`
}

func (s *Server) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, infoResponse{
		Name:      "TaskTalk API",
		Version:   s.opts.Version,
		Status:    "running",
		WebSocket: "/ws/chat",
	})
}

type healthResponse struct {
	Status     string `json:"status"`
	Sessions   int    `json:"sessions"`
	ModelCalls int    `json:"model_calls"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "healthy", Sessions: s.sessions.Len()}
	if s.opts.Tracker != nil {
		resp.ModelCalls = s.opts.Tracker.Calls()
	}
	writeJSON(w, http.StatusOK, resp)
}

// cors answers preflight requests and tags responses for allowed origins.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.origins[origin] {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				allowHeaders := r.Header.Get("Access-Control-Request-Headers")
				if allowHeaders == "" {
					allowHeaders = "*"
				}
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				h.Set("Access-Control-Max-Age", "600")
				w.WriteHeader(http.StatusOK)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin admits configured origins, same-host pages and non-browser clients.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.origins[origin] {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[server] encode response: %v", err)
	}
}

type detailResponse struct {
	Detail string `json:"detail"`
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, detailResponse{Detail: detail})
}
