// Package devserver is an in-memory MDD API server for local runs and
// integration tests.
//
// It implements the endpoints the client pipeline depends on: login issues a
// short-lived HS256 access token plus an HttpOnly refresh cookie scoped to
// /api/auth, refresh rotates that cookie, and every other /api route requires
// a valid bearer token. Nothing is persisted.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// maxRequestSize bounds decoded request bodies
const maxRequestSize = 1 << 20

// Server serves the MDD API from memory
type Server struct {
	config     *Config
	logger     *slog.Logger
	now        func() time.Time
	bcryptCost int

	store    *memoryStore
	sessions *sessionStore
	router   *mux.Router
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server's logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces the time source used for token and session expiry
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// WithBcryptCost sets the password hashing cost (tests use bcrypt.MinCost)
func WithBcryptCost(cost int) Option {
	return func(s *Server) {
		s.bcryptCost = cost
	}
}

// New creates a Server. A nil config means DefaultConfig().
func New(config *Config, opts ...Option) (*Server, error) {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	cfg.EnsureDefaults()

	s := &Server{
		config:     &cfg,
		logger:     slog.Default(),
		now:        nowUTC,
		bcryptCost: bcrypt.DefaultCost,
		sessions:   newSessionStore(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.config.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		s.config.JWTSecret = secret
		s.logger.Warn("no JWT secret configured, using a random one")
	}
	if s.bcryptCost < bcrypt.MinCost || s.bcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("invalid bcrypt cost %d", s.bcryptCost)
	}

	s.store = newMemoryStore(s.config.Subjects)
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, notFound("Resource not found"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, &apiError{Code: "METHOD_NOT_ALLOWED", Message: "Method not allowed"})
	})

	auth := r.PathPrefix("/api/auth").Subrouter()
	auth.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	auth.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	auth.HandleFunc("/refresh", s.handleRefresh).Methods(http.MethodPost)
	auth.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	protected := r.PathPrefix("/api").Subrouter()
	protected.Use(s.requireBearer)
	protected.HandleFunc("/feed", s.handleFeed).Methods(http.MethodGet)
	protected.HandleFunc("/subjects", s.handleListSubjects).Methods(http.MethodGet)
	protected.HandleFunc("/subjects/{id:[0-9]+}/subscribe", s.handleSubscribe).Methods(http.MethodPost)
	protected.HandleFunc("/subjects/{id:[0-9]+}/subscribe", s.handleUnsubscribe).Methods(http.MethodDelete)
	protected.HandleFunc("/posts", s.handleCreatePost).Methods(http.MethodPost)
	protected.HandleFunc("/posts/{id:[0-9]+}", s.handleGetPost).Methods(http.MethodGet)
	protected.HandleFunc("/posts/{id:[0-9]+}/comments", s.handleAddComment).Methods(http.MethodPost)
	protected.HandleFunc("/users/me", s.handleGetProfile).Methods(http.MethodGet)
	protected.HandleFunc("/users/me", s.handleUpdateProfile).Methods(http.MethodPut)

	return r
}

// Handler returns the server's HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dev server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
