// Package server exposes the learning engine as a JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/abhisek/stepwise/internal/catalog"
	"github.com/abhisek/stepwise/internal/diagnostic"
	"github.com/abhisek/stepwise/internal/leaderboard"
	"github.com/abhisek/stepwise/internal/session"
	"github.com/abhisek/stepwise/internal/store"
	"github.com/abhisek/stepwise/internal/users"
)

// Deps are the services behind the API.
type Deps struct {
	Store      *store.Store
	Users      *users.Service
	Catalog    *catalog.Service
	Diagnostic *diagnostic.Service
	Engine     *session.Engine
	Board      leaderboard.Board
	Logger     *slog.Logger
}

// Server routes API requests to the services.
type Server struct {
	Deps
	router *mux.Router
}

// New builds the router. A nil Board serves an empty leaderboard.
func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Board == nil {
		d.Board = leaderboard.Noop{}
	}
	s := &Server{Deps: d, router: mux.NewRouter()}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(requestID, s.accessLog, s.recoverer, cors, jsonContent)
	r.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodOptions)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", s.register).Methods(http.MethodPost)
	api.HandleFunc("/login", s.login).Methods(http.MethodPost)

	api.HandleFunc("/users/{id:[0-9]+}", s.getUser).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/progress", s.userProgress).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/diagnostic", s.completeDiagnostic).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}/sessions", s.startSession).Methods(http.MethodPost)
	api.HandleFunc("/users/{id:[0-9]+}/sessions", s.userSessions).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/badges", s.userBadges).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/summaries", s.userSummaries).Methods(http.MethodGet)
	api.HandleFunc("/users/{id:[0-9]+}/rank", s.userRank).Methods(http.MethodGet)

	api.HandleFunc("/topics", s.listTopics).Methods(http.MethodGet)
	api.HandleFunc("/topics/search", s.searchTopics).Methods(http.MethodGet)
	api.HandleFunc("/topics/{id:[0-9]+}", s.getTopic).Methods(http.MethodGet)
	api.HandleFunc("/topics/{id:[0-9]+}/questions", s.topicQuestions).Methods(http.MethodGet)
	api.HandleFunc("/topics/{id:[0-9]+}/diagnostic", s.diagnosticQuestions).Methods(http.MethodGet)

	api.HandleFunc("/sessions/{id:[0-9]+}", s.getSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{id:[0-9]+}/answer", s.submitAnswer).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id:[0-9]+}/hint", s.requestHint).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id:[0-9]+}/continue", s.continueSession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id:[0-9]+}/simplify", s.simplifySession).Methods(http.MethodPost)
	api.HandleFunc("/sessions/{id:[0-9]+}/retry", s.retryCompletion).Methods(http.MethodPost)

	api.HandleFunc("/leaderboard", s.leaderboard).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.Ping(r.Context()); err != nil {
		s.Logger.Warn("health check", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"activeSessions": s.Engine.Len(),
	})
}
