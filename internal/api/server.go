// Package api exposes the collaboration service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"collab-go/internal/auth"
	"collab-go/internal/collab"
	"collab-go/internal/dispatch"
)

// Server routes REST requests to the service and websocket subscriptions to
// the hub.
type Server struct {
	service *collab.Service
	auth    *auth.Authenticator
	hub     *dispatch.Hub
	logger  collab.Logger
	router  *mux.Router
}

// NewServer builds the router. hub may be nil, in which case the websocket
// endpoint answers 404.
func NewServer(service *collab.Service, authenticator *auth.Authenticator, hub *dispatch.Hub, logger collab.Logger) *Server {
	s := &Server{
		service: service,
		auth:    authenticator,
		hub:     hub,
		logger:  logger,
		router:  mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	authed := api.NewRoute().Subrouter()
	authed.Use(s.authenticate)

	// Spaces
	authed.HandleFunc("/spaces", s.handleCreateSpace).Methods("POST")
	authed.HandleFunc("/spaces/{sid}/members", s.handleAddMember).Methods("POST")
	authed.HandleFunc("/spaces/{sid}/contents", s.handleListContents).Methods("GET")
	authed.HandleFunc("/spaces/{sid}/contents", s.handleCreateContent).Methods("POST")

	// Content
	content := authed.PathPrefix("/spaces/{sid}/contents/{cid}").Subrouter()
	content.HandleFunc("", s.handleGetContent).Methods("GET")
	content.HandleFunc("", s.handleUpdateContent).Methods("PUT")
	content.HandleFunc("", s.handleDeleteContent).Methods("DELETE")

	content.HandleFunc("/operations", s.handleSubmit).Methods("POST")
	content.HandleFunc("/operations", s.handleListOperations).Methods("GET")

	content.HandleFunc("/versions", s.handleListVersions).Methods("GET")
	content.HandleFunc("/versions", s.handleSaveVersion).Methods("POST")
	content.HandleFunc("/versions/{vid}", s.handleGetVersion).Methods("GET")
	content.HandleFunc("/restore", s.handleRestore).Methods("POST")

	content.HandleFunc("/cursors", s.handleListCursors).Methods("GET")
	content.HandleFunc("/cursor", s.handleUpdateCursor).Methods("POST")

	content.HandleFunc("/comments", s.handleListComments).Methods("GET")
	content.HandleFunc("/comments", s.handleAddComment).Methods("POST")
	content.HandleFunc("/comments/{commentId}", s.handleUpdateComment).Methods("PUT")
	content.HandleFunc("/comments/{commentId}", s.handleDeleteComment).Methods("DELETE")
	content.HandleFunc("/comments/{commentId}/resolve", s.handleResolveComment).Methods("POST")

	content.HandleFunc("/permissions", s.handleListPermissions).Methods("GET")
	content.HandleFunc("/permissions", s.handleUpdatePermissions).Methods("PUT")

	// Live updates
	ws := s.router.PathPrefix("/ws").Subrouter()
	ws.Use(s.authenticate)
	ws.HandleFunc("/spaces/{sid}/contents/{cid}", s.handleSubscribe).Methods("GET")
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	s.logger.Info("listening", "addr", addr)

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("serving on %s: %w", addr, err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}
