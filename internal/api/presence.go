package api

import (
	"errors"
	"math"
	"net/http"
	"time"

	"collab-go/internal/collab"
)

func (s *Server) handleListCursors(w http.ResponseWriter, r *http.Request) {
	window, err := queryInt(r, "window", 0)
	if err == nil && window > math.MaxInt64/int64(time.Second) {
		err = errors.New("window is too large")
	}
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	includeSelf, err := queryBool(r, "include_self")
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ops, err := s.service.ListActive(r.Context(), refFrom(r), currentUser(r), collab.ActiveQuery{
		Window:      time.Duration(window) * time.Second,
		IncludeSelf: includeSelf,
	})
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ops)
}

func (s *Server) handleUpdateCursor(w http.ResponseWriter, r *http.Request) {
	var in collab.CursorInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	op, err := s.service.UpdateCursor(r.Context(), refFrom(r), currentUser(r), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, op)
}

// handleSubscribe upgrades to a websocket that receives every event for the
// content. Callers must be able to view it.
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		respondError(w, http.StatusNotFound, "live updates are disabled")
		return
	}
	ref := refFrom(r)
	if _, err := s.service.GetContent(r.Context(), ref, currentUser(r)); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	if err := s.hub.ServeWS(w, r, collab.Topic(ref)); err != nil {
		// The upgrader has already answered the client.
		s.logger.Warn("websocket subscribe failed", "topic", collab.Topic(ref), "error", err)
	}
}
