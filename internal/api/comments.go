package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"collab-go/internal/collab"
)

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.service.ListComments(r.Context(), refFrom(r), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, comments)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var in collab.CommentInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := s.service.AddComment(r.Context(), refFrom(r), currentUser(r), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

type commentTextRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var in commentTextRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	comment, err := s.service.UpdateComment(r.Context(), refFrom(r), currentUser(r), mux.Vars(r)["commentId"], in.Text)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, comment)
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteComment(r.Context(), refFrom(r), currentUser(r), mux.Vars(r)["commentId"]); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

type resolveRequest struct {
	Resolved *bool `json:"resolved"`
}

// handleResolveComment marks a comment resolved. A body of
// {"resolved": false} reopens it.
func (s *Server) handleResolveComment(w http.ResponseWriter, r *http.Request) {
	var in resolveRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	resolved := in.Resolved == nil || *in.Resolved

	comment, err := s.service.ResolveComment(r.Context(), refFrom(r), currentUser(r), mux.Vars(r)["commentId"], resolved)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, comment)
}
