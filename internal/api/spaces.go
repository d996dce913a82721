package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"collab-go/internal/collab"
)

func (s *Server) handleCreateSpace(w http.ResponseWriter, r *http.Request) {
	var in collab.SpaceInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	space, content, err := s.service.CreateSpace(r.Context(), currentUser(r), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"space": space, "content": content})
}

type memberRequest struct {
	UserID  string `json:"user_id"`
	IsAdmin bool   `json:"is_admin"`
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var in memberRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	spaceID := mux.Vars(r)["sid"]
	if err := s.service.AddMember(r.Context(), spaceID, currentUser(r), in.UserID, in.IsAdmin); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleListContents(w http.ResponseWriter, r *http.Request) {
	contents, err := s.service.ListContents(r.Context(), mux.Vars(r)["sid"], currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, contents)
}

func (s *Server) handleCreateContent(w http.ResponseWriter, r *http.Request) {
	var in collab.ContentInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	content, err := s.service.CreateContent(r.Context(), mux.Vars(r)["sid"], currentUser(r), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, content)
}
