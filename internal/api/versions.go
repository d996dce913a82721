package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.service.ListVersions(r.Context(), refFrom(r), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, versions)
}

type saveVersionRequest struct {
	Label string `json:"label"`
}

func (s *Server) handleSaveVersion(w http.ResponseWriter, r *http.Request) {
	var in saveVersionRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	version, err := s.service.SaveVersion(r.Context(), refFrom(r), currentUser(r), in.Label)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, version)
}

func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.service.GetVersion(r.Context(), refFrom(r), currentUser(r), mux.Vars(r)["vid"])
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, snapshot)
}

type restoreRequest struct {
	VersionID string `json:"version_id"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var in restoreRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in.VersionID == "" {
		respondError(w, http.StatusUnprocessableEntity, "version_id is required")
		return
	}

	content, err := s.service.Restore(r.Context(), refFrom(r), currentUser(r), in.VersionID)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, content)
}
