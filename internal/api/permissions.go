package api

import (
	"net/http"

	"collab-go/internal/collab"
)

func (s *Server) handleListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := s.service.ListPermissions(r.Context(), refFrom(r), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}

type permissionsRequest struct {
	Permissions []collab.Grant `json:"permissions"`
}

func (s *Server) handleUpdatePermissions(w http.ResponseWriter, r *http.Request) {
	var in permissionsRequest
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	perms, err := s.service.UpdatePermissions(r.Context(), refFrom(r), currentUser(r), in.Permissions)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, perms)
}
