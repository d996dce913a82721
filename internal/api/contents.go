package api

import (
	"net/http"

	"collab-go/internal/collab"
)

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request) {
	view, err := s.service.GetContent(r.Context(), refFrom(r), currentUser(r))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpdateContent(w http.ResponseWriter, r *http.Request) {
	var in collab.WholeUpdate
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	content, err := s.service.UpdateWhole(r.Context(), refFrom(r), currentUser(r), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, content)
}

func (s *Server) handleDeleteContent(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteContent(r.Context(), refFrom(r), currentUser(r)); err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var in collab.OperationInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	op, err := s.service.Submit(r.Context(), refFrom(r), currentUser(r), in)
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"operation": op, "version": op.Version})
}

func (s *Server) handleListOperations(w http.ResponseWriter, r *http.Request) {
	since, err := queryInt(r, "since", 0)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ops, err := s.service.ListOperations(r.Context(), refFrom(r), currentUser(r), since, int(limit))
	if err != nil {
		s.respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ops)
}
