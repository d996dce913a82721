package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"collab-go/internal/collab"
	"collab-go/internal/model"
)

const maxBodySize = 4 << 20

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, collab.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, collab.ErrNotAMember), errors.Is(err, collab.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, collab.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, collab.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, collab.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError writes err with its mapped status. Storage failures are
// logged and hidden from the client; everything else is shown verbatim.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, status, collab.ErrStorage.Error())
		return
	}
	respondError(w, status, err.Error())
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request payload: %w", err)
	}
	return nil
}

func refFrom(r *http.Request) model.Ref {
	vars := mux.Vars(r)
	return model.Ref{SpaceID: vars["sid"], ContentID: vars["cid"]}
}

func queryInt(r *http.Request, name string, def int64) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	return n, nil
}

func queryBool(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean", name)
	}
	return b, nil
}
