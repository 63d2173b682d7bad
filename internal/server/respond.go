package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/abhisek/stepwise/internal/apperr"
	"github.com/abhisek/stepwise/internal/scoring"
	"github.com/abhisek/stepwise/internal/session"
	"github.com/abhisek/stepwise/internal/store"
	"github.com/abhisek/stepwise/internal/users"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}

// statusOf maps an error to its HTTP status.
func statusOf(err error) int {
	var te *store.TransientError
	switch {
	case apperr.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, session.ErrCheckpointActive),
		errors.Is(err, session.ErrNoCheckpoint),
		errors.Is(err, session.ErrNotActive),
		errors.Is(err, session.ErrNotCompleted):
		return http.StatusConflict
	case errors.As(err, &te):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	body := errorBody{Error: err.Error()}
	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", RequestIDFrom(r.Context()),
			"error", err,
		)
		if status == http.StatusInternalServerError {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

// sessionResponse is a session view plus the persistence steps that
// failed when the session completed.
type sessionResponse struct {
	session.View
	Warnings []string `json:"warnings,omitempty"`
}

// writeSession writes a view. A partial completion is still a success;
// its failed steps are reported as warnings.
func (s *Server) writeSession(w http.ResponseWriter, r *http.Request, status int, v session.View, err error) {
	var pce *scoring.PartialCompletionError
	if err != nil && !errors.As(err, &pce) {
		s.fail(w, r, err)
		return
	}
	resp := sessionResponse{View: v}
	if pce != nil {
		for _, f := range pce.Failures {
			resp.Warnings = append(resp.Warnings, f.Error())
		}
		s.Logger.Warn("session completed partially",
			"session_id", v.SessionID,
			"request_id", RequestIDFrom(r.Context()),
			"error", err,
		)
	}
	writeJSON(w, status, resp)
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("body", "%v", err)
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperr.Invalid("id", "not an id: %q", raw)
	}
	return id, nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.Invalid(key, "not a number: %q", raw)
	}
	return n, nil
}

func invalidOption() error {
	return apperr.Invalid("option", "required")
}
