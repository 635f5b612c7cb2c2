package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/schemas"
)

type errResp struct {
	Error  string              `json:"error"`
	Fields []apperr.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	cause := errors.Cause(err)
	switch {
	case apperr.IsValidation(err):
		v := cause.(*apperr.ValidationError)
		writeJSON(w, http.StatusBadRequest, errResp{Error: v.Error(), Fields: v.Fields})
	case apperr.IsForbidden(err):
		writeJSON(w, http.StatusForbidden, errResp{Error: cause.Error()})
	case apperr.IsNotFound(err):
		writeJSON(w, http.StatusNotFound, errResp{Error: cause.Error()})
	case apperr.IsTransition(err):
		writeJSON(w, http.StatusConflict, errResp{Error: cause.Error()})
	case advisor.IsError(err):
		writeJSON(w, http.StatusUnprocessableEntity, errResp{Error: err.Error()})
	default:
		s.log.Error("request failed", err, map[string]interface{}{"method": r.Method, "path": r.URL.Path}, actorFrom(r))
		writeJSON(w, http.StatusInternalServerError, errResp{Error: "internal error"})
	}
}

// decode reads a JSON body into v and validates it.
func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return apperr.NewValidationError(errors.Wrap(err, "invalid JSON body"))
	}
	return schemas.Validate(v)
}

func idParam(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.NewValidationError(errors.Errorf("invalid %s", name), apperr.FieldError{Field: name, Error: "must be a positive integer"})
	}
	return id, nil
}
