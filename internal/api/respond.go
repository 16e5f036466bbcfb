package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clinic/m/internal/apperr"
)

func decodeJSON(r *http.Request, dest interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// writeError maps a service error to its HTTP status. Storage failures are
// logged and reported with a generic message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if v, ok := apperr.AsValidation(err); ok {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  "validation failed",
			"fields": v.Fields,
		})
		return
	}
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		respondError(w, http.StatusForbidden, "insufficient permissions")
	default:
		h.log.Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
