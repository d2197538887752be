package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/iforddow/bizaudo-server/internal/errors"
)

type errorResponse struct {
	Error      string   `json:"error"`
	Violations []string `json:"violations,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps service errors onto HTTP statuses. Anything outside the
// known categories is logged and reported as a generic 500 so internals
// never leak into responses.
func writeError(w http.ResponseWriter, err error) {
	var vErr *apperrors.ValidationError
	if apperrors.As(err, &vErr) {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:      apperrors.ErrValidation.Error(),
			Violations: vErr.Violations,
		})
		return
	}

	switch {
	case apperrors.Is(err, apperrors.ErrValidation):
		writeErrorMessage(w, http.StatusBadRequest, apperrors.ErrValidation.Error())
	case apperrors.Is(err, apperrors.ErrInvalidCredentials):
		writeErrorMessage(w, http.StatusUnauthorized, apperrors.ErrInvalidCredentials.Error())
	case apperrors.Is(err, apperrors.ErrInvalidToken):
		writeErrorMessage(w, http.StatusUnauthorized, apperrors.ErrInvalidToken.Error())
	case apperrors.Is(err, apperrors.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, apperrors.ErrNotFound.Error())
	case apperrors.Is(err, apperrors.ErrConflict):
		writeErrorMessage(w, http.StatusConflict, apperrors.ErrConflict.Error())
	default:
		log.Error().Err(err).Msg("unhandled service error")
		writeErrorMessage(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(dst)
}
