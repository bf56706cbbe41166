package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/betrace-hq/betrace-sub002/internal/core"
)

type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	correlationID, _ := r.Context().Value("correlation_id").(string)
	resp := ErrorResponse{
		Error:         msg,
		CorrelationID: correlationID,
	}
	JSON(w, r, resp, status)
}

// Err maps domain errors to HTTP status codes.
func Err(w http.ResponseWriter, r *http.Request, err error, short string) {
	status := http.StatusBadRequest // generic default status
	switch {
	case errors.Is(err, core.ErrTraceNotFound),
		errors.Is(err, core.ErrSignalNotFound),
		errors.Is(err, core.ErrKeyNotFound),
		errors.Is(err, core.ErrAccountNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrDuplicateTransferID),
		errors.Is(err, core.ErrInvalidStatusTransition):
		status = http.StatusConflict
	case errors.Is(err, core.ErrSigningKeyUnavailable),
		errors.Is(err, core.ErrKeyProviderUnavailable),
		core.IsRetryable(err):
		status = http.StatusServiceUnavailable
	}
	Error(w, r, short+": "+err.Error(), status)
}
