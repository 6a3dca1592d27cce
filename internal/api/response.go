package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/safar/marketplace-orders/internal/auth"
	"github.com/safar/marketplace-orders/internal/models"
	"github.com/safar/marketplace-orders/internal/service"
)

const (
	msgServiceUnavailable = "Product service is temporarily unavailable. Please try again later."
	msgInternal           = "An unexpected error occurred. Please contact support."
)

type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

// AuthErrorEnvelope extends the envelope with a stable code and a hint for clients.
type AuthErrorEnvelope struct {
	Envelope
	Status     int                  `json:"status"`
	Error      string               `json:"error"`
	ErrorCode  string               `json:"errorCode"`
	Path       string               `json:"path"`
	Timestamp  models.LocalDateTime `json:"timestamp"`
	Suggestion string               `json:"suggestion"`
	Details    string               `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondOK(w http.ResponseWriter, status int, message string, data any) {
	respondJSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, Envelope{Success: false, Message: message})
}

func respondAuthError(w http.ResponseWriter, r *http.Request, err *auth.Error) {
	respondJSON(w, err.Status(), AuthErrorEnvelope{
		Envelope:   Envelope{Success: false, Message: err.Message()},
		Status:     err.Status(),
		Error:      err.Name(),
		ErrorCode:  err.Code(),
		Path:       r.URL.Path,
		Timestamp:  models.NewLocalDateTime(time.Now()),
		Suggestion: err.Suggestion(),
		Details:    err.Details(),
	})
}

// writeError maps workflow errors to status codes. Internal detail is only logged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		authErr     *auth.Error
		validation  *service.ValidationError
		unavailable *service.ProductUnavailableError
		price       *service.InvalidPriceError
		upstream    *service.ServiceUnavailableError
	)

	switch {
	case errors.As(err, &authErr):
		respondAuthError(w, r, authErr)
	case errors.As(err, &validation):
		respondError(w, http.StatusBadRequest, "Validation failed: "+validation.Summary())
	case errors.As(err, &unavailable):
		respondError(w, http.StatusNotFound, fmt.Sprintf("Product with ID %s is not available", unavailable.ProductID))
	case errors.As(err, &price):
		respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid product price for product: %s", price.ProductID))
	case errors.Is(err, service.ErrNonPositiveTotal):
		respondError(w, http.StatusBadRequest, "Order total must be greater than zero")
	case errors.As(err, &upstream):
		hlog.FromRequest(r).Warn().Err(err).Msg("product service unavailable")
		respondError(w, http.StatusServiceUnavailable, msgServiceUnavailable)
	case errors.Is(err, service.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "Order not found")
	default:
		hlog.FromRequest(r).Error().Err(err).Msg("unhandled error")
		respondError(w, http.StatusInternalServerError, msgInternal)
	}
}
