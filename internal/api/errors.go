package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/wallet-portfolio/internal/errors"
	"github.com/wallet-portfolio/internal/logging"
	"github.com/wallet-portfolio/internal/types"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError sends a categorized error as an ErrorResponse
func writeError(w http.ResponseWriter, catErr *apperrors.CategorizedError) {
	respondJSON(w, catErr.StatusCode, ErrorResponse{Error: *catErr.ToServiceError()})
}

// decodeRequest decodes a JSON request body, rejecting unknown fields.
// Decoding failures come back as MALFORMED_PAYLOAD.
func decodeRequest(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return apperrors.NewMalformedPayloadError("request body", err)
	}
	return nil
}

// respondServiceError writes err with the status of its category. Store
// unavailability keeps its message; other 5xx errors are logged and hidden.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := publicError(err)
	if catErr.StatusCode >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithComponent("api").WithError(err).
			WithField("path", r.URL.Path).Error("Request failed")
	}
	writeError(w, catErr)
}

// publicError returns the categorized form of err that is safe to send to clients
func publicError(err error) *apperrors.CategorizedError {
	catErr := apperrors.Categorize(err)
	switch {
	case catErr.StatusCode < http.StatusInternalServerError:
		return catErr
	case catErr.Category == apperrors.CategoryUnavailable:
		return &apperrors.CategorizedError{
			Category:   catErr.Category,
			StatusCode: catErr.StatusCode,
			Code:       catErr.Code,
			Message:    catErr.Message,
		}
	default:
		return apperrors.NewInternalError("An internal error occurred", nil)
	}
}
