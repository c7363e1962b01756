package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rhuss/glimpse/pkg/api"
)

// HTTPStatusFromError maps an APIError type to the corresponding HTTP status.
func HTTPStatusFromError(err *api.APIError) int {
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	case api.ErrorTypeRunnerError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeErrorResponse writes apiErr in the {"error": {...}} format.
func writeErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// writeAPIError derives the status code from the error type.
func writeAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	writeErrorResponse(w, apiErr, HTTPStatusFromError(apiErr))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// bodyError converts a body read or decode failure into an APIError and
// its status code.
func bodyError(err error, limit int64) (*api.APIError, int) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", limit)),
			http.StatusRequestEntityTooLarge
	}
	return api.NewInvalidRequestError("body", "invalid request body: "+err.Error()), http.StatusBadRequest
}
