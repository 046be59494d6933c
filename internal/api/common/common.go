// Package common provides shared HTTP utility functions for API handlers.
package common

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	// Error is a stable, machine readable category
	Error string `json:"error" example:"already_running"`
	// Detail is a human readable message
	Detail string `json:"detail,omitempty" example:"Sync already in progress"`
}

// WriteJSONResponse writes a JSON response with the given data
func WriteJSONResponse(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// WriteErrorResponse writes a standardized error response
func WriteErrorResponse(w http.ResponseWriter, category, detail string, statusCode int) {
	WriteJSONResponse(w, ErrorResponse{Error: category, Detail: detail}, statusCode)
}
