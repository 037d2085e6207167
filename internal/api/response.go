// Authweaver - Chained Request Authentication Gateway
// Copyright 2026 The Authweaver Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/authweaver/authweaver

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/authweaver/authweaver/internal/logging"
)

// APIResponse is the response wrapper for all API endpoints.
type APIResponse struct {
	// Success indicates whether the request was successful.
	Success bool `json:"success"`

	// Data contains the response payload (null on error).
	Data interface{} `json:"data,omitempty"`

	// Error contains error details (null on success).
	Error *APIError `json:"error,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	// Code is a machine-readable error code.
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details carries additional diagnostics, only populated in debug
	// mode.
	Details interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Error().Err(err).Msg("failed to encode response")
	}
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, APIResponse{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, APIResponse{Success: false, Error: &APIError{Code: code, Message: message}})
}
