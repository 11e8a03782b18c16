// Package handlers contains the HTTP surface: the public ingestion endpoint,
// the dashboard API, and the live viewer websocket.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Generic client-facing error messages. Internal failure detail stays in the
// logs and is never echoed to callers.
const (
	msgEndpointNotFound = "Endpoint not found"
	msgInternalError    = "Internal server error"
)

type errorResponse struct {
	Error string `json:"error"`
}

// setCORSHeaders makes every response usable cross-origin; the ingestion
// surface is intentionally public and browsers drive the dashboard.
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "*")
	w.Header().Set("Access-Control-Allow-Headers", "authorization, content-type, x-owner-id")
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, message string) {
	writeJSON(w, logger, status, errorResponse{Error: message})
}
