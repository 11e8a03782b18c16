package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/whookdev/inspector/internal/endpoint"
	"github.com/whookdev/inspector/internal/models"
	"github.com/whookdev/inspector/internal/storage"
)

// EndpointHandler serves the dashboard API: endpoint CRUD and capture
// history reads. Identity management is an external collaborator; the
// X-Owner-ID header stands in for the authenticated user here.
type EndpointHandler struct {
	endpoints *endpoint.Service
	logger    *slog.Logger
}

// NewEndpointHandler creates the dashboard API handler.
func NewEndpointHandler(endpoints *endpoint.Service, logger *slog.Logger) *EndpointHandler {
	return &EndpointHandler{
		endpoints: endpoints,
		logger:    logger.With("component", "endpoint_handler"),
	}
}

func ownerID(r *http.Request) string {
	return r.Header.Get("X-Owner-ID")
}

// Create handles POST /api/endpoints.
func (h *EndpointHandler) Create(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	owner := ownerID(r)
	if owner == "" {
		writeError(w, h.logger, http.StatusUnauthorized, "owner required")
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	defer r.Body.Close()

	ep, err := h.endpoints.Create(r.Context(), owner, req.Name)
	if err != nil {
		h.logger.Error("failed to create endpoint", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, ep)
}

// List handles GET /api/endpoints.
func (h *EndpointHandler) List(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	owner := ownerID(r)
	if owner == "" {
		writeError(w, h.logger, http.StatusUnauthorized, "owner required")
		return
	}

	endpoints, err := h.endpoints.List(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to list endpoints", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}
	if endpoints == nil {
		endpoints = []models.Endpoint{}
	}

	writeJSON(w, h.logger, http.StatusOK, endpoints)
}

// Delete handles DELETE /api/endpoints/{id}. Captured requests are removed
// together with the endpoint.
func (h *EndpointHandler) Delete(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	owner := ownerID(r)
	if owner == "" {
		writeError(w, h.logger, http.StatusUnauthorized, "owner required")
		return
	}

	err := h.endpoints.Delete(r.Context(), owner, r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, h.logger, http.StatusNotFound, msgEndpointNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to delete endpoint", "endpoint_id", r.PathValue("id"), "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRequests handles GET /api/endpoints/{id}/requests: the latest captures
// for the endpoint, newest first, capped to the retention horizon.
func (h *EndpointHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	id := r.PathValue("id")
	if _, err := h.endpoints.Get(r.Context(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, h.logger, http.StatusNotFound, msgEndpointNotFound)
			return
		}
		h.logger.Error("failed to load endpoint", "endpoint_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}

	captures, err := h.endpoints.History(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to list captures", "endpoint_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}
	if captures == nil {
		captures = []models.CapturedRequest{}
	}

	writeJSON(w, h.logger, http.StatusOK, captures)
}
