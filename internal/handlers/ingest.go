package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/whookdev/inspector/internal/capture"
	"github.com/whookdev/inspector/internal/endpoint"
	"github.com/whookdev/inspector/internal/metrics"
	"github.com/whookdev/inspector/internal/storage"
)

type ingestResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	EndpointKey string `json:"endpoint_key"`
}

// IngestHandler is the public capture entry point: ANY method, any content
// type, any payload, addressed by the routing key in the final path segment.
type IngestHandler struct {
	endpoints    *endpoint.Service
	captures     *capture.Store
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewIngestHandler creates the ingestion handler. maxBodyBytes caps how much
// body a single call may carry; an oversized body surfaces as a read error.
func NewIngestHandler(endpoints *endpoint.Service, captures *capture.Store, maxBodyBytes int64, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		endpoints:    endpoints,
		captures:     captures,
		maxBodyBytes: maxBodyBytes,
		logger:       logger.With("component", "ingest_handler"),
	}
}

// ServeHTTP runs one ingestion: resolve key, normalize, store, acknowledge.
// Exactly one capture and one notification per successful call; a failed
// call stores nothing.
func (h *IngestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	// Pre-flight: no body, no storage side effect.
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	key := routingKey(r.URL.Path)
	if key == "" {
		writeError(w, h.logger, http.StatusNotFound, msgEndpointNotFound)
		return
	}

	ep, err := h.endpoints.Resolve(r.Context(), key)
	if errors.Is(err, storage.ErrNotFound) {
		h.logger.Info("unknown endpoint key", "endpoint_key", key, "method", r.Method)
		metrics.IngestedTotal.WithLabelValues(metrics.OutcomeNotFound).Inc()
		writeError(w, h.logger, http.StatusNotFound, msgEndpointNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve endpoint key",
			"endpoint_key", key,
			"method", r.Method,
			"error", err,
		)
		metrics.IngestedTotal.WithLabelValues(metrics.OutcomeStoreError).Inc()
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	rec, err := capture.Normalize(r)
	if err != nil {
		h.logger.Error("failed to read request body",
			"endpoint_key", key,
			"method", r.Method,
			"error", err,
		)
		metrics.IngestedTotal.WithLabelValues(metrics.OutcomeBodyError).Inc()
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}

	stored, err := h.captures.Store(r.Context(), ep.ID, rec)
	if err != nil {
		h.logger.Error("failed to store capture",
			"endpoint_key", key,
			"method", r.Method,
			"error", err,
		)
		metrics.IngestedTotal.WithLabelValues(metrics.OutcomeStoreError).Inc()
		writeError(w, h.logger, http.StatusInternalServerError, msgInternalError)
		return
	}

	h.logger.Info("request captured",
		"endpoint_key", key,
		"capture_id", stored.ID,
		"method", stored.Method,
	)
	metrics.IngestedTotal.WithLabelValues(metrics.OutcomeCaptured).Inc()
	writeJSON(w, h.logger, http.StatusOK, ingestResponse{
		Success:     true,
		Message:     "Webhook received successfully",
		EndpointKey: key,
	})
}

// routingKey extracts the opaque key from the final path segment.
func routingKey(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	return segments[len(segments)-1]
}
