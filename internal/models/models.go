package models

import (
	"encoding/json"
	"time"
)

// Endpoint is a publicly routable capture target. The Key is the opaque
// routing token that selects it; anyone holding the key may submit to it.
type Endpoint struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Key       string    `json:"endpoint_key"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// CapturedRequest is the normalized record of one inbound HTTP call to an
// Endpoint. Body holds either the parsed JSON payload or a JSON-encoded
// string of the raw text, so it always marshals back out as valid JSON;
// a nil Body marshals as null for empty payloads.
type CapturedRequest struct {
	ID          string            `json:"id"`
	EndpointID  string            `json:"endpoint_id"`
	Method      string            `json:"method"`
	Headers     map[string]string `json:"headers"`
	QueryParams map[string]string `json:"query_params"`
	Body        json.RawMessage   `json:"body"`
	IPAddress   string            `json:"ip_address"`
	CreatedAt   time.Time         `json:"created_at"`
}
