package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/whookdev/inspector/internal/models"
)

// Normalize converts a raw inbound request into a captured-request value.
//
// Malformed input never fails normalization; every degradation path falls
// back to a safe default. The only error is an I/O failure while reading the
// body, which the caller surfaces as an ingestion failure.
//
// Folding rules, applied consistently:
//   - repeated header names: last value wins
//   - repeated query parameters: last value wins
func Normalize(r *http.Request) (*models.CapturedRequest, error) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}

	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		headers[name] = values[len(values)-1]
	}

	queryParams := make(map[string]string)
	for name, values := range r.URL.Query() {
		queryParams[name] = values[len(values)-1]
	}

	return &models.CapturedRequest{
		Method:      r.Method,
		Headers:     headers,
		QueryParams: queryParams,
		Body:        normalizeBody(r.Header.Get("Content-Type"), raw),
		IPAddress:   clientAddress(r),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// normalizeBody keeps a JSON payload as parsed JSON and everything else as a
// JSON-encoded string of the raw text. An empty body is null. A declared
// JSON content type with an unparseable payload falls back to raw text
// rather than rejecting the request.
func normalizeBody(contentType string, raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if isJSONContentType(contentType) && json.Valid(raw) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, raw); err == nil {
			return buf.Bytes()
		}
	}
	text, _ := json.Marshal(string(raw))
	return text
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		// Tolerate malformed content-type headers the same way a permissive
		// substring match would.
		mediaType = strings.ToLower(contentType)
	}
	return strings.Contains(mediaType, "application/json") || strings.HasSuffix(mediaType, "+json")
}

// clientAddress picks the first of: the X-Forwarded-For chain's first hop,
// X-Real-IP, the transport peer address, or the "unknown" sentinel.
func clientAddress(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
