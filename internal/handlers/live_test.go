package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLiveServer(t *testing.T, ts *testStack) *httptest.Server {
	t.Helper()
	live := NewLiveHandler(ts.endpoints, ts.broker, 100, slog.New(slog.NewTextHandler(io.Discard, nil)))

	mux := http.NewServeMux()
	mux.Handle("GET /api/endpoints/{id}/live", live)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, endpointID string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/endpoints/" + endpointID + "/live"
}

func TestLiveViewerSnapshotThenStream(t *testing.T) {
	ts := newTestStack(t)
	ep := ts.createEndpoint(t)
	srv := newLiveServer(t, ts)

	// One capture predates the subscription; it arrives in the snapshot,
	// not on the stream.
	r := httptest.NewRequest("POST", "/"+ep.Key, strings.NewReader(`{"seq":0}`))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.ingest.ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ep.ID), nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var snapshot liveFrame
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, "snapshot", snapshot.Type)
	require.Len(t, snapshot.Captures, 1)

	// New captures stream one frame per stored record, in storage order.
	var stored []string
	for i := 1; i <= 3; i++ {
		r := httptest.NewRequest("POST", "/"+ep.Key, strings.NewReader(`{"seq":1}`))
		r.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		ts.ingest.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code)
	}
	captures, err := ts.db.ListCapturedRequests(context.Background(), ep.ID, 100)
	require.NoError(t, err)
	require.Len(t, captures, 4)
	// ListCapturedRequests is newest first; the stream is oldest first.
	for i := len(captures) - 2; i >= 0; i-- {
		stored = append(stored, captures[i].ID)
	}

	for i := 0; i < 3; i++ {
		var frame liveFrame
		require.NoError(t, conn.ReadJSON(&frame))
		require.Equal(t, "capture", frame.Type)
		require.NotNil(t, frame.Capture)
		assert.Equal(t, stored[i], frame.Capture.ID, "stream frame %d out of order", i)
	}
}

func TestLiveViewerUnknownEndpoint(t *testing.T) {
	ts := newTestStack(t)
	srv := newLiveServer(t, ts)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "no-such-id"), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
