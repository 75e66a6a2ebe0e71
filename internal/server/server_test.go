package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raglab/docchat/internal/app"
	"github.com/raglab/docchat/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testServer wires a pipeline on in-memory backends. Handlers that
// never reach the embedding or completion providers are exercised
// without network access.
func testServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Default()
	cfg.VectorBackend = "memory"
	cfg.HistoryBackend = "memory"
	cfg.EmbeddingProvider = "ollama"
	cfg.LLMProvider = "ollama"
	cfg.LLMModel = "llama3"
	cfg.LLMFallbackProvider = ""

	a, err := app.New(context.Background(), cfg, testLogger())
	require.NoError(t, err, "app wiring should succeed")

	return New(a, ":0", testLogger())
}

func doRequest(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader), "response should carry a request id")
}

func TestStats(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var snap map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Contains(t, snap, "uptime_seconds")
}

func TestUploadRequiresSessionID(t *testing.T) {
	srv := testServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile("files", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("some text"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := doRequest(srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "session_id")
}

func TestUploadRequiresFiles(t *testing.T) {
	srv := testServer(t)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("session_id", "s1"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := doRequest(srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "no files")
}

func TestUploadRejectsOversizedBody(t *testing.T) {
	srv := testServer(t)
	srv.maxUpload = 1024

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	require.NoError(t, w.WriteField("session_id", "s1"))
	fw, err := w.CreateFormFile("files", "big.txt")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("x"), 4096))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := doRequest(srv, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "size limit")
}

func TestQueryValidation(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`{"query": "missing session"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, httptest.NewRequest(http.MethodPost, "/api/query",
		strings.NewReader(`not json`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryUnknownSession(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/sessions/ghost/history", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SessionID string `json:"session_id"`
		Messages  []any  `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ghost", resp.SessionID)
	assert.Empty(t, resp.Messages)
}

func TestSessionsEmpty(t *testing.T) {
	srv := testServer(t)

	rec := doRequest(srv, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDeleteDocumentInvalidNamespace(t *testing.T) {
	srv := testServer(t)

	// A session id with whitespace produces a malformed namespace.
	req := httptest.NewRequest(http.MethodDelete, "/api/sessions/bad%20session/documents/d1", nil)
	rec := doRequest(srv, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
