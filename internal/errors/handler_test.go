package errors

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hungkhanh0709/trading-filter/internal/middleware"
)

func testHandler() *ErrorHandler {
	return NewErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), false)
}

func decodeProblem(t *testing.T, body []byte) map[string]interface{} {
	t.Helper()
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &doc))
	return doc
}

func TestHandleErrorAPIError(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/matrix", nil)
	rec := httptest.NewRecorder()
	h.HandleError(rec, req, ErrListNotFound)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	doc := decodeProblem(t, rec.Body.Bytes())
	assert.Equal(t, TypeListNotFound, doc["type"])
	assert.Equal(t, "LIST_NOT_FOUND", doc["error_code"])
	assert.Equal(t, "/api/matrix", doc["instance"])
}

func TestHandleErrorCarriesRequestTraceID(t *testing.T) {
	h := testHandler()

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.HandleError(w, r, ErrInternalServer)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/matrix", nil)
	req.Header.Set("X-Request-ID", "trace-abc-123")
	rec := httptest.NewRecorder()
	middleware.RequestID(inner).ServeHTTP(rec, req)

	doc := decodeProblem(t, rec.Body.Bytes())
	assert.Equal(t, "trace-abc-123", doc["trace_id"],
		"the ID assigned by the request middleware reaches the problem document")
}

func TestNotFoundCarriesRequestTraceID(t *testing.T) {
	h := testHandler()

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	req.Header.Set("X-Request-ID", "trace-def-456")
	rec := httptest.NewRecorder()
	middleware.RequestID(http.HandlerFunc(h.NotFound)).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	doc := decodeProblem(t, rec.Body.Bytes())
	assert.Equal(t, "trace-def-456", doc["trace_id"])
}
