package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibcol/portal/internal/logging"
)

func TestCORS(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigins: []string{"https://ibcol.org/", "http://localhost:3000"}})

	t.Run("preflight from allowed origin", func(t *testing.T) {
		rec := f.do(http.MethodOptions, "/files", "",
			"Origin", "https://ibcol.org",
			"Access-Control-Request-Method", "POST")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://ibcol.org", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "DELETE")
		assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Authorization")
	})

	t.Run("preflight from unknown origin", func(t *testing.T) {
		rec := f.do(http.MethodOptions, "/files", "",
			"Origin", "https://evil.example",
			"Access-Control-Request-Method", "POST")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("simple request", func(t *testing.T) {
		rec := f.do(http.MethodGet, "/healthz", "", "Origin", "http://localhost:3000")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Contains(t, rec.Header().Values("Vary"), "Origin")
	})
}

func TestCORS_Wildcard(t *testing.T) {
	f := newFixture(t, Options{AllowedOrigins: []string{"*"}})
	rec := f.do(http.MethodGet, "/healthz", "", "Origin", "https://anything.example")
	assert.Equal(t, "https://anything.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logging.RequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "edge-123")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "edge-123", seen)
	assert.Equal(t, "edge-123", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))
}

type recordingLogger struct {
	logging.Nop
	lines []map[string]any
}

func (l *recordingLogger) Info(_ context.Context, msg string, args ...any) {
	line := map[string]any{"msg": msg}
	for i := 0; i+1 < len(args); i += 2 {
		line[args[i].(string)] = args[i+1]
	}
	l.lines = append(l.lines, line)
}

func TestRequestLog(t *testing.T) {
	logger := &recordingLogger{}
	h := RequestLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/files", nil))

	require.Len(t, logger.lines, 1)
	line := logger.lines[0]
	assert.Equal(t, "http", line["msg"])
	assert.Equal(t, http.MethodPost, line["method"])
	assert.Equal(t, "/files", line["path"])
	assert.Equal(t, http.StatusTeapot, line["status"])
	assert.Equal(t, int64(15), line["response_bytes"])
}
