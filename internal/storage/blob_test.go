package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibcol/portal/internal/common"
)

func newTestBlob(t *testing.T) *Blob {
	t.Helper()
	b, err := NewBlob(BlobConfig{
		Dir:        t.TempDir(),
		BaseURL:    "http://localhost:8080/blob/",
		SigningKey: []byte("blob-signing-key-for-tests"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestNewBlob_RequiresSigningKey(t *testing.T) {
	_, err := NewBlob(BlobConfig{Dir: t.TempDir(), BaseURL: "http://localhost/blob/"})
	require.Error(t, err)
}

func TestBlob_UploadDownloadDelete(t *testing.T) {
	ctx := context.Background()
	b := newTestBlob(t)
	h := b.Handler(1 << 20)
	key := "uploads/2026/10/15/0b7c.txt"

	put, err := b.SignPut(ctx, key, "text/plain", 11, 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, put.Method)
	assert.Equal(t, "text/plain", put.Headers["Content-Type"])

	req := httptest.NewRequest(http.MethodPut, put.URL, strings.NewReader("hello world"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	info, err := b.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(11), info.Size)
	assert.Equal(t, "text/plain", info.ContentType)

	get, err := b.SignGet(ctx, key, time.Minute)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, get.URL, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "hello world", string(body))
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))

	require.NoError(t, b.Delete(ctx, key))
	assert.ErrorIs(t, b.Delete(ctx, key), common.ErrNotFound)

	_, err = b.Stat(ctx, key)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBlob_HandlerRejects(t *testing.T) {
	ctx := context.Background()
	b := newTestBlob(t)
	h := b.Handler(4)

	put, err := b.SignPut(ctx, "uploads/x.bin", "application/octet-stream", 4, time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		url    string
		ctype  string
		body   string
		want   int
	}{
		{name: "tampered signature", method: http.MethodPut, url: put.URL + "x", ctype: "application/octet-stream", body: "ab", want: http.StatusForbidden},
		{name: "wrong method", method: http.MethodGet, url: put.URL, want: http.StatusMethodNotAllowed},
		{name: "wrong content type", method: http.MethodPut, url: put.URL, ctype: "text/html", body: "ab", want: http.StatusBadRequest},
		{name: "body too large", method: http.MethodPut, url: put.URL, ctype: "application/octet-stream", body: "abcdefgh", want: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.url, strings.NewReader(tt.body))
			if tt.ctype != "" {
				req.Header.Set("Content-Type", tt.ctype)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	_, err = b.Stat(ctx, "uploads/x.bin")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestBlob_GetMissing(t *testing.T) {
	b := newTestBlob(t)

	get, err := b.SignGet(context.Background(), "uploads/missing.pdf", time.Minute)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	b.Handler(1).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, get.URL, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
