package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/fileref"
	"github.com/ibcol/portal/internal/logging"
	"github.com/ibcol/portal/internal/server/auth"
	"github.com/ibcol/portal/internal/storage/storagetest"
	"github.com/ibcol/portal/internal/translation"
)

var (
	codecOnce sync.Once
	codec     *fileref.Codec
)

func testCodec(t *testing.T) *fileref.Codec {
	t.Helper()
	codecOnce.Do(func() {
		c, err := fileref.NewCodec("http-api-test-secret")
		if err != nil {
			panic(err)
		}
		codec = c
	})
	return codec
}

func testCatalog(t *testing.T) *translation.Catalog {
	t.Helper()
	c, err := translation.Load(fstest.MapFS{
		"en-us/home.json": {Data: []byte(`{"pageTitle":"Welcome","hero":{"cta":"Join"}}`)},
		"zh-hk/home.json": {Data: []byte(`{"pageTitle":"歡迎"}`)},
	}, translation.Options{DefaultLocale: "en-us", SupportedLocales: []string{"en-us", "zh-hk"}})
	require.NoError(t, err)
	return c
}

type fixture struct {
	handler http.Handler
	mem     *storagetest.Memory
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	mem := storagetest.NewMemory()
	svc := fileref.NewService(testCodec(t), mem, fileref.Options{MaxUploadSize: 1 << 20}, logging.Nop{})
	return &fixture{handler: New(svc, testCatalog(t), opts, logging.Nop{}), mem: mem}
}

func (f *fixture) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) issue(t *testing.T) issueResponse {
	t.Helper()
	rec := f.do(http.MethodPost, "/files", `{"name":"deck.pdf","type":"application/pdf","size":2048}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[issueResponse](t, rec)
}

func TestUploadLifecycle(t *testing.T) {
	f := newFixture(t, Options{})

	target := f.issue(t)
	assert.NotEmpty(t, target.FileRef)
	assert.Equal(t, http.MethodPut, target.Method)
	assert.Equal(t, "application/pdf", target.Headers["Content-Type"])
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), target.ExpiresAt, 5*time.Second)

	keys := f.mem.SignedKeys()
	require.Len(t, keys, 1)
	assert.True(t, strings.HasPrefix(target.UploadURL, storagetest.BaseURL+keys[0]))

	// Before the direct upload lands, confirmation reports 404.
	rec := f.do(http.MethodPost, "/files/"+target.FileRef+"/confirm", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.mem.Put(keys[0], "application/pdf", 2048)
	rec = f.do(http.MethodPost, "/files/"+target.FileRef+"/confirm", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, confirmResponse{FileRef: target.FileRef, Size: 2048, ContentType: "application/pdf"}, decode[confirmResponse](t, rec))

	rec = f.do(http.MethodGet, "/files/"+target.FileRef, "")
	require.Equal(t, http.StatusFound, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Location"), storagetest.BaseURL+keys[0]))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	rec = f.do(http.MethodDelete, "/files/"+target.FileRef, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true}`, rec.Body.String())

	rec = f.do(http.MethodDelete, "/files/"+target.FileRef, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"file not found"}`, rec.Body.String())
}

func TestResolveMintsFreshURLs(t *testing.T) {
	f := newFixture(t, Options{})
	target := f.issue(t)

	first := f.do(http.MethodGet, "/files/"+target.FileRef, "")
	second := f.do(http.MethodGet, "/files/"+target.FileRef, "")
	require.Equal(t, http.StatusFound, first.Code)
	require.Equal(t, http.StatusFound, second.Code)
	assert.Len(t, f.mem.SignedKeys(), 3)
}

func TestRevertUpload(t *testing.T) {
	f := newFixture(t, Options{})
	target := f.issue(t)
	f.mem.Put(f.mem.SignedKeys()[0], "application/pdf", 2048)

	rec := f.do(http.MethodDelete, "/files", target.FileRef+"\n", "Content-Type", "text/plain")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, f.mem.Has(f.mem.SignedKeys()[0]))
}

func TestIssueUploadTarget_BadInput(t *testing.T) {
	f := newFixture(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "name=deck.pdf"},
		{name: "unknown field", body: `{"name":"a.pdf","type":"application/pdf","size":1,"key":"uploads/x"}`},
		{name: "missing name", body: `{"type":"application/pdf","size":1}`},
		{name: "too large", body: `{"name":"a.pdf","type":"application/pdf","size":2097152}`},
		{name: "negative size", body: `{"name":"a.pdf","type":"application/pdf","size":-1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(http.MethodPost, "/files", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
	assert.Empty(t, f.mem.SignedKeys())
}

func TestInvalidReference(t *testing.T) {
	f := newFixture(t, Options{})

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := f.do(method, "/files/definitely-not-a-token", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, method)
		assert.JSONEq(t, `{"error":"invalid file reference"}`, rec.Body.String())
	}

	rec := f.do(http.MethodPost, "/files/AAAA/confirm", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStorageUnavailable(t *testing.T) {
	f := newFixture(t, Options{})
	f.mem.FailNext("sign_put", fmt.Errorf("minio down: %w", common.ErrStorageUnavailable))

	rec := f.do(http.MethodPost, "/files", `{"name":"deck.pdf","type":"application/pdf","size":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.NotContains(t, rec.Body.String(), "minio")
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(http.MethodPut, "/files", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAdminOnlyDeletes(t *testing.T) {
	secret := []byte("admin-token-secret")
	f := newFixture(t, Options{AdminTokenSecret: secret})

	target := f.issue(t)
	f.mem.Now = func() time.Time { return time.Now().Add(-time.Hour) }
	f.mem.Put(f.mem.SignedKeys()[0], "application/pdf", 2048)

	rec := f.do(http.MethodDelete, "/files/"+target.FileRef, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	// Past the revert window the revert route needs a token too.
	rec = f.do(http.MethodDelete, "/files", target.FileRef)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))

	viewer, err := auth.GenerateToken("judge", "viewer", secret, time.Hour)
	require.NoError(t, err)
	rec = f.do(http.MethodDelete, "/files/"+target.FileRef, "", "Authorization", "Bearer "+viewer)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	admin, err := auth.GenerateToken("ops", auth.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)
	rec = f.do(http.MethodDelete, "/files/"+target.FileRef, "", "Authorization", "Bearer "+admin)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Reads stay public.
	rec = f.do(http.MethodGet, "/files/"+target.FileRef, "")
	assert.Equal(t, http.StatusFound, rec.Code)
}

func TestRevertUpload_WithAdminSecret(t *testing.T) {
	secret := []byte("admin-token-secret")
	f := newFixture(t, Options{AdminTokenSecret: secret, RevertWindow: 10 * time.Minute})

	fresh := f.issue(t)
	freshKey := f.mem.SignedKeys()[0]
	f.mem.Put(freshKey, "application/pdf", 2048)

	// The uploader holds no token but may undo a fresh upload.
	rec := f.do(http.MethodDelete, "/files", fresh.FileRef, "Content-Type", "text/plain")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, f.mem.Has(freshKey))

	old := f.issue(t)
	oldKey := f.mem.SignedKeys()[1]
	f.mem.Now = func() time.Time { return time.Now().Add(-11 * time.Minute) }
	f.mem.Put(oldKey, "application/pdf", 2048)

	rec = f.do(http.MethodDelete, "/files", old.FileRef)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.True(t, f.mem.Has(oldKey))

	admin, err := auth.GenerateToken("ops", auth.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)
	rec = f.do(http.MethodDelete, "/files", old.FileRef, "Authorization", "Bearer "+admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.mem.Has(oldKey))

	// Reverting something never uploaded, or garbage, is not an auth failure.
	pending := f.issue(t)
	rec = f.do(http.MethodDelete, "/files", pending.FileRef)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(http.MethodDelete, "/files", "garbage")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, Options{})
	rec := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestBlobHandlerMounted(t *testing.T) {
	var hit string
	f := newFixture(t, Options{BlobHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = r.Method + " " + r.URL.Path
		w.WriteHeader(http.StatusOK)
	})})

	rec := f.do(http.MethodPut, "/blob/?obj=x", "bytes")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "PUT /blob/", hit)

	f = newFixture(t, Options{})
	rec = f.do(http.MethodPut, "/blob/?obj=x", "bytes")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
