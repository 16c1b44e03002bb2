// Package storagetest provides an in-memory storage.Backend for tests.
package storagetest

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/storage"
)

// BaseURL prefixes every URL the Memory backend signs.
const BaseURL = "https://storage.test/bucket/"

// Memory records objects and signing calls. Failures can be injected per
// operation with FailNext.
type Memory struct {
	mu      sync.Mutex
	objects map[string]storage.ObjectInfo
	signed  []string
	fail    map[string][]error
	Now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		objects: map[string]storage.ObjectInfo{},
		fail:    map[string][]error{},
		Now:     time.Now,
	}
}

// Put simulates the client's direct upload.
func (m *Memory) Put(key, contentType string, size int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = storage.ObjectInfo{Size: size, ContentType: contentType, ModTime: m.Now()}
}

// Has reports whether key is stored.
func (m *Memory) Has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[key]
	return ok
}

// SignedKeys lists keys passed to SignPut/SignGet, in call order.
func (m *Memory) SignedKeys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.signed...)
}

// FailNext queues errs to be returned by the next calls of op
// ("sign_put", "sign_get", "stat", "delete").
func (m *Memory) FailNext(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[op] = append(m.fail[op], errs...)
}

func (m *Memory) popFailure(op string) error {
	q := m.fail[op]
	if len(q) == 0 {
		return nil
	}
	m.fail[op] = q[1:]
	return q[0]
}

func (m *Memory) sign(op, method, key, contentType string, ttl time.Duration) (storage.SignedRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure(op); err != nil {
		return storage.SignedRequest{}, err
	}
	m.signed = append(m.signed, key)

	expires := m.Now().Add(ttl)
	q := url.Values{}
	q.Set("method", method)
	q.Set("expires", strconv.FormatInt(expires.Unix(), 10))
	req := storage.SignedRequest{
		URL:       BaseURL + key + "?" + q.Encode(),
		Method:    method,
		ExpiresAt: expires,
	}
	if contentType != "" {
		req.Headers = map[string]string{"Content-Type": contentType}
	}
	return req, nil
}

func (m *Memory) SignPut(_ context.Context, key, contentType string, _ int64, ttl time.Duration) (storage.SignedRequest, error) {
	return m.sign("sign_put", "PUT", key, contentType, ttl)
}

func (m *Memory) SignGet(_ context.Context, key string, ttl time.Duration) (storage.SignedRequest, error) {
	return m.sign("sign_get", "GET", key, "", ttl)
}

func (m *Memory) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure("stat"); err != nil {
		return storage.ObjectInfo{}, err
	}
	info, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, fmt.Errorf("stat %s: %w", key, common.ErrNotFound)
	}
	return info, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.popFailure("delete"); err != nil {
		return err
	}
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("delete %s: %w", key, common.ErrNotFound)
	}
	delete(m.objects, key)
	return nil
}

func (m *Memory) Close() error { return nil }
