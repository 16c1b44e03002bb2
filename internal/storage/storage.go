// Package storage adapts object stores to the three primitives the file
// reference service needs: mint a signed write URL, mint a signed read URL,
// and delete an object. Stat backs the upload confirmation step.
//
// Every backend reports a missing object as common.ErrNotFound and a
// transient backend failure as common.ErrStorageUnavailable.
package storage

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/ibcol/portal/internal/common"
)

// Backend is an object store able to issue time-boxed, action-scoped URLs.
type Backend interface {
	// SignPut returns a URL authorizing a single PUT of key with the given
	// content type and size until ttl elapses.
	SignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (SignedRequest, error)
	// SignGet returns a URL authorizing GET of key until ttl elapses.
	SignGet(ctx context.Context, key string, ttl time.Duration) (SignedRequest, error)
	// Stat reports metadata of an existing object.
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	// Delete removes key, returning common.ErrNotFound when it is absent.
	Delete(ctx context.Context, key string) error
	Close() error
}

// SignedRequest is what a client needs to talk to the store directly.
type SignedRequest struct {
	URL       string
	Method    string
	Headers   map[string]string
	ExpiresAt time.Time
}

// ObjectInfo is the subset of object attributes the portal cares about.
type ObjectInfo struct {
	Size        int64
	ContentType string
	ModTime     time.Time
}

var now = time.Now

// unavailable wraps err so it matches common.ErrStorageUnavailable while
// keeping the backend's message.
func unavailable(op string, err error) error {
	return &opError{op: op, kind: common.ErrStorageUnavailable, err: err}
}

func notFound(op string, err error) error {
	return &opError{op: op, kind: common.ErrNotFound, err: err}
}

type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
}

func (e *opError) Is(target error) bool {
	return target == e.kind
}

func (e *opError) Unwrap() error {
	return e.err
}

// isTransientNetErr reports timeouts and connection-level failures.
func isTransientNetErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var oe *net.OpError
	return errors.As(err, &oe)
}

func transientStatus(code int) bool {
	return code == 429 || code >= 500
}
