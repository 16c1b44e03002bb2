package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// BlobConfig configures the local filesystem backend. Signed URLs point at
// BaseURL, which must route to Blob.Handler.
type BlobConfig struct {
	Dir        string
	BaseURL    string
	SigningKey []byte
}

// Blob is a gocloud.dev bucket on local disk. It exists so development and
// integration tests run without a cloud account; the application tier does
// carry the bytes here, which is why production deployments use S3 or GCS.
type Blob struct {
	bucket *blob.Bucket
	signer *fileblob.URLSignerHMAC
}

func NewBlob(c BlobConfig) (*Blob, error) {
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("blob base url: %w", err)
	}
	if len(c.SigningKey) == 0 {
		return nil, errors.New("blob signing key is empty")
	}

	signer := fileblob.NewURLSignerHMAC(base, c.SigningKey)
	bucket, err := fileblob.OpenBucket(c.Dir, &fileblob.Options{
		URLSigner: signer,
		CreateDir: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open blob dir %s: %w", c.Dir, err)
	}

	return &Blob{bucket: bucket, signer: signer}, nil
}

func (b *Blob) sign(ctx context.Context, method, key, contentType string, ttl time.Duration) (SignedRequest, error) {
	expires := now().Add(ttl)
	u, err := b.bucket.SignedURL(ctx, key, &blob.SignedURLOptions{
		Expiry:      ttl,
		Method:      method,
		ContentType: contentType,
	})
	if err != nil {
		return SignedRequest{}, classifyBlob("sign "+method+" "+key, err)
	}

	req := SignedRequest{URL: u, Method: method, ExpiresAt: expires}
	if contentType != "" {
		req.Headers = map[string]string{"Content-Type": contentType}
	}
	return req, nil
}

func (b *Blob) SignPut(ctx context.Context, key, contentType string, _ int64, ttl time.Duration) (SignedRequest, error) {
	return b.sign(ctx, http.MethodPut, key, contentType, ttl)
}

func (b *Blob) SignGet(ctx context.Context, key string, ttl time.Duration) (SignedRequest, error) {
	return b.sign(ctx, http.MethodGet, key, "", ttl)
}

func (b *Blob) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		return ObjectInfo{}, classifyBlob("attributes "+key, err)
	}
	return ObjectInfo{
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		ModTime:     attrs.ModTime,
	}, nil
}

func (b *Blob) Delete(ctx context.Context, key string) error {
	if err := b.bucket.Delete(ctx, key); err != nil {
		return classifyBlob("delete "+key, err)
	}
	return nil
}

func (b *Blob) Close() error {
	return b.bucket.Close()
}

// Handler serves the signed URLs minted by this backend: PUT stores the
// body, GET streams it back. The method and content type must match what
// was signed, and maxSize caps PUT bodies.
func (b *Blob) Handler(maxSize int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := b.signer.KeyFromURL(r.Context(), r.URL)
		if err != nil {
			http.Error(w, "invalid or expired signature", http.StatusForbidden)
			return
		}

		q := r.URL.Query()
		if q.Get("method") != r.Method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		switch r.Method {
		case http.MethodPut:
			b.put(w, r, key, q.Get("contentType"), maxSize)
		case http.MethodGet:
			b.get(w, r, key)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func (b *Blob) put(w http.ResponseWriter, r *http.Request, key, contentType string, maxSize int64) {
	if contentType != "" && r.Header.Get("Content-Type") != contentType {
		http.Error(w, "content type does not match signature", http.StatusBadRequest)
		return
	}

	bw, err := b.bucket.NewWriter(r.Context(), key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxSize)
	if _, err := io.Copy(bw, body); err != nil {
		_ = bw.Close()
		_ = b.bucket.Delete(r.Context(), key)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "upload failed", http.StatusBadRequest)
		return
	}
	if err := bw.Close(); err != nil {
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (b *Blob) get(w http.ResponseWriter, r *http.Request, key string) {
	br, err := b.bucket.NewReader(r.Context(), key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "storage unavailable", http.StatusServiceUnavailable)
		return
	}
	defer br.Close()

	if ct := br.ContentType(); ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(br.Size(), 10))
	_, _ = io.Copy(w, br)
}

func classifyBlob(op string, err error) error {
	switch gcerrors.Code(err) {
	case gcerrors.NotFound:
		return notFound(op, err)
	case gcerrors.Unknown, gcerrors.Internal, gcerrors.ResourceExhausted, gcerrors.DeadlineExceeded:
		return unavailable(op, err)
	}
	if isTransientNetErr(err) {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
