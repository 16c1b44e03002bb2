package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

var signGCSURL = storage.SignedURL

// GCSConfig selects a Google Cloud Storage bucket and the service account
// used to sign V4 URLs.
type GCSConfig struct {
	Bucket        string
	SigningEmail  string
	PrivateKey    string
	ClientOptions []option.ClientOption
}

// gcsObjects is the part of the GCS client used for metadata and deletion.
type gcsObjects interface {
	Attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type gcsBucket struct {
	client *storage.Client
	bucket string
}

func (b *gcsBucket) Attrs(ctx context.Context, key string) (*storage.ObjectAttrs, error) {
	return b.client.Bucket(b.bucket).Object(key).Attrs(ctx)
}

func (b *gcsBucket) Delete(ctx context.Context, key string) error {
	return b.client.Bucket(b.bucket).Object(key).Delete(ctx)
}

func (b *gcsBucket) Close() error {
	return b.client.Close()
}

// GCS signs URLs locally with the service-account key; only Stat and
// Delete reach the network.
type GCS struct {
	bucket     string
	email      string
	privateKey []byte
	objects    gcsObjects
}

func NewGCS(ctx context.Context, c GCSConfig) (*GCS, error) {
	client, err := storage.NewClient(ctx, c.ClientOptions...)
	if err != nil {
		return nil, fmt.Errorf("gcs client: %w", err)
	}

	return &GCS{
		bucket: c.Bucket,
		email:  c.SigningEmail,
		// Keys pasted into env files usually carry literal \n sequences.
		privateKey: []byte(strings.ReplaceAll(c.PrivateKey, `\n`, "\n")),
		objects:    &gcsBucket{client: client, bucket: c.Bucket},
	}, nil
}

func (g *GCS) sign(method, key, contentType string, headers []string, ttl time.Duration) (SignedRequest, error) {
	// X-Goog-Expires is whole seconds counted from the library's own clock
	// read, truncated. Expires one second past the signing second keeps
	// that count at ttl; GCS measures validity from the X-Goog-Date second.
	issued := now().Truncate(time.Second)
	expires := issued.Add(ttl)
	u, err := signGCSURL(g.bucket, key, &storage.SignedURLOptions{
		Scheme:         storage.SigningSchemeV4,
		Method:         method,
		ContentType:    contentType,
		Headers:        headers,
		Expires:        expires.Add(time.Second),
		GoogleAccessID: g.email,
		PrivateKey:     g.privateKey,
	})
	if err != nil {
		return SignedRequest{}, fmt.Errorf("sign %s %s: %w", method, key, err)
	}

	req := SignedRequest{URL: u, Method: method, ExpiresAt: expires}
	if contentType != "" {
		req.Headers = map[string]string{"Content-Type": contentType}
	}
	return req, nil
}

func (g *GCS) SignPut(_ context.Context, key, contentType string, size int64, ttl time.Duration) (SignedRequest, error) {
	var headers []string
	if size > 0 {
		// x-goog-content-length-range makes GCS reject bodies above the declared size.
		headers = []string{fmt.Sprintf("x-goog-content-length-range:0,%d", size)}
	}
	req, err := g.sign(http.MethodPut, key, contentType, headers, ttl)
	if err != nil {
		return req, err
	}
	if size > 0 {
		if req.Headers == nil {
			req.Headers = map[string]string{}
		}
		req.Headers["X-Goog-Content-Length-Range"] = fmt.Sprintf("0,%d", size)
	}
	return req, nil
}

func (g *GCS) SignGet(_ context.Context, key string, ttl time.Duration) (SignedRequest, error) {
	return g.sign(http.MethodGet, key, "", nil, ttl)
}

func (g *GCS) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	attrs, err := g.objects.Attrs(ctx, key)
	if err != nil {
		return ObjectInfo{}, classifyGCS("attrs "+key, err)
	}
	return ObjectInfo{
		Size:        attrs.Size,
		ContentType: attrs.ContentType,
		ModTime:     attrs.Updated,
	}, nil
}

func (g *GCS) Delete(ctx context.Context, key string) error {
	if err := g.objects.Delete(ctx, key); err != nil {
		return classifyGCS("delete "+key, err)
	}
	return nil
}

func (g *GCS) Close() error {
	return g.objects.Close()
}

func classifyGCS(op string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) {
		return notFound(op, err)
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		if ge.Code == http.StatusNotFound {
			return notFound(op, err)
		}
		if transientStatus(ge.Code) {
			return unavailable(op, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	if isTransientNetErr(err) {
		return unavailable(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
