package fileref

import (
	"context"
	"fmt"
	"mime"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/logging"
	"github.com/ibcol/portal/internal/storage"
)

const (
	DefaultSignedURLTTL  = 15 * time.Minute
	DefaultMaxUploadSize = 500 << 20

	maxNameLength      = 255
	defaultContentType = "application/octet-stream"
)

// Options carries the shared settings the service is constructed with.
type Options struct {
	SignedURLTTL  time.Duration
	MaxUploadSize int64
	// AllowedContentTypes restricts uploads when non-empty. Entries are
	// media types ("application/pdf") or type wildcards ("image/*").
	AllowedContentTypes []string
}

// UploadRequest describes a file the client is about to upload.
type UploadRequest struct {
	Name        string
	ContentType string
	Size        int64
}

// UploadTarget tells the client where and how to PUT the bytes, and which
// reference to keep once the upload succeeds.
type UploadTarget struct {
	UploadURL string
	FileRef   string
	ExpiresAt time.Time
	Method    string
	Headers   map[string]string
}

// DownloadTarget is a fresh read URL for a file reference.
type DownloadTarget struct {
	URL       string
	ExpiresAt time.Time
}

// Service mediates between clients and the object store. It never sees
// file bytes: clients upload and download directly with signed URLs.
type Service struct {
	codec   *Codec
	backend storage.Backend
	opts    Options
	logger  logging.Logger

	now   func() time.Time
	newID func() uuid.UUID
}

func NewService(codec *Codec, backend storage.Backend, opts Options, logger logging.Logger) *Service {
	if opts.SignedURLTTL <= 0 {
		opts.SignedURLTTL = DefaultSignedURLTTL
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultMaxUploadSize
	}
	if logger == nil {
		logger = logging.Nop{}
	}

	return &Service{
		codec:   codec,
		backend: backend,
		opts:    opts,
		logger:  logger.With("module", "fileref"),
		now:     time.Now,
		newID:   uuid.New,
	}
}

// Issue allocates a new storage key and returns a write-signed URL for it
// together with the key's file reference. Nothing is written to storage.
func (s *Service) Issue(ctx context.Context, req UploadRequest) (UploadTarget, error) {
	contentType, err := s.validate(&req)
	if err != nil {
		return UploadTarget{}, err
	}

	key := NewKey(s.now(), s.newID(), req.Name, contentType)
	ref, err := s.codec.Encode(key)
	if err != nil {
		return UploadTarget{}, err
	}

	signed, err := s.backend.SignPut(ctx, key, contentType, req.Size, s.opts.SignedURLTTL)
	if err != nil {
		s.logger.Error(ctx, "sign upload failed", "key", key, "error", err)
		return UploadTarget{}, fmt.Errorf("sign upload: %w", err)
	}

	s.logger.Info(ctx, "upload target issued", "key", key, "size", req.Size, "content_type", contentType)

	return UploadTarget{
		UploadURL: signed.URL,
		FileRef:   ref,
		ExpiresAt: signed.ExpiresAt,
		Method:    signed.Method,
		Headers:   signed.Headers,
	}, nil
}

// Resolve decodes ref and returns a read-signed URL. The object's existence
// is not checked; a dangling reference fails at fetch time.
func (s *Service) Resolve(ctx context.Context, ref string) (DownloadTarget, error) {
	key, err := s.codec.Decode(ref)
	if err != nil {
		s.logger.Warn(ctx, "rejected file reference", "op", "resolve", "error", err)
		return DownloadTarget{}, err
	}

	signed, err := s.backend.SignGet(ctx, key, s.opts.SignedURLTTL)
	if err != nil {
		s.logger.Error(ctx, "sign download failed", "key", key, "error", err)
		return DownloadTarget{}, fmt.Errorf("sign download: %w", err)
	}

	return DownloadTarget{URL: signed.URL, ExpiresAt: signed.ExpiresAt}, nil
}

// Delete removes the object behind ref. A reference whose object is already
// gone yields common.ErrNotFound.
func (s *Service) Delete(ctx context.Context, ref string) error {
	key, err := s.codec.Decode(ref)
	if err != nil {
		s.logger.Warn(ctx, "rejected file reference", "op", "delete", "error", err)
		return err
	}

	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}

	s.logger.Info(ctx, "file deleted", "key", key)
	return nil
}

// Confirm is the acknowledge step of the upload protocol: it reports the
// stored object's metadata, or common.ErrNotFound if the upload never landed.
func (s *Service) Confirm(ctx context.Context, ref string) (storage.ObjectInfo, error) {
	key, err := s.codec.Decode(ref)
	if err != nil {
		s.logger.Warn(ctx, "rejected file reference", "op", "confirm", "error", err)
		return storage.ObjectInfo{}, err
	}

	info, err := s.backend.Stat(ctx, key)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("confirm %s: %w", key, err)
	}
	return info, nil
}

// validate normalizes req in place and returns the content type to sign.
func (s *Service) validate(req *UploadRequest) (string, error) {
	req.Name = strings.TrimSpace(req.Name)
	switch {
	case req.Name == "":
		return "", fmt.Errorf("%w: name is required", common.ErrValidation)
	case len(req.Name) > maxNameLength || !utf8.ValidString(req.Name):
		return "", fmt.Errorf("%w: name is not a valid file name", common.ErrValidation)
	case req.Size <= 0:
		return "", fmt.Errorf("%w: size must be positive", common.ErrValidation)
	case req.Size > s.opts.MaxUploadSize:
		return "", fmt.Errorf("%w: size %d exceeds limit of %d bytes", common.ErrValidation, req.Size, s.opts.MaxUploadSize)
	}

	contentType := strings.TrimSpace(req.ContentType)
	if contentType == "" {
		contentType = defaultContentType
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", fmt.Errorf("%w: content type %q: %v", common.ErrValidation, contentType, err)
	}
	if !s.allowed(mediaType) {
		return "", fmt.Errorf("%w: content type %q is not accepted", common.ErrValidation, mediaType)
	}
	return contentType, nil
}

func (s *Service) allowed(mediaType string) bool {
	if len(s.opts.AllowedContentTypes) == 0 {
		return true
	}
	major, _, _ := strings.Cut(mediaType, "/")
	for _, a := range s.opts.AllowedContentTypes {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == mediaType || a == major+"/*" {
			return true
		}
	}
	return false
}
