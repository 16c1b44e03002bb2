// Package httpapi exposes the file reference service and the translation
// catalog over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/ibcol/portal/internal/fileref"
	"github.com/ibcol/portal/internal/logging"
	"github.com/ibcol/portal/internal/storage"
)

// FileService is the subset of *fileref.Service the handlers call.
type FileService interface {
	Issue(ctx context.Context, req fileref.UploadRequest) (fileref.UploadTarget, error)
	Resolve(ctx context.Context, ref string) (fileref.DownloadTarget, error)
	Delete(ctx context.Context, ref string) error
	Confirm(ctx context.Context, ref string) (storage.ObjectInfo, error)
}

// Catalog is the subset of *translation.Catalog the handlers call.
type Catalog interface {
	LocaleFromRequest(r *http.Request) string
	ResolveLocale(requested string) string
	Namespace(locale, namespace string) (map[string]string, bool)
}

// Options configures cross-cutting behavior of the API.
type Options struct {
	// AllowedOrigins lists browser origins allowed to call the API; "*"
	// allows any.
	AllowedOrigins []string
	// AdminTokenSecret, when set, requires an admin bearer token on deletes.
	// Reverts of uploads younger than RevertWindow stay open to the uploader.
	AdminTokenSecret []byte
	// RevertWindow defaults to fileref.DefaultSignedURLTTL.
	RevertWindow time.Duration
	// BlobHandler serves signed URLs of the local file backend under /blob/.
	BlobHandler http.Handler
}

type Handler struct {
	files   FileService
	catalog Catalog
	opts    Options
	logger  logging.Logger
	now     func() time.Time
}

// New registers all routes and returns the root http.Handler.
//
// Middleware stack (outer to inner):
//
//	RequestID -> RequestLog -> CORS -> ServeMux -> AdminOnly (DELETE /files/{fileRef})
func New(files FileService, catalog Catalog, opts Options, logger logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.Nop{}
	}
	if opts.RevertWindow <= 0 {
		opts.RevertWindow = fileref.DefaultSignedURLTTL
	}
	h := &Handler{
		files:   files,
		catalog: catalog,
		opts:    opts,
		logger:  logger.With("module", "httpapi"),
		now:     time.Now,
	}

	admin := AdminOnly(opts.AdminTokenSecret)
	mux := http.NewServeMux()

	// Three-step upload: issue target, client PUTs to storage, confirm.
	mux.HandleFunc("POST /files", h.IssueUploadTarget)
	mux.HandleFunc("POST /files/{fileRef}/confirm", h.ConfirmUpload)
	mux.HandleFunc("GET /files/{fileRef}", h.ResolveDownloadTarget)
	mux.Handle("DELETE /files/{fileRef}", admin(http.HandlerFunc(h.DeleteReference)))
	// FilePond "revert" sends the reference as a plain-text body.
	// Browsers never hold admin tokens, so revert checks upload age instead.
	mux.HandleFunc("DELETE /files", h.RevertUpload)

	mux.HandleFunc("GET /i18n/{locale}/{namespace}", h.Namespace)
	mux.HandleFunc("GET /{$}", h.RedirectToLocale)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	if opts.BlobHandler != nil {
		mux.Handle("/blob/", opts.BlobHandler)
	}

	return RequestID(RequestLog(h.logger)(CORS(opts.AllowedOrigins)(mux)))
}
