// Package server wires configuration, storage, the file reference service
// and the translation catalog into the HTTP and gRPC servers, and runs
// them until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ibcol/portal/internal/cryptox"
	"github.com/ibcol/portal/internal/fileref"
	"github.com/ibcol/portal/internal/logging"
	"github.com/ibcol/portal/internal/server/config"
	"github.com/ibcol/portal/internal/server/httpapi"
	"github.com/ibcol/portal/internal/storage"
	"github.com/ibcol/portal/internal/translation"

	gs "github.com/ibcol/portal/internal/server/grpc"
)

const shutdownTimeout = 15 * time.Second

var blobSigningSalt = []byte("ibcol.blob.url.v1")

type App struct {
	config  *config.Config
	logger  logging.Logger
	backend storage.Backend
	blob    *storage.Blob
	files   *fileref.Service
	catalog *translation.Catalog
}

// NewApp validates c and builds every component. Configuration problems
// (missing secret, missing default-locale data, bad backend settings) are
// returned as common.ErrConfiguration so the process can fail fast.
func NewApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop{}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}

	catalog, err := translation.Load(os.DirFS(c.LocalesDir), translation.Options{
		DefaultLocale:    c.DefaultLocale,
		SupportedLocales: c.SupportedLocales,
	})
	if err != nil {
		return nil, fmt.Errorf("locales %s: %w", c.LocalesDir, err)
	}

	codec, err := fileref.NewCodec(c.FileRefSecret)
	if err != nil {
		return nil, err
	}

	app := &App{config: c, logger: logger, catalog: catalog}

	backend, err := app.newBackend(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage backend %s: %w", c.StorageBackend, err)
	}
	app.backend = storage.NewRetrying(backend, storage.DefaultRetryPolicy(c.StorageTimeout), logger)

	app.files = fileref.NewService(codec, app.backend, fileref.Options{
		SignedURLTTL:        c.SignedURLTTL,
		MaxUploadSize:       c.MaxUploadSize,
		AllowedContentTypes: c.AllowedContentTypes,
	}, logger)

	return app, nil
}

func (app *App) newBackend(ctx context.Context) (storage.Backend, error) {
	c := app.config
	switch c.StorageBackend {
	case config.BackendS3:
		return storage.NewS3(ctx, storage.S3Config{
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			Bucket:       c.S3Bucket,
			Region:       c.S3Region,
			BaseEndpoint: c.S3BaseEndpoint,
			UsePathStyle: c.S3UsePathStyle,
		})
	case config.BackendGCS:
		return storage.NewGCS(ctx, storage.GCSConfig{
			Bucket:       c.GCSBucket,
			SigningEmail: c.GCSSigningEmail,
			PrivateKey:   c.GCSSigningPrivateKey,
		})
	case config.BackendFile:
		app.logger.Warn(ctx, "file storage backend proxies file bytes through this process; use it for development only",
			"dir", c.FileStorageDir)
		blob, err := storage.NewBlob(storage.BlobConfig{
			Dir:        c.FileStorageDir,
			BaseURL:    c.FileBaseURL,
			SigningKey: cryptox.DeriveKey([]byte(c.FileRefSecret), blobSigningSalt),
		})
		if err != nil {
			return nil, err
		}
		app.blob = blob
		return blob, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.StorageBackend)
	}
}

// Handler returns the HTTP API.
func (app *App) Handler() http.Handler {
	opts := httpapi.Options{
		AllowedOrigins: app.config.AllowedOrigins,
		RevertWindow:   app.config.SignedURLTTL,
	}
	if app.config.AdminTokenSecret != "" {
		opts.AdminTokenSecret = []byte(app.config.AdminTokenSecret)
	}
	if app.blob != nil {
		opts.BlobHandler = app.blob.Handler(app.config.MaxUploadSize)
	}
	return httpapi.New(app.files, app.catalog, opts, app.logger)
}

// Run serves HTTP and gRPC until ctx is cancelled, SIGINT/SIGTERM arrives,
// or either server fails. Both servers are drained before it returns.
func (app *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.StorageBackend,
		"default_locale", app.catalog.DefaultLocale())

	httpListener, err := net.Listen("tcp", app.config.EndpointAddrHTTP)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return app.serveHTTP(ctx, httpListener)
	})

	g.Go(func() error {
		var adminSecret []byte
		if app.config.AdminTokenSecret != "" {
			adminSecret = []byte(app.config.AdminTokenSecret)
		}
		return gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.files, adminSecret).Run(ctx)
	})

	err = g.Wait()
	if cerr := app.backend.Close(); cerr != nil {
		app.logger.Warn(context.Background(), "closing storage backend", "error", cerr)
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}

func (app *App) serveHTTP(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errc := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "Starting HTTP server", "address", l.Addr().String())
		errc <- srv.Serve(l)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "Stopping HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
