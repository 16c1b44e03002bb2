// Package grpc serves the file reference service over gRPC for internal
// callers such as the admin backend.
package grpc

import (
	"context"
	"net"

	"google.golang.org/grpc"

	"github.com/ibcol/portal/internal/fileref"
	"github.com/ibcol/portal/internal/logging"
	"github.com/ibcol/portal/internal/storage"
)

// FileService is the subset of *fileref.Service exposed over gRPC.
type FileService interface {
	Issue(ctx context.Context, req fileref.UploadRequest) (fileref.UploadTarget, error)
	Resolve(ctx context.Context, ref string) (fileref.DownloadTarget, error)
	Delete(ctx context.Context, ref string) error
	Confirm(ctx context.Context, ref string) (storage.ObjectInfo, error)
}

type GRPCServer struct {
	address     string
	files       FileService
	logger      logging.Logger
	adminSecret []byte
}

// NewGRPCServer builds the server. An empty adminSecret leaves
// DeleteReference open, matching the HTTP API.
func NewGRPCServer(address string, l logging.Logger, files FileService, adminSecret []byte) *GRPCServer {
	if l == nil {
		l = logging.Nop{}
	}
	return &GRPCServer{
		address:     address,
		logger:      l.With("module", "grpc_server"),
		files:       files,
		adminSecret: adminSecret,
	}
}

// NewServer returns a grpc.Server with the interceptors and service
// registered, ready to Serve on any listener.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(s.requestInterceptor, s.adminInterceptor))
	srv := grpc.NewServer(opts...)
	RegisterFileReferenceServer(srv, s)
	return srv
}

// Run listens on the configured address until ctx is done, then stops
// gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve is Run on an existing listener.
func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.NewServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	err := srv.Serve(listen)
	if ctx.Err() != nil {
		<-stopped
	}
	return err
}
