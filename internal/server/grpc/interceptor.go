package grpc

import (
	"context"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/logging"
	"github.com/ibcol/portal/internal/server/auth"
)

// requestInterceptor tags the context with the caller's request id (or a
// new one) and logs each call once it completes.
func (s *GRPCServer) requestInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	id := firstMetadata(ctx, common.RequestIDHeaderName)
	if id == "" {
		id = uuid.NewString()
	}
	ctx = logging.WithRequestID(ctx, id)

	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info(ctx, "grpc",
		"method", info.FullMethod,
		"code", status.Code(err).String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, err
}

// adminInterceptor requires an admin bearer token in the authorization
// metadata for DeleteReference when a secret is configured.
func (s *GRPCServer) adminInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if info.FullMethod != MethodDeleteReference || len(s.adminSecret) == 0 {
		return handler(ctx, req)
	}

	header := firstMetadata(ctx, common.AuthorizationHeaderName)
	if header == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	subject, err := auth.AuthorizeAdmin(header, s.adminSecret)
	if err != nil {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	s.logger.Info(ctx, "admin call", "method", info.FullMethod, "subject", subject)
	return handler(ctx, req)
}

func firstMetadata(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(key); len(values) > 0 {
		return values[0]
	}
	return ""
}
