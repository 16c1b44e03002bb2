package grpc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/fileref"
)

func (s *GRPCServer) IssueUploadTarget(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	fields := in.GetFields()
	size, err := sizeField(fields["size"])
	if err != nil {
		return nil, s.toStatus(ctx, "issue upload target", err)
	}
	req := fileref.UploadRequest{
		Name:        fields["name"].GetStringValue(),
		ContentType: fields["type"].GetStringValue(),
		Size:        size,
	}

	target, err := s.files.Issue(ctx, req)
	if err != nil {
		return nil, s.toStatus(ctx, "issue upload target", err)
	}

	headers := make(map[string]any, len(target.Headers))
	for k, v := range target.Headers {
		headers[k] = v
	}

	out, err := structpb.NewStruct(map[string]any{
		"uploadUrl": target.UploadURL,
		"fileRef":   target.FileRef,
		"expiresAt": target.ExpiresAt.UTC().Format(time.RFC3339),
		"method":    target.Method,
		"headers":   headers,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "issue upload target", err)
	}
	return out, nil
}

// maxExactSize is the largest integer a float64 holds exactly.
const maxExactSize = 1 << 53

// sizeField reads a byte count from a Struct number. An absent size is zero
// and left to request validation.
func sizeField(v *structpb.Value) (int64, error) {
	if v == nil {
		return 0, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, fmt.Errorf("%w: size must be a number", common.ErrValidation)
	}
	f := n.NumberValue
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > maxExactSize {
		return 0, fmt.Errorf("%w: size must be a whole number of bytes", common.ErrValidation)
	}
	return int64(f), nil
}

func (s *GRPCServer) ResolveDownloadTarget(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error) {
	target, err := s.files.Resolve(ctx, in.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, "resolve download target", err)
	}
	return wrapperspb.String(target.URL), nil
}

func (s *GRPCServer) DeleteReference(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	if err := s.files.Delete(ctx, in.GetValue()); err != nil {
		return nil, s.toStatus(ctx, "delete reference", err)
	}
	return wrapperspb.Bool(true), nil
}

func (s *GRPCServer) ConfirmUpload(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	info, err := s.files.Confirm(ctx, in.GetValue())
	if err != nil {
		return nil, s.toStatus(ctx, "confirm upload", err)
	}

	out, err := structpb.NewStruct(map[string]any{
		"fileRef":     in.GetValue(),
		"size":        float64(info.Size),
		"contentType": info.ContentType,
	})
	if err != nil {
		return nil, s.toStatus(ctx, "confirm upload", err)
	}
	return out, nil
}

// toStatus maps sentinel errors to gRPC codes; unknown errors are logged
// and hidden behind Internal.
func (s *GRPCServer) toStatus(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidReference):
		return status.Error(codes.InvalidArgument, "invalid file reference")
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return status.Error(codes.NotFound, "file not found")
	case errors.Is(err, common.ErrStorageUnavailable):
		s.logger.Warn(ctx, op+" failed", "error", err)
		return status.Error(codes.Unavailable, "storage temporarily unavailable")
	case errors.Is(err, common.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthorized")
	default:
		s.logger.Error(ctx, op+" failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
