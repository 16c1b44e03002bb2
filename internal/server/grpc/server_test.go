package grpc

import (
	"context"
	"fmt"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/fileref"
	"github.com/ibcol/portal/internal/logging"
	"github.com/ibcol/portal/internal/server/auth"
	"github.com/ibcol/portal/internal/storage/storagetest"
)

var (
	codecOnce sync.Once
	codec     *fileref.Codec
)

func testService(t *testing.T) (*fileref.Service, *storagetest.Memory) {
	t.Helper()
	codecOnce.Do(func() {
		c, err := fileref.NewCodec("grpc-test-secret-value")
		if err != nil {
			panic(err)
		}
		codec = c
	})
	mem := storagetest.NewMemory()
	return fileref.NewService(codec, mem, fileref.Options{}, logging.Nop{}), mem
}

// startBufconn serves s in memory and returns a connected client.
func startBufconn(t *testing.T, s *GRPCServer) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		<-done
	})
	return NewClient(conn)
}

func issueRequest(t *testing.T) *structpb.Struct {
	t.Helper()
	in, err := structpb.NewStruct(map[string]any{"name": "deck.pdf", "type": "application/pdf", "size": 4096})
	require.NoError(t, err)
	return in
}

func TestFileReferenceService_Lifecycle(t *testing.T) {
	svc, mem := testService(t)
	client := startBufconn(t, NewGRPCServer("", logging.Nop{}, svc, nil))
	ctx := context.Background()

	target, err := client.IssueUploadTarget(ctx, issueRequest(t))
	require.NoError(t, err)
	fields := target.GetFields()
	ref := fields["fileRef"].GetStringValue()
	require.NotEmpty(t, ref)
	assert.Equal(t, "PUT", fields["method"].GetStringValue())
	assert.Equal(t, "application/pdf", fields["headers"].GetStructValue().GetFields()["Content-Type"].GetStringValue())
	_, err = time.Parse(time.RFC3339, fields["expiresAt"].GetStringValue())
	assert.NoError(t, err)

	_, err = client.ConfirmUpload(ctx, wrapperspb.String(ref))
	assert.Equal(t, codes.NotFound, status.Code(err))

	key := mem.SignedKeys()[0]
	mem.Put(key, "application/pdf", 4096)

	confirmed, err := client.ConfirmUpload(ctx, wrapperspb.String(ref))
	require.NoError(t, err)
	assert.Equal(t, float64(4096), confirmed.GetFields()["size"].GetNumberValue())

	url, err := client.ResolveDownloadTarget(ctx, wrapperspb.String(ref))
	require.NoError(t, err)
	assert.Contains(t, url.GetValue(), key)

	ok, err := client.DeleteReference(ctx, wrapperspb.String(ref))
	require.NoError(t, err)
	assert.True(t, ok.GetValue())

	_, err = client.DeleteReference(ctx, wrapperspb.String(ref))
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestIssueUploadTarget_RejectsNonIntegerSize(t *testing.T) {
	svc, mem := testService(t)
	client := startBufconn(t, NewGRPCServer("", logging.Nop{}, svc, nil))
	ctx := context.Background()

	sizes := map[string]*structpb.Value{
		"fraction": structpb.NewNumberValue(2048.5),
		"nan":      structpb.NewNumberValue(math.NaN()),
		"+inf":     structpb.NewNumberValue(math.Inf(1)),
		"-inf":     structpb.NewNumberValue(math.Inf(-1)),
		"too big":  structpb.NewNumberValue(1e300),
		"string":   structpb.NewStringValue("2048"),
	}
	for name, size := range sizes {
		t.Run(name, func(t *testing.T) {
			in := &structpb.Struct{Fields: map[string]*structpb.Value{
				"name": structpb.NewStringValue("deck.pdf"),
				"type": structpb.NewStringValue("application/pdf"),
				"size": size,
			}}
			_, err := client.IssueUploadTarget(ctx, in)
			assert.Equal(t, codes.InvalidArgument, status.Code(err))
		})
	}
	assert.Empty(t, mem.SignedKeys())

	_, err := sizeField(structpb.NewNumberValue(4096))
	assert.NoError(t, err)
}

func TestFileReferenceService_ErrorCodes(t *testing.T) {
	svc, mem := testService(t)
	client := startBufconn(t, NewGRPCServer("", logging.Nop{}, svc, nil))
	ctx := context.Background()

	_, err := client.ResolveDownloadTarget(ctx, wrapperspb.String("tampered"))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Equal(t, "invalid file reference", status.Convert(err).Message())

	empty, err := structpb.NewStruct(map[string]any{"name": "a.pdf"})
	require.NoError(t, err)
	_, err = client.IssueUploadTarget(ctx, empty)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	mem.FailNext("sign_put", fmt.Errorf("timeout: %w", common.ErrStorageUnavailable))
	_, err = client.IssueUploadTarget(ctx, issueRequest(t))
	assert.Equal(t, codes.Unavailable, status.Code(err))

	mem.FailNext("sign_put", fmt.Errorf("boom"))
	_, err = client.IssueUploadTarget(ctx, issueRequest(t))
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Equal(t, "internal error", status.Convert(err).Message())
}

func TestFileReferenceService_AdminDelete(t *testing.T) {
	secret := []byte("grpc-admin-secret")
	svc, mem := testService(t)
	client := startBufconn(t, NewGRPCServer("", logging.Nop{}, svc, secret))
	ctx := context.Background()

	target, err := client.IssueUploadTarget(ctx, issueRequest(t))
	require.NoError(t, err)
	ref := wrapperspb.String(target.GetFields()["fileRef"].GetStringValue())
	mem.Put(mem.SignedKeys()[0], "application/pdf", 1)

	_, err = client.DeleteReference(ctx, ref)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	assert.Equal(t, "missing token", status.Convert(err).Message())

	bad := metadata.AppendToOutgoingContext(ctx, common.AuthorizationHeaderName, "Bearer not-a-jwt")
	_, err = client.DeleteReference(bad, ref)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	token, err := auth.GenerateToken("ops", auth.RoleAdmin, secret, time.Hour)
	require.NoError(t, err)
	good := metadata.AppendToOutgoingContext(ctx, common.AuthorizationHeaderName, "Bearer "+token)
	ok, err := client.DeleteReference(good, ref)
	require.NoError(t, err)
	assert.True(t, ok.GetValue())

	// Only deletes are guarded.
	_, err = client.ResolveDownloadTarget(ctx, ref)
	assert.NoError(t, err)
}

func TestRequestInterceptor_PropagatesRequestID(t *testing.T) {
	s := NewGRPCServer("", logging.Nop{}, nil, nil)
	info := &grpc.UnaryServerInfo{FullMethod: MethodResolveDownloadTarget}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "edge-42"))
	var seen string
	_, err := s.requestInterceptor(ctx, nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = logging.RequestID(ctx)
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "edge-42", seen)

	_, _ = s.requestInterceptor(context.Background(), nil, info, func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = logging.RequestID(ctx)
		return nil, nil
	})
	assert.NotEmpty(t, seen)
	assert.NotEqual(t, "edge-42", seen)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:0", logging.Nop{}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- srv.Run(ctx)
	}()

	select {
	case err := <-done:
		t.Fatalf("server exited too early: %v", err)
	case <-time.After(150 * time.Millisecond):
	}

	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on graceful stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop within timeout after context cancel")
	}
}

func TestRun_ReturnsErrorOnBadAddress(t *testing.T) {
	t.Parallel()

	srv := NewGRPCServer("127.0.0.1:99999", logging.Nop{}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := srv.Run(ctx); err == nil {
		t.Fatal("expected listen error for invalid port")
	}
}
