package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ibcol.files.v1.FileReferenceService"

// Full method names, as seen by interceptors.
const (
	MethodIssueUploadTarget     = "/" + ServiceName + "/IssueUploadTarget"
	MethodResolveDownloadTarget = "/" + ServiceName + "/ResolveDownloadTarget"
	MethodDeleteReference       = "/" + ServiceName + "/DeleteReference"
	MethodConfirmUpload         = "/" + ServiceName + "/ConfirmUpload"
)

// FileReferenceServer is the server API. Messages are protobuf well-known
// types so the service needs no generated code.
type FileReferenceServer interface {
	// IssueUploadTarget takes {name, type, size} and returns
	// {uploadUrl, fileRef, expiresAt, method, headers}.
	IssueUploadTarget(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	// ResolveDownloadTarget takes a file reference and returns a read URL.
	ResolveDownloadTarget(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.StringValue, error)
	// DeleteReference removes the object behind a file reference.
	DeleteReference(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
	// ConfirmUpload returns {fileRef, size, contentType} once the upload landed.
	ConfirmUpload(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error)
}

// FileReferenceServiceDesc registers a FileReferenceServer on a grpc.Server.
var FileReferenceServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FileReferenceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("IssueUploadTarget", FileReferenceServer.IssueUploadTarget),
		unary("ResolveDownloadTarget", FileReferenceServer.ResolveDownloadTarget),
		unary("DeleteReference", FileReferenceServer.DeleteReference),
		unary("ConfirmUpload", FileReferenceServer.ConfirmUpload),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ibcol/files/v1/files.proto",
}

// RegisterFileReferenceServer registers srv with r.
func RegisterFileReferenceServer(r grpc.ServiceRegistrar, srv FileReferenceServer) {
	r.RegisterService(&FileReferenceServiceDesc, srv)
}

// unary builds the MethodDesc protoc-gen-go-grpc would generate for a
// unary method.
func unary[Req, Resp any, PReq interface {
	*Req
	proto.Message
}](name string, call func(FileReferenceServer, context.Context, PReq) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name

	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := PReq(new(Req))
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(FileReferenceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(FileReferenceServer), ctx, req.(PReq))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// Client calls a remote FileReferenceServer.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) IssueUploadTarget(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodIssueUploadTarget, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ResolveDownloadTarget(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	out := new(wrapperspb.StringValue)
	if err := c.cc.Invoke(ctx, MethodResolveDownloadTarget, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) DeleteReference(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, MethodDeleteReference, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ConfirmUpload(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodConfirmUpload, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
