// Package grpcapi serves ad-hoc alignment over gRPC.
//
// The service is described without generated code: a single unary method
//
//	rpc Align(google.protobuf.Struct) returns (google.protobuf.Struct)
//
// under the name tempalign.v1.Alignment. Request and response structs have
// the same shape as the JSON bodies of POST /align.
package grpcapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/HatiCode/tempalign/pkg/align"
	"github.com/HatiCode/tempalign/pkg/api"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "tempalign.v1.Alignment"
	// AlignMethod is the full method name of Align.
	AlignMethod = "/" + ServiceName + "/Align"
)

// AlignmentServer is the server API of tempalign.v1.Alignment.
type AlignmentServer interface {
	Align(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes tempalign.v1.Alignment for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AlignmentServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Align", Handler: alignHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tempalign/v1/alignment.proto",
}

func alignHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AlignmentServer).Align(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: AlignMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AlignmentServer).Align(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// RegisterAlignmentServer registers srv on s.
func RegisterAlignmentServer(s grpc.ServiceRegistrar, srv AlignmentServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Align calls tempalign.v1.Alignment/Align on cc.
func Align(ctx context.Context, cc grpc.ClientConnInterface, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, AlignMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Server implements AlignmentServer on top of api.Align.
type Server struct {
	cfg    align.Config
	logger *slog.Logger
}

// NewServer returns a server aligning with cfg unless a request overrides it.
func NewServer(cfg align.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{cfg: cfg, logger: logger}
}

// Align decodes the struct as an api.AlignRequest, runs it and encodes the
// api.AlignResponse.
func (s *Server) Align(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}

	raw, err := protojson.Marshal(in)
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "encode request: %v", err)
	}
	var req api.AlignRequest
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "decode request: %v", err)
	}

	start := time.Now()
	resp, err := api.Align(s.cfg, req)
	if err != nil {
		return nil, s.statusFor(err)
	}

	body, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("failed to encode alignment response", "error", err)
		return nil, status.Error(codes.Internal, "internal server error")
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(body, out); err != nil {
		s.logger.Error("failed to convert alignment response", "error", err)
		return nil, status.Error(codes.Internal, "internal server error")
	}

	s.logger.Debug("grpc alignment complete",
		"tables", len(req.Tables),
		"rows", len(resp.Rows),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// statusFor maps alignment errors to gRPC status codes.
func (s *Server) statusFor(err error) error {
	switch {
	case errors.Is(err, align.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, align.ErrSchema):
		return status.Error(codes.FailedPrecondition, err.Error())
	default:
		s.logger.Error("alignment failed", "error", err)
		return status.Error(codes.Internal, "internal server error")
	}
}

// NewGRPCServer builds a gRPC server exposing srv, the standard health
// service (marked SERVING for ServiceName and the server as a whole) and
// reflection. The returned health server lets the caller flip the status
// on shutdown.
func NewGRPCServer(srv AlignmentServer, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	gs := grpc.NewServer(opts...)
	RegisterAlignmentServer(gs, srv)

	hs := health.NewServer()
	grpc_health_v1.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	reflection.Register(gs)
	return gs, hs
}
