// Package grpcserver implements the JobService gRPC server.
//
// It delegates all business logic to query.Service and handles only the
// gRPC transport concerns: error mapping and conversion between the
// domain types and protobuf Struct messages.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"jobsync/internal/query"
	"jobsync/internal/store"
)

// Server implements JobServiceServer.
type Server struct {
	svc *query.Service
}

// NewServer constructs a gRPC Server backed by the given query.Service.
func NewServer(svc *query.Service) *Server {
	return &Server{svc: svc}
}

// ─── RPC implementations ──────────────────────────────────────────────────────

// ListJobs accepts the same fields as the HTTP query string: source,
// isRemote, search, newOnly, appliedOnly, page, limit.
func (s *Server) ListJobs(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.svc.List(ctx, listParams(req))
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(res)
}

func (s *Server) GetStats(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res, err := s.svc.Stats(ctx)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(res)
}

func (s *Server) Health(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res, err := s.svc.Health(ctx)
	if err != nil {
		return nil, toGRPCError(err)
	}
	return toStruct(res)
}

func (s *Server) Apply(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.svc.Apply(ctx, req.GetValue()); err != nil {
		return nil, toGRPCError(err)
	}
	return &emptypb.Empty{}, nil
}

func (s *Server) Unapply(ctx context.Context, req *wrapperspb.StringValue) (*emptypb.Empty, error) {
	if err := s.svc.Unapply(ctx, req.GetValue()); err != nil {
		return nil, toGRPCError(err)
	}
	return &emptypb.Empty{}, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// toGRPCError maps domain errors to gRPC status errors.
func toGRPCError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return status.Error(codes.NotFound, "job not found")
	}
	var ve *query.ValidationError
	if errors.As(err, &ve) {
		return status.Error(codes.InvalidArgument, ve.Msg)
	}
	if errors.Is(err, store.ErrUnavailable) {
		return status.Error(codes.Unavailable, "store unavailable")
	}
	return status.Error(codes.Internal, "internal server error")
}

// listParams mirrors the HTTP query string: a mistyped or unknown field is
// ignored rather than rejected.
func listParams(req *structpb.Struct) query.ListParams {
	var p query.ListParams
	for key, v := range req.GetFields() {
		switch key {
		case "source":
			p.Source = v.GetStringValue()
		case "search":
			p.Search = strings.TrimSpace(v.GetStringValue())
		case "isRemote":
			if b, ok := v.GetKind().(*structpb.Value_BoolValue); ok {
				remote := b.BoolValue
				p.IsRemote = &remote
			}
		case "newOnly":
			p.NewOnly = v.GetBoolValue()
		case "appliedOnly":
			p.AppliedOnly = v.GetBoolValue()
		case "page":
			p.Page = intValue(v)
		case "limit":
			p.Limit = intValue(v)
		}
	}
	return p
}

// intValue accepts a number or a numeric string; anything else is 0.
func intValue(v *structpb.Value) int {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return int(k.NumberValue)
	case *structpb.Value_StringValue:
		n, err := strconv.Atoi(strings.TrimSpace(k.StringValue))
		if err != nil {
			return 0
		}
		return n
	}
	return 0
}

// toStruct renders v through its JSON tags so gRPC and HTTP responses share
// one shape.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return out, nil
}
