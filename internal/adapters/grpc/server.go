package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/domain"
)

const serviceName = "viralforge.referral.v1.ReferralInternalService"

// ReferralInternalService is the lookup surface other services call without a bearer token.
type ReferralInternalService interface {
	ResolveAttribution(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetLinkByCode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConversion(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type ReferralInternalServer struct {
	service *application.Service
}

func NewReferralInternalServer(service *application.Service) *ReferralInternalServer {
	return &ReferralInternalServer{service: service}
}

type unaryMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func Register(server grpc.ServiceRegistrar, svc ReferralInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*ReferralInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{MethodName: "ResolveAttribution", Handler: structHandler("ResolveAttribution", svc.ResolveAttribution)},
			{MethodName: "GetLinkByCode", Handler: structHandler("GetLinkByCode", svc.GetLinkByCode)},
			{MethodName: "GetConversion", Handler: structHandler("GetConversion", svc.GetConversion)},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "contracts/proto/referral/v1/referral_internal.proto",
	}, svc)
}

func (s *ReferralInternalServer) ResolveAttribution(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	clientID := stringField(req, "client_id")
	if clientID == "" {
		return nil, status.Error(codes.InvalidArgument, "missing client_id")
	}
	code, ok, err := s.service.ResolveClient(ctx, clientID)
	if err != nil {
		return nil, toStatus(err)
	}
	return build(map[string]any{
		"client_id":     clientID,
		"referral_code": code,
		"attributed":    ok,
	})
}

func (s *ReferralInternalServer) GetLinkByCode(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	code := stringField(req, "referral_code")
	if code == "" {
		return nil, status.Error(codes.InvalidArgument, "missing referral_code")
	}
	link, err := s.service.GetLinkByCode(ctx, code)
	if err != nil {
		return nil, toStatus(err)
	}
	return build(map[string]any{
		"link_id":          link.LinkID,
		"creator_id":       link.CreatorID,
		"program_id":       link.ProgramID,
		"referral_code":    link.ReferralCode,
		"destination_url":  link.DestinationURL,
		"click_count":      link.ClickCount,
		"conversion_count": link.ConversionCount,
		"created_at":       link.CreatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *ReferralInternalServer) GetConversion(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(req, "conversion_id")
	if id == "" {
		return nil, status.Error(codes.InvalidArgument, "missing conversion_id")
	}
	c, err := s.service.GetConversion(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	return build(map[string]any{
		"conversion_id":        c.ConversionID,
		"link_id":              c.LinkID,
		"program_id":           c.ProgramID,
		"creator_id":           c.CreatorID,
		"revenue_amount_cents": c.RevenueAmountCents,
		"currency":             c.Currency,
		"conversion_type":      c.ConversionType,
		"occurred_at":          c.OccurredAt.UTC().Format(time.RFC3339),
	})
}

// LoggingInterceptor emits one structured line per unary call.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		outcome := "success"
		level := slog.LevelInfo
		if err != nil {
			outcome = "failure"
			level = slog.LevelWarn
			if code == codes.Internal || code == codes.Unavailable {
				level = slog.LevelError
			}
		}
		logger.Log(ctx, level, "grpc request completed",
			"layer", "adapter",
			"operation", "grpc_request",
			"outcome", outcome,
			"method", info.FullMethod,
			"code", code.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}

func structHandler(method string, fn unaryMethod) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return fn(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + serviceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return fn(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}

func stringField(req *structpb.Struct, name string) string {
	v := req.GetFields()[name]
	if v == nil {
		return ""
	}
	return strings.TrimSpace(v.GetStringValue())
}

func build(fields map[string]any) (*structpb.Struct, error) {
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, "resource not found")
	case errors.Is(err, domain.ErrUnauthorized):
		return status.Error(codes.Unauthenticated, "unauthenticated")
	case errors.Is(err, domain.ErrForbidden):
		return status.Error(codes.PermissionDenied, "permission denied")
	case errors.Is(err, domain.ErrConflict):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, "rate limited")
	case errors.Is(err, domain.ErrTransient):
		return status.Error(codes.Unavailable, "dependency temporarily unavailable")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
