package grpc

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/viralforge/stakeshare/internal/adapters/memory"
	"github.com/viralforge/stakeshare/internal/application"
	"github.com/viralforge/stakeshare/internal/domain"
	"github.com/viralforge/stakeshare/internal/ports"
)

func startServer(t *testing.T) (*grpc.ClientConn, *application.Service) {
	t.Helper()
	repos := memory.NewRepositories()
	now := time.Now().UTC()
	require.NoError(t, repos.Links.Create(context.Background(), domain.TrackingLink{
		LinkID:         "link-1",
		CreatorID:      "creator-1",
		ProgramID:      "prog-1",
		ReferralCode:   "WXYZ2345",
		DestinationURL: "https://shop.example.com",
		CreatedAt:      now,
	}, ports.OutboxEvent{EventType: domain.EventLinkCreated, OccurredAt: now}))
	svc := application.NewService(application.Dependencies{
		Links:       repos.Links,
		Conversions: repos.Conversions,
		Programs:    repos.Directory,
		Attribution: memory.NewAttributionStore(func() time.Time { return time.Now().UTC() }),
	})

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingInterceptor(slog.New(slog.NewTextHandler(io.Discard, nil)))))
	Register(server, NewReferralInternalServer(svc))
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return listener.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, svc
}

func call(t *testing.T, conn *grpc.ClientConn, method string, fields map[string]any) (*structpb.Struct, error) {
	t.Helper()
	req, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	resp := &structpb.Struct{}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = conn.Invoke(ctx, "/"+serviceName+"/"+method, req, resp)
	return resp, err
}

func TestGetLinkByCode(t *testing.T) {
	conn, _ := startServer(t)

	resp, err := call(t, conn, "GetLinkByCode", map[string]any{"referral_code": "wxyz2345"})
	require.NoError(t, err)
	assert.Equal(t, "link-1", resp.GetFields()["link_id"].GetStringValue())
	assert.Equal(t, "creator-1", resp.GetFields()["creator_id"].GetStringValue())

	_, err = call(t, conn, "GetLinkByCode", map[string]any{"referral_code": "NONE2345"})
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = call(t, conn, "GetLinkByCode", map[string]any{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestResolveAttribution(t *testing.T) {
	conn, svc := startServer(t)

	click, err := svc.RecordClick(context.Background(), "WXYZ2345", application.ClientContext{IP: "203.0.113.9"})
	require.NoError(t, err)
	require.True(t, click.Found)

	resp, err := call(t, conn, "ResolveAttribution", map[string]any{"client_id": click.ClientID})
	require.NoError(t, err)
	assert.True(t, resp.GetFields()["attributed"].GetBoolValue())
	assert.Equal(t, "WXYZ2345", resp.GetFields()["referral_code"].GetStringValue())

	resp, err = call(t, conn, "ResolveAttribution", map[string]any{"client_id": "never-seen"})
	require.NoError(t, err)
	assert.False(t, resp.GetFields()["attributed"].GetBoolValue())
}

func TestGetConversionNotFound(t *testing.T) {
	conn, _ := startServer(t)
	_, err := call(t, conn, "GetConversion", map[string]any{"conversion_id": "missing"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}
