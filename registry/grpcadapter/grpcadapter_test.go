package grpcadapter_test

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/agentfleet/orchestrator/persona"
	"github.com/agentfleet/orchestrator/registry/grpcadapter"
)

func dialServer(t *testing.T, reg *persona.Registry) *grpc.ClientConn {
	t.Helper()
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	grpcadapter.Register(srv, grpcadapter.NewServer(reg))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClient_ListSlots_RoundTrips(t *testing.T) {
	reg := persona.New([]persona.Slot{
		{Name: "Developer Agent", Enabled: true, DefaultModeSlug: "code", Modes: []persona.Mode{
			{Slug: "code", Name: "code", Description: "write code", WhenToUse: "implement a feature"},
		}},
	})
	conn := dialServer(t, reg)
	client := grpcadapter.NewClient(conn)

	slots, err := client.ListSlots(context.Background())
	require.NoError(t, err)
	require.Len(t, slots, 1)
	require.Equal(t, "Developer Agent", slots[0].Name)
	require.True(t, slots[0].Enabled)
	require.Len(t, slots[0].Modes, 1)
	require.Equal(t, "code", slots[0].Modes[0].Slug)
}
