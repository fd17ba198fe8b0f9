//go:build integration

package natsclient

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_ConnectAndPublish(t *testing.T) {
	tc := NewTestClient(t)
	client := tc.Client

	assert.True(t, client.IsHealthy())
	assert.True(t, client.Health().IsHealthy())

	rtt, err := client.RTT()
	require.NoError(t, err)
	assert.Greater(t, rtt, time.Duration(0))

	received := make(chan *nats.Msg, 1)
	sub, err := tc.GetNativeConnection().ChanSubscribe("adcp.test.>", received)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.NoError(t, tc.GetNativeConnection().Flush())

	ctx := context.Background()
	require.NoError(t, client.Publish(ctx, "adcp.test.raw", []byte("ensemble")))

	msg := nats.NewMsg("adcp.test.hdr")
	msg.Header.Set("Adcp-Session", "abc")
	msg.Data = []byte("{}")
	require.NoError(t, client.PublishMsg(ctx, msg))

	select {
	case m := <-received:
		assert.Equal(t, "ensemble", string(m.Data))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for raw message")
	}
	select {
	case m := <-received:
		assert.Equal(t, "abc", m.Header.Get("Adcp-Session"))
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for header message")
	}
}

func TestIntegration_JetStream(t *testing.T) {
	tc := NewTestClient(t, WithStream("ADCP", "adcp.>"))
	client := tc.Client
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// EnsureStream is idempotent.
	stream, err := client.EnsureStream(ctx, "ADCP", []string{"adcp.>"})
	require.NoError(t, err)

	msg := nats.NewMsg("adcp.ensembles")
	msg.Data = []byte("payload")
	ack, err := client.PublishToStream(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, "ADCP", ack.Stream)
	assert.Equal(t, uint64(1), ack.Sequence)

	info, err := stream.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.State.Msgs)
}

func TestIntegration_CloseDrains(t *testing.T) {
	tc := NewTestClient(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, tc.Client.Close(ctx))
	assert.Equal(t, StatusDisconnected, tc.Client.Status())
	assert.ErrorIs(t, tc.Client.Publish(ctx, "adcp.test", nil), ErrClosed)
}
