package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/couriermq/courier/internal/broker"
	"github.com/couriermq/courier/internal/config"
	"github.com/couriermq/courier/internal/httpapi"
	"github.com/couriermq/courier/pkg/client"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()
	registry := broker.NewRegistry()
	server := httpapi.NewServer("127.0.0.1:0", registry, config.Default())
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return client.NewClient(ts.URL)
}

func TestClientEndToEnd(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Heartbeat(ctx))

	created, topic, err := c.CreateTopic(ctx, "orders", time.Minute, 0)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, "orders", topic.Name)

	created, _, err = c.CreateSubscription(ctx, "billing", "orders", 30*time.Second, 0, true)
	require.NoError(t, err)
	require.True(t, created)

	ids, err := c.Publish(ctx, "orders", "hello", "world")
	require.NoError(t, err)
	require.Len(t, ids, 2)

	messages, err := c.Pull(ctx, "billing", 10)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	acked, err := c.Ack(ctx, "billing", messages[0].ID, messages[1].ID)
	require.NoError(t, err)
	require.Len(t, acked, 2)

	require.NoError(t, c.DeleteSubscription(ctx, "billing"))
	require.NoError(t, c.DeleteTopic(ctx, "orders"))

	_, err = c.GetTopic(ctx, "orders")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestClientCreateTopicIdempotent(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	created, _, err := c.CreateTopic(ctx, "orders", time.Minute, 0)
	require.NoError(t, err)
	require.True(t, created)

	created, existing, err := c.CreateTopic(ctx, "orders", time.Hour, 0)
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, time.Minute, time.Duration(existing.MessageTTL)*time.Second)
}
