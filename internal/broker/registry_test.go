package broker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateTopicIsIdempotent(t *testing.T) {
	r := NewRegistry()
	created, view := r.CreateTopic("orders", time.Minute, 0)
	require.True(t, created)
	require.Equal(t, "orders", view.Name)

	created, view2 := r.CreateTopic("orders", time.Hour, 0)
	require.False(t, created)
	require.Equal(t, time.Minute, view2.MessageTTL, "idempotent create should leave the existing topic unmodified")
}

func TestRegistryPublishUnknownTopic(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Publish("missing", []string{"a"})
	require.False(t, ok)
}

func TestRegistryPublishPullAckEndToEnd(t *testing.T) {
	r := NewRegistry()
	r.CreateTopic("orders", 0, 0)
	created, _, topicFound := r.CreateSubscription("billing", "orders", time.Minute, 0, true)
	require.True(t, created)
	require.True(t, topicFound)

	ids, ok := r.Publish("orders", []string{"one", "two"})
	require.True(t, ok)
	require.Len(t, ids, 2)

	messages, ok := r.Pull("billing", 10)
	require.True(t, ok)
	require.Len(t, messages, 2)
	require.Equal(t, "one", messages[0].Data)
	require.Equal(t, "two", messages[1].Data)

	accepted, ok := r.Ack("billing", []uuid.UUID{mustParse(t, messages[0].ID)})
	require.True(t, ok)
	require.Len(t, accepted, 1)
}

func TestRegistryCreateSubscriptionUnknownTopic(t *testing.T) {
	r := NewRegistry()
	created, _, topicFound := r.CreateSubscription("billing", "missing", time.Minute, 0, true)
	require.False(t, created)
	require.False(t, topicFound)
}

func TestRegistryDeleteTopicCascadesSubscriptions(t *testing.T) {
	r := NewRegistry()
	r.CreateTopic("orders", 0, 0)
	r.CreateSubscription("billing", "orders", time.Minute, 0, true)
	r.CreateSubscription("shipping", "orders", time.Minute, 0, true)

	require.True(t, r.DeleteTopic("orders"))

	_, ok := r.GetSubscription("billing")
	require.False(t, ok, "cascaded delete should remove linked subscriptions")
	_, ok = r.GetSubscription("shipping")
	require.False(t, ok)
}

func TestRegistryDeleteTopicUnknown(t *testing.T) {
	r := NewRegistry()
	require.False(t, r.DeleteTopic("missing"))
}

func TestRegistryDeleteSubscriptionUnlinksFromTopic(t *testing.T) {
	r := NewRegistry()
	r.CreateTopic("orders", 0, 0)
	r.CreateSubscription("billing", "orders", time.Minute, 0, true)

	require.True(t, r.DeleteSubscription("billing"))
	names, ok := r.ListTopicSubscriptions("orders")
	require.True(t, ok)
	require.Empty(t, names)
}

func TestRegistryUpdateTopicPartialFields(t *testing.T) {
	r := NewRegistry()
	r.CreateTopic("orders", time.Minute, time.Hour)

	newTTL := 2 * time.Hour
	view, ok := r.UpdateTopic("orders", nil, &newTTL)
	require.True(t, ok)
	require.Equal(t, time.Minute, view.MessageTTL, "unset field should be left unchanged")
	require.Equal(t, 2*time.Hour, view.TTL)
}

func TestRegistryCleanupExpiresIdleTopicsAndSubscriptions(t *testing.T) {
	r := NewRegistry()
	r.CreateTopic("orders", 0, time.Minute)
	r.CreateSubscription("billing", "orders", time.Minute, time.Second, true)

	future := time.Now().Add(time.Hour)
	topicsRemoved, subsRemoved, _ := r.Cleanup(future)
	require.Equal(t, 1, subsRemoved)
	require.Equal(t, 1, topicsRemoved)

	_, ok := r.GetTopic("orders")
	require.False(t, ok)
	_, ok = r.GetSubscription("billing")
	require.False(t, ok)
}

func TestRegistryMetricsTracksPublishAndPull(t *testing.T) {
	r := NewRegistry()
	r.CreateTopic("orders", 0, 0)
	r.CreateSubscription("billing", "orders", time.Minute, 0, true)
	r.Publish("orders", []string{"a", "b"})
	r.Pull("billing", 10)

	snapshot := r.Metrics()
	require.Len(t, snapshot.Topics, 1)
	require.Equal(t, uint64(2), snapshot.Topics[0].PublishedCount)
	require.Len(t, snapshot.Subscriptions, 1)
	require.Equal(t, uint64(2), snapshot.Subscriptions[0].PulledCount)
}

func mustParse(t *testing.T, s string) uuid.UUID {
	t.Helper()
	id, err := uuid.Parse(s)
	require.NoError(t, err)
	return id
}
