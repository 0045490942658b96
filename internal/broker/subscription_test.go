package broker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestSubscriptionPullAndAck(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	topic.Publish("first")

	sub := NewSubscription("billing", "orders", time.Minute, 0, topic, true)
	d, ok := sub.Pull()
	require.True(t, ok)
	require.Equal(t, "first", d.Data)
	require.Equal(t, 1, d.Tries)
	require.Equal(t, 1, sub.NumPending())

	require.True(t, sub.Ack(d.ID))
	require.Equal(t, 0, sub.NumPending())

	// A second ack of the same id is no longer outstanding.
	require.False(t, sub.Ack(d.ID))
}

func TestSubscriptionPullEmptyLogReturnsFalse(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	sub := NewSubscription("billing", "orders", time.Minute, 0, topic, true)
	_, ok := sub.Pull()
	require.False(t, ok)
}

func TestSubscriptionRedeliveryAfterDeadline(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	topic.Publish("msg")

	sub := NewSubscription("billing", "orders", time.Millisecond, 0, topic, true)
	first, ok := sub.Pull()
	require.True(t, ok)
	require.Equal(t, 1, first.Tries)

	time.Sleep(5 * time.Millisecond)

	redelivered, ok := sub.Pull()
	require.True(t, ok)
	require.Equal(t, first.ID, redelivered.ID)
	require.Equal(t, 2, redelivered.Tries)
	require.Equal(t, 1, sub.NumPending(), "only one record should be pending after redelivery replaces the original")
}

func TestSubscriptionAckedMessageIsNotRedelivered(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	topic.Publish("msg")

	sub := NewSubscription("billing", "orders", time.Millisecond, 0, topic, true)
	d, ok := sub.Pull()
	require.True(t, ok)
	require.True(t, sub.Ack(d.ID))

	time.Sleep(5 * time.Millisecond)

	_, ok = sub.Pull()
	require.False(t, ok, "an acked message should never be redelivered")
}

func TestSubscriptionNonHistoricalStartsAtTail(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	topic.Publish("before subscribe")

	sub := NewSubscription("billing", "orders", time.Minute, 0, topic, false)
	_, ok := sub.Pull()
	require.False(t, ok, "non-historical subscription should not see pre-existing messages")

	topic.Publish("after subscribe")
	d, ok := sub.Pull()
	require.True(t, ok)
	require.Equal(t, "after subscribe", d.Data)
}

func TestSubscriptionAckMany(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	topic.Publish("a")
	topic.Publish("b")

	sub := NewSubscription("billing", "orders", time.Minute, 0, topic, true)
	d1, _ := sub.Pull()
	d2, _ := sub.Pull()

	accepted := sub.AckMany([]uuid.UUID{d1.ID, d2.ID})
	require.Len(t, accepted, 2)
	require.Equal(t, 0, sub.NumPending())
}
