package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTopicPublishAssignsIncreasingVisibility(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	require.True(t, topic.Empty())

	id1 := topic.Publish("a")
	id2 := topic.Publish("b")
	require.NotEqual(t, id1, id2)
	require.Equal(t, 2, topic.Len())
}

func TestTopicCleanupHonorsZeroMessageTTL(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	topic.Publish("a")
	removed := topic.Cleanup(time.Now().Add(time.Hour))
	require.Equal(t, 0, removed)
	require.Equal(t, 1, topic.Len())
}

func TestTopicCleanupExpiresOldMessages(t *testing.T) {
	topic := NewTopic("orders", time.Minute, 0)
	topic.Publish("a")
	removed := topic.Cleanup(time.Now().Add(2 * time.Minute))
	require.Equal(t, 1, removed)
	require.True(t, topic.Empty())
}

func TestTopicSetMessageTTLTouchesUpdatedAt(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	before := topic.UpdatedAt()
	time.Sleep(time.Millisecond)
	topic.SetMessageTTL(time.Minute)
	require.True(t, topic.UpdatedAt().After(before))
	require.Equal(t, time.Minute, topic.MessageTTL())
}

func TestTopicHistoricalVsTailCursor(t *testing.T) {
	topic := NewTopic("orders", 0, 0)
	topic.Publish("past")

	head := topic.NewHeadCursor()
	env, _, ok := head.Next()
	require.True(t, ok)
	require.Equal(t, "past", env.Data)

	tail := topic.NewTailCursor()
	_, _, ok = tail.Next()
	require.False(t, ok, "tail cursor should not see pre-existing messages")

	topic.Publish("future")
	env, _, ok = tail.Next()
	require.True(t, ok)
	require.Equal(t, "future", env.Data)
}

func TestTopicView(t *testing.T) {
	topic := NewTopic("orders", time.Minute, time.Hour)
	view := topic.View()
	require.Equal(t, "orders", view.Name)
	require.Equal(t, time.Minute, view.MessageTTL)
	require.Equal(t, time.Hour, view.TTL)
	require.Equal(t, topic.CreatedAt(), view.Created)
}
