// Package broker implements Courier's message distribution engine: topics,
// subscriptions, and the registry that coordinates them. The commit log,
// cursor, and weak-index primitives it builds on live in
// internal/commitlog.
package broker

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couriermq/courier/internal/commitlog"
	"github.com/couriermq/courier/pkg/types"
)

// Topic is the named owner of one commit log plus TTL metadata.
type Topic struct {
	mu sync.Mutex

	name       string
	messageTTL time.Duration
	ttl        time.Duration
	createdAt  time.Time
	updatedAt  time.Time

	log *commitlog.CommitLog
}

// NewTopic creates a topic with a fresh, empty commit log.
func NewTopic(name string, messageTTL, ttl time.Duration) *Topic {
	now := time.Now()
	return &Topic{
		name:       name,
		messageTTL: messageTTL,
		ttl:        ttl,
		createdAt:  now,
		updatedAt:  now,
		log:        commitlog.New(),
	}
}

// Name returns the topic's name. Immutable for the life of the topic.
func (t *Topic) Name() string { return t.name }

// Publish touches the topic, creates an envelope with a fresh id and the
// current timestamp, appends it to the log, and returns the new id.
func (t *Topic) Publish(data string) uuid.UUID {
	id := uuid.New()
	now := time.Now()

	t.mu.Lock()
	t.updatedAt = now
	t.mu.Unlock()

	t.log.Append(id, now, data)
	return id
}

// Cleanup expires messages older than the topic's message TTL. A
// message_ttl of zero disables message expiry and Cleanup is a no-op.
func (t *Topic) Cleanup(now time.Time) int {
	ttl := t.MessageTTL()
	if ttl == 0 {
		return 0
	}
	return t.log.Cleanup(func(env commitlog.Envelope) bool {
		return now.Sub(env.PublishedAt) > ttl
	})
}

// MessageTTL returns the topic's current message TTL.
func (t *Topic) MessageTTL() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messageTTL
}

// SetMessageTTL updates the message TTL and touches the topic.
func (t *Topic) SetMessageTTL(ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messageTTL = ttl
	t.updatedAt = time.Now()
}

// TTL returns the topic's idle TTL.
func (t *Topic) TTL() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ttl
}

// SetTTL updates the idle TTL and touches the topic.
func (t *Topic) SetTTL(ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ttl = ttl
	t.updatedAt = time.Now()
}

// Touch advances updated_at without changing any other field.
func (t *Topic) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.updatedAt = time.Now()
}

// CreatedAt returns the topic's creation timestamp.
func (t *Topic) CreatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.createdAt
}

// UpdatedAt returns the topic's last-mutated timestamp.
func (t *Topic) UpdatedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updatedAt
}

// Len returns the number of live (not yet expired) messages currently in
// the topic's commit log. Acks do not remove messages from the log.
func (t *Topic) Len() int { return t.log.Len() }

// Empty reports whether the topic's commit log currently holds no
// messages.
func (t *Topic) Empty() bool { return t.log.Empty() }

// NewHeadCursor returns a cursor positioned at the log's head, for
// historical subscriptions that should see pre-existing messages.
func (t *Topic) NewHeadCursor() *commitlog.Cursor { return t.log.NewHeadCursor() }

// NewTailCursor returns a cursor positioned at the log's tail, for
// non-historical subscriptions that should only see future publishes.
func (t *Topic) NewTailCursor() *commitlog.Cursor { return t.log.NewTailCursor() }

// Close releases the topic's commit log nodes.
func (t *Topic) Close() { t.log.Close() }

// View returns the JSON-facing projection of the topic.
func (t *Topic) View() types.TopicView {
	t.mu.Lock()
	defer t.mu.Unlock()
	return types.TopicView{
		Name:       t.name,
		MessageTTL: t.messageTTL,
		TTL:        t.ttl,
		Created:    t.createdAt,
		Updated:    t.updatedAt,
	}
}
