package broker

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couriermq/courier/internal/commitlog"
	"github.com/couriermq/courier/pkg/types"
)

// pendingRecord is the per-subscription bookkeeping for a delivered-but-
// unacked message: when it was sent, how many times, and a weak handle
// back to its envelope in the topic's commit log.
type pendingRecord struct {
	sentAt    time.Time
	messageID uuid.UUID
	tries     int
	index     commitlog.Index
}

// Delivery is the view of a message handed back by Pull.
type Delivery struct {
	ID          uuid.UUID
	PublishedAt time.Time
	Tries       int
	Data        string
}

// Subscription is a cursor over one topic's commit log plus pending-
// delivery bookkeeping implementing at-least-once delivery with
// redelivery on ack-deadline expiry.
type Subscription struct {
	mu sync.Mutex

	name        string
	topicName   string
	ackDeadline time.Duration
	ttl         time.Duration
	createdAt   time.Time
	updatedAt   time.Time

	cursor *commitlog.Cursor

	pending    *list.List // of *pendingRecord, FIFO by sent_at
	pendingIDs map[uuid.UUID]*list.Element
	ackedIDs   map[uuid.UUID]struct{}
}

// NewSubscription creates a subscription over topic's log. If historical
// is true the cursor starts at the log's head (pre-existing messages are
// visible); otherwise it starts at the tail.
func NewSubscription(name, topicName string, ackDeadline, ttl time.Duration, topic *Topic, historical bool) *Subscription {
	now := time.Now()
	var cursor *commitlog.Cursor
	if historical {
		cursor = topic.NewHeadCursor()
	} else {
		cursor = topic.NewTailCursor()
	}
	return &Subscription{
		name:        name,
		topicName:   topicName,
		ackDeadline: ackDeadline,
		ttl:         ttl,
		createdAt:   now,
		updatedAt:   now,
		cursor:      cursor,
		pending:     list.New(),
		pendingIDs:  make(map[uuid.UUID]*list.Element),
		ackedIDs:    make(map[uuid.UUID]struct{}),
	}
}

// Name returns the subscription's name.
func (s *Subscription) Name() string { return s.name }

// TopicName returns the name of the topic this subscription is linked to.
func (s *Subscription) TopicName() string { return s.topicName }

// Pull draws the next delivery: a redelivery candidate from the pending
// FIFO if one has timed out, otherwise a fresh message from the cursor.
// Touches updated_at regardless of whether a message is returned.
func (s *Subscription) Pull() (Delivery, bool) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = now

	var (
		id    uuid.UUID
		tries int
		idx   commitlog.Index
		env   commitlog.Envelope
	)

	if redelivery, ok := s.checkPendingLocked(now); ok {
		id, tries, idx, env = redelivery.messageID, redelivery.tries, redelivery.index, redelivery.env
	} else {
		fresh, freshIdx, ok := s.cursor.Next()
		if !ok {
			return Delivery{}, false
		}
		id, tries, idx, env = fresh.ID, 1, freshIdx, fresh
	}

	// A fresh PendingRecord is always appended at the tail, sent_at = now
	// — this holds for both a brand-new delivery and a redelivery: the
	// retry's clock for the next ack deadline starts now, not at the
	// original send time.
	rec := &pendingRecord{sentAt: now, messageID: id, tries: tries, index: idx}
	s.pendingIDs[id] = s.pending.PushBack(rec)

	return Delivery{ID: id, PublishedAt: env.PublishedAt, Tries: tries, Data: env.Data}, true
}

// redelivery describes a pending record whose ack deadline has passed,
// captured at the moment checkPendingLocked verified it was still live.
type redelivery struct {
	messageID uuid.UUID
	tries     int
	index     commitlog.Index
	env       commitlog.Envelope
}

// checkPendingLocked scans the head of the pending FIFO for a redelivery
// candidate. Each iteration either drops a stale/acked record and
// continues, returns a timed-out record for redelivery, or determines the
// oldest record hasn't timed out yet and stops — nothing behind it in the
// FIFO can be older, so the scan terminates.
func (s *Subscription) checkPendingLocked(now time.Time) (redelivery, bool) {
	for {
		front := s.pending.Front()
		if front == nil {
			return redelivery{}, false
		}
		rec := front.Value.(*pendingRecord)

		env, live := rec.index.Get()
		if !live {
			s.pending.Remove(front)
			delete(s.pendingIDs, rec.messageID)
			delete(s.ackedIDs, rec.messageID)
			continue
		}

		if _, acked := s.ackedIDs[rec.messageID]; acked {
			delete(s.ackedIDs, rec.messageID)
			s.pending.Remove(front)
			delete(s.pendingIDs, rec.messageID)
			continue
		}

		if now.Sub(rec.sentAt) < s.ackDeadline {
			return redelivery{}, false
		}

		// Timed out: hand it back for redelivery. The caller appends a
		// fresh record at the tail for the retry; we don't re-append here.
		s.pending.Remove(front)
		delete(s.pendingIDs, rec.messageID)
		return redelivery{messageID: rec.messageID, tries: rec.tries + 1, index: rec.index, env: env}, true
	}
}

// Ack marks id acked. Returns true if id was outstanding. Unknown ids,
// ids already acked, and ids already dropped from pending because their
// envelope expired return false. A redelivered id is outstanding again,
// so acking it after redelivery returns true.
func (s *Subscription) Ack(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()

	if _, ok := s.pendingIDs[id]; ok {
		delete(s.pendingIDs, id)
		s.ackedIDs[id] = struct{}{}
		return true
	}
	return false
}

// AckMany folds Ack over ids, returning the ones accepted.
func (s *Subscription) AckMany(ids []uuid.UUID) []uuid.UUID {
	accepted := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if s.Ack(id) {
			accepted = append(accepted, id)
		}
	}
	return accepted
}

// NumPending returns the number of distinct ids currently in
// pending-but-not-yet-acked state.
func (s *Subscription) NumPending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pendingIDs)
}

// NextIndex reports the cursor's logical next sequence number, usable as
// an observable metric of how far this subscription has progressed.
func (s *Subscription) NextIndex() uint64 { return s.cursor.NextIndex() }

// AckDeadline returns the subscription's current ack deadline.
func (s *Subscription) AckDeadline() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ackDeadline
}

// SetAckDeadline updates the ack deadline and touches the subscription.
func (s *Subscription) SetAckDeadline(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ackDeadline = d
	s.updatedAt = time.Now()
}

// TTL returns the subscription's idle TTL.
func (s *Subscription) TTL() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ttl
}

// SetTTL updates the idle TTL and touches the subscription.
func (s *Subscription) SetTTL(ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttl = ttl
	s.updatedAt = time.Now()
}

// Touch advances updated_at without changing any other field.
func (s *Subscription) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updatedAt = time.Now()
}

// CreatedAt returns the subscription's creation timestamp.
func (s *Subscription) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createdAt
}

// UpdatedAt returns the subscription's last-mutated timestamp.
func (s *Subscription) UpdatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updatedAt
}

// View returns the JSON-facing projection of the subscription.
func (s *Subscription) View() types.SubscriptionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.SubscriptionView{
		Name:        s.name,
		Topic:       s.topicName,
		AckDeadline: s.ackDeadline,
		TTL:         s.ttl,
		Created:     s.createdAt,
		Updated:     s.updatedAt,
	}
}
