package broker

import (
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/couriermq/courier/pkg/log"
	"github.com/couriermq/courier/pkg/types"
)

// topicEntry pairs a topic with the set of subscription names linked to it.
// The linked set lives here, under topicsMu, rather than on Subscription
// itself, since delete_topic needs to enumerate it without touching subsMu.
type topicEntry struct {
	topic *Topic
	subs  map[string]struct{}
}

// topicMetricsRecord is the all-time counter side of a topic's metrics;
// the "current" fields (message count, TTLs, timestamps) are read straight
// off the live Topic at snapshot time instead of being duplicated here.
type topicMetricsRecord struct {
	publishedCount uint64
	expiredCount   uint64
}

// subMetricsRecord is the all-time counter side of a subscription's
// metrics, analogous to topicMetricsRecord.
type subMetricsRecord struct {
	pulledCount  uint64
	redeliveries uint64
	ackAttempts  uint64
	acksAccepted uint64
}

// Registry is the process-wide directory of topics and subscriptions. It
// enforces name uniqueness, topic-to-subscription linkage, lock ordering,
// and lazily-maintained metrics. The three locks are always acquired in the
// order topics -> subscriptions -> metrics; operations that cannot respect
// that order (because they must read one map to know what to touch in
// another) instead fully release one lock before acquiring the next, which
// forecloses deadlock without needing the global order to hold across the
// gap.
type Registry struct {
	topicsMu sync.RWMutex
	topics   map[string]*topicEntry

	subsMu        sync.RWMutex
	subscriptions map[string]*Subscription

	metricsMu            sync.Mutex
	topicMetrics         map[string]*topicMetricsRecord
	subMetrics           map[string]*subMetricsRecord
	topicsCreatedTotal   uint64
	subscriptionsCreated uint64
	processRSSBytes      uint64
	startedAt            time.Time
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		topics:        make(map[string]*topicEntry),
		subscriptions: make(map[string]*Subscription),
		topicMetrics:  make(map[string]*topicMetricsRecord),
		subMetrics:    make(map[string]*subMetricsRecord),
		startedAt:     time.Now(),
	}
}

// CreateTopic inserts a topic if absent. created distinguishes a first-time
// insert (true) from an idempotent repeat (false, in which case view is the
// pre-existing, unmodified topic).
func (r *Registry) CreateTopic(name string, messageTTL, ttl time.Duration) (created bool, view types.TopicView) {
	r.topicsMu.Lock()
	if entry, exists := r.topics[name]; exists {
		v := entry.topic.View()
		r.topicsMu.Unlock()
		return false, v
	}
	t := NewTopic(name, messageTTL, ttl)
	r.topics[name] = &topicEntry{topic: t, subs: make(map[string]struct{})}
	v := t.View()
	r.topicsMu.Unlock()

	r.metricsMu.Lock()
	r.topicMetrics[name] = &topicMetricsRecord{}
	r.topicsCreatedTotal++
	r.metricsMu.Unlock()

	log.WithTopic(name).Info().Msg("topic created")
	return true, v
}

// UpdateTopic applies the provided fields (nil means "leave unchanged"),
// touches the topic, and returns its view. Reports false if name is absent.
func (r *Registry) UpdateTopic(name string, messageTTL, ttl *time.Duration) (types.TopicView, bool) {
	r.topicsMu.RLock()
	entry, ok := r.topics[name]
	r.topicsMu.RUnlock()
	if !ok {
		return types.TopicView{}, false
	}

	if messageTTL == nil && ttl == nil {
		entry.topic.Touch()
		return entry.topic.View(), true
	}
	if messageTTL != nil {
		entry.topic.SetMessageTTL(*messageTTL)
	}
	if ttl != nil {
		entry.topic.SetTTL(*ttl)
	}
	return entry.topic.View(), true
}

// DeleteTopic removes name from the topic map and synchronously deletes
// every subscription linked to it. The topics lock is released before the
// cascade so delete_subscription's own topics-lock acquisition cannot
// deadlock against this call.
func (r *Registry) DeleteTopic(name string) bool {
	r.topicsMu.Lock()
	entry, ok := r.topics[name]
	if !ok {
		r.topicsMu.Unlock()
		return false
	}
	delete(r.topics, name)
	linked := make([]string, 0, len(entry.subs))
	for n := range entry.subs {
		linked = append(linked, n)
	}
	r.topicsMu.Unlock()

	entry.topic.Close()

	r.metricsMu.Lock()
	delete(r.topicMetrics, name)
	r.metricsMu.Unlock()

	for _, n := range linked {
		r.DeleteSubscription(n)
	}

	log.WithTopic(name).Info().Int("cascaded_subscriptions", len(linked)).Msg("topic deleted")
	return true
}

// GetTopic returns name's view, or false if absent.
func (r *Registry) GetTopic(name string) (types.TopicView, bool) {
	r.topicsMu.RLock()
	defer r.topicsMu.RUnlock()
	entry, ok := r.topics[name]
	if !ok {
		return types.TopicView{}, false
	}
	return entry.topic.View(), true
}

// ListTopics returns every topic's view, sorted by name.
func (r *Registry) ListTopics() []types.TopicView {
	r.topicsMu.RLock()
	defer r.topicsMu.RUnlock()

	names := make([]string, 0, len(r.topics))
	for name := range r.topics {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]types.TopicView, 0, len(names))
	for _, name := range names {
		views = append(views, r.topics[name].topic.View())
	}
	return views
}

// Publish appends each datum to topic's log in order and returns the new
// ids in that same order. Holds the topics write lock for the duration, so
// publishes to any topic are globally serialized and every subscriber sees
// them in this order.
func (r *Registry) Publish(topic string, data []string) ([]uuid.UUID, bool) {
	r.topicsMu.Lock()
	defer r.topicsMu.Unlock()

	entry, ok := r.topics[topic]
	if !ok {
		return nil, false
	}

	ids := make([]uuid.UUID, 0, len(data))
	for _, d := range data {
		ids = append(ids, entry.topic.Publish(d))
	}

	if len(data) > 0 {
		r.metricsMu.Lock()
		if m, ok := r.topicMetrics[topic]; ok {
			m.publishedCount += uint64(len(data))
		}
		r.metricsMu.Unlock()
	}
	return ids, true
}

// ListTopicSubscriptions returns the names linked to topic, or false if
// topic is absent.
func (r *Registry) ListTopicSubscriptions(topic string) ([]string, bool) {
	r.topicsMu.RLock()
	defer r.topicsMu.RUnlock()

	entry, ok := r.topics[topic]
	if !ok {
		return nil, false
	}
	names := make([]string, 0, len(entry.subs))
	for n := range entry.subs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names, true
}

// CreateSubscription inserts a subscription over topicName if absent.
// Reports topicFound = false if the topic does not exist; created
// distinguishes first-time insert from idempotent repeat, mirroring
// CreateTopic.
func (r *Registry) CreateSubscription(name, topicName string, ackDeadline, ttl time.Duration, historical bool) (created bool, view types.SubscriptionView, topicFound bool) {
	r.topicsMu.Lock()
	entry, ok := r.topics[topicName]
	if !ok {
		r.topicsMu.Unlock()
		return false, types.SubscriptionView{}, false
	}

	r.subsMu.Lock()
	if existing, exists := r.subscriptions[name]; exists {
		v := existing.View()
		r.subsMu.Unlock()
		r.topicsMu.Unlock()
		return false, v, true
	}

	sub := NewSubscription(name, topicName, ackDeadline, ttl, entry.topic, historical)
	r.subscriptions[name] = sub
	entry.subs[name] = struct{}{}
	v := sub.View()
	r.subsMu.Unlock()
	r.topicsMu.Unlock()

	r.metricsMu.Lock()
	r.subMetrics[name] = &subMetricsRecord{}
	r.subscriptionsCreated++
	r.metricsMu.Unlock()

	log.WithSubscription(name).Info().Str("topic", topicName).Bool("historical", historical).Msg("subscription created")
	return true, v, true
}

// UpdateSubscription applies the provided fields (nil means "leave
// unchanged"), touches the subscription, and returns its view. Reports
// false if name is absent.
func (r *Registry) UpdateSubscription(name string, ackDeadline, ttl *time.Duration) (types.SubscriptionView, bool) {
	r.subsMu.RLock()
	sub, ok := r.subscriptions[name]
	r.subsMu.RUnlock()
	if !ok {
		return types.SubscriptionView{}, false
	}

	if ackDeadline == nil && ttl == nil {
		sub.Touch()
		return sub.View(), true
	}
	if ackDeadline != nil {
		sub.SetAckDeadline(*ackDeadline)
	}
	if ttl != nil {
		sub.SetTTL(*ttl)
	}
	return sub.View(), true
}

// DeleteSubscription removes name from the subscription map and unlinks it
// from its topic's linked set (if that topic still exists). The topic name
// is read under a brief, independently-released subsMu.RLock before the
// topics lock is taken, so this never holds subsMu while waiting on
// topicsMu — the two critical sections never overlap.
func (r *Registry) DeleteSubscription(name string) bool {
	r.subsMu.RLock()
	sub, ok := r.subscriptions[name]
	r.subsMu.RUnlock()
	if !ok {
		return false
	}
	topicName := sub.TopicName()

	r.topicsMu.Lock()
	r.subsMu.Lock()
	_, stillExists := r.subscriptions[name]
	if stillExists {
		delete(r.subscriptions, name)
	}
	if entry, ok := r.topics[topicName]; ok {
		delete(entry.subs, name)
	}
	r.subsMu.Unlock()
	r.topicsMu.Unlock()

	if !stillExists {
		return false
	}

	r.metricsMu.Lock()
	delete(r.subMetrics, name)
	r.metricsMu.Unlock()

	log.WithSubscription(name).Info().Msg("subscription deleted")
	return true
}

// GetSubscription returns name's view, or false if absent.
func (r *Registry) GetSubscription(name string) (types.SubscriptionView, bool) {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()
	sub, ok := r.subscriptions[name]
	if !ok {
		return types.SubscriptionView{}, false
	}
	return sub.View(), true
}

// ListSubscriptions returns every subscription's view, sorted by name.
func (r *Registry) ListSubscriptions() []types.SubscriptionView {
	r.subsMu.RLock()
	defer r.subsMu.RUnlock()

	names := make([]string, 0, len(r.subscriptions))
	for name := range r.subscriptions {
		names = append(names, name)
	}
	sort.Strings(names)

	views := make([]types.SubscriptionView, 0, len(names))
	for _, name := range names {
		views = append(views, r.subscriptions[name].View())
	}
	return views
}

// Pull draws up to maxMessages deliveries from name, stopping early once
// the subscription yields nothing further. maxMessages = 0 returns an
// empty slice without consulting the cursor. Holds the subscriptions write
// lock for the duration, serializing pulls against a single subscription.
func (r *Registry) Pull(name string, maxMessages int) ([]types.PulledMessage, bool) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	sub, ok := r.subscriptions[name]
	if !ok {
		return nil, false
	}
	if maxMessages <= 0 {
		return []types.PulledMessage{}, true
	}

	messages := make([]types.PulledMessage, 0, maxMessages)
	redeliveries := 0
	for len(messages) < maxMessages {
		d, ok := sub.Pull()
		if !ok {
			break
		}
		if d.Tries > 1 {
			redeliveries++
		}
		messages = append(messages, types.PulledMessage{
			ID:          d.ID.String(),
			PublishedAt: d.PublishedAt,
			Tries:       d.Tries,
			Data:        d.Data,
		})
	}

	if len(messages) > 0 {
		r.metricsMu.Lock()
		if m, ok := r.subMetrics[name]; ok {
			m.pulledCount += uint64(len(messages))
			m.redeliveries += uint64(redeliveries)
		}
		r.metricsMu.Unlock()
	}
	return messages, true
}

// Ack acks each id against name, returning the ones accepted.
func (r *Registry) Ack(name string, ids []uuid.UUID) ([]uuid.UUID, bool) {
	r.subsMu.Lock()
	defer r.subsMu.Unlock()

	sub, ok := r.subscriptions[name]
	if !ok {
		return nil, false
	}

	accepted := sub.AckMany(ids)

	if len(ids) > 0 {
		r.metricsMu.Lock()
		if m, ok := r.subMetrics[name]; ok {
			m.ackAttempts += uint64(len(ids))
			m.acksAccepted += uint64(len(accepted))
		}
		r.metricsMu.Unlock()
	}
	return accepted, true
}

// Cleanup runs one reaper pass: drop idle-expired subscriptions, drop
// idle-expired topics (without cascading to their subscriptions, which are
// left as orphans for a later pass to collect once they too go idle), run
// Topic.Cleanup on every surviving topic, and sample process RSS. Returns
// the counts of topics, subscriptions, and messages removed.
func (r *Registry) Cleanup(now time.Time) (topicsRemoved, subsRemoved, messagesRemoved int) {
	type expiredSub struct{ name, topic string }

	r.subsMu.Lock()
	var expiredSubs []expiredSub
	for name, sub := range r.subscriptions {
		if ttl := sub.TTL(); ttl != 0 && now.Sub(sub.UpdatedAt()) > ttl {
			expiredSubs = append(expiredSubs, expiredSub{name: name, topic: sub.TopicName()})
		}
	}
	for _, e := range expiredSubs {
		delete(r.subscriptions, e.name)
	}
	r.subsMu.Unlock()

	if len(expiredSubs) > 0 {
		r.topicsMu.Lock()
		for _, e := range expiredSubs {
			if entry, ok := r.topics[e.topic]; ok {
				delete(entry.subs, e.name)
			}
		}
		r.topicsMu.Unlock()

		r.metricsMu.Lock()
		for _, e := range expiredSubs {
			delete(r.subMetrics, e.name)
		}
		r.metricsMu.Unlock()
	}
	subsRemoved = len(expiredSubs)

	r.topicsMu.Lock()
	var expiredTopics []string
	for name, entry := range r.topics {
		if ttl := entry.topic.TTL(); ttl != 0 && now.Sub(entry.topic.UpdatedAt()) > ttl {
			expiredTopics = append(expiredTopics, name)
		}
	}
	survivors := make(map[string]*Topic, len(r.topics)-len(expiredTopics))
	for _, name := range expiredTopics {
		r.topics[name].topic.Close()
		delete(r.topics, name)
	}
	for name, entry := range r.topics {
		survivors[name] = entry.topic
	}
	r.topicsMu.Unlock()
	topicsRemoved = len(expiredTopics)

	if len(expiredTopics) > 0 {
		r.metricsMu.Lock()
		for _, name := range expiredTopics {
			delete(r.topicMetrics, name)
		}
		r.metricsMu.Unlock()
	}

	for name, t := range survivors {
		removed := t.Cleanup(now)
		messagesRemoved += removed
		if removed > 0 {
			r.metricsMu.Lock()
			if m, ok := r.topicMetrics[name]; ok {
				m.expiredCount += uint64(removed)
			}
			r.metricsMu.Unlock()
		}
	}

	// processRSSBytes holds runtime.MemStats.Sys (memory the Go runtime has
	// obtained from the OS), not the resident set size reported by the OS.
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	r.metricsMu.Lock()
	r.processRSSBytes = ms.Sys
	r.metricsMu.Unlock()

	if topicsRemoved > 0 || subsRemoved > 0 || messagesRemoved > 0 {
		log.Logger.Info().
			Int("topics_removed", topicsRemoved).
			Int("subscriptions_removed", subsRemoved).
			Int("messages_removed", messagesRemoved).
			Msg("reaper pass complete")
	}
	return topicsRemoved, subsRemoved, messagesRemoved
}

// Metrics returns a point-in-time snapshot of every counter the registry
// tracks, topics and subscriptions sorted by name for stable output.
func (r *Registry) Metrics() types.MetricsSnapshot {
	r.topicsMu.RLock()
	topicNames := make([]string, 0, len(r.topics))
	topicPtrs := make(map[string]*Topic, len(r.topics))
	for name, entry := range r.topics {
		topicNames = append(topicNames, name)
		topicPtrs[name] = entry.topic
	}
	r.topicsMu.RUnlock()
	sort.Strings(topicNames)

	r.subsMu.RLock()
	subNames := make([]string, 0, len(r.subscriptions))
	subPtrs := make(map[string]*Subscription, len(r.subscriptions))
	for name, sub := range r.subscriptions {
		subNames = append(subNames, name)
		subPtrs[name] = sub
	}
	r.subsMu.RUnlock()
	sort.Strings(subNames)

	r.metricsMu.Lock()
	defer r.metricsMu.Unlock()

	topics := make([]types.TopicMetrics, 0, len(topicNames))
	for _, name := range topicNames {
		m, ok := r.topicMetrics[name]
		if !ok {
			continue
		}
		t := topicPtrs[name]
		topics = append(topics, types.TopicMetrics{
			Name:           name,
			MessageCount:   t.Len(),
			PublishedCount: m.publishedCount,
			ExpiredCount:   m.expiredCount,
			MessageTTL:     t.MessageTTL(),
			TTL:            t.TTL(),
			Created:        t.CreatedAt(),
			Updated:        t.UpdatedAt(),
		})
	}

	subs := make([]types.SubscriptionMetrics, 0, len(subNames))
	for _, name := range subNames {
		m, ok := r.subMetrics[name]
		if !ok {
			continue
		}
		s := subPtrs[name]
		subs = append(subs, types.SubscriptionMetrics{
			Name:         name,
			Topic:        s.TopicName(),
			PendingCount: s.NumPending(),
			PulledCount:  m.pulledCount,
			Redeliveries: m.redeliveries,
			AckAttempts:  m.ackAttempts,
			AcksAccepted: m.acksAccepted,
			NextIndex:    s.NextIndex(),
			AckDeadline:  s.AckDeadline(),
			TTL:          s.TTL(),
			Created:      s.CreatedAt(),
			Updated:      s.UpdatedAt(),
		})
	}

	return types.MetricsSnapshot{
		TopicsCreated:        r.topicsCreatedTotal,
		SubscriptionsCreated: r.subscriptionsCreated,
		ProcessRSSBytes:      r.processRSSBytes,
		StartedAt:            r.startedAt,
		Topics:               topics,
		Subscriptions:        subs,
	}
}
