// Package types holds the view types the broker core returns to the HTTP
// surface. Keeping them in their own package lets internal/httpapi depend
// on them without reaching into internal/broker's unexported state. They
// carry time.Duration fields; internal/httpapi converts them to its own
// wire structs (durations in seconds) before sending, and pkg/client
// defines its own types for those wire shapes.
package types

import "time"

// TopicView is the JSON-facing projection of a topic.
type TopicView struct {
	Name       string        `json:"name"`
	MessageTTL time.Duration `json:"message_ttl"`
	TTL        time.Duration `json:"ttl"`
	Created    time.Time     `json:"created"`
	Updated    time.Time     `json:"updated"`
}

// SubscriptionView is the JSON-facing projection of a subscription.
type SubscriptionView struct {
	Name        string        `json:"name"`
	Topic       string        `json:"topic"`
	AckDeadline time.Duration `json:"ack_deadline"`
	TTL         time.Duration `json:"ttl"`
	Created     time.Time     `json:"created"`
	Updated     time.Time     `json:"updated"`
}

// PulledMessage is a single delivery handed back by a pull call.
type PulledMessage struct {
	ID          string    `json:"id"`
	PublishedAt time.Time `json:"time"`
	Tries       int       `json:"tries"`
	Data        string    `json:"data"`
}

// TopicMetrics is the per-topic slice of a metrics snapshot.
type TopicMetrics struct {
	Name           string        `json:"name"`
	MessageCount   int           `json:"message_count"`
	PublishedCount uint64        `json:"published_count"`
	ExpiredCount   uint64        `json:"expired_count"`
	MessageTTL     time.Duration `json:"message_ttl"`
	TTL            time.Duration `json:"ttl"`
	Created        time.Time     `json:"created"`
	Updated        time.Time     `json:"updated"`
}

// SubscriptionMetrics is the per-subscription slice of a metrics snapshot.
type SubscriptionMetrics struct {
	Name          string        `json:"name"`
	Topic         string        `json:"topic"`
	PendingCount  int           `json:"pending_count"`
	PulledCount   uint64        `json:"pulled_count"`
	Redeliveries  uint64        `json:"redeliveries"`
	AckAttempts   uint64        `json:"ack_attempts"`
	AcksAccepted  uint64        `json:"acks_accepted"`
	NextIndex     uint64        `json:"next_index"`
	AckDeadline   time.Duration `json:"ack_deadline"`
	TTL           time.Duration `json:"ttl"`
	Created       time.Time     `json:"created"`
	Updated       time.Time     `json:"updated"`
}

// MetricsSnapshot is the full metrics snapshot behind GET /api/v1/metrics,
// which serves it converted to internal/httpapi's wire struct (durations in
// seconds). The Prometheus exposition format of the same counters is
// served separately, unversioned, at GET /metrics via broker.Handler.
type MetricsSnapshot struct {
	TopicsCreated        uint64                `json:"topics_created_total"`
	SubscriptionsCreated uint64                `json:"subscriptions_created_total"`
	ProcessRSSBytes      uint64                `json:"process_rss_bytes"`
	StartedAt            time.Time             `json:"started_at"`
	Topics               []TopicMetrics        `json:"topics"`
	Subscriptions        []SubscriptionMetrics `json:"subscriptions"`
}
