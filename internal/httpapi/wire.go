package httpapi

import (
	"time"

	"github.com/couriermq/courier/pkg/types"
)

// All durations on the wire are non-negative integer seconds; 0 means
// "disabled". wireTopic/wireSubscription are the JSON shapes actually sent
// over HTTP — distinct from pkg/types' internal View structs, which carry
// time.Duration fields that marshal as nanoseconds, not wire seconds.

type wireTopic struct {
	Name       string    `json:"name"`
	MessageTTL int64     `json:"message_ttl"`
	TTL        int64     `json:"ttl"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

func topicToWire(v types.TopicView) wireTopic {
	return wireTopic{
		Name:       v.Name,
		MessageTTL: int64(v.MessageTTL / time.Second),
		TTL:        int64(v.TTL / time.Second),
		Created:    v.Created,
		Updated:    v.Updated,
	}
}

type wireSubscription struct {
	Name        string    `json:"name"`
	Topic       string    `json:"topic"`
	AckDeadline int64     `json:"ack_deadline"`
	TTL         int64     `json:"ttl"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

func subscriptionToWire(v types.SubscriptionView) wireSubscription {
	return wireSubscription{
		Name:        v.Name,
		Topic:       v.Topic,
		AckDeadline: int64(v.AckDeadline / time.Second),
		TTL:         int64(v.TTL / time.Second),
		Created:     v.Created,
		Updated:     v.Updated,
	}
}

type wireMessage struct {
	ID    string    `json:"id"`
	Time  time.Time `json:"time"`
	Tries int       `json:"tries"`
	Data  string    `json:"data"`
}

func messageToWire(m types.PulledMessage) wireMessage {
	return wireMessage{ID: m.ID, Time: m.PublishedAt, Tries: m.Tries, Data: m.Data}
}

// topicUpsertRequest is the body for PUT and PATCH on /topics/{name}. Nil
// fields mean "leave unchanged" for PATCH, or "use the server default" for
// PUT's initial create.
type topicUpsertRequest struct {
	MessageTTL *int64 `json:"message_ttl"`
	TTL        *int64 `json:"ttl"`
}

// subscriptionUpsertRequest is the body for PUT and PATCH on
// /subscriptions/{name}.
type subscriptionUpsertRequest struct {
	Topic       string `json:"topic"`
	AckDeadline *int64 `json:"ack_deadline"`
	TTL         *int64 `json:"ttl"`
	Historical  *bool  `json:"historical"`
}

type rawMessage struct {
	Data string `json:"data"`
}

type publishRequest struct {
	RawMessages []rawMessage `json:"raw_messages"`
}

type publishResponse struct {
	MessageIDs []string `json:"message_ids"`
}

type pullRequest struct {
	MaxMessages *int `json:"max_messages"`
}

type pullResponse struct {
	Messages []wireMessage `json:"messages"`
}

type ackRequest struct {
	MessageIDs []string `json:"message_ids"`
}

type ackResponse struct {
	MessageIDs []string `json:"message_ids"`
}

type topicsListResponse struct {
	Topics []wireTopic `json:"topics"`
}

type subscriptionsListResponse struct {
	Subscriptions []wireSubscription `json:"subscriptions"`
}

type subscriptionNamesResponse struct {
	SubscriptionNames []string `json:"subscription_names"`
}

func secondsToDuration(seconds *int64) *time.Duration {
	if seconds == nil {
		return nil
	}
	d := time.Duration(*seconds) * time.Second
	return &d
}

type wireTopicMetrics struct {
	Name           string    `json:"name"`
	MessageCount   int       `json:"message_count"`
	PublishedCount uint64    `json:"published_count"`
	ExpiredCount   uint64    `json:"expired_count"`
	MessageTTL     int64     `json:"message_ttl"`
	TTL            int64     `json:"ttl"`
	Created        time.Time `json:"created"`
	Updated        time.Time `json:"updated"`
}

type wireSubscriptionMetrics struct {
	Name         string    `json:"name"`
	Topic        string    `json:"topic"`
	PendingCount int       `json:"pending_count"`
	PulledCount  uint64    `json:"pulled_count"`
	Redeliveries uint64    `json:"redeliveries"`
	AckAttempts  uint64    `json:"ack_attempts"`
	AcksAccepted uint64    `json:"acks_accepted"`
	NextIndex    uint64    `json:"next_index"`
	AckDeadline  int64     `json:"ack_deadline"`
	TTL          int64     `json:"ttl"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

type wireMetricsSnapshot struct {
	TopicsCreated        uint64                    `json:"topics_created_total"`
	SubscriptionsCreated uint64                    `json:"subscriptions_created_total"`
	ProcessRSSBytes      uint64                    `json:"process_rss_bytes"`
	StartedAt            time.Time                 `json:"started_at"`
	Topics               []wireTopicMetrics        `json:"topics"`
	Subscriptions        []wireSubscriptionMetrics `json:"subscriptions"`
}

func metricsToWire(s types.MetricsSnapshot) wireMetricsSnapshot {
	topics := make([]wireTopicMetrics, 0, len(s.Topics))
	for _, t := range s.Topics {
		topics = append(topics, wireTopicMetrics{
			Name:           t.Name,
			MessageCount:   t.MessageCount,
			PublishedCount: t.PublishedCount,
			ExpiredCount:   t.ExpiredCount,
			MessageTTL:     int64(t.MessageTTL / time.Second),
			TTL:            int64(t.TTL / time.Second),
			Created:        t.Created,
			Updated:        t.Updated,
		})
	}
	subs := make([]wireSubscriptionMetrics, 0, len(s.Subscriptions))
	for _, sub := range s.Subscriptions {
		subs = append(subs, wireSubscriptionMetrics{
			Name:         sub.Name,
			Topic:        sub.Topic,
			PendingCount: sub.PendingCount,
			PulledCount:  sub.PulledCount,
			Redeliveries: sub.Redeliveries,
			AckAttempts:  sub.AckAttempts,
			AcksAccepted: sub.AcksAccepted,
			NextIndex:    sub.NextIndex,
			AckDeadline:  int64(sub.AckDeadline / time.Second),
			TTL:          int64(sub.TTL / time.Second),
			Created:      sub.Created,
			Updated:      sub.Updated,
		})
	}
	return wireMetricsSnapshot{
		TopicsCreated:        s.TopicsCreated,
		SubscriptionsCreated: s.SubscriptionsCreated,
		ProcessRSSBytes:      s.ProcessRSSBytes,
		StartedAt:            s.StartedAt,
		Topics:               topics,
		Subscriptions:        subs,
	}
}
