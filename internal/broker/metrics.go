package broker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector adapts a Registry's metrics snapshot into
// Prometheus's pull model: Collect takes one snapshot per scrape and
// translates it into gauges/counters, rather than keeping a parallel set
// of live prometheus metric objects in sync with every registry mutation.
type PrometheusCollector struct {
	registry *Registry

	topicsCreatedTotal   *prometheus.Desc
	subsCreatedTotal     *prometheus.Desc
	processRSSBytes      *prometheus.Desc
	topicMessageCount    *prometheus.Desc
	topicPublishedTotal  *prometheus.Desc
	topicExpiredTotal    *prometheus.Desc
	subPendingCount      *prometheus.Desc
	subPulledTotal       *prometheus.Desc
	subRedeliveriesTotal *prometheus.Desc
	subAckAttemptsTotal  *prometheus.Desc
	subAcksAcceptedTotal *prometheus.Desc
}

// NewPrometheusCollector wraps registry as a prometheus.Collector.
func NewPrometheusCollector(registry *Registry) *PrometheusCollector {
	return &PrometheusCollector{
		registry: registry,
		topicsCreatedTotal: prometheus.NewDesc(
			"courier_topics_created_total", "Total topics ever created.", nil, nil),
		subsCreatedTotal: prometheus.NewDesc(
			"courier_subscriptions_created_total", "Total subscriptions ever created.", nil, nil),
		processRSSBytes: prometheus.NewDesc(
			"courier_process_rss_bytes", "Memory obtained from the OS by the Go runtime (runtime.MemStats.Sys), last sampled by the reaper; not the OS-reported resident set size.", nil, nil),
		topicMessageCount: prometheus.NewDesc(
			"courier_topic_message_count", "Current live message count in a topic's log.", []string{"topic"}, nil),
		topicPublishedTotal: prometheus.NewDesc(
			"courier_topic_published_total", "Total messages ever published to a topic.", []string{"topic"}, nil),
		topicExpiredTotal: prometheus.NewDesc(
			"courier_topic_expired_total", "Total messages ever expired from a topic.", []string{"topic"}, nil),
		subPendingCount: prometheus.NewDesc(
			"courier_subscription_pending_count", "Current pending-unacked message count for a subscription.", []string{"subscription", "topic"}, nil),
		subPulledTotal: prometheus.NewDesc(
			"courier_subscription_pulled_total", "Total messages ever pulled by a subscription.", []string{"subscription", "topic"}, nil),
		subRedeliveriesTotal: prometheus.NewDesc(
			"courier_subscription_redeliveries_total", "Total redeliveries (tries > 1) for a subscription.", []string{"subscription", "topic"}, nil),
		subAckAttemptsTotal: prometheus.NewDesc(
			"courier_subscription_ack_attempts_total", "Total ack attempts for a subscription.", []string{"subscription", "topic"}, nil),
		subAcksAcceptedTotal: prometheus.NewDesc(
			"courier_subscription_acks_accepted_total", "Total acks accepted for a subscription.", []string{"subscription", "topic"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.topicsCreatedTotal
	ch <- c.subsCreatedTotal
	ch <- c.processRSSBytes
	ch <- c.topicMessageCount
	ch <- c.topicPublishedTotal
	ch <- c.topicExpiredTotal
	ch <- c.subPendingCount
	ch <- c.subPulledTotal
	ch <- c.subRedeliveriesTotal
	ch <- c.subAckAttemptsTotal
	ch <- c.subAcksAcceptedTotal
}

// Collect implements prometheus.Collector.
func (c *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {
	snapshot := c.registry.Metrics()

	ch <- prometheus.MustNewConstMetric(c.topicsCreatedTotal, prometheus.CounterValue, float64(snapshot.TopicsCreated))
	ch <- prometheus.MustNewConstMetric(c.subsCreatedTotal, prometheus.CounterValue, float64(snapshot.SubscriptionsCreated))
	ch <- prometheus.MustNewConstMetric(c.processRSSBytes, prometheus.GaugeValue, float64(snapshot.ProcessRSSBytes))

	for _, t := range snapshot.Topics {
		ch <- prometheus.MustNewConstMetric(c.topicMessageCount, prometheus.GaugeValue, float64(t.MessageCount), t.Name)
		ch <- prometheus.MustNewConstMetric(c.topicPublishedTotal, prometheus.CounterValue, float64(t.PublishedCount), t.Name)
		ch <- prometheus.MustNewConstMetric(c.topicExpiredTotal, prometheus.CounterValue, float64(t.ExpiredCount), t.Name)
	}

	for _, s := range snapshot.Subscriptions {
		ch <- prometheus.MustNewConstMetric(c.subPendingCount, prometheus.GaugeValue, float64(s.PendingCount), s.Name, s.Topic)
		ch <- prometheus.MustNewConstMetric(c.subPulledTotal, prometheus.CounterValue, float64(s.PulledCount), s.Name, s.Topic)
		ch <- prometheus.MustNewConstMetric(c.subRedeliveriesTotal, prometheus.CounterValue, float64(s.Redeliveries), s.Name, s.Topic)
		ch <- prometheus.MustNewConstMetric(c.subAckAttemptsTotal, prometheus.CounterValue, float64(s.AckAttempts), s.Name, s.Topic)
		ch <- prometheus.MustNewConstMetric(c.subAcksAcceptedTotal, prometheus.CounterValue, float64(s.AcksAccepted), s.Name, s.Topic)
	}
}

// Handler returns an http.Handler exposing registry's metrics in
// Prometheus exposition format via a dedicated registry, mirroring the
// teacher's metrics.Handler().
func Handler(registry *Registry) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewPrometheusCollector(registry))
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
