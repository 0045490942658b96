package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps Courier's HTTP/JSON API for easy Go usage.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a Client talking to baseURL (e.g. "http://127.0.0.1:8080").
func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

// APIError is returned when the server answers with a non-2xx status.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("courier: server returned %d: %s", e.Status, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, reqBody, respBody any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var body io.Reader
	if reqBody != nil {
		encoded, err := json.Marshal(reqBody)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	if respBody != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, respBody); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// TopicView mirrors the server's topic representation, with TTLs in
// seconds as they appear on the wire.
type TopicView struct {
	Name       string    `json:"name"`
	MessageTTL int64     `json:"message_ttl"`
	TTL        int64     `json:"ttl"`
	Created    time.Time `json:"created"`
	Updated    time.Time `json:"updated"`
}

// SubscriptionView mirrors the server's subscription representation.
type SubscriptionView struct {
	Name        string    `json:"name"`
	Topic       string    `json:"topic"`
	AckDeadline int64     `json:"ack_deadline"`
	TTL         int64     `json:"ttl"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}

// Message is one delivery handed back by Pull.
type Message struct {
	ID    string    `json:"id"`
	Time  time.Time `json:"time"`
	Tries int       `json:"tries"`
	Data  string    `json:"data"`
}

// CreateTopic upserts a topic. created reports whether this call actually
// created it (false means the name already existed, and view is that
// existing topic unchanged).
func (c *Client) CreateTopic(ctx context.Context, name string, messageTTL, ttl time.Duration) (created bool, view TopicView, err error) {
	req := map[string]int64{"message_ttl": int64(messageTTL / time.Second), "ttl": int64(ttl / time.Second)}
	status, err := c.do(ctx, http.MethodPut, "/api/v1/topics/"+name, req, &view)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusConflict {
			return false, view, json.Unmarshal([]byte(apiErr.Body), &view)
		}
		return false, TopicView{}, err
	}
	return status == http.StatusCreated, view, nil
}

// UpdateTopic patches the fields that are non-nil.
func (c *Client) UpdateTopic(ctx context.Context, name string, messageTTL, ttl *time.Duration) (TopicView, error) {
	req := make(map[string]*int64, 2)
	if messageTTL != nil {
		req["message_ttl"] = durationSeconds(*messageTTL)
	}
	if ttl != nil {
		req["ttl"] = durationSeconds(*ttl)
	}
	var view TopicView
	_, err := c.do(ctx, http.MethodPatch, "/api/v1/topics/"+name, req, &view)
	return view, err
}

// DeleteTopic deletes name, cascading to its subscriptions.
func (c *Client) DeleteTopic(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/topics/"+name, nil, nil)
	return err
}

// GetTopic fetches name's current view.
func (c *Client) GetTopic(ctx context.Context, name string) (TopicView, error) {
	var view TopicView
	_, err := c.do(ctx, http.MethodGet, "/api/v1/topics/"+name, nil, &view)
	return view, err
}

// ListTopics lists every topic.
func (c *Client) ListTopics(ctx context.Context) ([]TopicView, error) {
	var resp struct {
		Topics []TopicView `json:"topics"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/v1/topics/", nil, &resp)
	return resp.Topics, err
}

// ListTopicSubscriptions lists the subscription names linked to topic.
func (c *Client) ListTopicSubscriptions(ctx context.Context, topic string) ([]string, error) {
	var resp struct {
		SubscriptionNames []string `json:"subscription_names"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/v1/topics/"+topic+"/subscriptions", nil, &resp)
	return resp.SubscriptionNames, err
}

// Publish appends each datum to topic's log and returns the new ids in
// input order.
func (c *Client) Publish(ctx context.Context, topic string, data ...string) ([]string, error) {
	type rawMessage struct {
		Data string `json:"data"`
	}
	req := struct {
		RawMessages []rawMessage `json:"raw_messages"`
	}{}
	for _, d := range data {
		req.RawMessages = append(req.RawMessages, rawMessage{Data: d})
	}
	var resp struct {
		MessageIDs []string `json:"message_ids"`
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/topics/"+topic+"/publish", req, &resp)
	return resp.MessageIDs, err
}

// CreateSubscription upserts a subscription on topic.
func (c *Client) CreateSubscription(ctx context.Context, name, topic string, ackDeadline, ttl time.Duration, historical bool) (created bool, view SubscriptionView, err error) {
	req := map[string]any{
		"topic":        topic,
		"ack_deadline": int64(ackDeadline / time.Second),
		"ttl":          int64(ttl / time.Second),
		"historical":   historical,
	}
	status, err := c.do(ctx, http.MethodPut, "/api/v1/subscriptions/"+name, req, &view)
	if err != nil {
		if apiErr, ok := err.(*APIError); ok && apiErr.Status == http.StatusConflict {
			return false, view, json.Unmarshal([]byte(apiErr.Body), &view)
		}
		return false, SubscriptionView{}, err
	}
	return status == http.StatusCreated, view, nil
}

// UpdateSubscription patches the fields that are non-nil.
func (c *Client) UpdateSubscription(ctx context.Context, name string, ackDeadline, ttl *time.Duration) (SubscriptionView, error) {
	req := make(map[string]*int64, 2)
	if ackDeadline != nil {
		req["ack_deadline"] = durationSeconds(*ackDeadline)
	}
	if ttl != nil {
		req["ttl"] = durationSeconds(*ttl)
	}
	var view SubscriptionView
	_, err := c.do(ctx, http.MethodPatch, "/api/v1/subscriptions/"+name, req, &view)
	return view, err
}

// DeleteSubscription deletes name.
func (c *Client) DeleteSubscription(ctx context.Context, name string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/subscriptions/"+name, nil, nil)
	return err
}

// GetSubscription fetches name's current view.
func (c *Client) GetSubscription(ctx context.Context, name string) (SubscriptionView, error) {
	var view SubscriptionView
	_, err := c.do(ctx, http.MethodGet, "/api/v1/subscriptions/"+name, nil, &view)
	return view, err
}

// ListSubscriptions lists every subscription.
func (c *Client) ListSubscriptions(ctx context.Context) ([]SubscriptionView, error) {
	var resp struct {
		Subscriptions []SubscriptionView `json:"subscriptions"`
	}
	_, err := c.do(ctx, http.MethodGet, "/api/v1/subscriptions/", nil, &resp)
	return resp.Subscriptions, err
}

// Pull draws up to maxMessages deliveries from name.
func (c *Client) Pull(ctx context.Context, name string, maxMessages int) ([]Message, error) {
	req := map[string]int{"max_messages": maxMessages}
	var resp struct {
		Messages []Message `json:"messages"`
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/subscriptions/"+name+"/pull", req, &resp)
	return resp.Messages, err
}

// Ack acks each id against name, returning the ones accepted.
func (c *Client) Ack(ctx context.Context, name string, ids ...string) ([]string, error) {
	req := map[string][]string{"message_ids": ids}
	var resp struct {
		MessageIDs []string `json:"message_ids"`
	}
	_, err := c.do(ctx, http.MethodPost, "/api/v1/subscriptions/"+name+"/ack", req, &resp)
	return resp.MessageIDs, err
}

// Heartbeat hits the liveness endpoint.
func (c *Client) Heartbeat(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/v1/heartbeat", nil, nil)
	return err
}

func durationSeconds(d time.Duration) *int64 {
	s := int64(d / time.Second)
	return &s
}
