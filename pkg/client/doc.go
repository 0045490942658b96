/*
Package client provides a Go client library for Courier's HTTP/JSON API.

The client wraps a base URL and a standard *http.Client with one method
per broker operation, translating non-2xx responses into a typed
*APIError carrying the status code and response body.

# Usage

Creating a client:

	c := client.NewClient("http://127.0.0.1:8080")

Topics:

	_, topic, err := c.CreateTopic(ctx, "orders", time.Hour, 0)
	ids, err := c.Publish(ctx, "orders", "order placed", "order shipped")

Subscriptions:

	_, sub, err := c.CreateSubscription(ctx, "billing", "orders", 30*time.Second, 0, false)
	messages, err := c.Pull(ctx, "billing", 10)
	acked, err := c.Ack(ctx, "billing", messages[0].ID)

# Error Handling

	_, err := c.GetTopic(ctx, "orders")
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		// topic does not exist
	}

# Timeouts

Every method opens its own context.WithTimeout (10s) derived from the
context passed in, so the earlier of the caller's deadline and 10s
applies.

# Thread Safety

A *Client has no mutable state beyond the underlying *http.Client, which
is safe for concurrent use. Share one Client across goroutines.
*/
package client
