package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/couriermq/courier/internal/broker"
)

func (s *Server) routes() {
	s.mux.HandleFunc("GET /api/v1/heartbeat", s.handleHeartbeat)
	s.mux.HandleFunc("GET /api/v1/metrics", s.handleMetrics)
	s.mux.Handle("GET /metrics", broker.Handler(s.registry))

	s.mux.HandleFunc("PUT /api/v1/topics/{name}", s.handleTopicUpsert)
	s.mux.HandleFunc("PUT /api/v1/topics/", s.handleTopicUpsertAutoName)
	s.mux.HandleFunc("PATCH /api/v1/topics/{name}", s.handleTopicPatch)
	s.mux.HandleFunc("DELETE /api/v1/topics/{name}", s.handleTopicDelete)
	s.mux.HandleFunc("GET /api/v1/topics/{name}", s.handleTopicGet)
	s.mux.HandleFunc("GET /api/v1/topics/", s.handleTopicList)
	s.mux.HandleFunc("GET /api/v1/topics/{name}/subscriptions", s.handleTopicSubscriptions)
	s.mux.HandleFunc("POST /api/v1/topics/{name}/publish", s.handlePublish)

	s.mux.HandleFunc("PUT /api/v1/subscriptions/{name}", s.handleSubscriptionUpsert)
	s.mux.HandleFunc("PATCH /api/v1/subscriptions/{name}", s.handleSubscriptionPatch)
	s.mux.HandleFunc("DELETE /api/v1/subscriptions/{name}", s.handleSubscriptionDelete)
	s.mux.HandleFunc("GET /api/v1/subscriptions/{name}", s.handleSubscriptionGet)
	s.mux.HandleFunc("GET /api/v1/subscriptions/", s.handleSubscriptionList)
	s.mux.HandleFunc("POST /api/v1/subscriptions/{name}/pull", s.handlePull)
	s.mux.HandleFunc("POST /api/v1/subscriptions/{name}/ack", s.handleAck)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// The status line is already written; all we can do is log and
		// leave the client with a truncated body.
		logWriteError(err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON decodes the request body into dst. A missing or empty body is
// not an error — every request type in this package is valid with every
// field at its zero value.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}
