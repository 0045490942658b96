package httpapi

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/couriermq/courier/pkg/log"
)

func logWriteError(err error) {
	log.Logger.Error().Err(err).Msg("failed to write response body")
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("heartbeat"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, metricsToWire(s.registry.Metrics()))
}

// --- topics ---

func (s *Server) handleTopicUpsert(w http.ResponseWriter, r *http.Request) {
	s.upsertTopic(w, r, r.PathValue("name"))
}

func (s *Server) handleTopicUpsertAutoName(w http.ResponseWriter, r *http.Request) {
	s.upsertTopic(w, r, uuid.New().String())
}

func (s *Server) upsertTopic(w http.ResponseWriter, r *http.Request, name string) {
	var req topicUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	messageTTL := s.defaults.DefaultMessageTTL
	if req.MessageTTL != nil {
		messageTTL = *secondsToDuration(req.MessageTTL)
	}
	ttl := s.defaults.DefaultTopicTTL
	if req.TTL != nil {
		ttl = *secondsToDuration(req.TTL)
	}

	created, view := s.registry.CreateTopic(name, messageTTL, ttl)
	if created {
		writeJSON(w, http.StatusCreated, topicToWire(view))
		return
	}
	writeJSON(w, http.StatusConflict, topicToWire(view))
}

func (s *Server) handleTopicPatch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req topicUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	view, ok := s.registry.UpdateTopic(name, secondsToDuration(req.MessageTTL), secondsToDuration(req.TTL))
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	writeJSON(w, http.StatusOK, topicToWire(view))
}

func (s *Server) handleTopicDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.registry.DeleteTopic(name) {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleTopicGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	view, ok := s.registry.GetTopic(name)
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	writeJSON(w, http.StatusOK, topicToWire(view))
}

func (s *Server) handleTopicList(w http.ResponseWriter, r *http.Request) {
	views := s.registry.ListTopics()
	wired := make([]wireTopic, 0, len(views))
	for _, v := range views {
		wired = append(wired, topicToWire(v))
	}
	writeJSON(w, http.StatusOK, topicsListResponse{Topics: wired})
}

func (s *Server) handleTopicSubscriptions(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	names, ok := s.registry.ListTopicSubscriptions(name)
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	writeJSON(w, http.StatusOK, subscriptionNamesResponse{SubscriptionNames: names})
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req publishRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	data := make([]string, 0, len(req.RawMessages))
	for _, m := range req.RawMessages {
		data = append(data, m.Data)
	}

	ids, ok := s.registry.Publish(name, data)
	if !ok {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	stringIDs := make([]string, 0, len(ids))
	for _, id := range ids {
		stringIDs = append(stringIDs, id.String())
	}
	writeJSON(w, http.StatusOK, publishResponse{MessageIDs: stringIDs})
}

// --- subscriptions ---

func (s *Server) handleSubscriptionUpsert(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req subscriptionUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	ackDeadline := s.defaults.DefaultAckDeadline
	if req.AckDeadline != nil {
		ackDeadline = *secondsToDuration(req.AckDeadline)
	}
	ttl := s.defaults.DefaultSubscriptionTTL
	if req.TTL != nil {
		ttl = *secondsToDuration(req.TTL)
	}
	historical := req.Historical != nil && *req.Historical

	created, view, topicFound := s.registry.CreateSubscription(name, req.Topic, ackDeadline, ttl, historical)
	if !topicFound {
		writeError(w, http.StatusNotFound, "topic not found")
		return
	}
	if created {
		writeJSON(w, http.StatusCreated, subscriptionToWire(view))
		return
	}
	writeJSON(w, http.StatusConflict, subscriptionToWire(view))
}

func (s *Server) handleSubscriptionPatch(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req subscriptionUpsertRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	view, ok := s.registry.UpdateSubscription(name, secondsToDuration(req.AckDeadline), secondsToDuration(req.TTL))
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, subscriptionToWire(view))
}

func (s *Server) handleSubscriptionDelete(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !s.registry.DeleteSubscription(name) {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (s *Server) handleSubscriptionGet(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	view, ok := s.registry.GetSubscription(name)
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	writeJSON(w, http.StatusOK, subscriptionToWire(view))
}

func (s *Server) handleSubscriptionList(w http.ResponseWriter, r *http.Request) {
	views := s.registry.ListSubscriptions()
	wired := make([]wireSubscription, 0, len(views))
	for _, v := range views {
		wired = append(wired, subscriptionToWire(v))
	}
	writeJSON(w, http.StatusOK, subscriptionsListResponse{Subscriptions: wired})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req pullRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	maxMessages := s.defaults.DefaultMaxMessages
	if req.MaxMessages != nil {
		maxMessages = *req.MaxMessages
	}

	messages, ok := s.registry.Pull(name, maxMessages)
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	wired := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wired = append(wired, messageToWire(m))
	}
	writeJSON(w, http.StatusOK, pullResponse{Messages: wired})
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	var req ackRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	ids := make([]uuid.UUID, 0, len(req.MessageIDs))
	for _, raw := range req.MessageIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed message id: "+strconv.Quote(raw))
			return
		}
		ids = append(ids, id)
	}

	accepted, ok := s.registry.Ack(name, ids)
	if !ok {
		writeError(w, http.StatusNotFound, "subscription not found")
		return
	}
	acceptedStrings := make([]string, 0, len(accepted))
	for _, id := range accepted {
		acceptedStrings = append(acceptedStrings, id.String())
	}
	writeJSON(w, http.StatusOK, ackResponse{MessageIDs: acceptedStrings})
}
