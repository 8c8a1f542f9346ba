package server

import (
	"encoding/json"
	"net/http"

	"overlite/internal/models"
)

// Push endpoints key subscriptions on the session's embedded name, so
// legacy name-less tokens cannot subscribe.

func (s *Server) handleVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	if s.vapidPublicKey == "" {
		writeError(w, http.StatusNotFound, "push notifications not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": s.vapidPublicKey})
}

func (s *Server) handlePushSubscribe(w http.ResponseWriter, r *http.Request) {
	name := sessionName(r)
	if name == "" {
		writeError(w, http.StatusBadRequest, "session has no name; log in again")
		return
	}
	var sub models.PushSubscription
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "endpoint and keys are required")
		return
	}
	if err := s.store.SavePushSubscription(name, &sub); err != nil {
		writeError(w, http.StatusInternalServerError, "storing subscription failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	name := sessionName(r)
	if name == "" {
		writeError(w, http.StatusBadRequest, "session has no name")
		return
	}
	if err := s.store.DeletePushSubscription(name); err != nil {
		writeError(w, http.StatusInternalServerError, "removing subscription failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handlePushStatus(w http.ResponseWriter, r *http.Request) {
	name := sessionName(r)
	if name == "" {
		writeJSON(w, http.StatusOK, map[string]bool{"subscribed": false})
		return
	}
	sub, err := s.store.GetPushSubscription(name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading subscription failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"subscribed": sub != nil})
}
