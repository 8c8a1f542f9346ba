package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const sessionNameKey contextKey = "sessionName"

// sessionName returns the display name embedded in the caller's session
// token, empty for legacy tokens.
func sessionName(r *http.Request) string {
	name, _ := r.Context().Value(sessionNameKey).(string)
	return name
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeError(w, http.StatusUnauthorized, "authentication not configured")
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		name, valid := s.auth.VerifyToken(token, time.Now())
		if !valid {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), sessionNameKey, name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireFeedToken guards the list endpoints. An unset token leaves the
// feeds open; Sonarr and Radarr often cannot send custom headers.
func (s *Server) requireFeedToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.feedToken != "" {
			got := r.URL.Query().Get("token")
			if subtle.ConstantTimeCompare([]byte(got), []byte(s.feedToken)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid feed token")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireWebhookToken guards the webhook and sync endpoints. Unlike feeds,
// an unset token closes them: these endpoints mutate state.
func (s *Server) requireWebhookToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.webhookToken == "" {
			writeError(w, http.StatusUnauthorized, "webhook token not configured")
			return
		}
		got := r.URL.Query().Get("token")
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.webhookToken)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid webhook token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
