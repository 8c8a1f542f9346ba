package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"overlite/internal/auth"
)

func (s *Server) handleAuthParams(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"iterations": auth.Iterations})
}

// handleAuthVerify checks a password challenge and issues a session token.
// The rate limiter runs before anything else so a locked-out IP never costs
// a key derivation.
func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	if s.auth == nil {
		writeError(w, http.StatusUnauthorized, "authentication not configured")
		return
	}

	var c auth.Challenge
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ip := clientIP(r)
	if s.limiter != nil {
		allowed, retry := s.limiter.Allow(ip)
		if !allowed {
			w.Header().Set("Retry-After", strconv.FormatInt(int64(retry.Seconds()), 10))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":               "too many failed attempts",
				"retry_after_seconds": int64(retry.Seconds()),
			})
			return
		}
	}

	if err := s.auth.VerifyChallenge(c, time.Now()); err != nil {
		if errors.Is(err, auth.ErrInvalidName) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Clock drift is not a password guess; only hash mismatches count
		// toward lockout.
		if s.limiter != nil && !errors.Is(err, auth.ErrStaleTimestamp) {
			s.limiter.RecordFailure(ip)
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"valid": false})
		return
	}

	if s.limiter != nil {
		s.limiter.Clear(ip)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"token": s.auth.CreateToken(c.Name, time.Now()),
		"name":  c.Name,
	})
}
