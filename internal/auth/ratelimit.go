package auth

import (
	"log"
	"time"

	"overlite/internal/store"
)

// RateLimiter throttles failed auth attempts per client IP using the
// store's atomic counter. It fails open: a storage error never locks
// legitimate users out.
type RateLimiter struct {
	store       *store.Store
	enabled     bool
	maxAttempts int64
	window      time.Duration
}

func NewRateLimiter(s *store.Store, enabled bool, maxAttempts int, windowSeconds int) *RateLimiter {
	return &RateLimiter{
		store:       s,
		enabled:     enabled,
		maxAttempts: int64(maxAttempts),
		window:      time.Duration(windowSeconds) * time.Second,
	}
}

func (rl *RateLimiter) Enabled() bool {
	return rl.enabled
}

// Allow reports whether the IP may attempt verification, and when denied,
// how long until the window opens again.
func (rl *RateLimiter) Allow(ip string) (bool, time.Duration) {
	if !rl.enabled {
		return true, 0
	}
	bucket, err := rl.store.RateLimitBucketFor(ip)
	if err != nil {
		log.Printf("rate limit: reading bucket for %s: %v", ip, err)
		return true, 0
	}
	if bucket == nil {
		return true, 0
	}
	elapsed := time.Now().UTC().Unix() - bucket.FirstAttempt
	if elapsed > int64(rl.window.Seconds()) {
		return true, 0
	}
	if bucket.FailedAttempts >= rl.maxAttempts {
		retry := time.Duration(int64(rl.window.Seconds())-elapsed) * time.Second
		if retry < time.Second {
			retry = time.Second
		}
		return false, retry
	}
	return true, 0
}

// RecordFailure counts a failed verification for the IP.
func (rl *RateLimiter) RecordFailure(ip string) {
	if !rl.enabled {
		return
	}
	if _, err := rl.store.RecordFailedAttempt(ip, rl.window); err != nil {
		log.Printf("rate limit: recording failure for %s: %v", ip, err)
	}
}

// Clear drops the IP's bucket after a successful verification.
func (rl *RateLimiter) Clear(ip string) {
	if !rl.enabled {
		return
	}
	if err := rl.store.ClearRateLimit(ip); err != nil {
		log.Printf("rate limit: clearing bucket for %s: %v", ip, err)
	}
}
