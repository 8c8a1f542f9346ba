package store

import (
	"fmt"
	"time"
)

// Rate-limit buckets live in per-IP partitions ("RATELIMIT#<ip>") with a
// fixed sort of 0, carrying a ttl so abandoned buckets reap themselves.

func rateLimitPartition(ip string) string {
	return "RATELIMIT#" + ip
}

// RateLimitBucket is the live failure counter for one IP.
type RateLimitBucket struct {
	FailedAttempts int64
	FirstAttempt   int64 // unix seconds
	LastAttempt    int64
}

// RateLimitBucketFor reads the bucket for an IP; nil when absent or expired.
func (s *Store) RateLimitBucketFor(ip string) (*RateLimitBucket, error) {
	item, err := s.GetItem(rateLimitPartition(ip), 0)
	if err != nil {
		return nil, fmt.Errorf("reading rate limit bucket: %w", err)
	}
	if item == nil {
		return nil, nil
	}
	return &RateLimitBucket{
		FailedAttempts: intAttr(item, "failed_attempts"),
		FirstAttempt:   intAttr(item, "first_attempt"),
		LastAttempt:    intAttr(item, "last_attempt"),
	}, nil
}

// RecordFailedAttempt atomically counts a failed auth attempt for an IP and
// returns the new count. The bucket's ttl extends past the window by a
// minute so the expiry never races the window check. When the window has
// already lapsed the bucket restarts at one.
func (s *Store) RecordFailedAttempt(ip string, window time.Duration) (int64, error) {
	now := time.Now().UTC().Unix()
	ttl := now + int64(window.Seconds()) + 60

	item, err := s.UpdateItem(rateLimitPartition(ip), 0, Update{
		Add:         map[string]int64{"failed_attempts": 1},
		Set:         map[string]any{"last_attempt": now, "ttl": ttl},
		SetIfAbsent: map[string]any{"first_attempt": now},
		Return:      ReturnAllNew,
	})
	if err != nil {
		return 0, fmt.Errorf("recording failed attempt: %w", err)
	}

	first := intAttr(item, "first_attempt")
	if now-first > int64(window.Seconds()) {
		reset := Item{
			"failed_attempts": int64(1),
			"first_attempt":   now,
			"last_attempt":    now,
			"ttl":             ttl,
		}
		if err := s.PutItem(rateLimitPartition(ip), 0, reset, nil); err != nil {
			return 0, fmt.Errorf("resetting rate limit window: %w", err)
		}
		return 1, nil
	}
	return intAttr(item, "failed_attempts"), nil
}

// ClearRateLimit drops the bucket, typically on successful auth.
func (s *Store) ClearRateLimit(ip string) error {
	if _, err := s.DeleteItem(rateLimitPartition(ip), 0); err != nil {
		return fmt.Errorf("clearing rate limit: %w", err)
	}
	return nil
}
