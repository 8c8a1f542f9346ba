package store

import (
	"testing"
	"time"
)

func TestRecordFailedAttempt(t *testing.T) {
	s := newTestStore(t)
	window := 15 * time.Minute

	for want := int64(1); want <= 3; want++ {
		got, err := s.RecordFailedAttempt("10.0.0.1", window)
		if err != nil {
			t.Fatalf("attempt %d: %v", want, err)
		}
		if got != want {
			t.Errorf("attempt count = %d, want %d", got, want)
		}
	}

	bucket, err := s.RateLimitBucketFor("10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if bucket == nil {
		t.Fatal("bucket missing after failures")
	}
	if bucket.FailedAttempts != 3 {
		t.Errorf("bucket count = %d, want 3", bucket.FailedAttempts)
	}
	if bucket.FirstAttempt == 0 || bucket.LastAttempt < bucket.FirstAttempt {
		t.Errorf("bad timestamps: first=%d last=%d", bucket.FirstAttempt, bucket.LastAttempt)
	}
}

func TestRecordFailedAttemptWindowRollover(t *testing.T) {
	s := newTestStore(t)
	window := 15 * time.Minute

	// Seed a bucket whose window has already lapsed.
	stale := time.Now().UTC().Add(-time.Hour).Unix()
	seed := Item{
		"failed_attempts": int64(9),
		"first_attempt":   stale,
		"last_attempt":    stale,
		"ttl":             time.Now().UTC().Add(time.Hour).Unix(),
	}
	if err := s.PutItem(rateLimitPartition("10.0.0.2"), 0, seed, nil); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecordFailedAttempt("10.0.0.2", window)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("rollover count = %d, want 1", got)
	}
	bucket, err := s.RateLimitBucketFor("10.0.0.2")
	if err != nil {
		t.Fatal(err)
	}
	if bucket.FailedAttempts != 1 {
		t.Errorf("bucket count after rollover = %d, want 1", bucket.FailedAttempts)
	}
	if bucket.FirstAttempt <= stale {
		t.Errorf("first_attempt not restarted: %d", bucket.FirstAttempt)
	}
}

func TestRateLimitIsolationByIP(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.RecordFailedAttempt("10.0.0.3", time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := s.RecordFailedAttempt("10.0.0.4", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1 {
		t.Errorf("second IP count = %d, want 1", got)
	}
}

func TestClearRateLimit(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.RecordFailedAttempt("10.0.0.5", time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := s.ClearRateLimit("10.0.0.5"); err != nil {
		t.Fatal(err)
	}
	bucket, err := s.RateLimitBucketFor("10.0.0.5")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != nil {
		t.Errorf("bucket survived clear: %+v", bucket)
	}

	// Clearing an absent bucket is a no-op.
	if err := s.ClearRateLimit("10.0.0.6"); err != nil {
		t.Fatal(err)
	}
}
