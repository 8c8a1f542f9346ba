package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"overlite/internal/store"
)

const (
	testSecret   = "test-secret"
	testPassword = "hunter2"
	testOrigin   = "https://requests.example.com"
)

// challengeFor builds a valid client-side challenge, the way the browser
// would.
func challengeFor(password, origin, name string, ts time.Time) Challenge {
	timestamp := strconv.FormatInt(ts.Unix(), 10)
	derived := pbkdf2.Key([]byte(password), []byte(origin), Iterations, 32, sha256.New)
	sum := sha256.Sum256([]byte(hex.EncodeToString(derived) + ":" + timestamp))
	return Challenge{
		Origin:    origin,
		Timestamp: timestamp,
		Hash:      hex.EncodeToString(sum[:]),
		Name:      name,
	}
}

func TestVerifyChallenge(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()

	if err := a.VerifyChallenge(challengeFor(testPassword, testOrigin, "alice", now), now); err != nil {
		t.Fatalf("valid challenge rejected: %v", err)
	}
}

func TestVerifyChallengeWrongPassword(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()

	err := a.VerifyChallenge(challengeFor("wrong", testOrigin, "alice", now), now)
	if err != ErrBadChallenge {
		t.Fatalf("got %v, want ErrBadChallenge", err)
	}
}

func TestVerifyChallengeWrongOrigin(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()

	// Hash computed for a different origin than the one submitted.
	c := challengeFor(testPassword, "https://evil.example.com", "alice", now)
	c.Origin = testOrigin
	if err := a.VerifyChallenge(c, now); err != ErrBadChallenge {
		t.Fatalf("got %v, want ErrBadChallenge", err)
	}
}

func TestVerifyChallengeClockSkew(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()

	cases := []struct {
		name string
		skew time.Duration
		ok   bool
	}{
		{"exact", 0, true},
		{"five minutes old", -300 * time.Second, true},
		{"five minutes ahead", 300 * time.Second, true},
		{"too old", -301 * time.Second, false},
		{"too far ahead", 301 * time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := challengeFor(testPassword, testOrigin, "alice", now.Add(tc.skew))
			err := a.VerifyChallenge(c, now)
			if tc.ok && err != nil {
				t.Errorf("rejected: %v", err)
			}
			if !tc.ok && err != ErrStaleTimestamp {
				t.Errorf("got %v, want ErrStaleTimestamp", err)
			}
		})
	}
}

func TestVerifyChallengeNonNumericTimestamp(t *testing.T) {
	a := New(testSecret, testPassword)
	c := challengeFor(testPassword, testOrigin, "alice", time.Now())
	c.Timestamp = "yesterday"
	if err := a.VerifyChallenge(c, time.Now()); err != ErrStaleTimestamp {
		t.Fatalf("got %v, want ErrStaleTimestamp", err)
	}
}

func TestVerifyChallengeName(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()

	if err := a.VerifyChallenge(challengeFor(testPassword, testOrigin, "", now), now); err != ErrInvalidName {
		t.Errorf("empty name: got %v", err)
	}
	long := strings.Repeat("x", 51)
	if err := a.VerifyChallenge(challengeFor(testPassword, testOrigin, long, now), now); err != ErrInvalidName {
		t.Errorf("oversized name: got %v", err)
	}
	max := strings.Repeat("x", 50)
	if err := a.VerifyChallenge(challengeFor(testPassword, testOrigin, max, now), now); err != nil {
		t.Errorf("50-char name rejected: %v", err)
	}
}

func TestTokenRoundTrip(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()

	token := a.CreateToken("alice", now)
	name, ok := a.VerifyToken(token, now)
	if !ok {
		t.Fatal("fresh token rejected")
	}
	if name != "alice" {
		t.Errorf("name = %q", name)
	}
}

func TestTokenValidityWindow(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()
	token := a.CreateToken("alice", now)

	cases := []struct {
		name  string
		delta time.Duration
		ok    bool
	}{
		{"immediately", 0, true},
		{"29 days later", 29 * 24 * time.Hour, true},
		{"exactly 30 days", 30 * 24 * time.Hour, true},
		{"past 30 days", 30*24*time.Hour + time.Second, false},
		{"before issue", -time.Second, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := a.VerifyToken(token, now.Add(tc.delta)); ok != tc.ok {
				t.Errorf("valid = %v, want %v", ok, tc.ok)
			}
		})
	}
}

func TestTokenTamperedSignature(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()
	token := a.CreateToken("alice", now)

	if _, ok := a.VerifyToken(token+"x", now); ok {
		t.Error("tampered signature accepted")
	}

	other := New("other-secret", testPassword)
	if _, ok := other.VerifyToken(token, now); ok {
		t.Error("token accepted under a different secret")
	}
}

func TestTokenTamperedName(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()
	token := a.CreateToken("alice", now)

	parts := strings.Split(token, ".")
	forged := parts[0] + ".bWFsbG9yeQ." + parts[2]
	if _, ok := a.VerifyToken(forged, now); ok {
		t.Error("name swap accepted")
	}
}

func TestLegacyTwoPartToken(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()

	ts := strconv.FormatInt(now.Unix(), 10)
	legacy := ts + "." + a.sign(ts)
	name, ok := a.VerifyToken(legacy, now)
	if !ok {
		t.Fatal("legacy token rejected")
	}
	if name != "" {
		t.Errorf("legacy token produced name %q", name)
	}

	if _, ok := a.VerifyToken(legacy, now.Add(31*24*time.Hour)); ok {
		t.Error("expired legacy token accepted")
	}
}

func TestVerifyTokenGarbage(t *testing.T) {
	a := New(testSecret, testPassword)
	now := time.Now()
	for _, token := range []string{"", "a", "a.b.c.d", "notanumber.bmFtZQ.sig", "123"} {
		if _, ok := a.VerifyToken(token, now); ok {
			t.Errorf("garbage token %q accepted", token)
		}
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRateLimiter(t *testing.T) {
	s := newTestStore(t)
	rl := NewRateLimiter(s, true, 3, 900)

	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Fatal("fresh IP denied")
	}
	for i := 0; i < 3; i++ {
		rl.RecordFailure("1.2.3.4")
	}
	ok, retry := rl.Allow("1.2.3.4")
	if ok {
		t.Fatal("IP allowed after max failures")
	}
	if retry <= 0 || retry > 900*time.Second {
		t.Errorf("retry hint = %v", retry)
	}

	if ok, _ := rl.Allow("5.6.7.8"); !ok {
		t.Error("unrelated IP denied")
	}

	rl.Clear("1.2.3.4")
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Error("IP still denied after clear")
	}
}

func TestRateLimiterBelowThreshold(t *testing.T) {
	s := newTestStore(t)
	rl := NewRateLimiter(s, true, 5, 900)

	for i := 0; i < 4; i++ {
		rl.RecordFailure("1.2.3.4")
	}
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Error("denied below the threshold")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	s := newTestStore(t)
	rl := NewRateLimiter(s, false, 1, 900)

	rl.RecordFailure("1.2.3.4")
	rl.RecordFailure("1.2.3.4")
	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Error("disabled limiter denied")
	}
	bucket, err := s.RateLimitBucketFor("1.2.3.4")
	if err != nil {
		t.Fatal(err)
	}
	if bucket != nil {
		t.Error("disabled limiter wrote to the store")
	}
}

func TestRateLimiterFailsOpen(t *testing.T) {
	s := newTestStore(t)
	rl := NewRateLimiter(s, true, 1, 900)
	s.Close()

	if ok, _ := rl.Allow("1.2.3.4"); !ok {
		t.Error("limiter failed closed on storage error")
	}
}
