// Package auth implements the shared-password challenge-response scheme,
// signed session tokens, and the per-IP failure rate limiter.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// Iterations is advertised to clients via /api/auth/params; both sides must
// derive with the same count.
const Iterations = 100000

const (
	derivedKeyLen = 32
	maxClockSkew  = 300 * time.Second
	maxNameLen    = 50
)

var (
	ErrInvalidName    = errors.New("name must be non-empty and at most 50 characters")
	ErrStaleTimestamp = errors.New("challenge timestamp outside allowed skew")
	ErrBadChallenge   = errors.New("challenge hash mismatch")
)

// Challenge is the client's proof of password knowledge. The client derives
// a key from the password with the origin as salt and hashes it together
// with a timestamp, so neither the password nor a reusable credential
// crosses the wire.
type Challenge struct {
	Origin    string `json:"origin"`
	Timestamp string `json:"timestamp"`
	Hash      string `json:"hash"`
	Name      string `json:"name"`
}

type Authenticator struct {
	secret   []byte
	password string
}

func New(secret, password string) *Authenticator {
	return &Authenticator{secret: []byte(secret), password: password}
}

// ValidateName checks the display name a client wants attached to its
// session.
func ValidateName(name string) error {
	if name == "" || len(name) > maxNameLen {
		return ErrInvalidName
	}
	return nil
}

// VerifyChallenge checks a challenge against the configured password.
// Timestamp freshness is checked before any key derivation so stale
// replays never cost PBKDF2 work.
func (a *Authenticator) VerifyChallenge(c Challenge, now time.Time) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}

	ts, err := strconv.ParseInt(c.Timestamp, 10, 64)
	if err != nil {
		return ErrStaleTimestamp
	}
	skew := now.Unix() - ts
	if skew < 0 {
		skew = -skew
	}
	if skew > int64(maxClockSkew.Seconds()) {
		return ErrStaleTimestamp
	}

	derived := pbkdf2.Key([]byte(a.password), []byte(c.Origin), Iterations, derivedKeyLen, sha256.New)
	sum := sha256.Sum256([]byte(hex.EncodeToString(derived) + ":" + c.Timestamp))
	expected := hex.EncodeToString(sum[:])

	if subtle.ConstantTimeCompare([]byte(expected), []byte(c.Hash)) != 1 {
		return ErrBadChallenge
	}
	return nil
}
