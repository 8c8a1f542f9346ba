package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strconv"
	"strings"
	"time"
)

// Session tokens are detached signatures, not stored server-side:
//
//	<unix_seconds>.<base64url(name)>.<base64url(HMAC-SHA256(secret, "<ts>.<nameB64>"))>
//
// An older two-part form <ts>.<sig> (signature over the timestamp alone)
// is still accepted so sessions issued before names existed keep working.

const TokenValidity = 30 * 24 * time.Hour

func (a *Authenticator) sign(payload string) string {
	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// CreateToken issues a session token for a display name.
func (a *Authenticator) CreateToken(name string, now time.Time) string {
	ts := strconv.FormatInt(now.Unix(), 10)
	nameB64 := base64.RawURLEncoding.EncodeToString([]byte(name))
	payload := ts + "." + nameB64
	return payload + "." + a.sign(payload)
}

// VerifyToken checks a token's signature and age, returning the embedded
// name (empty for legacy tokens) and whether the token is valid.
func (a *Authenticator) VerifyToken(token string, now time.Time) (string, bool) {
	parts := strings.Split(token, ".")

	var payload, sig, name string
	switch len(parts) {
	case 3:
		payload = parts[0] + "." + parts[1]
		sig = parts[2]
		raw, err := base64.RawURLEncoding.DecodeString(parts[1])
		if err != nil {
			return "", false
		}
		name = string(raw)
	case 2:
		payload = parts[0]
		sig = parts[1]
	default:
		return "", false
	}

	if !hmac.Equal([]byte(a.sign(payload)), []byte(sig)) {
		return "", false
	}

	ts, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return "", false
	}
	age := now.Unix() - ts
	if age < 0 || age > int64(TokenValidity.Seconds()) {
		return "", false
	}
	return name, true
}
