package webpush

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/url"
	"time"
)

// VAPID tokens authenticate the application server to the push service.
// Keys are P-256: the private key is the 32-byte scalar, the public key the
// 65-byte uncompressed point, both base64url without padding.

const tokenValidity = 12 * time.Hour

func parsePrivateKey(privateKey string) (*ecdsa.PrivateKey, error) {
	raw, err := decodeKey(privateKey)
	if err != nil {
		return nil, fmt.Errorf("decoding vapid private key: %w", err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("vapid private key must be 32 bytes, got %d", len(raw))
	}
	priv := &ecdsa.PrivateKey{D: new(big.Int).SetBytes(raw)}
	priv.Curve = elliptic.P256()
	priv.X, priv.Y = priv.Curve.ScalarBaseMult(raw)
	return priv, nil
}

// PublicKeyFromPrivate derives the base64url public key from a base64url
// private key.
func PublicKeyFromPrivate(privateKey string) (string, error) {
	priv, err := parsePrivateKey(privateKey)
	if err != nil {
		return "", err
	}
	pub := make([]byte, 0, 65)
	pub = append(pub, 0x04)
	pub = append(pub, priv.X.FillBytes(make([]byte, 32))...)
	pub = append(pub, priv.Y.FillBytes(make([]byte, 32))...)
	return base64.RawURLEncoding.EncodeToString(pub), nil
}

// GenerateKeys returns a fresh (private, public) VAPID key pair.
func GenerateKeys() (string, string, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generating vapid key: %w", err)
	}
	privB64 := base64.RawURLEncoding.EncodeToString(priv.D.FillBytes(make([]byte, 32)))
	pubB64, err := PublicKeyFromPrivate(privB64)
	if err != nil {
		return "", "", err
	}
	return privB64, pubB64, nil
}

// signToken builds the ES256 JWT for an endpoint audience. The signature is
// the raw r||s concatenation, not DER.
func signToken(priv *ecdsa.PrivateKey, audience, subject string, now time.Time) (string, error) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT","alg":"ES256"}`))

	claims, err := json.Marshal(map[string]any{
		"aud": audience,
		"exp": now.Add(tokenValidity).Unix(),
		"sub": subject,
	})
	if err != nil {
		return "", fmt.Errorf("encoding vapid claims: %w", err)
	}
	signingInput := header + "." + base64.RawURLEncoding.EncodeToString(claims)

	digest := sha256.Sum256([]byte(signingInput))
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest[:])
	if err != nil {
		return "", fmt.Errorf("signing vapid token: %w", err)
	}
	sig := make([]byte, 0, 64)
	sig = append(sig, r.FillBytes(make([]byte, 32))...)
	sig = append(sig, s.FillBytes(make([]byte, 32))...)

	return signingInput + "." + base64.RawURLEncoding.EncodeToString(sig), nil
}

// endpointAudience extracts scheme://host from a push endpoint URL.
func endpointAudience(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parsing endpoint: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("endpoint %q has no scheme or host", endpoint)
	}
	return u.Scheme + "://" + u.Host, nil
}
