package webpush

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"overlite/internal/httputil"
	"overlite/internal/models"
)

// ErrSubscriptionGone marks a push endpoint that reports the subscription
// no longer exists (404 or 410). Callers should drop the subscription.
var ErrSubscriptionGone = errors.New("push subscription gone")

const messageTTL = 86400 // seconds the push service may queue the message

// Sender posts encrypted messages to push service endpoints.
type Sender struct {
	http       *http.Client
	privateKey *ecdsa.PrivateKey
	publicKey  string // base64url, for the VAPID k= parameter
	subject    string
}

// NewSender builds a Sender from base64url VAPID keys and an operator
// contact ("mailto:..." or a URL).
func NewSender(vapidPrivateKey, vapidPublicKey, subject string) (*Sender, error) {
	priv, err := parsePrivateKey(vapidPrivateKey)
	if err != nil {
		return nil, err
	}
	if vapidPublicKey == "" {
		vapidPublicKey, err = PublicKeyFromPrivate(vapidPrivateKey)
		if err != nil {
			return nil, err
		}
	}
	return &Sender{
		http:       httputil.NewClient(),
		privateKey: priv,
		publicKey:  vapidPublicKey,
		subject:    subject,
	}, nil
}

// Send encrypts the payload for the subscription and posts it. Returns
// ErrSubscriptionGone when the endpoint reports the subscription dead.
func (s *Sender) Send(ctx context.Context, sub *models.PushSubscription, payload []byte) error {
	body, err := Encrypt(payload, sub.Keys.P256dh, sub.Keys.Auth)
	if err != nil {
		return fmt.Errorf("encrypting push payload: %w", err)
	}

	audience, err := endpointAudience(sub.Endpoint)
	if err != nil {
		return err
	}
	token, err := signToken(s.privateKey, audience, s.subject, time.Now())
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating push request: %w", err)
	}
	req.Header.Set("Authorization", fmt.Sprintf("vapid t=%s, k=%s", token, s.publicKey))
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Content-Encoding", "aes128gcm")
	req.Header.Set("TTL", fmt.Sprintf("%d", messageTTL))

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("posting push message: %w", err)
	}
	defer httputil.DrainBody(resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSubscriptionGone
	default:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
		return fmt.Errorf("push service returned status %d: %s", resp.StatusCode, httputil.Truncate(raw, 200))
	}
}
