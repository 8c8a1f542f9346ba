// Package webpush implements the Web Push protocol: aes128gcm message
// encryption (RFC 8188) and VAPID request signing (RFC 8292).
package webpush

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// recordSize is the single-record size advertised in the content header.
// Payloads are small enough to always fit one record.
const recordSize = 4096

// decodeKey accepts the base64 variants browsers emit for subscription
// keys: url-safe or standard alphabet, padded or not.
func decodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "+/") {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}

func hkdfExtractExpand(secret, salt, info []byte, length int) ([]byte, error) {
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, salt, info), out); err != nil {
		return nil, fmt.Errorf("hkdf: %w", err)
	}
	return out, nil
}

// Encrypt seals a payload for a subscription using aes128gcm content
// encoding. p256dhKey is the subscription's P-256 public key, authSecret
// its 16-byte auth secret, both base64. The result is the complete body to
// POST: header (salt, record size, server public key) followed by one
// AES-GCM record.
func Encrypt(payload []byte, p256dhKey, authSecret string) ([]byte, error) {
	userPubBytes, err := decodeKey(p256dhKey)
	if err != nil {
		return nil, fmt.Errorf("decoding p256dh key: %w", err)
	}
	auth, err := decodeKey(authSecret)
	if err != nil {
		return nil, fmt.Errorf("decoding auth secret: %w", err)
	}

	userPub, err := ecdh.P256().NewPublicKey(userPubBytes)
	if err != nil {
		return nil, fmt.Errorf("invalid p256dh key: %w", err)
	}

	serverKey, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generating ephemeral key: %w", err)
	}
	serverPubBytes := serverKey.PublicKey().Bytes()

	shared, err := serverKey.ECDH(userPub)
	if err != nil {
		return nil, fmt.Errorf("ecdh agreement: %w", err)
	}

	ikmInfo := append([]byte("WebPush: info\x00"), userPubBytes...)
	ikmInfo = append(ikmInfo, serverPubBytes...)
	ikm, err := hkdfExtractExpand(shared, auth, ikmInfo, 32)
	if err != nil {
		return nil, err
	}

	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	cek, err := hkdfExtractExpand(ikm, salt, []byte("Content-Encoding: aes128gcm\x00"), 16)
	if err != nil {
		return nil, err
	}
	nonce, err := hkdfExtractExpand(ikm, salt, []byte("Content-Encoding: nonce\x00"), 12)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	// Final (only) record: 0x02 padding delimiter, no padding bytes.
	plaintext := append(append([]byte{}, payload...), 0x02)
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	body := make([]byte, 0, 16+4+1+len(serverPubBytes)+len(ciphertext))
	body = append(body, salt...)
	body = binary.BigEndian.AppendUint32(body, recordSize)
	body = append(body, byte(len(serverPubBytes)))
	body = append(body, serverPubBytes...)
	body = append(body, ciphertext...)
	return body, nil
}
