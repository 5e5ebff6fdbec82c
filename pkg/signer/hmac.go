package signer

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash"
)

// Codec lists the signer methods the handlers rely on.
// Implementations must be safe for concurrent use.
type Codec interface {
	EncodeLibraryCursor(addedAtUnix int64, itemID int64) string
	DecodeLibraryCursor(token string) (addedAtUnix int64, itemID int64, err error)
}

// HMAC implements Codec using HMAC-SHA256 for integrity.
// It encodes payloads as base64 URL without padding.
type HMAC struct {
	key []byte
	h   func() hash.Hash
}

// NewHMAC creates an HMAC signer with the provided secret key.
func NewHMAC(key []byte) *HMAC {
	return &HMAC{key: append([]byte(nil), key...), h: sha256.New}
}

// seal signs the payload and returns a base64url token payload||sig.
func (c *HMAC) seal(payload []byte) string {
	mac := hmac.New(c.h, c.key)
	mac.Write(payload)
	sig := mac.Sum(nil)
	buf := append(payload, sig...)
	return base64.RawURLEncoding.EncodeToString(buf)
}

// open verifies the token and returns the payload bytes.
func (c *HMAC) open(token string, minPayloadLen int) ([]byte, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, err
	}
	if len(raw) < minPayloadLen+32 {
		return nil, errors.New("invalid_cursor_length")
	}
	payload := raw[:len(raw)-32]
	sig := raw[len(raw)-32:]
	mac := hmac.New(c.h, c.key)
	mac.Write(payload)
	expected := mac.Sum(nil)
	if !hmac.Equal(sig, expected) {
		return nil, errors.New("invalid_cursor_signature")
	}
	return payload, nil
}

// Library page cursor: added_at unix seconds (int64) + item id (int64).
func (c *HMAC) EncodeLibraryCursor(addedAtUnix int64, itemID int64) string {
	payload := make([]byte, 16)
	binary.BigEndian.PutUint64(payload[0:8], uint64(addedAtUnix))
	binary.BigEndian.PutUint64(payload[8:16], uint64(itemID))
	return c.seal(payload)
}

func (c *HMAC) DecodeLibraryCursor(token string) (int64, int64, error) {
	payload, err := c.open(token, 16)
	if err != nil {
		return 0, 0, err
	}
	addedAt := int64(binary.BigEndian.Uint64(payload[0:8]))
	itemID := int64(binary.BigEndian.Uint64(payload[8:16]))
	return addedAt, itemID, nil
}
