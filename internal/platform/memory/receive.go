package memory

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"storefront-push/internal/platform"
)

// ErrBadPushMessage is returned for a body that is not a valid aes128gcm push message
// for the current subscription.
var ErrBadPushMessage = errors.New("undecryptable push message")

// Receive accepts a message the push server delivered to endpoint and returns the
// decrypted payload. An endpoint that is not the current subscription yields
// platform.ErrNotFound, which the push server treats as an expired subscription.
func (m *PushManager) Receive(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	current, key := m.current, m.receiverKey
	m.mu.Unlock()

	if current == nil || current.Endpoint != endpoint || key == nil {
		return nil, fmt.Errorf("%w: %s", platform.ErrNotFound, endpoint)
	}
	auth, err := base64.RawURLEncoding.DecodeString(current.Keys.Auth)
	if err != nil {
		return nil, fmt.Errorf("%w: auth secret: %v", ErrBadPushMessage, err)
	}
	return decryptAES128GCM(key, auth, body)
}

// decryptAES128GCM opens a single-record aes128gcm message (RFC 8188) keyed as RFC 8291
// describes.
func decryptAES128GCM(receiver *ecdh.PrivateKey, authSecret, body []byte) ([]byte, error) {
	// salt(16) | record size(4) | key id length(1) | key id
	if len(body) < 21 {
		return nil, fmt.Errorf("%w: short header", ErrBadPushMessage)
	}
	salt := body[:16]
	recordSize := binary.BigEndian.Uint32(body[16:20])
	idLen := int(body[20])
	if len(body) < 21+idLen {
		return nil, fmt.Errorf("%w: short key id", ErrBadPushMessage)
	}
	senderKey := body[21 : 21+idLen]
	ciphertext := body[21+idLen:]
	if uint32(len(ciphertext)) > recordSize {
		return nil, fmt.Errorf("%w: multi-record messages are not supported", ErrBadPushMessage)
	}

	sender, err := ecdh.P256().NewPublicKey(senderKey)
	if err != nil {
		return nil, fmt.Errorf("%w: sender key: %v", ErrBadPushMessage, err)
	}
	shared, err := receiver.ECDH(sender)
	if err != nil {
		return nil, fmt.Errorf("%w: ecdh: %v", ErrBadPushMessage, err)
	}

	keyInfo := append([]byte("WebPush: info\x00"), receiver.PublicKey().Bytes()...)
	keyInfo = append(keyInfo, senderKey...)
	ikm, err := expand(hkdf.Extract(sha256.New, shared, authSecret), keyInfo, 32)
	if err != nil {
		return nil, err
	}

	prk := hkdf.Extract(sha256.New, ikm, salt)
	cek, err := expand(prk, []byte("Content-Encoding: aes128gcm\x00"), 16)
	if err != nil {
		return nil, err
	}
	nonce, err := expand(prk, []byte("Content-Encoding: nonce\x00"), 12)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(cek)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPushMessage, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPushMessage, err)
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPushMessage, err)
	}

	// The last record ends with 0x02 followed by zero padding.
	plain = bytes.TrimRight(plain, "\x00")
	if len(plain) == 0 || plain[len(plain)-1] != 0x02 {
		return nil, fmt.Errorf("%w: missing record delimiter", ErrBadPushMessage)
	}
	return plain[:len(plain)-1], nil
}

func expand(prk, info []byte, n int) ([]byte, error) {
	out := make([]byte, n)
	if _, err := io.ReadFull(hkdf.Expand(sha256.New, prk, info), out); err != nil {
		return nil, fmt.Errorf("%w: hkdf: %v", ErrBadPushMessage, err)
	}
	return out, nil
}
