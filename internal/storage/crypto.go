package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// ErrCiphertext is returned when a stored value cannot be decrypted.
var ErrCiphertext = errors.New("storage: invalid ciphertext")

const hkdfInfo = "accountkeeper slot v1"

// NewAEADFromSecret derives an AES-256-GCM cipher from secret material,
// typically the contents of a PEM key file.
func NewAEADFromSecret(secret []byte) (cipher.AEAD, error) {
	if len(secret) == 0 {
		return nil, errors.New("empty encryption secret")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create AEAD: %w", err)
	}
	return aead, nil
}

// EncryptedSlot seals values before handing them to Inner.
// Stored values are base64(nonce || ciphertext) with the slot key as
// additional data, so a value copied under another key fails to open.
type EncryptedSlot struct {
	Inner Slot
	AEAD  cipher.AEAD
}

// NewEncryptedSlot wraps inner with a cipher derived from secret.
func NewEncryptedSlot(inner Slot, secret []byte) (*EncryptedSlot, error) {
	aead, err := NewAEADFromSecret(secret)
	if err != nil {
		return nil, err
	}
	return &EncryptedSlot{Inner: inner, AEAD: aead}, nil
}

func (e *EncryptedSlot) Get(ctx context.Context, key string) (string, bool, error) {
	stored, ok, err := e.Inner.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	data, err := base64.StdEncoding.DecodeString(stored)
	if err != nil || len(data) < e.AEAD.NonceSize() {
		return "", false, fmt.Errorf("slot %q: %w", key, ErrCiphertext)
	}
	nonce, ct := data[:e.AEAD.NonceSize()], data[e.AEAD.NonceSize():]
	plain, err := e.AEAD.Open(nil, nonce, ct, []byte(key))
	if err != nil {
		return "", false, fmt.Errorf("slot %q: %w", key, ErrCiphertext)
	}
	return string(plain), true, nil
}

func (e *EncryptedSlot) Set(ctx context.Context, key, value string) error {
	nonce := make([]byte, e.AEAD.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.AEAD.Seal(nonce, nonce, []byte(value), []byte(key))
	return e.Inner.Set(ctx, key, base64.StdEncoding.EncodeToString(sealed))
}
