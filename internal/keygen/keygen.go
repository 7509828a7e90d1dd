// Package keygen creates and loads the PEM key files used to encrypt the
// account slot.
package keygen

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

const blockType = "EC PRIVATE KEY"

// GenerateKeyPEM generates an ECDSA P-256 private key and returns it
// PEM-encoded.
func GenerateKeyPEM() ([]byte, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("gen key: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("marshal priv key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: keyDER}), nil
}

// WriteKeyFile writes a new key to path with owner-only permissions.
// An existing file is never overwritten.
func WriteKeyFile(path string) error {
	keyPEM, err := GenerateKeyPEM()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.Write(keyPEM); err != nil {
		_ = f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	return f.Close()
}

// LoadKeyFile reads path and checks that it holds a PEM key produced by
// WriteKeyFile. It returns the raw file contents.
func LoadKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("invalid key PEM")
	}
	if block.Type != blockType {
		return nil, fmt.Errorf("unsupported key type: %s", block.Type)
	}
	if _, err := x509.ParseECPrivateKey(block.Bytes); err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	return data, nil
}
