// Package securestore provides the per-device secure key-value slot.
package securestore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"runtime"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// CipherType identifies the AEAD used to seal slot values.
type CipherType string

const (
	CipherAuto     CipherType = ""
	CipherAESGCM   CipherType = "aes-gcm"
	CipherChaCha20 CipherType = "chacha20-poly1305"
)

// Key derivation parameters.
const (
	vaultKeyLen = 32
	saltLen     = 16

	argon2Time    = 3
	argon2Memory  = 64 * 1024
	argon2Threads = 4

	// MinPassphraseLength is the shortest accepted vault passphrase.
	MinPassphraseLength = 8

	hkdfInfo = "tokpass vault v1"
)

var (
	// ErrPassphraseTooWeak is returned for passphrases below MinPassphraseLength.
	ErrPassphraseTooWeak = errors.New("securestore: passphrase too weak (minimum 8 characters)")

	// ErrDecrypt is returned when a sealed value cannot be opened.
	ErrDecrypt = errors.New("securestore: decryption failed - wrong key or corrupted data")
)

// sealer encrypts slot values. The nonce is prepended to the ciphertext and
// the slot name is bound as associated data, so a value moved to another slot
// fails to open.
type sealer struct {
	kind CipherType
	aead cipher.AEAD
}

// newSealer creates a sealer for the given cipher type. CipherAuto picks
// AES-GCM where Go has hardware AES and ChaCha20-Poly1305 elsewhere.
func newSealer(key []byte, kind CipherType) (*sealer, error) {
	if len(key) != vaultKeyLen {
		return nil, fmt.Errorf("securestore: vault key must be %d bytes", vaultKeyLen)
	}
	if kind == CipherAuto {
		kind = preferredCipher()
	}

	var (
		aead cipher.AEAD
		err  error
	)
	switch kind {
	case CipherAESGCM:
		var block cipher.Block
		block, err = aes.NewCipher(key)
		if err == nil {
			aead, err = cipher.NewGCM(block)
		}
	case CipherChaCha20:
		aead, err = chacha20poly1305.New(key)
	default:
		return nil, fmt.Errorf("securestore: unsupported cipher: %s", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("securestore: init %s: %w", kind, err)
	}

	return &sealer{kind: kind, aead: aead}, nil
}

func preferredCipher() CipherType {
	switch runtime.GOARCH {
	case "amd64", "arm64", "s390x", "ppc64le":
		return CipherAESGCM
	default:
		return CipherChaCha20
	}
}

func (s *sealer) seal(slot string, plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("securestore: nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, []byte(slot)), nil
}

func (s *sealer) open(slot string, sealed []byte) ([]byte, error) {
	ns := s.aead.NonceSize()
	if len(sealed) < ns+s.aead.Overhead() {
		return nil, ErrDecrypt
	}
	plaintext, err := s.aead.Open(nil, sealed[:ns], sealed[ns:], []byte(slot))
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// deriveFromPassphrase stretches a passphrase into a vault key with Argon2id.
func deriveFromPassphrase(passphrase, salt []byte) ([]byte, error) {
	if len(passphrase) < MinPassphraseLength {
		return nil, ErrPassphraseTooWeak
	}
	if len(salt) != saltLen {
		return nil, fmt.Errorf("securestore: salt must be %d bytes", saltLen)
	}
	return argon2.IDKey(passphrase, salt, argon2Time, argon2Memory, argon2Threads, vaultKeyLen), nil
}

// deriveFromDeviceKey expands the random device key into a vault key.
func deriveFromDeviceKey(deviceKey []byte) ([]byte, error) {
	if len(deviceKey) < vaultKeyLen {
		return nil, fmt.Errorf("securestore: device key too short")
	}
	r := hkdf.New(sha256.New, deviceKey, nil, []byte(hkdfInfo))
	key := make([]byte, vaultKeyLen)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("securestore: derive key: %w", err)
	}
	return key, nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
