// Package cryptox wraps the authenticated cipher used by the credential vault
// and the password-style hashing used for agent API keys.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the AES-256 key length.
	KeySize = 32
	// TagSize is the GCM authentication tag length (128 bit).
	TagSize = 16
)

// Sealed is one encrypted value together with everything needed to open it,
// except the AAD, which the caller rebuilds from context.
type Sealed struct {
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
	KeyVersion int
}

// Keyring holds every known key version. New seals always use the current one;
// old versions stay available for reading historical ciphertexts.
type Keyring struct {
	keys    map[int][]byte
	current int

	// random is the nonce source.
	random io.Reader
}

// NewKeyring validates the keys and the current version.
func NewKeyring(keys map[int][]byte, current int) (*Keyring, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("keyring: no keys configured")
	}
	copied := make(map[int][]byte, len(keys))
	for v, k := range keys {
		if len(k) != KeySize {
			return nil, fmt.Errorf("keyring: key version %d must be %d bytes, got %d", v, KeySize, len(k))
		}
		copied[v] = append([]byte(nil), k...)
	}
	if _, ok := copied[current]; !ok {
		return nil, fmt.Errorf("keyring: current key version %d is not configured", current)
	}
	return &Keyring{keys: copied, current: current, random: rand.Reader}, nil
}

// NewKeyringFromHex decodes hex-encoded keys (64 hex chars each).
func NewKeyringFromHex(hexKeys map[int]string, current int) (*Keyring, error) {
	keys := make(map[int][]byte, len(hexKeys))
	for v, h := range hexKeys {
		k, err := hex.DecodeString(h)
		if err != nil {
			return nil, fmt.Errorf("keyring: key version %d is not valid hex: %w", v, err)
		}
		keys[v] = k
	}
	return NewKeyring(keys, current)
}

// CurrentVersion reports the version used for new seals.
func (k *Keyring) CurrentVersion() int { return k.current }

// Encrypt seals plaintext under the current key with a fresh random nonce.
// aad is authenticated but not encrypted.
func (k *Keyring) Encrypt(plaintext, aad []byte) (*Sealed, error) {
	gcm, err := newGCM(k.keys[k.current])
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(k.random, nonce); err != nil {
		return nil, fmt.Errorf("nonce: %w", err)
	}

	// Seal returns ciphertext || tag.
	out := gcm.Seal(nil, nonce, plaintext, aad)
	split := len(out) - TagSize

	return &Sealed{
		Ciphertext: out[:split],
		Tag:        out[split:],
		Nonce:      nonce,
		KeyVersion: k.current,
	}, nil
}

// Decrypt opens s with the key of s.KeyVersion. Any authentication failure,
// including an AAD mismatch, is reported as common.ErrIntegrity.
func (k *Keyring) Decrypt(s *Sealed, aad []byte) ([]byte, error) {
	key, ok := k.keys[s.KeyVersion]
	if !ok {
		return nil, fmt.Errorf("%w: unknown key version %d", common.ErrIntegrity, s.KeyVersion)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(s.Nonce) != gcm.NonceSize() || len(s.Tag) != TagSize {
		return nil, fmt.Errorf("%w: malformed nonce or tag", common.ErrIntegrity)
	}

	sealed := make([]byte, 0, len(s.Ciphertext)+len(s.Tag))
	sealed = append(sealed, s.Ciphertext...)
	sealed = append(sealed, s.Tag...)

	plaintext, err := gcm.Open(nil, s.Nonce, sealed, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrIntegrity, err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return gcm, nil
}

// Argon2id parameters for API key hashing. API keys carry 128+ bits of
// entropy, so a light cost is enough.
const (
	argonTime    = 1
	argonMemory  = 19 * 1024
	argonThreads = 1
	argonKeyLen  = 32
)

// HashAPIKey derives the stored verifier for an agent API key.
func HashAPIKey(key string, salt []byte) []byte {
	return argon2.IDKey([]byte(key), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
}

// VerifyAPIKey compares key against a stored hash in constant time.
func VerifyAPIKey(key string, salt, hash []byte) bool {
	return subtle.ConstantTimeCompare(HashAPIKey(key, salt), hash) == 1
}
