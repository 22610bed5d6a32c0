package models

import "time"

// Provider identifies an upstream image generation backend.
type Provider string

const (
	ProviderHuggingFace Provider = "huggingface"
	ProviderReplicate   Provider = "replicate"
)

// ProviderPriority is the order in which stored credentials are tried
// for generation.
var ProviderPriority = []Provider{ProviderHuggingFace, ProviderReplicate}

func (p Provider) Valid() bool {
	return p == ProviderHuggingFace || p == ProviderReplicate
}

// Credential is an encrypted provider key. Ciphertext, Nonce, Tag and
// KeyVersion are always written together.
type Credential struct {
	Provider   Provider
	Owner      Owner
	Ciphertext []byte
	Nonce      []byte
	Tag        []byte
	KeyVersion int
	Hint       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// KeyHint is the only view of a stored credential ever returned to callers.
type KeyHint struct {
	Provider  Provider  `json:"provider"`
	Hint      string    `json:"keyHint"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ResolvedCredential is a decrypted key ready for a provider call.
// It must never be logged or serialized.
type ResolvedCredential struct {
	Provider Provider
	APIKey   string
}

func (c ResolvedCredential) String() string {
	return string(c.Provider) + ":[REDACTED]"
}
