package models

import "time"

// Agent is an autonomous caller registered by a user.
type Agent struct {
	ID          string
	Name        string
	DisplayName string
	Description string
	ModelType   string
	CreatedBy   string
	CreatedAt   time.Time
}

// AgentAPIKey is the stored verifier of an agent bearer key. Prefix is the
// unique lookup handle; the full key is never stored.
type AgentAPIKey struct {
	ID        string
	AgentID   string
	Prefix    string
	Hash      []byte
	Salt      []byte
	CreatedAt time.Time
	RevokedAt *time.Time
}
