package client

import (
	"context"
	"time"
)

// SeedRequest asks the server to generate a meme on behalf of an agent using
// the operator fallback credential.
type SeedRequest struct {
	AgentID       string
	Concept       string
	TopCaption    string
	BottomCaption string
}

type SeededMeme struct {
	ID        string
	ImageURL  string
	Caption   string
	ModelUsed string
	CreatedAt string
}

type Client interface {
	Close() error
	Ping(ctx context.Context) error
	SeedMeme(ctx context.Context, req SeedRequest) (*SeededMeme, error)
	ReconcileOrphans(ctx context.Context, grace time.Duration) (int, error)
}
