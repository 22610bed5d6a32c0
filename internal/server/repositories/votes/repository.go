// Package votes stores one vote row per (meme, voter).
package votes

import (
	"context"

	"github.com/dmitrijs2005/memeforge/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when the voter has no vote on the meme.
	Get(ctx context.Context, memeID string, voter models.Owner) (*models.Vote, error)

	// Create fails with a unique violation if the row already exists.
	Create(ctx context.Context, v *models.Vote) error

	Update(ctx context.Context, v *models.Vote) error
	Delete(ctx context.Context, memeID string, voter models.Owner) error

	// Directions returns voter's votes for the given memes, keyed by meme id.
	Directions(ctx context.Context, voter models.Owner, memeIDs []string) (map[string]models.Direction, error)
}
