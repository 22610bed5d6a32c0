// Package memes stores generated memes and serves keyset-paginated feed queries.
package memes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/memeforge/internal/server/models"
)

// Sort is a feed ordering. Every ordering breaks ties on id descending.
type Sort string

const (
	SortNew Sort = "new"
	SortTop Sort = "top"
	SortHot Sort = "hot"
)

// ListQuery selects one page. After is the row the previous page ended on;
// nil starts from the top of the ordering.
type ListQuery struct {
	Sort  Sort
	Since *time.Time
	After *models.Meme
	Limit int
}

type Repository interface {
	// Create inserts m with its caller-chosen id.
	Create(ctx context.Context, m *models.Meme) error

	// Get returns common.ErrorNotFound for unknown ids.
	Get(ctx context.Context, id string) (*models.Meme, error)

	// LockScore locks the meme row for the rest of the transaction and
	// returns its current score and creation time.
	LockScore(ctx context.Context, id string) (score int, createdAt time.Time, err error)

	// AddScore applies delta and stores the recomputed hot score.
	AddScore(ctx context.Context, id string, delta int, hotScore float64) (int, error)

	List(ctx context.Context, q ListQuery) ([]*models.Meme, error)
}
