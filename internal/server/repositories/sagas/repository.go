// Package sagas is the durable log of generation uploads. A row is written
// before an object is uploaded and closed once the meme is committed or the
// object is removed, so orphans can be found after a crash.
package sagas

import (
	"context"
	"time"

	"github.com/dmitrijs2005/memeforge/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.GenerationSaga) error
	SetState(ctx context.Context, memeID string, state models.SagaState) error

	// ListStale returns open sagas (pending or uploaded) not touched since before.
	ListStale(ctx context.Context, before time.Time, limit int) ([]*models.GenerationSaga, error)
}
