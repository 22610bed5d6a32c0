// Package agents stores registered agents and the verifiers of their API keys.
package agents

import (
	"context"

	"github.com/dmitrijs2005/memeforge/internal/server/models"
)

type Repository interface {
	// Create returns common.ErrConflict when the name is taken.
	Create(ctx context.Context, a *models.Agent) error
	GetByID(ctx context.Context, id string) (*models.Agent, error)

	CreateAPIKey(ctx context.Context, k *models.AgentAPIKey) error

	// GetAPIKeyByPrefix returns only unrevoked keys.
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*models.AgentAPIKey, error)
}
