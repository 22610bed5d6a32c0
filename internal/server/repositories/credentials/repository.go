// Package credentials declares storage for encrypted provider keys.
package credentials

import (
	"context"

	"github.com/dmitrijs2005/memeforge/internal/server/models"
)

// Repository stores at most one credential per (provider, owner).
type Repository interface {
	// Upsert writes ciphertext, nonce, tag, version and hint as one row.
	Upsert(ctx context.Context, c *models.Credential) error

	// Get returns common.ErrorNotFound when nothing is stored.
	Get(ctx context.Context, owner models.Owner, provider models.Provider) (*models.Credential, error)

	// List returns the owner's credentials ordered by provider.
	List(ctx context.Context, owner models.Owner) ([]*models.Credential, error)

	// Delete reports whether a row was removed.
	Delete(ctx context.Context, owner models.Owner, provider models.Provider) (bool, error)
}
