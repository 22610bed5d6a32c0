// Package users declares the repository contract for human accounts.
package users

import (
	"context"

	"github.com/dmitrijs2005/memeforge/internal/server/models"
)

type Repository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}
