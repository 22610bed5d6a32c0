package agents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/dbx"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Agent) error {
	query := `
		INSERT INTO agents (id, name, display_name, description, model_type, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Name, a.DisplayName, a.Description, a.ModelType, a.CreatedBy,
	).Scan(&a.CreatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return fmt.Errorf("%w: agent name %q is taken", common.ErrConflict, a.Name)
		}
		if dbx.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: user %s no longer exists", common.ErrUnauthorized, a.CreatedBy)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Agent, error) {
	query := `
		SELECT id, name, display_name, description, model_type, created_by, created_at
		FROM agents WHERE id = $1`

	a := &models.Agent{}
	err := r.db.QueryRowContext(ctx, query, id).
		Scan(&a.ID, &a.Name, &a.DisplayName, &a.Description, &a.ModelType, &a.CreatedBy, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) CreateAPIKey(ctx context.Context, k *models.AgentAPIKey) error {
	query := `
		INSERT INTO agent_api_keys (id, agent_id, key_prefix, key_hash, key_salt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query, k.ID, k.AgentID, k.Prefix, k.Hash, k.Salt).Scan(&k.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*models.AgentAPIKey, error) {
	query := `
		SELECT id, agent_id, key_prefix, key_hash, key_salt, created_at
		FROM agent_api_keys
		WHERE key_prefix = $1 AND revoked_at IS NULL`

	k := &models.AgentAPIKey{}
	err := r.db.QueryRowContext(ctx, query, prefix).
		Scan(&k.ID, &k.AgentID, &k.Prefix, &k.Hash, &k.Salt, &k.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return k, nil
}
