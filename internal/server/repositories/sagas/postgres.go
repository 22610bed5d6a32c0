package sagas

import (
	"context"
	"fmt"
	"time"

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

func (r *PostgresRepository) Create(ctx context.Context, s *models.GenerationSaga) error {
	query := `
		INSERT INTO generation_sagas (meme_id, storage_key, state)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query, s.MemeID, s.StorageKey, string(s.State)).Scan(&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetState(ctx context.Context, memeID string, state models.SagaState) error {
	query := `UPDATE generation_sagas SET state = $2, updated_at = now() WHERE meme_id = $1`

	res, err := r.db.ExecContext(ctx, query, memeID, string(state))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ListStale(ctx context.Context, before time.Time, limit int) ([]*models.GenerationSaga, error) {
	query := `
		SELECT meme_id, storage_key, state, created_at, updated_at
		FROM generation_sagas
		WHERE state IN ('pending', 'uploaded') AND updated_at < $1
		ORDER BY updated_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.GenerationSaga
	for rows.Next() {
		s := &models.GenerationSaga{}
		var state string
		if err := rows.Scan(&s.MemeID, &s.StorageKey, &state, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		s.State = models.SagaState(state)
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}
