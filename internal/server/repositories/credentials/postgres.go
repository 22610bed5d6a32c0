package credentials

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

// ownerColumn is the column that holds owner's id. The value is one of two
// constants, never caller input.
func ownerColumn(owner models.Owner) (string, error) {
	switch owner.Kind() {
	case models.OwnerUser:
		return "user_id", nil
	case models.OwnerAgent:
		return "agent_id", nil
	}
	return "", models.ErrInvalidOwner
}

func (r *PostgresRepository) Upsert(ctx context.Context, c *models.Credential) error {
	col, err := ownerColumn(c.Owner)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO provider_credentials (provider, %[1]s, ciphertext, nonce, tag, key_version, key_hint)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider, %[1]s) WHERE %[1]s IS NOT NULL
		DO UPDATE SET
			ciphertext = EXCLUDED.ciphertext,
			nonce = EXCLUDED.nonce,
			tag = EXCLUDED.tag,
			key_version = EXCLUDED.key_version,
			key_hint = EXCLUDED.key_hint,
			updated_at = now()
		RETURNING created_at, updated_at`, col)

	err = r.db.QueryRowContext(ctx, query,
		string(c.Provider), c.Owner.ID(), c.Ciphertext, c.Nonce, c.Tag, c.KeyVersion, c.Hint,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, owner models.Owner, provider models.Provider) (*models.Credential, error) {
	col, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT ciphertext, nonce, tag, key_version, key_hint, created_at, updated_at
		FROM provider_credentials
		WHERE %s = $1 AND provider = $2`, col)

	c := &models.Credential{Provider: provider, Owner: owner}
	err = r.db.QueryRowContext(ctx, query, owner.ID(), string(provider)).
		Scan(&c.Ciphertext, &c.Nonce, &c.Tag, &c.KeyVersion, &c.Hint, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context, owner models.Owner) ([]*models.Credential, error) {
	col, err := ownerColumn(owner)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT provider, key_version, key_hint, created_at, updated_at
		FROM provider_credentials
		WHERE %s = $1
		ORDER BY provider`, col)

	rows, err := r.db.QueryContext(ctx, query, owner.ID())
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Credential
	for rows.Next() {
		c := &models.Credential{Owner: owner}
		var provider string
		if err := rows.Scan(&provider, &c.KeyVersion, &c.Hint, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		c.Provider = models.Provider(provider)
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, owner models.Owner, provider models.Provider) (bool, error) {
	col, err := ownerColumn(owner)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`DELETE FROM provider_credentials WHERE %s = $1 AND provider = $2`, col)

	res, err := r.db.ExecContext(ctx, query, owner.ID(), string(provider))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n > 0, nil
}
