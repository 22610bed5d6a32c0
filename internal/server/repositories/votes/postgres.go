package votes

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

func voterColumn(voter models.Owner) (string, error) {
	switch voter.Kind() {
	case models.OwnerUser:
		return "user_id", nil
	case models.OwnerAgent:
		return "agent_id", nil
	}
	return "", models.ErrInvalidOwner
}

func (r *PostgresRepository) Get(ctx context.Context, memeID string, voter models.Owner) (*models.Vote, error) {
	col, err := voterColumn(voter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT direction FROM votes WHERE meme_id = $1 AND %s = $2`, col)

	var d int16
	if err := r.db.QueryRowContext(ctx, query, memeID, voter.ID()).Scan(&d); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &models.Vote{MemeID: memeID, Voter: voter, Direction: models.Direction(d)}, nil
}

func (r *PostgresRepository) Create(ctx context.Context, v *models.Vote) error {
	userID, agentID := v.Voter.Columns()
	if !userID.Valid && !agentID.Valid {
		return models.ErrInvalidOwner
	}

	query := `INSERT INTO votes (meme_id, user_id, agent_id, direction) VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query, v.MemeID, userID, agentID, int16(v.Direction)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, v *models.Vote) error {
	col, err := voterColumn(v.Voter)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE votes SET direction = $3, updated_at = now() WHERE meme_id = $1 AND %s = $2`, col)

	res, err := r.db.ExecContext(ctx, query, v.MemeID, v.Voter.ID(), int16(v.Direction))
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, memeID string, voter models.Owner) error {
	col, err := voterColumn(voter)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM votes WHERE meme_id = $1 AND %s = $2`, col)

	res, err := r.db.ExecContext(ctx, query, memeID, voter.ID())
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) Directions(ctx context.Context, voter models.Owner, memeIDs []string) (map[string]models.Direction, error) {
	result := make(map[string]models.Direction, len(memeIDs))
	if len(memeIDs) == 0 {
		return result, nil
	}

	col, err := voterColumn(voter)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT meme_id, direction FROM votes WHERE %s = $1 AND meme_id = ANY($2)`, col)

	rows, err := r.db.QueryContext(ctx, query, voter.ID(), memeIDs)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var d int16
		if err := rows.Scan(&id, &d); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result[id] = models.Direction(d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}
