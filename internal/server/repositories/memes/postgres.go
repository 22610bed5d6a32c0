package memes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
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

const memeColumns = `id, image_url, caption, prompt_used, model_used, score, hot_score, created_at, user_id, agent_id`

func scanMeme(row interface{ Scan(...any) error }) (*models.Meme, error) {
	m := &models.Meme{}
	var userID, agentID sql.NullString
	if err := row.Scan(&m.ID, &m.ImageURL, &m.Caption, &m.PromptUsed, &m.ModelUsed,
		&m.Score, &m.HotScore, &m.CreatedAt, &userID, &agentID); err != nil {
		return nil, err
	}
	// Owner may be absent after the owning account is removed.
	if owner, err := models.OwnerFromColumns(userID, agentID); err == nil {
		m.Owner = owner
	}
	return m, nil
}

func (r *PostgresRepository) Create(ctx context.Context, m *models.Meme) error {
	userID, agentID := m.Owner.Columns()

	query := `
		INSERT INTO memes (id, image_url, caption, prompt_used, model_used, score, hot_score, user_id, agent_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`

	err := r.db.QueryRowContext(ctx, query,
		m.ID, m.ImageURL, m.Caption, m.PromptUsed, m.ModelUsed, m.Score, m.HotScore, userID, agentID,
	).Scan(&m.CreatedAt)
	if err != nil {
		if dbx.IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: meme owner %s no longer exists", common.ErrUnauthorized, m.Owner)
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.Meme, error) {
	query := `SELECT ` + memeColumns + ` FROM memes WHERE id = $1`

	m, err := scanMeme(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return m, nil
}

func (r *PostgresRepository) LockScore(ctx context.Context, id string) (int, time.Time, error) {
	query := `SELECT score, created_at FROM memes WHERE id = $1 FOR UPDATE`

	var score int
	var createdAt time.Time
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&score, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, time.Time{}, common.ErrorNotFound
		}
		return 0, time.Time{}, fmt.Errorf("db error: %w", err)
	}
	return score, createdAt, nil
}

func (r *PostgresRepository) AddScore(ctx context.Context, id string, delta int, hotScore float64) (int, error) {
	query := `UPDATE memes SET score = score + $2, hot_score = $3 WHERE id = $1 RETURNING score`

	var score int
	if err := r.db.QueryRowContext(ctx, query, id, delta, hotScore).Scan(&score); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrorNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return score, nil
}

// orderSpec maps a sort to its ORDER BY and the keyset tuple compared
// against the cursor row.
func orderSpec(s Sort, after *models.Meme) (order string, key string, value any, err error) {
	var v any
	switch s {
	case SortNew:
		if after != nil {
			v = after.CreatedAt
		}
		return "created_at DESC, id DESC", "created_at", v, nil
	case SortTop:
		if after != nil {
			v = after.Score
		}
		return "score DESC, id DESC", "score", v, nil
	case SortHot:
		if after != nil {
			v = after.HotScore
		}
		return "hot_score DESC, id DESC", "hot_score", v, nil
	}
	return "", "", nil, fmt.Errorf("%w: unknown sort %q", common.ErrValidation, s)
}

func (r *PostgresRepository) List(ctx context.Context, q ListQuery) ([]*models.Meme, error) {
	order, key, keyValue, err := orderSpec(q.Sort, q.After)
	if err != nil {
		return nil, err
	}

	var (
		where []string
		args  []any
	)
	if q.Since != nil {
		args = append(args, *q.Since)
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if q.After != nil {
		args = append(args, keyValue, q.After.ID)
		where = append(where, fmt.Sprintf("(%s, id) < ($%d, $%d)", key, len(args)-1, len(args)))
	}
	args = append(args, q.Limit)

	var sb strings.Builder
	sb.WriteString(`SELECT ` + memeColumns + ` FROM memes`)
	if len(where) > 0 {
		sb.WriteString(` WHERE ` + strings.Join(where, " AND "))
	}
	fmt.Fprintf(&sb, ` ORDER BY %s LIMIT $%d`, order, len(args))

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Meme
	for rows.Next() {
		m, err := scanMeme(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return result, nil
}
