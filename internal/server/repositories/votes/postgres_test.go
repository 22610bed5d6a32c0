package votes

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// arrayConverter lets []string through the way the pgx driver does.
type arrayConverter struct{}

func (arrayConverter) ConvertValue(v any) (driver.Value, error) {
	if s, ok := v.([]string); ok {
		return s, nil
	}
	return driver.DefaultParameterConverter.ConvertValue(v)
}

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(arrayConverter{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `SELECT direction FROM votes WHERE meme_id = \$1 AND agent_id = \$2`
	mock.ExpectQuery(q).WithArgs("m1", "a1").WillReturnRows(sqlmock.NewRows([]string{"direction"}).AddRow(-1))
	mock.ExpectQuery(q).WithArgs("m1", "a1").WillReturnError(sql.ErrNoRows)

	v, err := repo.Get(context.Background(), "m1", models.AgentOwner("a1"))
	require.NoError(t, err)
	assert.Equal(t, models.DirectionDown, v.Direction)

	_, err = repo.Get(context.Background(), "m1", models.AgentOwner("a1"))
	assert.True(t, errors.Is(err, common.ErrorNotFound))
}

func TestCreate(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	mock.ExpectExec(`INSERT INTO votes \(meme_id, user_id, agent_id, direction\) VALUES \(\$1, \$2, \$3, \$4\)`).
		WithArgs("m1", "u1", nil, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Vote{MemeID: "m1", Voter: models.UserOwner("u1"), Direction: models.DirectionUp})
	require.NoError(t, err)

	err = repo.Create(context.Background(), &models.Vote{MemeID: "m1", Direction: models.DirectionUp})
	assert.True(t, errors.Is(err, models.ErrInvalidOwner))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateAndDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	voter := models.UserOwner("u1")

	mock.ExpectExec(`UPDATE votes SET direction = \$3, updated_at = now\(\) WHERE meme_id = \$1 AND user_id = \$2`).
		WithArgs("m1", "u1", -1).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM votes WHERE meme_id = \$1 AND user_id = \$2`).
		WithArgs("m1", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM votes`).
		WithArgs("m1", "u1").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Update(context.Background(), &models.Vote{MemeID: "m1", Voter: voter, Direction: models.DirectionDown}))
	require.NoError(t, repo.Delete(context.Background(), "m1", voter))
	assert.True(t, errors.Is(repo.Delete(context.Background(), "m1", voter), common.ErrorNotFound))
}

func TestDirections(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	ids := []string{"m1", "m2", "m3"}
	mock.ExpectQuery(`SELECT meme_id, direction FROM votes WHERE agent_id = \$1 AND meme_id = ANY\(\$2\)`).
		WithArgs("a1", ids).
		WillReturnRows(sqlmock.NewRows([]string{"meme_id", "direction"}).AddRow("m1", 1).AddRow("m3", -1))

	got, err := repo.Directions(context.Background(), models.AgentOwner("a1"), ids)
	require.NoError(t, err)
	assert.Equal(t, map[string]models.Direction{"m1": models.DirectionUp, "m3": models.DirectionDown}, got)

	empty, err := repo.Directions(context.Background(), models.AgentOwner("a1"), nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
