package credentials

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/memeforge/internal/common"
	"github.com/dmitrijs2005/memeforge/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock
}

func TestUpsert_UsesOwnerColumn(t *testing.T) {
	tests := []struct {
		name  string
		owner models.Owner
		q     string
	}{
		{"user", models.UserOwner("u1"), `(?s)INSERT INTO provider_credentials \(provider, user_id,.*ON CONFLICT \(provider, user_id\) WHERE user_id IS NOT NULL`},
		{"agent", models.AgentOwner("a1"), `(?s)INSERT INTO provider_credentials \(provider, agent_id,.*ON CONFLICT \(provider, agent_id\) WHERE agent_id IS NOT NULL`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newRepoWithMock(t)
			now := time.Now()

			c := &models.Credential{
				Provider: models.ProviderHuggingFace, Owner: tt.owner,
				Ciphertext: []byte("ct"), Nonce: []byte("n"), Tag: []byte("t"), KeyVersion: 2, Hint: "...abcd",
			}
			mock.ExpectQuery(tt.q).
				WithArgs("huggingface", tt.owner.ID(), []byte("ct"), []byte("n"), []byte("t"), 2, "...abcd").
				WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

			require.NoError(t, repo.Upsert(context.Background(), c))
			assert.Equal(t, now, c.UpdatedAt)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestUpsert_InvalidOwner(t *testing.T) {
	repo, _ := newRepoWithMock(t)
	err := repo.Upsert(context.Background(), &models.Credential{Provider: models.ProviderReplicate})
	assert.True(t, errors.Is(err, models.ErrInvalidOwner))
}

func TestGet(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	owner := models.AgentOwner("a1")
	now := time.Now()

	q := `(?s)SELECT ciphertext, nonce, tag, key_version, key_hint, created_at, updated_at\s+FROM provider_credentials\s+WHERE agent_id = \$1 AND provider = \$2`
	mock.ExpectQuery(q).WithArgs("a1", "replicate").
		WillReturnRows(sqlmock.NewRows([]string{"ciphertext", "nonce", "tag", "key_version", "key_hint", "created_at", "updated_at"}).
			AddRow([]byte("ct"), []byte("n"), []byte("t"), 1, "...wxyz", now, now))
	mock.ExpectQuery(q).WithArgs("a1", "huggingface").WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(q).WithArgs("a1", "huggingface").WillReturnError(errors.New("boom"))

	c, err := repo.Get(context.Background(), owner, models.ProviderReplicate)
	require.NoError(t, err)
	assert.Equal(t, []byte("ct"), c.Ciphertext)
	assert.Equal(t, owner, c.Owner)
	assert.Equal(t, 1, c.KeyVersion)

	_, err = repo.Get(context.Background(), owner, models.ProviderHuggingFace)
	assert.True(t, errors.Is(err, common.ErrorNotFound))

	_, err = repo.Get(context.Background(), owner, models.ProviderHuggingFace)
	assert.ErrorContains(t, err, "db error: boom")
}

func TestList(t *testing.T) {
	repo, mock := newRepoWithMock(t)
	now := time.Now()

	mock.ExpectQuery(`(?s)SELECT provider, key_version, key_hint.*WHERE user_id = \$1\s+ORDER BY provider`).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"provider", "key_version", "key_hint", "created_at", "updated_at"}).
			AddRow("huggingface", 1, "...1234", now, now).
			AddRow("replicate", 2, "...****", now, now))

	got, err := repo.List(context.Background(), models.UserOwner("u1"))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, models.ProviderHuggingFace, got[0].Provider)
	assert.Equal(t, "...****", got[1].Hint)
}

func TestDelete(t *testing.T) {
	repo, mock := newRepoWithMock(t)

	q := `DELETE FROM provider_credentials WHERE user_id = \$1 AND provider = \$2`
	mock.ExpectExec(q).WithArgs("u1", "huggingface").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("u1", "huggingface").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(q).WithArgs("u1", "huggingface").WillReturnError(errors.New("boom"))

	found, err := repo.Delete(context.Background(), models.UserOwner("u1"), models.ProviderHuggingFace)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.Delete(context.Background(), models.UserOwner("u1"), models.ProviderHuggingFace)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = repo.Delete(context.Background(), models.UserOwner("u1"), models.ProviderHuggingFace)
	assert.Error(t, err)
}
