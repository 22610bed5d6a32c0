package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/agents"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/memes"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/sagas"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/users"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/votes"
	"github.com/pressly/goose/v3"
)

func newDB(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestFactories_ReturnConcreteRepos(t *testing.T) {
	db := newDB(t)
	m := NewPostgresRepositoryManager()

	var _ users.Repository = m.Users(db)
	var _ agents.Repository = m.Agents(db)
	var _ credentials.Repository = m.Credentials(db)
	var _ memes.Repository = m.Memes(db)
	var _ votes.Repository = m.Votes(db)
	var _ sagas.Repository = m.Sagas(db)

	if m.Memes(db) == nil || m.Votes(db) == nil || m.Sagas(db) == nil {
		t.Fatal("nil repository")
	}
}

func TestRunMigrations_Success(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(context.Background(), db); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	db := newDB(t)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	m := &PostgresRepositoryManager{}
	if err := m.RunMigrations(context.Background(), db); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}
