package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/memeforge/internal/dbx"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/agents"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/credentials"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/memes"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/sagas"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/users"
	"github.com/dmitrijs2005/memeforge/internal/server/repositories/votes"
)

// RepositoryManager vends repositories bound to a *sql.DB or *sql.Tx, so a
// service can run several of them inside one dbx.WithTx call.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Agents(db dbx.DBTX) agents.Repository
	Credentials(db dbx.DBTX) credentials.Repository
	Memes(db dbx.DBTX) memes.Repository
	Votes(db dbx.DBTX) votes.Repository
	Sagas(db dbx.DBTX) sagas.Repository
}
