package repomanager

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/blocklist"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound either to the shared handle
// returned by DB or to the transaction handed to a WithTx callback.
type RepositoryManager interface {
	RunMigrations(ctx context.Context) error
	WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error
	DB() dbx.DBTX
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Blocklist(db dbx.DBTX) blocklist.Repository
	Ping(ctx context.Context) error
}
