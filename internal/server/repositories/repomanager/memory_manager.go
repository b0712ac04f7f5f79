package repomanager

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/authkeeper/internal/dbx"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/blocklist"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
)

// MemoryRepositoryManager keeps all state in process memory. It backs the
// server when no database DSN is configured and the service tests.
//
// Transactions are serialized but not rolled back: a failing callback leaves
// whatever it already wrote.
type MemoryRepositoryManager struct {
	txMu sync.Mutex

	users     *users.MemoryRepository
	tokens    *refreshtokens.MemoryRepository
	blocklist *blocklist.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		users:     users.NewMemoryRepository(),
		tokens:    refreshtokens.NewMemoryRepository(),
		blocklist: blocklist.NewMemoryRepository(),
	}
}

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Ping(context.Context) error { return nil }

func (m *MemoryRepositoryManager) DB() dbx.DBTX { return nil }

func (m *MemoryRepositoryManager) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, nil)
}

func (m *MemoryRepositoryManager) Users(dbx.DBTX) users.Repository { return m.users }

func (m *MemoryRepositoryManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository { return m.tokens }

func (m *MemoryRepositoryManager) Blocklist(dbx.DBTX) blocklist.Repository { return m.blocklist }

// UserStore exposes the concrete users repository for admin tweaks such as
// deactivating an account.
func (m *MemoryRepositoryManager) UserStore() *users.MemoryRepository { return m.users }
