package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor. Every money-moving operation
// runs its journal appends and wallet balance writes inside a single
// transaction handed out here, so they commit or roll back as one unit.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a Transactor over the shared connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin opens a transaction spanning the wallet, ledger and audit tables.
// Read committed suffices: row contention is resolved by the version-gated
// wallet updates and the guarded entry status flips, not by isolation level.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return t.pool.Begin(ctx)
}
