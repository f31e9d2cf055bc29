package ports

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBTX is the executor repositories run queries against. Both *pgxpool.Pool
// and pgx.Tx satisfy it, so the same repository methods work inside and
// outside a transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, arguments ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, arguments ...interface{}) pgx.Row
}

// DBPort provides pool access and transaction scoping. Services use
// WithTransaction when a state flip and its ledger entry must commit together.
type DBPort interface {
	GetDB() *pgxpool.Pool

	// WithTransaction executes fn within a write transaction; the transaction
	// is passed explicitly so repositories receive it as their DBTX
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error
}
