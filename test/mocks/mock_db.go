package mocks

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// MockDB is a mock implementation of DBPort for testing. WithTransaction
// invokes the callback with a nil transaction; the repository mocks ignore
// the executor argument entirely.
type MockDB struct {
	// WithTransactionErr, when set, fails every transaction without running
	// the callback
	WithTransactionErr error
}

// NewMockDB creates a new mock database port
func NewMockDB() *MockDB {
	return &MockDB{}
}

func (m *MockDB) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDB) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	if m.WithTransactionErr != nil {
		return m.WithTransactionErr
	}
	return fn(ctx, nil)
}
