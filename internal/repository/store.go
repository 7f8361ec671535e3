package repository

import (
	"context"

	"merch-service/internal/domain"
)

// Store opens transaction scopes. Every Tx must end in Commit or Rollback;
// callers defer Rollback right after Begin, it is a no-op once committed.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is the write side of a checkout or restock. Implementations report
// serialization failures (deadlock, lock timeout, failed stock guard) as
// domain.ErrConflict.
type Tx interface {
	// LockProducts locks the given rows in ascending id order and returns the
	// ones that exist, keyed by id.
	LockProducts(ctx context.Context, ids []uint64) (map[uint64]domain.Product, error)
	DeductStock(ctx context.Context, productID uint64, qty int64) error
	AddStock(ctx context.Context, productID uint64, qty int64) error
	CreateOrder(ctx context.Context, o *domain.Order) error
	CreateOrderItems(ctx context.Context, items []domain.OrderItem) error
	Commit() error
	Rollback() error
}
