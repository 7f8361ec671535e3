package gormdb

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"merch-service/internal/domain"
	"merch-service/internal/repository"
)

type store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) repository.Store {
	return &store{db: db}
}

func (s *store) Begin(ctx context.Context) (repository.Tx, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, classify(tx.Error)
	}
	return &gormTx{tx: tx}, nil
}

type gormTx struct {
	tx   *gorm.DB
	done bool
}

// LockProducts issues one SELECT ... FOR UPDATE per id. ids arrive sorted,
// so every transaction acquires row locks in the same order.
func (t *gormTx) LockProducts(ctx context.Context, ids []uint64) (map[uint64]domain.Product, error) {
	out := make(map[uint64]domain.Product, len(ids))
	for _, id := range ids {
		var p domain.Product
		res := t.tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			Find(&p)
		if res.Error != nil {
			return nil, fmt.Errorf("lock product %d: %w", id, classify(res.Error))
		}
		if res.RowsAffected == 0 {
			continue
		}
		out[id] = p
	}
	return out, nil
}

// DeductStock is guarded by stock >= qty; a zero row count means another
// writer got there first.
func (t *gormTx) DeductStock(ctx context.Context, productID uint64, qty int64) error {
	res := t.tx.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ? AND stock >= ?", productID, qty).
		Update("stock", gorm.Expr("stock - ?", qty))
	if res.Error != nil {
		return fmt.Errorf("deduct stock %d: %w", productID, classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deduct stock %d: %w", productID, domain.ErrConflict)
	}
	return nil
}

func (t *gormTx) AddStock(ctx context.Context, productID uint64, qty int64) error {
	res := t.tx.WithContext(ctx).
		Model(&domain.Product{}).
		Where("id = ?", productID).
		Update("stock", gorm.Expr("stock + ?", qty))
	if res.Error != nil {
		return fmt.Errorf("add stock %d: %w", productID, classify(res.Error))
	}
	if res.RowsAffected == 0 {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	return nil
}

func (t *gormTx) CreateOrder(ctx context.Context, o *domain.Order) error {
	if err := t.tx.WithContext(ctx).Omit(clause.Associations).Create(o).Error; err != nil {
		return fmt.Errorf("create order: %w", classify(err))
	}
	if o.ID == 0 {
		return errors.New("create order: id was not assigned")
	}
	return nil
}

func (t *gormTx) CreateOrderItems(ctx context.Context, items []domain.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := t.tx.WithContext(ctx).Omit(clause.Associations).Create(&items).Error; err != nil {
		return fmt.Errorf("create order items: %w", classify(err))
	}
	return nil
}

func (t *gormTx) Commit() error {
	if t.done {
		return errors.New("transaction already finished")
	}
	t.done = true
	return classify(t.tx.Commit().Error)
}

func (t *gormTx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback().Error
}

var (
	_ repository.Store = (*store)(nil)
	_ repository.Tx    = (*gormTx)(nil)
)
