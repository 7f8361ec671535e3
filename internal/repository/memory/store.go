// Package memory is an in-process implementation of the record store. Row
// locks are real mutexes held until Commit or Rollback, so it gives the same
// serialization guarantees as SELECT ... FOR UPDATE on a relational engine.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"merch-service/internal/domain"
	"merch-service/internal/repository"
)

type Store struct {
	mu       sync.Mutex
	products map[uint64]domain.Product
	slugs    map[string]uint64
	orders   map[uint64]domain.Order
	items    map[uint64][]domain.OrderItem
	users    map[string]domain.User
	rowLocks map[uint64]*sync.Mutex

	nextProductID uint64
	nextOrderID   uint64
	nextItemID    uint64
	nextUserID    uint64
}

func NewStore() *Store {
	return &Store{
		products: make(map[uint64]domain.Product),
		slugs:    make(map[string]uint64),
		orders:   make(map[uint64]domain.Order),
		items:    make(map[uint64][]domain.OrderItem),
		users:    make(map[string]domain.User),
		rowLocks: make(map[uint64]*sync.Mutex),
	}
}

func (s *Store) Products() repository.ProductRepository { return productView{s} }
func (s *Store) Orders() repository.OrderRepository     { return orderView{s} }
func (s *Store) Users() repository.UserRepository       { return userView{s} }

func (s *Store) rowLock(id uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.rowLocks[id] = l
	}
	return l
}

func (s *Store) Begin(ctx context.Context) (repository.Tx, error) {
	return &memTx{
		s:      s,
		held:   make(map[uint64]*sync.Mutex),
		deltas: make(map[uint64]int64),
	}, nil
}

type memTx struct {
	s      *Store
	held   map[uint64]*sync.Mutex
	deltas map[uint64]int64
	orders []domain.Order
	items  []domain.OrderItem
	done   bool
}

func (t *memTx) LockProducts(ctx context.Context, ids []uint64) (map[uint64]domain.Product, error) {
	if t.done {
		return nil, errTxDone
	}
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make(map[uint64]domain.Product, len(sorted))
	for _, id := range sorted {
		if _, ok := t.held[id]; !ok {
			l := t.s.rowLock(id)
			l.Lock()
			t.held[id] = l
		}
		t.s.mu.Lock()
		p, ok := t.s.products[id]
		t.s.mu.Unlock()
		if ok {
			p.Stock += t.deltas[id]
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) DeductStock(ctx context.Context, productID uint64, qty int64) error {
	if t.done {
		return errTxDone
	}
	if _, ok := t.held[productID]; !ok {
		return fmt.Errorf("deduct stock %d: row not locked by this transaction", productID)
	}
	t.s.mu.Lock()
	p, ok := t.s.products[productID]
	t.s.mu.Unlock()
	if !ok {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	if p.Stock+t.deltas[productID] < qty {
		return fmt.Errorf("deduct stock %d: %w", productID, domain.ErrConflict)
	}
	t.deltas[productID] -= qty
	return nil
}

func (t *memTx) AddStock(ctx context.Context, productID uint64, qty int64) error {
	if t.done {
		return errTxDone
	}
	if _, ok := t.held[productID]; !ok {
		return fmt.Errorf("add stock %d: row not locked by this transaction", productID)
	}
	t.s.mu.Lock()
	_, ok := t.s.products[productID]
	t.s.mu.Unlock()
	if !ok {
		return &domain.ProductNotFoundError{ProductID: productID}
	}
	t.deltas[productID] += qty
	return nil
}

func (t *memTx) CreateOrder(ctx context.Context, o *domain.Order) error {
	if t.done {
		return errTxDone
	}
	t.s.mu.Lock()
	t.s.nextOrderID++
	o.ID = t.s.nextOrderID
	t.s.mu.Unlock()
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	cp := *o
	cp.Items = nil
	t.orders = append(t.orders, cp)
	return nil
}

func (t *memTx) CreateOrderItems(ctx context.Context, items []domain.OrderItem) error {
	if t.done {
		return errTxDone
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for i := range items {
		if !t.hasOrder(items[i].OrderID) {
			return fmt.Errorf("create order items: order %d does not exist", items[i].OrderID)
		}
		if _, ok := t.s.products[items[i].ProductID]; !ok {
			return &domain.ProductNotFoundError{ProductID: items[i].ProductID}
		}
		t.s.nextItemID++
		items[i].ID = t.s.nextItemID
	}
	t.items = append(t.items, items...)
	return nil
}

// hasOrder must be called with s.mu held.
func (t *memTx) hasOrder(id uint64) bool {
	for _, o := range t.orders {
		if o.ID == id {
			return true
		}
	}
	_, ok := t.s.orders[id]
	return ok
}

func (t *memTx) Commit() error {
	if t.done {
		return errTxDone
	}
	defer t.release()

	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for id, d := range t.deltas {
		if t.s.products[id].Stock+d < 0 {
			return fmt.Errorf("commit: stock of product %d would go negative: %w", id, domain.ErrConflict)
		}
	}
	for id, d := range t.deltas {
		p := t.s.products[id]
		p.Stock += d
		p.UpdatedAt = time.Now().UTC()
		t.s.products[id] = p
	}
	for _, o := range t.orders {
		t.s.orders[o.ID] = o
	}
	for _, it := range t.items {
		t.s.items[it.OrderID] = append(t.s.items[it.OrderID], it)
	}
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.release()
	return nil
}

func (t *memTx) release() {
	t.done = true
	for id, l := range t.held {
		l.Unlock()
		delete(t.held, id)
	}
}

var errTxDone = errors.New("transaction already finished")

var (
	_ repository.Store = (*Store)(nil)
	_ repository.Tx    = (*memTx)(nil)
)
