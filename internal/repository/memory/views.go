package memory

import (
	"context"
	"sort"
	"time"

	"merch-service/internal/domain"
	"merch-service/internal/repository"
)

type productView struct{ s *Store }

func (v productView) Create(ctx context.Context, p *domain.Product) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, taken := v.s.slugs[p.Slug]; taken {
		return domain.ErrSlugTaken
	}
	v.s.nextProductID++
	p.ID = v.s.nextProductID
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	v.s.products[p.ID] = *p
	v.s.slugs[p.Slug] = p.ID
	return nil
}

func (v productView) FindBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	id, ok := v.s.slugs[slug]
	if !ok {
		return nil, nil
	}
	p := v.s.products[id]
	return &p, nil
}

func (v productView) List(ctx context.Context) ([]domain.Product, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	out := make([]domain.Product, 0, len(v.s.products))
	for _, p := range v.s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type orderView struct{ s *Store }

func (v orderView) FindByID(ctx context.Context, id uint64) (*domain.Order, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	o, ok := v.s.orders[id]
	if !ok {
		return nil, nil
	}
	o.Items = append([]domain.OrderItem(nil), v.s.items[id]...)
	return &o, nil
}

type userView struct{ s *Store }

func (v userView) Create(ctx context.Context, u *domain.User) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if _, taken := v.s.users[u.Username]; taken {
		return domain.ErrUserExists
	}
	v.s.nextUserID++
	u.ID = v.s.nextUserID
	u.CreatedAt = time.Now().UTC()
	v.s.users[u.Username] = *u
	return nil
}

func (v userView) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	u, ok := v.s.users[username]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

var (
	_ repository.ProductRepository = productView{}
	_ repository.OrderRepository   = orderView{}
	_ repository.UserRepository    = userView{}
)
