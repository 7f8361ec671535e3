package repository

import (
	"context"

	"merch-service/internal/domain"
)

// FindByID returns (nil, nil) when the order does not exist.
type OrderRepository interface {
	FindByID(ctx context.Context, id uint64) (*domain.Order, error)
}

type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	FindBySlug(ctx context.Context, slug string) (*domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	FindByUsername(ctx context.Context, username string) (*domain.User, error)
}
