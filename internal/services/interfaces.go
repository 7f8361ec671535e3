package services

import (
	"context"

	"merch-service/internal/domain"
)

type CatalogServiceInterface interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	Restock(ctx context.Context, productID uint64, qty int64) (*domain.Product, error)
}

type CheckoutServiceInterface interface {
	Checkout(ctx context.Context, req domain.CheckoutRequest, principal *domain.Principal) (*domain.CheckoutResult, error)
	GetOrderById(ctx context.Context, id uint64) (*domain.Order, error)
}

type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (string, error)
	Resolve(ctx context.Context, token string) (*domain.Principal, error)
}

var (
	_ CatalogServiceInterface  = (*ProductService)(nil)
	_ CheckoutServiceInterface = (*OrderService)(nil)
	_ AuthServiceInterface     = (*AuthService)(nil)
)
