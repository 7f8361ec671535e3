package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"merch-service/internal/domain"
	"merch-service/internal/infra/cache"
	"merch-service/internal/repository"
)

const (
	cacheKeyAllProducts = "products:all"
	cacheKeyProductSlug = "product:slug:"
)

type ProductService struct {
	products repository.ProductRepository
	store    repository.Store
	ledger   *Ledger
	cache    cache.Cache
	ttl      time.Duration
	tracer   trace.Tracer
	log      zerolog.Logger
}

func NewProductService(
	products repository.ProductRepository,
	store repository.Store,
	ledger *Ledger,
	c cache.Cache,
	ttl time.Duration,
	tracer trace.Tracer,
	log zerolog.Logger,
) *ProductService {
	return &ProductService{
		products: products,
		store:    store,
		ledger:   ledger,
		cache:    c,
		ttl:      ttl,
		tracer:   tracer,
		log:      log.With().Str("component", "catalog").Logger(),
	}
}

func (s *ProductService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.list")
	defer span.End()

	var cached []domain.Product
	if s.readCache(ctx, cacheKeyAllProducts, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return cached, nil
	}

	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	s.writeCache(ctx, cacheKeyAllProducts, products)
	return products, nil
}

func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "catalog.get", trace.WithAttributes(attribute.String("product.slug", slug)))
	defer span.End()

	key := cacheKeyProductSlug + slug
	var cached domain.Product
	if s.readCache(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}

	p, err := s.products.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrProductNotFound
	}
	s.writeCache(ctx, key, p)
	return p, nil
}

func (s *ProductService) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	s.cache.Delete(ctx, cacheKeyAllProducts)
	s.log.Info().Uint64("product_id", p.ID).Str("slug", p.Slug).Msg("product created")
	return p, nil
}

// Restock runs in its own transaction, taking the same row lock a checkout
// would.
func (s *ProductService) Restock(ctx context.Context, productID uint64, qty int64) (*domain.Product, error) {
	ctx = context.WithoutCancel(ctx)
	tx, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin restock: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	p, err := s.ledger.Restock(ctx, tx, productID, qty)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit restock: %w", err)
	}

	s.cache.Delete(ctx, cacheKeyAllProducts)
	s.cache.Delete(ctx, cacheKeyProductSlug+p.Slug)
	s.log.Info().Uint64("product_id", p.ID).Int64("added", qty).Int64("stock", p.Stock).Msg("product restocked")
	return p, nil
}

func (s *ProductService) readCache(ctx context.Context, key string, dst any) bool {
	b, ok := s.cache.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(b, dst); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("discarding unreadable cache entry")
		s.cache.Delete(ctx, key)
		return false
	}
	return true
}

func (s *ProductService) writeCache(ctx context.Context, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.cache.Set(ctx, key, b, s.ttl)
}
