package http

import "merch-service/internal/domain"

type TokenRequest struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

type CartLineRequest struct {
	ProductID uint64 `json:"product_id"`
	Quantity  int64  `json:"quantity"`
}

type CheckoutRequest struct {
	Items        []CartLineRequest `json:"items"`
	ContactEmail string            `json:"contact_email" binding:"omitempty,email"`
}

func (r CheckoutRequest) toDomain() domain.CheckoutRequest {
	lines := make([]domain.CartLine, 0, len(r.Items))
	for _, it := range r.Items {
		lines = append(lines, domain.CartLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return domain.CheckoutRequest{Items: lines, ContactEmail: r.ContactEmail}
}

type CheckoutResponse struct {
	Status     string `json:"status"`
	OrderID    uint64 `json:"order_id"`
	TotalCents int64  `json:"total_cents"`
	Message    string `json:"message"`
}

type CreateProductRequest struct {
	Slug        string  `json:"slug" binding:"required"`
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	PriceCents  int64   `json:"price_cents" binding:"min=0"`
	Stock       int64   `json:"stock" binding:"min=0"`
	ImageURL    *string `json:"image_url" binding:"omitempty,url"`
}

func (r CreateProductRequest) toDomain() *domain.Product {
	return &domain.Product{
		Slug:        r.Slug,
		Title:       r.Title,
		Description: r.Description,
		PriceCents:  r.PriceCents,
		Stock:       r.Stock,
		ImageURL:    r.ImageURL,
	}
}

type RestockRequest struct {
	Quantity int64 `json:"quantity" binding:"required"`
}

// ProductResponse adds the formatted price next to the integer cents.
type ProductResponse struct {
	domain.Product
	Price string `json:"price"`
}

func newProductResponse(p domain.Product) ProductResponse {
	return ProductResponse{Product: p, Price: p.DisplayPrice()}
}

func newProductList(ps []domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(ps))
	for _, p := range ps {
		out = append(out, newProductResponse(p))
	}
	return out
}
