package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID          uint64    `json:"id" gorm:"primaryKey;autoIncrement"`
	Slug        string    `json:"slug" gorm:"type:varchar(191);uniqueIndex;not null"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description string    `json:"description" gorm:"type:text"`
	PriceCents  int64     `json:"price_cents" gorm:"not null;default:0"`
	Stock       int64     `json:"stock" gorm:"not null;default:0"`
	ImageURL    *string   `json:"image_url,omitempty" gorm:"type:varchar(512)"`
	CreatedAt   time.Time `json:"-" gorm:"autoCreateTime"`
	UpdatedAt   time.Time `json:"-" gorm:"autoUpdateTime"`
}

// DisplayPrice renders PriceCents in major units, e.g. 89000 -> "890.00".
func (p Product) DisplayPrice() string {
	return decimal.New(p.PriceCents, -2).StringFixed(2)
}

// Validate checks the fields an admin must supply when creating a product.
func (p Product) Validate() error {
	switch {
	case strings.TrimSpace(p.Slug) == "":
		return invalidProduct("slug is required")
	case strings.TrimSpace(p.Title) == "":
		return invalidProduct("title is required")
	case p.PriceCents < 0:
		return invalidProduct("price_cents must be non-negative")
	case p.Stock < 0:
		return invalidProduct("stock must be non-negative")
	}
	return nil
}
