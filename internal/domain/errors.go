package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrConflict           = errors.New("concurrent update conflict")
	ErrOrderNotFound      = errors.New("order not found")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidCredentials = errors.New("incorrect username or password")
	ErrSlugTaken          = errors.New("slug already exists")
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidProduct     = errors.New("invalid product")
)

// InsufficientStockError is a business rejection carrying the stock that was
// left when the line was evaluated.
type InsufficientStockError struct {
	ProductID uint64
	Title     string
	Requested int64
	Available int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for: %s. Remaining: %d", e.Title, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// ProductNotFoundError names the missing product id.
type ProductNotFoundError struct {
	ProductID uint64
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product id %d does not exist", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool {
	return target == ErrProductNotFound
}

func invalidProduct(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidProduct, msg)
}
