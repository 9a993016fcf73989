package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInvalidStock         = errors.New("stock must not be negative")
	ErrNotFound             = errors.New("not found")
	ErrInvalidStatus        = errors.New("invalid order status")
	ErrInvalidTransition    = errors.New("order status transition is not allowed")
	ErrCheckoutInProgress   = errors.New("checkout with this idempotency key is already in progress")
	ErrOrderNumberCollision = errors.New("failed to generate a unique order number")
)

// InsufficientStockError сообщает, какой книги не хватило.
// errors.Is(err, ErrInsufficientStock) для неё истинно.
type InsufficientStockError struct {
	BookID int64
	Title  string
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q", e.Title)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}
