package storage

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	ErrBookNotFound      = errors.New("book not found")
	ErrCartItemNotFound  = errors.New("cart item not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidStock      = errors.New("stock must not be negative")
	ErrOrderNumberTaken  = errors.New("order number already taken")
	ErrResourceLocked    = errors.New("resource is locked, please try again")
)

// коды ошибок postgres, которые мы различаем
const (
	pgLockNotAvailable = "55P03"
	pgCheckViolation   = "23514"
)

// translatePgError переводит известные коды postgres в ошибки пакета
func translatePgError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case pgLockNotAvailable:
		return fmt.Errorf("%w: %w", ErrResourceLocked, err)
	case pgCheckViolation:
		return fmt.Errorf("%w: %w", ErrInvalidStock, err)
	}
	return err
}
