package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem — позиция корзины пользователя. Пара (UserID, BookID) уникальна.
// Корзина ничего не резервирует: остаток может измениться до оформления.
type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	BookID    int64     `json:"book_id"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Book заполняется через JOIN с таблицей books (живые цена и остаток)
	Book Book `json:"book"`
}

// Subtotal считает сумму позиции по текущей цене книги.
func (c CartItem) Subtotal() decimal.Decimal {
	return c.Book.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}
