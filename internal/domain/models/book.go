package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Book представляет книгу каталога. Метаданными владеет каталог,
// ядро оформления заказа читает их и меняет только Stock.
type Book struct {
	ID        int64           `json:"id"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Publisher string          `json:"publisher,omitempty"`
	ISBN      string          `json:"isbn,omitempty"`
	Category  string          `json:"category,omitempty"`
	Price     decimal.Decimal `json:"price"` // NUMERIC(10,2)
	Stock     int             `json:"stock"` // всегда >= 0
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
