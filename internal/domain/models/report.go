package models

import "github.com/shopspring/decimal"

// MonthlyReport — агрегаты для админского отчёта за месяц.
// Отменённые заказы не учитываются.
type MonthlyReport struct {
	Month        string          `json:"month"` // YYYY-MM
	Revenue      decimal.Decimal `json:"revenue"`
	BooksSold    int             `json:"books_sold"`
	Transactions int             `json:"transactions"`
}
