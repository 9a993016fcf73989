package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
)

// ReportStorage — запросы для админского отчёта, только чтение.
type ReportStorage interface {
	// MonthlyReport считает за полуинтервал [from, to) число всех заказов,
	// а выручку и проданные книги — без отменённых заказов.
	MonthlyReport(ctx context.Context, from, to time.Time) (*models.MonthlyReport, error)
}

type reportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) ReportStorage {
	return &reportRepository{db: db}
}

func (r *reportRepository) MonthlyReport(ctx context.Context, from, to time.Time) (*models.MonthlyReport, error) {
	report := &models.MonthlyReport{Month: from.Format("2006-01")}

	ordersQuery := `
		SELECT COALESCE(SUM(total_amount) FILTER (WHERE status <> $3), 0), COUNT(*)
		FROM orders
		WHERE order_date >= $1 AND order_date < $2`
	err := r.db.QueryRowContext(ctx, ordersQuery, from, to, models.OrderStatusCancelled).
		Scan(&report.Revenue, &report.Transactions)
	if err != nil {
		return nil, fmt.Errorf("failed to query revenue: %w", err)
	}

	itemsQuery := `
		SELECT COALESCE(SUM(oi.quantity), 0)
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.order_date >= $1 AND o.order_date < $2 AND o.status <> $3`
	err = r.db.QueryRowContext(ctx, itemsQuery, from, to, models.OrderStatusCancelled).Scan(&report.BooksSold)
	if err != nil {
		return nil, fmt.Errorf("failed to query books sold: %w", err)
	}

	return report, nil
}
