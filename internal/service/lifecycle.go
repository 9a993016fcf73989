package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
	"github.com/linemk/bookstore-checkout/internal/storage"
)

// разрешённые переходы; переход в тот же статус всегда допустим
var transitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusPending: {models.OrderStatusPaid, models.OrderStatusCancelled},
	models.OrderStatusPaid:    {models.OrderStatusCompleted, models.OrderStatusCancelled},
}

// CanTransition сообщает, можно ли перевести заказ из from в to.
func CanTransition(from, to models.OrderStatus) bool {
	return from == to || slices.Contains(transitions[from], to)
}

// OrderLifecycleService меняет статус заказа по команде администратора.
type OrderLifecycleService interface {
	SetStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error)
}

type orderLifecycleService struct {
	log       *slog.Logger
	db        *sql.DB
	orderRepo storage.OrderStorage
	bookRepo  storage.BookStorage
	now       func() time.Time
}

func NewOrderLifecycleService(log *slog.Logger, db *sql.DB, orderRepo storage.OrderStorage, bookRepo storage.BookStorage) OrderLifecycleService {
	return &orderLifecycleService{
		log:       log,
		db:        db,
		orderRepo: orderRepo,
		bookRepo:  bookRepo,
		now:       time.Now,
	}
}

// SetStatus применяет переход статуса.
// Первый переход в Paid проставляет paid_at, повторный его не трогает.
// Переход в Cancelled возвращает количество всех позиций заказа на склад
// в той же транзакции.
func (s *orderLifecycleService) SetStatus(ctx context.Context, orderID int64, status models.OrderStatus) (*models.Order, error) {
	const op = "service.OrderLifecycleService.SetStatus"
	logger := s.log.With(slog.String("op", op), slog.Int64("orderID", orderID), slog.String("status", string(status)))

	if !status.Valid() {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidStatus, status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer rollback(logger, tx)

	order, err := s.orderRepo.LockOrderByIDTx(ctx, tx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		logger.Error("failed to lock order", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to lock order: %w", op, err)
	}

	if !CanTransition(order.Status, status) {
		logger.Warn("transition rejected", slog.String("from", string(order.Status)))
		return nil, fmt.Errorf("%s: %w: %s -> %s", op, ErrInvalidTransition, order.Status, status)
	}

	paidAt := order.PaidAt
	if status == models.OrderStatusPaid && paidAt == nil {
		now := s.now().UTC()
		paidAt = &now
	}

	items, err := s.orderRepo.GetOrderItemsTx(ctx, tx, order.ID)
	if err != nil {
		logger.Error("failed to load order items", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load order items: %w", op, err)
	}
	order.Items = items

	if status == order.Status && paidAt == order.PaidAt {
		logger.Info("status unchanged")
		return order, nil
	}

	if status == models.OrderStatusCancelled {
		if err := s.releaseStock(ctx, logger, tx, items); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, tx, order.ID, status, paidAt); err != nil {
		logger.Error("failed to update order status", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to update order status: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	logger.Info("order status updated", slog.String("from", string(order.Status)))
	order.Status = status
	order.PaidAt = paidAt
	return order, nil
}

func (s *orderLifecycleService) releaseStock(ctx context.Context, logger *slog.Logger, tx *sql.Tx, items []models.OrderItem) error {
	for _, item := range items {
		if err := s.bookRepo.Release(ctx, tx, item.BookID, item.Quantity); err != nil {
			logger.Error("failed to release stock", slog.Int64("bookID", item.BookID), slog.Any("error", err))
			return fmt.Errorf("failed to release stock for book %d: %w", item.BookID, err)
		}
	}
	logger.Info("stock released", slog.Int("items", len(items)))
	return nil
}
