package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
	"github.com/linemk/bookstore-checkout/internal/storage"
)

// OrderService — чтение заказов для покупателя и администратора.
type OrderService interface {
	ListForUser(ctx context.Context, userID int64) ([]*models.Order, error)
	GetForUser(ctx context.Context, userID int64, orderNumber string) (*models.Order, error)
	GetByID(ctx context.Context, orderID int64) (*models.Order, error)
	ListAll(ctx context.Context, status models.OrderStatus, search string) ([]*models.Order, error)
}

type orderService struct {
	log       *slog.Logger
	orderRepo storage.OrderStorage
}

func NewOrderService(log *slog.Logger, orderRepo storage.OrderStorage) OrderService {
	return &orderService{log: log, orderRepo: orderRepo}
}

func (s *orderService) ListForUser(ctx context.Context, userID int64) ([]*models.Order, error) {
	const op = "service.OrderService.ListForUser"

	orders, err := s.orderRepo.GetOrdersByUserID(ctx, userID)
	if err != nil {
		s.log.Error("failed to get orders", slog.String("op", op), slog.Int64("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get orders: %w", op, err)
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}

func (s *orderService) GetForUser(ctx context.Context, userID int64, orderNumber string) (*models.Order, error) {
	const op = "service.OrderService.GetForUser"

	order, err := s.orderRepo.GetOrderByNumber(ctx, userID, orderNumber)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		s.log.Error("failed to get order", slog.String("op", op), slog.String("orderNumber", orderNumber), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	return order, nil
}

// GetByID отдаёт администратору любой заказ с позициями.
func (s *orderService) GetByID(ctx context.Context, orderID int64) (*models.Order, error) {
	const op = "service.OrderService.GetByID"

	order, err := s.orderRepo.GetOrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, storage.ErrOrderNotFound) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		s.log.Error("failed to get order", slog.String("op", op), slog.Int64("orderID", orderID), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get order: %w", op, err)
	}
	return order, nil
}

// ListAll возвращает все заказы; пустые status и search означают без фильтра.
func (s *orderService) ListAll(ctx context.Context, status models.OrderStatus, search string) ([]*models.Order, error) {
	const op = "service.OrderService.ListAll"

	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidStatus, status)
	}

	orders, err := s.orderRepo.ListOrders(ctx, status, strings.TrimSpace(search))
	if err != nil {
		s.log.Error("failed to list orders", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list orders: %w", op, err)
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	return orders, nil
}
