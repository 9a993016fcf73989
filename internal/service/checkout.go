package service

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
	"github.com/linemk/bookstore-checkout/internal/storage"
)

const defaultOrderNumberAttempts = 5

// OrderNumberGenerator выдаёт номера заказов. Реализация — orderno.Generator.
type OrderNumberGenerator interface {
	Next() (string, error)
}

type CheckoutService interface {
	// Checkout превращает корзину пользователя в заказ. Непустой idempotencyKey
	// защищает от повторной отправки: тот же ключ вернёт тот же заказ.
	Checkout(ctx context.Context, userID int64, idempotencyKey string) (*models.Order, error)
}

type checkoutService struct {
	log         *slog.Logger
	db          *sql.DB
	cartRepo    storage.CartStorage
	bookRepo    storage.BookStorage
	orderRepo   storage.OrderStorage
	idempotency storage.IdempotencyStorage
	numbers     OrderNumberGenerator
	attempts    int
}

// NewCheckoutService создаёт сервис оформления. idempotency может быть nil,
// тогда ключи идемпотентности игнорируются.
func NewCheckoutService(
	log *slog.Logger,
	db *sql.DB,
	cartRepo storage.CartStorage,
	bookRepo storage.BookStorage,
	orderRepo storage.OrderStorage,
	numbers OrderNumberGenerator,
	orderNumberAttempts int,
	idempotency storage.IdempotencyStorage,
) CheckoutService {
	if orderNumberAttempts <= 0 {
		orderNumberAttempts = defaultOrderNumberAttempts
	}
	return &checkoutService{
		log:         log,
		db:          db,
		cartRepo:    cartRepo,
		bookRepo:    bookRepo,
		orderRepo:   orderRepo,
		idempotency: idempotency,
		numbers:     numbers,
		attempts:    orderNumberAttempts,
	}
}

func (s *checkoutService) Checkout(ctx context.Context, userID int64, idempotencyKey string) (*models.Order, error) {
	const op = "service.CheckoutService.Checkout"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID))

	if idempotencyKey == "" || s.idempotency == nil {
		return s.checkout(ctx, logger, userID)
	}
	logger = logger.With(slog.String("idempotencyKey", idempotencyKey))

	owner, number, err := s.idempotency.Acquire(ctx, userID, idempotencyKey)
	if err != nil {
		if errors.Is(err, storage.ErrIdempotencyKeyBusy) {
			logger.Warn("checkout already in progress")
			return nil, fmt.Errorf("%s: %w", op, ErrCheckoutInProgress)
		}
		logger.Error("failed to acquire idempotency key", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to acquire idempotency key: %w", op, err)
	}

	if number != "" {
		logger.Info("replaying completed checkout", slog.String("orderNumber", number))
		order, err := s.orderRepo.GetOrderByNumber(ctx, userID, number)
		if err != nil {
			logger.Error("failed to load replayed order", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to load order %s: %w", op, number, err)
		}
		return order, nil
	}

	order, err := s.checkout(ctx, logger, userID)
	if err != nil {
		// контекст запроса может быть уже отменён, ключ всё равно надо отпустить
		if rlErr := s.idempotency.Release(context.WithoutCancel(ctx), userID, idempotencyKey, owner); rlErr != nil {
			logger.Error("failed to release idempotency key", slog.Any("error", rlErr))
		}
		return nil, err
	}

	if err := s.idempotency.Complete(context.WithoutCancel(ctx), userID, idempotencyKey, owner, order.OrderNumber); err != nil {
		// заказ уже зафиксирован, повтор с этим ключом просто создаст новый
		logger.Error("failed to complete idempotency key", slog.Any("error", err))
	}
	return order, nil
}

// checkout — одна транзакция: чтение корзины, заказ, позиции, списание, очистка корзины.
// Любая ошибка откатывает всё целиком.
func (s *checkoutService) checkout(ctx context.Context, logger *slog.Logger, userID int64) (*models.Order, error) {
	const op = "service.CheckoutService.Checkout"
	logger.Info("starting checkout transaction")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		logger.Error("failed to begin transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer rollback(logger, tx)

	// Блокируем строки корзины, чтобы её нельзя было изменить во время оформления
	items, err := s.cartRepo.LockItemsTx(ctx, tx, userID)
	if err != nil {
		logger.Error("failed to load cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to load cart: %w", op, err)
	}
	if len(items) == 0 {
		logger.Warn("cart is empty")
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyCart)
	}

	// Предварительная проверка. Решающей является проверка в Reserve ниже
	for _, item := range items {
		if item.Book.Stock < item.Quantity {
			logger.Warn("insufficient stock",
				slog.Int64("bookID", item.BookID),
				slog.Int("stock", item.Book.Stock),
				slog.Int("quantity", item.Quantity),
			)
			return nil, fmt.Errorf("%s: %w", op, &InsufficientStockError{BookID: item.BookID, Title: item.Book.Title})
		}
	}

	// Конкурирующие оформления берут блокировки строк books в одном порядке
	slices.SortFunc(items, func(a, b *models.CartItem) int { return cmp.Compare(a.BookID, b.BookID) })

	order := &models.Order{
		UserID:      userID,
		Status:      models.OrderStatusPending,
		TotalAmount: decimal.Zero,
	}
	orderItems := make([]models.OrderItem, 0, len(items))
	itemIDs := make([]int64, 0, len(items))
	for _, item := range items {
		orderItem := models.OrderItem{
			BookID:    item.BookID,
			BookTitle: item.Book.Title,
			Quantity:  item.Quantity,
			Price:     item.Book.Price,
			Subtotal:  item.Subtotal(),
		}
		order.TotalAmount = order.TotalAmount.Add(orderItem.Subtotal)
		orderItems = append(orderItems, orderItem)
		itemIDs = append(itemIDs, item.ID)
	}

	if err := s.createOrder(ctx, logger, tx, order); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger = logger.With(slog.String("orderNumber", order.OrderNumber))

	for i := range orderItems {
		item := &orderItems[i]
		item.OrderID = order.ID

		if err := s.bookRepo.Reserve(ctx, tx, item.BookID, item.Quantity); err != nil {
			if errors.Is(err, storage.ErrInsufficientStock) {
				logger.Warn("stock changed since pre-check", slog.Int64("bookID", item.BookID))
				return nil, fmt.Errorf("%s: %w", op, &InsufficientStockError{BookID: item.BookID, Title: item.BookTitle})
			}
			logger.Error("failed to reserve stock", slog.Int64("bookID", item.BookID), slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to reserve stock: %w", op, err)
		}

		if err := s.orderRepo.CreateOrderItem(ctx, tx, item); err != nil {
			logger.Error("failed to create order item", slog.Any("error", err))
			return nil, fmt.Errorf("%s: failed to create order item: %w", op, err)
		}
	}

	if err := s.cartRepo.DeleteItemsTx(ctx, tx, userID, itemIDs); err != nil {
		logger.Error("failed to clear cart", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to clear cart: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		logger.Error("failed to commit transaction", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}

	order.Items = orderItems
	logger.Info("checkout completed successfully", slog.String("total", order.TotalAmount.StringFixed(2)))
	return order, nil
}

// createOrder вставляет заказ, при занятом номере генерирует новый.
func (s *checkoutService) createOrder(ctx context.Context, logger *slog.Logger, tx *sql.Tx, order *models.Order) error {
	for attempt := 1; attempt <= s.attempts; attempt++ {
		number, err := s.numbers.Next()
		if err != nil {
			logger.Error("failed to generate order number", slog.Any("error", err))
			return fmt.Errorf("failed to generate order number: %w", err)
		}
		order.OrderNumber = number

		err = s.orderRepo.CreateOrder(ctx, tx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, storage.ErrOrderNumberTaken) {
			logger.Error("failed to create order", slog.Any("error", err))
			return fmt.Errorf("failed to create order: %w", err)
		}
		logger.Warn("order number collision", slog.String("orderNumber", number), slog.Int("attempt", attempt))
	}

	logger.Error("order number attempts exhausted", slog.Int("attempts", s.attempts))
	return ErrOrderNumberCollision
}

func rollback(logger *slog.Logger, tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		logger.Error("transaction rollback failed", slog.Any("error", err))
	}
}
