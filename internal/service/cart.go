package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
	"github.com/linemk/bookstore-checkout/internal/storage"
)

// CartView — содержимое корзины с итогом по текущим ценам.
type CartView struct {
	Items []*models.CartItem `json:"items"`
	Total decimal.Decimal    `json:"total"`
}

type CartService interface {
	AddItem(ctx context.Context, userID, bookID int64, quantity int) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID int64) error
	ListItems(ctx context.Context, userID int64) (*CartView, error)
}

type cartService struct {
	log      *slog.Logger
	cartRepo storage.CartStorage
	bookRepo storage.BookStorage
}

func NewCartService(log *slog.Logger, cartRepo storage.CartStorage, bookRepo storage.BookStorage) CartService {
	return &cartService{
		log:      log,
		cartRepo: cartRepo,
		bookRepo: bookRepo,
	}
}

// AddItem кладёт книгу в корзину. Проверка остатка здесь — только подсказка
// покупателю, а не резерв: к моменту оформления остаток может измениться.
func (s *cartService) AddItem(ctx context.Context, userID, bookID int64, quantity int) (*models.CartItem, error) {
	const op = "service.CartService.AddItem"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Int64("bookID", bookID),
		slog.Int("quantity", quantity),
	)

	if quantity < 1 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidQuantity)
	}

	book, err := s.bookRepo.GetBookByID(ctx, bookID)
	if err != nil {
		if errors.Is(err, storage.ErrBookNotFound) {
			return nil, fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		logger.Error("failed to get book", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to get book: %w", op, err)
	}

	if book.Stock < quantity {
		logger.Warn("not enough stock", slog.Int("stock", book.Stock))
		return nil, fmt.Errorf("%s: %w", op, &InsufficientStockError{BookID: book.ID, Title: book.Title})
	}

	item, err := s.cartRepo.AddItem(ctx, userID, bookID, quantity, book.Stock)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientStock) {
			logger.Warn("merged quantity exceeds stock", slog.Int("stock", book.Stock))
			return nil, fmt.Errorf("%s: %w", op, &InsufficientStockError{BookID: book.ID, Title: book.Title})
		}
		logger.Error("failed to add cart item", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to add cart item: %w", op, err)
	}
	item.Book = *book

	logger.Info("book added to cart", slog.Int64("itemID", item.ID), slog.Int("cartQuantity", item.Quantity))
	return item, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	const op = "service.CartService.UpdateQuantity"
	logger := s.log.With(
		slog.String("op", op),
		slog.Int64("userID", userID),
		slog.Int64("itemID", itemID),
		slog.Int("quantity", quantity),
	)

	if quantity < 1 {
		return fmt.Errorf("%s: %w", op, ErrInvalidQuantity)
	}

	item, err := s.cartRepo.GetItem(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrCartItemNotFound) {
			return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		logger.Error("failed to get cart item", slog.Any("error", err))
		return fmt.Errorf("%s: failed to get cart item: %w", op, err)
	}

	if quantity > item.Book.Stock {
		logger.Warn("not enough stock", slog.Int("stock", item.Book.Stock))
		return fmt.Errorf("%s: %w", op, &InsufficientStockError{BookID: item.BookID, Title: item.Book.Title})
	}

	if err := s.cartRepo.UpdateQuantity(ctx, userID, itemID, quantity); err != nil {
		if errors.Is(err, storage.ErrCartItemNotFound) {
			return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		logger.Error("failed to update cart item", slog.Any("error", err))
		return fmt.Errorf("%s: failed to update cart item: %w", op, err)
	}

	logger.Info("cart item updated")
	return nil
}

func (s *cartService) RemoveItem(ctx context.Context, userID, itemID int64) error {
	const op = "service.CartService.RemoveItem"
	logger := s.log.With(slog.String("op", op), slog.Int64("userID", userID), slog.Int64("itemID", itemID))

	if err := s.cartRepo.RemoveItem(ctx, userID, itemID); err != nil {
		if errors.Is(err, storage.ErrCartItemNotFound) {
			return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		}
		logger.Error("failed to remove cart item", slog.Any("error", err))
		return fmt.Errorf("%s: failed to remove cart item: %w", op, err)
	}

	logger.Info("cart item removed")
	return nil
}

func (s *cartService) ListItems(ctx context.Context, userID int64) (*CartView, error) {
	const op = "service.CartService.ListItems"

	items, err := s.cartRepo.ListItems(ctx, userID)
	if err != nil {
		s.log.Error("failed to list cart items", slog.String("op", op), slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to list cart items: %w", op, err)
	}

	view := &CartView{Items: items, Total: decimal.Zero}
	if view.Items == nil {
		view.Items = []*models.CartItem{}
	}
	for _, item := range items {
		view.Total = view.Total.Add(item.Subtotal())
	}
	return view, nil
}
