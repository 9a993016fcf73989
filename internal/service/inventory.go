package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/linemk/bookstore-checkout/internal/storage"
)

// InventoryService — ручное управление остатком для администратора.
type InventoryService interface {
	SetStock(ctx context.Context, bookID int64, stock int) error
}

type inventoryService struct {
	log      *slog.Logger
	bookRepo storage.BookStorage
}

func NewInventoryService(log *slog.Logger, bookRepo storage.BookStorage) InventoryService {
	return &inventoryService{log: log, bookRepo: bookRepo}
}

// SetStock перезаписывает остаток книги. Значение не согласуется с идущими
// оформлениями: если параллельно списывается остаток, одна из записей
// потеряется. Вызывать при остановленных продажах книги или с пониманием этого.
func (s *inventoryService) SetStock(ctx context.Context, bookID int64, stock int) error {
	const op = "service.InventoryService.SetStock"
	logger := s.log.With(slog.String("op", op), slog.Int64("bookID", bookID), slog.Int("stock", stock))

	if stock < 0 {
		return fmt.Errorf("%s: %w", op, ErrInvalidStock)
	}

	logger.Warn("overwriting stock outside of checkout, concurrent reservations may be lost")
	if err := s.bookRepo.SetStock(ctx, bookID, stock); err != nil {
		switch {
		case errors.Is(err, storage.ErrBookNotFound):
			return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
		case errors.Is(err, storage.ErrInvalidStock):
			return fmt.Errorf("%s: %w", op, ErrInvalidStock)
		}
		logger.Error("failed to set stock", slog.Any("error", err))
		return fmt.Errorf("%s: failed to set stock: %w", op, err)
	}

	logger.Info("stock updated")
	return nil
}
