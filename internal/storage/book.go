package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
)

// BookStorage — складской учёт по книгам. Это единственное место,
// где меняется books.stock.
type BookStorage interface {
	// GetBookByID возвращает книгу каталога (только чтение).
	GetBookByID(ctx context.Context, id int64) (*models.Book, error)
	// Reserve атомарно списывает quantity, если остатка хватает.
	Reserve(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) error
	// Release возвращает quantity на склад.
	Release(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) error
	// SetStock перезаписывает остаток без какой-либо проверки резервов.
	SetStock(ctx context.Context, bookID int64, stock int) error
}

type bookRepository struct {
	db *sql.DB
}

func NewBookRepository(db *sql.DB) BookStorage {
	return &bookRepository{db: db}
}

func (r *bookRepository) GetBookByID(ctx context.Context, id int64) (*models.Book, error) {
	book := &models.Book{}
	query := `SELECT id, title, author, publisher, isbn, category, price, stock, created_at, updated_at
	          FROM books WHERE id = $1`
	row := r.db.QueryRowContext(ctx, query, id)
	err := row.Scan(&book.ID, &book.Title, &book.Author, &book.Publisher, &book.ISBN, &book.Category,
		&book.Price, &book.Stock, &book.CreatedAt, &book.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return book, nil
}

// Reserve — compare-and-decrement одним оператором. Проверка остатка и
// списание происходят под блокировкой строки, которую берёт UPDATE,
// поэтому две конкурирующие транзакции не могут обе пройти при stock=1.
func (r *bookRepository) Reserve(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reserve: quantity must be positive, got %d", quantity)
	}
	query := `UPDATE books SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1`
	res, err := tx.ExecContext(ctx, query, quantity, bookID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", translatePgError(err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *bookRepository) Release(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("release: quantity must be positive, got %d", quantity)
	}
	query := `UPDATE books SET stock = stock + $1, updated_at = NOW() WHERE id = $2`
	res, err := tx.ExecContext(ctx, query, quantity, bookID)
	if err != nil {
		return fmt.Errorf("failed to release stock: %w", err)
	}
	return expectAffected(res, ErrBookNotFound)
}

// SetStock — ручная правка остатка администратором. Не атомарна относительно
// идущих оформлений: значение, списанное параллельной транзакцией, будет перезаписано.
func (r *bookRepository) SetStock(ctx context.Context, bookID int64, stock int) error {
	if stock < 0 {
		return ErrInvalidStock
	}
	res, err := r.db.ExecContext(ctx, "UPDATE books SET stock = $1, updated_at = NOW() WHERE id = $2", stock, bookID)
	if err != nil {
		return fmt.Errorf("failed to set stock: %w", translatePgError(err))
	}
	return expectAffected(res, ErrBookNotFound)
}
