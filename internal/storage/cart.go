package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
)

// CartStorage описывает методы для работы с корзиной.
type CartStorage interface {
	// AddItem добавляет книгу в корзину или увеличивает количество существующей позиции.
	// Если итоговое количество превысит maxQuantity, возвращает ErrInsufficientStock.
	AddItem(ctx context.Context, userID, bookID int64, quantity, maxQuantity int) (*models.CartItem, error)
	// GetItem возвращает позицию пользователя вместе с книгой.
	GetItem(ctx context.Context, userID, itemID int64) (*models.CartItem, error)
	UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error
	RemoveItem(ctx context.Context, userID, itemID int64) error
	// ListItems возвращает позиции в порядке добавления, с живыми данными книг.
	ListItems(ctx context.Context, userID int64) ([]*models.CartItem, error)
	// LockItemsTx то же, что ListItems, но блокирует строки корзины до конца транзакции.
	LockItemsTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartItem, error)
	// DeleteItemsTx удаляет перечисленные позиции пользователя.
	DeleteItemsTx(ctx context.Context, tx *sql.Tx, userID int64, itemIDs []int64) error
}

type cartRepository struct {
	db *sql.DB
}

func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

const cartSelect = `
	SELECT c.id, c.user_id, c.book_id, c.quantity, c.created_at, c.updated_at,
	       b.id, b.title, b.author, b.price, b.stock
	FROM cart_items c
	JOIN books b ON b.id = c.book_id`

func (r *cartRepository) AddItem(ctx context.Context, userID, bookID int64, quantity, maxQuantity int) (*models.CartItem, error) {
	query := `
		INSERT INTO cart_items (user_id, book_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id, book_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
		WHERE cart_items.quantity + EXCLUDED.quantity <= $4
		RETURNING id, quantity`
	item := &models.CartItem{UserID: userID, BookID: bookID}
	err := r.db.QueryRowContext(ctx, query, userID, bookID, quantity, maxQuantity).Scan(&item.ID, &item.Quantity)
	if err != nil {
		// строка уже есть, но сумма количеств больше остатка
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInsufficientStock
		}
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	return item, nil
}

func (r *cartRepository) GetItem(ctx context.Context, userID, itemID int64) (*models.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, cartSelect+` WHERE c.id = $1 AND c.user_id = $2`, itemID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart item: %w", err)
	}
	items, err := scanCartItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrCartItemNotFound
	}
	return items[0], nil
}

func (r *cartRepository) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1, updated_at = NOW() WHERE id = $2 AND user_id = $3",
		quantity, itemID, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return expectAffected(res, ErrCartItemNotFound)
}

func (r *cartRepository) RemoveItem(ctx context.Context, userID, itemID int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return expectAffected(res, ErrCartItemNotFound)
}

func (r *cartRepository) ListItems(ctx context.Context, userID int64) ([]*models.CartItem, error) {
	rows, err := r.db.QueryContext(ctx, cartSelect+` WHERE c.user_id = $1 ORDER BY c.created_at, c.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query cart items: %w", err)
	}
	return scanCartItems(rows)
}

// LockItemsTx блокирует только строки корзины (FOR UPDATE OF c), книги
// не блокируются: остаток защищает Reserve.
func (r *cartRepository) LockItemsTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartItem, error) {
	rows, err := tx.QueryContext(ctx, cartSelect+` WHERE c.user_id = $1 ORDER BY c.created_at, c.id FOR UPDATE OF c`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock cart items: %w", translatePgError(err))
	}
	return scanCartItems(rows)
}

func (r *cartRepository) DeleteItemsTx(ctx context.Context, tx *sql.Tx, userID int64, itemIDs []int64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1 AND id = ANY($2)", userID, pq.Array(itemIDs))
	if err != nil {
		return fmt.Errorf("failed to delete cart items: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected != int64(len(itemIDs)) {
		return fmt.Errorf("cart changed during checkout: deleted %d of %d items", affected, len(itemIDs))
	}
	return nil
}

func scanCartItems(rows *sql.Rows) ([]*models.CartItem, error) {
	defer rows.Close()

	var items []*models.CartItem
	for rows.Next() {
		item := &models.CartItem{}
		if err := rows.Scan(&item.ID, &item.UserID, &item.BookID, &item.Quantity, &item.CreatedAt, &item.UpdatedAt,
			&item.Book.ID, &item.Book.Title, &item.Book.Author, &item.Book.Price, &item.Book.Stock); err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func expectAffected(res sql.Result, notFound error) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return notFound
	}
	return nil
}
