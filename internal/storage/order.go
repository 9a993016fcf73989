package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
)

// OrderStorage описывает методы для работы с заказами.
type OrderStorage interface {
	// CreateOrder вставляет заказ в транзакции. Если номер заказа уже занят,
	// возвращает ErrOrderNumberTaken, не ломая транзакцию.
	CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// CreateOrderItem вставляет позицию заказа в транзакции.
	CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error
	// GetOrderByNumber возвращает заказ пользователя вместе с позициями.
	GetOrderByNumber(ctx context.Context, userID int64, orderNumber string) (*models.Order, error)
	// GetOrdersByUserID возвращает заказы пользователя, новые первыми.
	GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error)
	// GetOrderByID возвращает любой заказ вместе с позициями (для администратора).
	GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error)
	// ListOrders возвращает все заказы. Непустой status оставляет только заказы
	// с этим статусом, непустой search — с подстрокой в номере заказа.
	ListOrders(ctx context.Context, status models.OrderStatus, search string) ([]*models.Order, error)
	// LockOrderByIDTx блокирует заказ до конца транзакции.
	LockOrderByIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error)
	// GetOrderItemsTx возвращает позиции заказа в транзакции.
	GetOrderItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) ([]models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus, paidAt *time.Time) error
}

// queryer — общее у *sql.DB и *sql.Tx
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type orderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `id, order_number, user_id, total_amount, status, order_date, paid_at`

func (r *orderRepository) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	query := `INSERT INTO orders (order_number, user_id, total_amount, status, order_date, updated_at)
	          VALUES ($1, $2, $3, $4, NOW(), NOW())
	          ON CONFLICT (order_number) DO NOTHING
	          RETURNING id, order_date`
	err := tx.QueryRowContext(ctx, query, order.OrderNumber, order.UserID, order.TotalAmount, order.Status).
		Scan(&order.ID, &order.OrderDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNumberTaken
		}
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *orderRepository) CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	query := `INSERT INTO order_items (order_id, book_id, quantity, price, subtotal)
	          VALUES ($1, $2, $3, $4, $5)
	          RETURNING id`
	err := tx.QueryRowContext(ctx, query, item.OrderID, item.BookID, item.Quantity, item.Price, item.Subtotal).
		Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}
	return nil
}

func (r *orderRepository) GetOrderByNumber(ctx context.Context, userID int64, orderNumber string) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE order_number = $1 AND user_id = $2`
	if err := scanOrder(r.db.QueryRowContext(ctx, query, orderNumber, userID), order); err != nil {
		return nil, err
	}
	items, err := queryOrderItems(ctx, r.db, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY order_date DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return scanOrders(rows)
}

func (r *orderRepository) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if err := scanOrder(r.db.QueryRowContext(ctx, query, orderID), order); err != nil {
		return nil, err
	}
	items, err := queryOrderItems(ctx, r.db, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (r *orderRepository) ListOrders(ctx context.Context, status models.OrderStatus, search string) ([]*models.Order, error) {
	var (
		conds []string
		args  []any
	)
	if status != "" {
		args = append(args, status)
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if search != "" {
		args = append(args, search)
		conds = append(conds, "order_number ILIKE '%' || $"+strconv.Itoa(len(args))+" || '%'")
	}

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY order_date DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	return scanOrders(rows)
}

func (r *orderRepository) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	order := &models.Order{}
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE NOWAIT`
	if err := scanOrder(tx.QueryRowContext(ctx, query, orderID), order); err != nil {
		return nil, translatePgError(err)
	}
	return order, nil
}

func (r *orderRepository) GetOrderItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) ([]models.OrderItem, error) {
	return queryOrderItems(ctx, tx, orderID)
}

func (r *orderRepository) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus, paidAt *time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, paid_at = $2, updated_at = NOW() WHERE id = $3",
		status, paidAt, orderID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	return expectAffected(res, ErrOrderNotFound)
}

func queryOrderItems(ctx context.Context, q queryer, orderID int64) ([]models.OrderItem, error) {
	query := `
		SELECT oi.id, oi.order_id, oi.book_id, b.title, oi.quantity, oi.price, oi.subtotal
		FROM order_items oi
		JOIN books b ON b.id = oi.book_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	var items []models.OrderItem
	for rows.Next() {
		var item models.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.BookID, &item.BookTitle, &item.Quantity, &item.Price, &item.Subtotal); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanOrder(row *sql.Row, order *models.Order) error {
	err := row.Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.TotalAmount, &order.Status, &order.OrderDate, &order.PaidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		return err
	}
	return nil
}

func scanOrders(rows *sql.Rows) ([]*models.Order, error) {
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order := &models.Order{}
		if err := rows.Scan(&order.ID, &order.OrderNumber, &order.UserID, &order.TotalAmount, &order.Status, &order.OrderDate, &order.PaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
