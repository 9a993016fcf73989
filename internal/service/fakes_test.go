package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
	"github.com/linemk/bookstore-checkout/internal/lib/logger"
	"github.com/linemk/bookstore-checkout/internal/service"
	"github.com/linemk/bookstore-checkout/internal/storage"
	"github.com/shopspring/decimal"
)

var testLogger = logger.SetupLogger(logger.EnvTest)

// fakeBookRepo — склад в памяти. Reserve атомарен под мьютексом,
// как условный UPDATE в postgres.
type fakeBookRepo struct {
	mu         sync.Mutex
	books      map[int64]*models.Book
	reserveErr map[int64]error // принудительная ошибка Reserve для книги
	reserved   []int64         // bookID в порядке вызовов Reserve
	released   map[int64]int
}

var _ storage.BookStorage = (*fakeBookRepo)(nil)

func newFakeBookRepo(books ...models.Book) *fakeBookRepo {
	f := &fakeBookRepo{
		books:      make(map[int64]*models.Book),
		reserveErr: make(map[int64]error),
		released:   make(map[int64]int),
	}
	for i := range books {
		b := books[i]
		f.books[b.ID] = &b
	}
	return f
}

func (f *fakeBookRepo) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.books[id].Stock
}

func (f *fakeBookRepo) book(id int64) (models.Book, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[id]
	if !ok {
		return models.Book{}, false
	}
	return *b, true
}

func (f *fakeBookRepo) GetBookByID(ctx context.Context, id int64) (*models.Book, error) {
	b, ok := f.book(id)
	if !ok {
		return nil, storage.ErrBookNotFound
	}
	return &b, nil
}

func (f *fakeBookRepo) Reserve(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reserved = append(f.reserved, bookID)
	if err := f.reserveErr[bookID]; err != nil {
		return err
	}
	b, ok := f.books[bookID]
	if !ok || b.Stock < quantity {
		return storage.ErrInsufficientStock
	}
	b.Stock -= quantity
	return nil
}

func (f *fakeBookRepo) Release(ctx context.Context, tx *sql.Tx, bookID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.books[bookID]
	if !ok {
		return storage.ErrBookNotFound
	}
	b.Stock += quantity
	f.released[bookID] += quantity
	return nil
}

func (f *fakeBookRepo) SetStock(ctx context.Context, bookID int64, stock int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stock < 0 {
		return storage.ErrInvalidStock
	}
	b, ok := f.books[bookID]
	if !ok {
		return storage.ErrBookNotFound
	}
	b.Stock = stock
	return nil
}

// fakeCartRepo — корзины в памяти, книги подтягиваются из fakeBookRepo как JOIN.
type fakeCartRepo struct {
	mu     sync.Mutex
	books  *fakeBookRepo
	items  map[int64]*models.CartItem
	nextID int64
}

var _ storage.CartStorage = (*fakeCartRepo)(nil)

func newFakeCartRepo(books *fakeBookRepo) *fakeCartRepo {
	return &fakeCartRepo{books: books, items: make(map[int64]*models.CartItem)}
}

// put кладёт позицию напрямую, минуя проверки сервиса
func (f *fakeCartRepo) put(userID, bookID int64, quantity int) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	f.items[f.nextID] = &models.CartItem{ID: f.nextID, UserID: userID, BookID: bookID, Quantity: quantity}
	return f.nextID
}

func (f *fakeCartRepo) withBook(item *models.CartItem) *models.CartItem {
	c := *item
	c.Book, _ = f.books.book(item.BookID)
	return &c
}

func (f *fakeCartRepo) AddItem(ctx context.Context, userID, bookID int64, quantity, maxQuantity int) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, item := range f.items {
		if item.UserID == userID && item.BookID == bookID {
			if item.Quantity+quantity > maxQuantity {
				return nil, storage.ErrInsufficientStock
			}
			item.Quantity += quantity
			c := *item
			return &c, nil
		}
	}
	f.nextID++
	item := &models.CartItem{ID: f.nextID, UserID: userID, BookID: bookID, Quantity: quantity}
	f.items[item.ID] = item
	c := *item
	return &c, nil
}

func (f *fakeCartRepo) GetItem(ctx context.Context, userID, itemID int64) (*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok || item.UserID != userID {
		return nil, storage.ErrCartItemNotFound
	}
	return f.withBook(item), nil
}

func (f *fakeCartRepo) UpdateQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok || item.UserID != userID {
		return storage.ErrCartItemNotFound
	}
	item.Quantity = quantity
	return nil
}

func (f *fakeCartRepo) RemoveItem(ctx context.Context, userID, itemID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item, ok := f.items[itemID]
	if !ok || item.UserID != userID {
		return storage.ErrCartItemNotFound
	}
	delete(f.items, itemID)
	return nil
}

func (f *fakeCartRepo) ListItems(ctx context.Context, userID int64) ([]*models.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var items []*models.CartItem
	for _, item := range f.items {
		if item.UserID == userID {
			items = append(items, f.withBook(item))
		}
	}
	slices.SortFunc(items, func(a, b *models.CartItem) int { return int(a.ID - b.ID) })
	return items, nil
}

func (f *fakeCartRepo) LockItemsTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartItem, error) {
	return f.ListItems(ctx, userID)
}

func (f *fakeCartRepo) DeleteItemsTx(ctx context.Context, tx *sql.Tx, userID int64, itemIDs []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range itemIDs {
		item, ok := f.items[id]
		if !ok || item.UserID != userID {
			return fmt.Errorf("cart item %d vanished", id)
		}
	}
	for _, id := range itemIDs {
		delete(f.items, id)
	}
	return nil
}

func (f *fakeCartRepo) count(userID int64) int {
	items, _ := f.ListItems(context.Background(), userID)
	return len(items)
}

// fakeOrderRepo — заказы в памяти. Номера из taken считаются уже занятыми.
type fakeOrderRepo struct {
	mu      sync.Mutex
	orders  map[int64]*models.Order
	items   map[int64][]models.OrderItem
	taken   map[string]bool
	nextID  int64
	updates int
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{
		orders: make(map[int64]*models.Order),
		items:  make(map[int64][]models.OrderItem),
		taken:  make(map[string]bool),
	}
}

func (f *fakeOrderRepo) add(order models.Order, items ...models.OrderItem) *models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	order.ID = f.nextID
	f.orders[order.ID] = &order
	f.items[order.ID] = items
	f.taken[order.OrderNumber] = true
	return &order
}

func (f *fakeOrderRepo) CreateOrder(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.taken[order.OrderNumber] {
		return storage.ErrOrderNumberTaken
	}
	f.taken[order.OrderNumber] = true
	f.nextID++
	order.ID = f.nextID
	order.OrderDate = time.Now()
	c := *order
	f.orders[order.ID] = &c
	return nil
}

func (f *fakeOrderRepo) CreateOrderItem(ctx context.Context, tx *sql.Tx, item *models.OrderItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = int64(len(f.items[item.OrderID]) + 1)
	f.items[item.OrderID] = append(f.items[item.OrderID], *item)
	return nil
}

func (f *fakeOrderRepo) GetOrderByNumber(ctx context.Context, userID int64, orderNumber string) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.OrderNumber == orderNumber && o.UserID == userID {
			c := *o
			c.Items = slices.Clone(f.items[o.ID])
			return &c, nil
		}
	}
	return nil, storage.ErrOrderNotFound
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, orderID int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	c := *o
	c.Items = slices.Clone(f.items[o.ID])
	return &c, nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []*models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			c := *o
			orders = append(orders, &c)
		}
	}
	return orders, nil
}

func (f *fakeOrderRepo) ListOrders(ctx context.Context, status models.OrderStatus, search string) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var orders []*models.Order
	for _, o := range f.orders {
		if (status == "" || o.Status == status) && strings.Contains(strings.ToLower(o.OrderNumber), strings.ToLower(search)) {
			c := *o
			orders = append(orders, &c)
		}
	}
	return orders, nil
}

func (f *fakeOrderRepo) LockOrderByIDTx(ctx context.Context, tx *sql.Tx, orderID int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	c := *o
	return &c, nil
}

func (f *fakeOrderRepo) GetOrderItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) ([]models.OrderItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items[orderID]), nil
}

func (f *fakeOrderRepo) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, orderID int64, status models.OrderStatus, paidAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[orderID]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.Status = status
	o.PaidAt = paidAt
	f.updates++
	return nil
}

// placed — число заказов, у которых есть позиции
func (f *fakeOrderRepo) placed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for id := range f.orders {
		if len(f.items[id]) > 0 {
			n++
		}
	}
	return n
}

func (f *fakeOrderRepo) get(id int64) models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

// fakeNumbers сначала отдаёт заданные номера, затем ORD-N
type fakeNumbers struct {
	mu    sync.Mutex
	queue []string
	n     int
	err   error
}

var _ service.OrderNumberGenerator = (*fakeNumbers)(nil)

func (f *fakeNumbers) Next() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(f.queue) > 0 {
		n := f.queue[0]
		f.queue = f.queue[1:]
		return n, nil
	}
	f.n++
	return fmt.Sprintf("ORD-%d", f.n), nil
}

// fakeIdempotency повторяет семантику redis-хранилища в памяти
type fakeIdempotency struct {
	mu        sync.Mutex
	keys      map[string]string // pending:<owner> или done:<number>
	released  int
	completed int
	n         int
}

var _ storage.IdempotencyStorage = (*fakeIdempotency)(nil)

func newFakeIdempotency() *fakeIdempotency {
	return &fakeIdempotency{keys: make(map[string]string)}
}

func idemKey(userID int64, key string) string {
	return fmt.Sprintf("%d:%s", userID, key)
}

func (f *fakeIdempotency) Acquire(ctx context.Context, userID int64, key string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := idemKey(userID, key)
	val, ok := f.keys[k]
	if !ok {
		f.n++
		owner := fmt.Sprintf("owner-%d", f.n)
		f.keys[k] = "pending:" + owner
		return owner, "", nil
	}
	if number, found := strings.CutPrefix(val, "done:"); found {
		return "", number, nil
	}
	return "", "", storage.ErrIdempotencyKeyBusy
}

func (f *fakeIdempotency) Complete(ctx context.Context, userID int64, key, owner, orderNumber string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := idemKey(userID, key)
	if f.keys[k] == "pending:"+owner {
		f.keys[k] = "done:" + orderNumber
		f.completed++
	}
	return nil
}

func (f *fakeIdempotency) Release(ctx context.Context, userID int64, key, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := idemKey(userID, key)
	if f.keys[k] == "pending:"+owner {
		delete(f.keys, k)
		f.released++
	}
	return nil
}

func price(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
