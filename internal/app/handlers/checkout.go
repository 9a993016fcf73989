package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/bookstore-checkout/internal/service"
)

const IdempotencyKeyHeader = "Idempotency-Key"

// CheckoutHandler обрабатывает запрос POST /api/checkout.
// Оформление может не пройти, даже если корзина выглядела корректно:
// корзина не резервирует остаток, в этом случае клиент получает 409 с названием книги.
func CheckoutHandler(log *slog.Logger, checkoutService service.CheckoutService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CheckoutHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userFromContext(w, r, logger)
		if !ok {
			return
		}

		key := r.Header.Get(IdempotencyKeyHeader)
		if len(key) > 128 {
			http.Error(w, "idempotency key is too long", http.StatusBadRequest)
			return
		}

		order, err := checkoutService.Checkout(r.Context(), userID, key)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, order)
	}
}
