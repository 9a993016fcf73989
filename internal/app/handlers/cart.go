package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/bookstore-checkout/internal/service"
)

// AddCartItemRequest — тело POST /api/cart/items.
// Quantity проверяет сервис, чтобы вернуть понятную ошибку.
type AddCartItemRequest struct {
	BookID   int64 `json:"bookId" validate:"required,gt=0"`
	Quantity int   `json:"quantity"`
}

// UpdateCartItemRequest — тело PUT /api/cart/items/{id}
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

// CartHandler обрабатывает запрос GET /api/cart
func CartHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.CartHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userFromContext(w, r, logger)
		if !ok {
			return
		}

		cart, err := cartService.ListItems(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, cart)
	}
}

// AddCartItemHandler обрабатывает запрос POST /api/cart/items
func AddCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AddCartItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userFromContext(w, r, logger)
		if !ok {
			return
		}

		var req AddCartItemRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		item, err := cartService.AddItem(r.Context(), userID, req.BookID, req.Quantity)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusCreated, item)
	}
}

// UpdateCartItemHandler обрабатывает запрос PUT /api/cart/items/{id}
func UpdateCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.UpdateCartItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userFromContext(w, r, logger)
		if !ok {
			return
		}
		itemID, ok := idParam(w, r, logger, "id")
		if !ok {
			return
		}

		var req UpdateCartItemRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		if err := cartService.UpdateQuantity(r.Context(), userID, itemID, req.Quantity); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "Cart item updated"})
	}
}

// RemoveCartItemHandler обрабатывает запрос DELETE /api/cart/items/{id}
func RemoveCartItemHandler(log *slog.Logger, cartService service.CartService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.RemoveCartItemHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userFromContext(w, r, logger)
		if !ok {
			return
		}
		itemID, ok := idParam(w, r, logger, "id")
		if !ok {
			return
		}

		if err := cartService.RemoveItem(r.Context(), userID, itemID); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
