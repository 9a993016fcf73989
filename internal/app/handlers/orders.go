package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
	"github.com/linemk/bookstore-checkout/internal/service"
)

// OrdersHandler обрабатывает запрос GET /api/orders
func OrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrdersHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userFromContext(w, r, logger)
		if !ok {
			return
		}

		orders, err := orderService.ListForUser(r.Context(), userID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, orders)
	}
}

// OrderHandler обрабатывает запрос GET /api/orders/{orderNumber}
func OrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.OrderHandler"
		logger := log.With(slog.String("op", op))

		userID, ok := userFromContext(w, r, logger)
		if !ok {
			return
		}

		orderNumber := chi.URLParam(r, "orderNumber")
		if orderNumber == "" {
			logger.Error("orderNumber parameter is missing")
			http.Error(w, "orderNumber parameter is required", http.StatusBadRequest)
			return
		}

		order, err := orderService.GetForUser(r.Context(), userID, orderNumber)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, order)
	}
}

// AdminOrdersHandler обрабатывает запрос GET /api/admin/orders?status=&search=
func AdminOrdersHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminOrdersHandler"
		logger := log.With(slog.String("op", op))

		query := r.URL.Query()
		status := models.OrderStatus(query.Get("status"))
		orders, err := orderService.ListAll(r.Context(), status, query.Get("search"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, orders)
	}
}

// AdminOrderHandler обрабатывает запрос GET /api/admin/orders/{id}
func AdminOrderHandler(log *slog.Logger, orderService service.OrderService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.AdminOrderHandler"
		logger := log.With(slog.String("op", op))

		orderID, ok := idParam(w, r, logger, "id")
		if !ok {
			return
		}

		order, err := orderService.GetByID(r.Context(), orderID)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, order)
	}
}
