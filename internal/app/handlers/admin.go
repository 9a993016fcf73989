package handlers

import (
	"log/slog"
	"net/http"

	"github.com/linemk/bookstore-checkout/internal/domain/models"
	"github.com/linemk/bookstore-checkout/internal/service"
)

// SetStockRequest — тело PUT /api/admin/books/{id}/stock
type SetStockRequest struct {
	Stock *int `json:"stock" validate:"required"`
}

// SetStatusRequest — тело PUT /api/admin/orders/{id}/status
type SetStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// SetStockHandler обрабатывает запрос PUT /api/admin/books/{id}/stock.
// Перезапись остатка не согласована с идущими оформлениями.
func SetStockHandler(log *slog.Logger, inventoryService service.InventoryService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.SetStockHandler"
		logger := log.With(slog.String("op", op))

		bookID, ok := idParam(w, r, logger, "id")
		if !ok {
			return
		}

		var req SetStockRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		if err := inventoryService.SetStock(r.Context(), bookID, *req.Stock); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, MessageResponse{Message: "Stock updated"})
	}
}

// SetOrderStatusHandler обрабатывает запрос PUT /api/admin/orders/{id}/status
func SetOrderStatusHandler(log *slog.Logger, lifecycleService service.OrderLifecycleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.SetOrderStatusHandler"
		logger := log.With(slog.String("op", op))

		orderID, ok := idParam(w, r, logger, "id")
		if !ok {
			return
		}

		var req SetStatusRequest
		if !decodeAndValidate(w, r, logger, &req) {
			return
		}

		order, err := lifecycleService.SetStatus(r.Context(), orderID, models.OrderStatus(req.Status))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, order)
	}
}

// ReportHandler обрабатывает запрос GET /api/admin/report?month=YYYY-MM
func ReportHandler(log *slog.Logger, reportService service.ReportService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.ReportHandler"
		logger := log.With(slog.String("op", op))

		report, err := reportService.Monthly(r.Context(), r.URL.Query().Get("month"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, logger, http.StatusOK, report)
	}
}
