package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/linemk/bookstore-checkout/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/bookstore-checkout/internal/service"
	"github.com/linemk/bookstore-checkout/internal/storage"
)

var validate = validator.New()

// MessageResponse — ответ без данных
type MessageResponse struct {
	Message string `json:"message"`
}

// ошибки, текст которых можно показать клиенту, и их коды
var clientErrors = []struct {
	err    error
	status int
}{
	{service.ErrEmptyCart, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrInvalidStock, http.StatusBadRequest},
	{service.ErrInvalidStatus, http.StatusBadRequest},
	{service.ErrInvalidMonth, http.StatusBadRequest},
	{service.ErrNotFound, http.StatusNotFound},
	{service.ErrInvalidTransition, http.StatusConflict},
	{service.ErrCheckoutInProgress, http.StatusConflict},
	{storage.ErrResourceLocked, http.StatusConflict},
}

// writeServiceError переводит ошибку сервиса в HTTP-ответ.
// Неизвестные ошибки (в том числе ErrOrderNumberCollision) отдаются как 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		logger.Warn("insufficient stock", slog.Any("error", err))
		http.Error(w, stockErr.Error(), http.StatusConflict)
		return
	}

	for _, ce := range clientErrors {
		if errors.Is(err, ce.err) {
			logger.Warn("request rejected", slog.Any("error", err))
			http.Error(w, ce.err.Error(), ce.status)
			return
		}
	}

	logger.Error("internal error", slog.Any("error", err))
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", slog.Any("error", err))
	}
}

// decodeAndValidate читает JSON тело и проверяет теги validate
func decodeAndValidate(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.Error("invalid request: decoding error", slog.Any("error", err))
		http.Error(w, "invalid request", http.StatusBadRequest)
		return false
	}
	if err := validate.Struct(dst); err != nil {
		logger.Error("invalid request: validation error", slog.Any("error", err))
		http.Error(w, "validation error", http.StatusBadRequest)
		return false
	}
	return true
}

// userFromContext извлекает userID, установленный JWT middleware
func userFromContext(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	userID, ok := jwtmiddleware.FromContext(r.Context())
	if !ok {
		logger.Error("userID not found in context")
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return 0, false
	}
	return userID, true
}

// idParam читает числовой параметр пути
func idParam(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string) (int64, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		logger.Error("invalid path parameter", slog.String("param", name), slog.String("value", raw))
		http.Error(w, "invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
