package main

import (
	"context"

	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"

	"github.com/linemk/bookstore-checkout/internal/app"
	"github.com/linemk/bookstore-checkout/internal/app/handlers"
	"github.com/linemk/bookstore-checkout/internal/config"
	"github.com/linemk/bookstore-checkout/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/bookstore-checkout/internal/lib/logger"
	"github.com/linemk/bookstore-checkout/internal/lib/logger/handlers/urllog"
	"github.com/linemk/bookstore-checkout/internal/lib/orderno"
	"github.com/linemk/bookstore-checkout/internal/service"
	"github.com/linemk/bookstore-checkout/internal/storage"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	// инициализация логгера, зависит от настройки окружения
	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	// объект приложения: конфиг, подключения к БД и redis
	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	router := chi.NewRouter()
	// настройка middleware
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	// слои по работе с хранилищами
	bookRepo := storage.NewBookRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)
	reportRepo := storage.NewReportRepository(application.DB)

	var idempotencyRepo storage.IdempotencyStorage
	if application.Redis != nil {
		idempotencyRepo = storage.NewIdempotencyRepository(application.Redis, cfg.Redis.IdempotencyTTL)
	}

	cartService := service.NewCartService(application.Logger, cartRepo, bookRepo)
	checkoutService := service.NewCheckoutService(
		application.Logger,
		application.DB,
		cartRepo,
		bookRepo,
		orderRepo,
		orderno.New(),
		cfg.Checkout.OrderNumberAttempts,
		idempotencyRepo,
	)
	orderService := service.NewOrderService(application.Logger, orderRepo)
	lifecycleService := service.NewOrderLifecycleService(application.Logger, application.DB, orderRepo, bookRepo)
	inventoryService := service.NewInventoryService(application.Logger, bookRepo)
	reportService := service.NewReportService(application.Logger, reportRepo)

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret))

		// корзина
		r.Get("/api/cart", handlers.CartHandler(application.Logger, cartService))
		r.Post("/api/cart/items", handlers.AddCartItemHandler(application.Logger, cartService))
		r.Put("/api/cart/items/{id}", handlers.UpdateCartItemHandler(application.Logger, cartService))
		r.Delete("/api/cart/items/{id}", handlers.RemoveCartItemHandler(application.Logger, cartService))

		// оформление и заказы покупателя
		r.Post("/api/checkout", handlers.CheckoutHandler(application.Logger, checkoutService))
		r.Get("/api/orders", handlers.OrdersHandler(application.Logger, orderService))
		r.Get("/api/orders/{orderNumber}", handlers.OrderHandler(application.Logger, orderService))

		// администрирование
		r.Group(func(r chi.Router) {
			r.Use(jwtmiddleware.RequireRole(jwtmiddleware.RoleAdmin))
			r.Put("/api/admin/books/{id}/stock", handlers.SetStockHandler(application.Logger, inventoryService))
			r.Put("/api/admin/orders/{id}/status", handlers.SetOrderStatusHandler(application.Logger, lifecycleService))
			r.Get("/api/admin/orders", handlers.AdminOrdersHandler(application.Logger, orderService))
			r.Get("/api/admin/orders/{id}", handlers.AdminOrderHandler(application.Logger, orderService))
			r.Get("/api/admin/report", handlers.ReportHandler(application.Logger, reportService))
		})
	})

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}
