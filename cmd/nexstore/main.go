package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"nexstore/internal/alert"
	"nexstore/internal/config"
	"nexstore/internal/database"
	"nexstore/internal/handler"
	"nexstore/internal/mw"
	"nexstore/internal/secret"
	"nexstore/internal/service"
	"nexstore/internal/storage/postgres"
	"nexstore/internal/worker"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.NewDB(cfg.DatabaseURI)
	if err != nil {
		slog.Error("failed to connect to DB", "error", err)
		os.Exit(1)
	}
	defer database.CloseDB(db)

	if err := database.InitSchema(db); err != nil {
		slog.Error("failed to init DB schema", "error", err)
		os.Exit(1)
	}

	// Stores
	orders := postgres.NewOrders(db)
	notifications := postgres.NewNotifications(db)
	wallets := postgres.NewWallets(db)
	catalog := postgres.NewCatalog(db)
	settingsStore := postgres.NewSettings(db)

	// Alerts go to Kafka when brokers are configured, to the log otherwise.
	var alerter alert.Alerter = alert.LogAlerter{}
	if cfg.KafkaBrokers != "" {
		ka := alert.NewKafkaAlerter(strings.Split(cfg.KafkaBrokers, ","), cfg.AlertTopic)
		defer ka.Close()
		alerter = ka
	}

	// Services
	settingsSvc := service.NewSettingsService(settingsStore)
	walletSvc := service.NewWalletService(wallets)
	orderSvc := service.NewOrderService(orders, catalog, walletSvc, settingsSvc)
	reconciler := service.NewReconciler(orders, notifications, walletSvc, orderSvc, settingsSvc, alerter)
	fulfillClient := service.NewFulfillmentClient(cfg.FulfillmentAddress, cfg.FulfillmentTimeout)

	// Workers
	box := secret.NewBox(cfg.EncryptionKey)
	dispatcher := worker.NewDispatcher(orders, catalog, fulfillClient, settingsSvc, alerter,
		box, cfg.DispatchInterval, cfg.FulfillmentTimeout, cfg.DispatchBatchSize)
	maintenance := worker.NewMaintenance(orders, notifications, walletSvc, settingsSvc)

	// Router
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Device-Token"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Device ingestion
	r.Group(func(r chi.Router) {
		r.Use(mw.DeviceAuth(cfg.DeviceToken))
		r.Use(middleware.Throttle(10))

		r.Post("/api/sms/receive", handler.ReceiveSMSHandler(reconciler))
		r.Post("/api/sms/forward", handler.ForwardSMSHandler(reconciler))
	})

	// User routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Get("/api/packages", handler.ListPackagesHandler(catalog))

		r.Post("/api/orders", handler.CreateOrderHandler(orderSvc))
		r.Post("/api/orders/wallet-load", handler.CreateWalletLoadHandler(orderSvc))
		r.Get("/api/orders", handler.ListOrdersHandler(orderSvc))
		r.Get("/api/orders/{orderID}", handler.GetOrderHandler(orderSvc))
		r.Put("/api/orders/{orderID}/uid", handler.UpdateUIDHandler(orderSvc))
		r.Post("/api/orders/{orderID}/verify-payment", handler.VerifyPaymentHandler(reconciler))

		r.Get("/api/wallet", handler.GetWalletHandler(walletSvc))
		r.Get("/api/wallet/transactions", handler.ListTransactionsHandler(walletSvc))
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))
		r.Use(mw.AdminOnly)

		r.Get("/api/admin/settings", handler.GetSettingsHandler(settingsSvc))
		r.Put("/api/admin/settings", handler.UpdateSettingsHandler(settingsSvc))
		r.Get("/api/admin/review-queue", handler.ReviewQueueHandler(orderSvc, notifications))
		r.Post("/api/admin/orders/{orderID}/retry", handler.RetryOrderHandler(orderSvc))
		r.Post("/api/admin/orders/{orderID}/mark-success", handler.MarkSuccessHandler(orderSvc))
		r.Post("/api/admin/match", handler.ManualMatchHandler(reconciler))
		r.Get("/api/admin/notifications", handler.ListNotificationsHandler(notifications))
		r.Post("/api/admin/notifications", handler.InputNotificationHandler(reconciler))
		r.Post("/api/admin/wallet/adjust", handler.AdjustWalletHandler(walletSvc))
	})

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Start(ctx)
	maintenance.Start(ctx, cfg.ExpireInterval, cfg.FlagSMSInterval, cfg.UnstickInterval)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	slog.Info("starting server", "addr", cfg.RunAddress)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-quit
	slog.Info("shutting down...")

	cancel() // stop workers
	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}

	slog.Info("server stopped")
}
