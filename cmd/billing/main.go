package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/rightupnext/billing/internal/app"
	"github.com/rightupnext/billing/internal/catalog"
	"github.com/rightupnext/billing/internal/customers"
	"github.com/rightupnext/billing/internal/inventory"
	"github.com/rightupnext/billing/internal/invoices"
	"github.com/rightupnext/billing/internal/tenant"
	"github.com/rightupnext/billing/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	services, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap", slog.Any("error", err))
		os.Exit(1)
	}
	defer services.Close(logger)

	go services.Registry.Run(ctx, time.Minute)

	inspector := asynq.NewInspector(cfg.AsynqRedis())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	payments := app.PaymentVerifier(cfg)
	if payments == nil {
		logger.Warn("PAYMENT_SIGNING_SECRET unset, subscription renewal disabled")
	}

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Metrics:          services.Metrics,
		Gate:             services.Gate,
		TenantHandler:    tenant.NewHandler(logger, services.Subscriptions, services.Provisioner, payments),
		InventoryHandler: inventory.NewHandler(logger, services.Inventory),
		CatalogHandler:   catalog.NewHandler(logger, services.Catalog, services.Subscriptions),
		CustomerHandler:  customers.NewHandler(logger, services.Customers),
		InvoiceHandler:   invoices.NewHandler(logger, services.Invoices, cfg.PaymentsPerMin),
		JobHandler:       jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
