package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/josh-kwaku/carmart-wallet/internal/config"
	"github.com/josh-kwaku/carmart-wallet/internal/gateway"
	"github.com/josh-kwaku/carmart-wallet/internal/handler"
	"github.com/josh-kwaku/carmart-wallet/internal/jobs"
	"github.com/josh-kwaku/carmart-wallet/internal/logging"
	"github.com/josh-kwaku/carmart-wallet/internal/middleware"
	"github.com/josh-kwaku/carmart-wallet/internal/repository"
	"github.com/josh-kwaku/carmart-wallet/internal/service"
	"github.com/josh-kwaku/carmart-wallet/internal/service/deposit"
	"github.com/josh-kwaku/carmart-wallet/internal/service/purchase"
)

func main() {
	if err := run(); err != nil {
		slog.Error("api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	limits, err := cfg.Limits()
	if err != nil {
		return err
	}

	logger := logging.Init("carmart-api", cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}, 30)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := repository.NewDB(pool, cfg.LockTimeout())
	accounts := repository.NewAccountRepository(pool)
	deposits := repository.NewDepositRepository(pool)
	listings := repository.NewListingRepository(pool)
	idempotency := repository.NewIdempotencyRepository(pool)

	gw := gateway.NewClient(gateway.Config{
		BaseURL:     cfg.GatewayBaseURL,
		ClientID:    cfg.GatewayClientID,
		APIKey:      cfg.GatewayAPIKey,
		ChecksumKey: cfg.GatewayChecksumKey,
	})

	depositSvc := deposit.NewService(db, deposits, accounts, gw, limits, deposit.URLs{
		Return: cfg.DepositReturnURL,
		Cancel: cfg.DepositCancelURL,
	})
	purchaseSvc := purchase.NewService(db, listings, accounts)
	walletSvc := service.NewWalletService(pool, accounts, deposits)

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	router := newRouter(routerDeps{
		cfg:         cfg,
		health:      handler.NewHealthHandler(pool),
		deposits:    handler.NewDepositHandler(depositSvc),
		webhooks:    handler.NewWebhookHandler(depositSvc),
		purchases:   handler.NewPurchaseHandler(purchaseSvc),
		wallet:      handler.NewWalletHandler(walletSvc),
		idempotency: idempotency,
		limiter:     limiter,
	})

	runner := jobs.NewRunner(idempotency, deposits, limiter, cfg.PendingReportAge, logger)
	scheduler, err := jobs.NewScheduler(runner, jobs.Schedules{
		CleanIdempotency:   cfg.CleanupSchedule,
		ReportStalePending: cfg.PendingReportSchedule,
		SweepRateLimiter:   cfg.RateLimitSweep,
	}, logger)
	if err != nil {
		return err
	}
	scheduler.Start()

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	if err := scheduler.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler did not stop cleanly", "error", err)
	}
	logger.Info("server stopped")
	return nil
}
