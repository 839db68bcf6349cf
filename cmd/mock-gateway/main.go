package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/carmart-wallet/internal/logging"
)

type config struct {
	Port        int    `env:"PORT" envDefault:"8081"`
	PublicURL   string `env:"PUBLIC_URL" envDefault:"http://localhost:8081"`
	WebhookURL  string `env:"WEBHOOK_URL" envDefault:"http://api:8080/api/v1/webhooks/payment"`
	ClientID    string `env:"GATEWAY_CLIENT_ID,required,notEmpty"`
	APIKey      string `env:"GATEWAY_API_KEY,required,notEmpty"`
	ChecksumKey string `env:"GATEWAY_CHECKSUM_KEY,required,notEmpty"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"development"`
}

func main() {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Init("mock-gateway", cfg.LogLevel, cfg.AppEnv)

	gw := newGateway(cfg, &http.Client{Timeout: 10 * time.Second})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           gw.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("mock gateway started", "addr", addr, "webhook_url", cfg.WebhookURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
