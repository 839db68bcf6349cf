package config

import (
	"fmt"
	"time"

	env "github.com/caarlos0/env/v11"

	"github.com/josh-kwaku/carmart-wallet/internal/domain"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	JWTSecret   string `env:"JWT_SECRET,required,notEmpty"`
	JWTIssuer   string `env:"JWT_ISSUER" envDefault:"carmart-auth"`
	Port        int    `env:"PORT" envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`

	// Deposit bounds and the fixed processing fee, in VND subunits.
	DepositMin string `env:"DEPOSIT_MIN" envDefault:"10000"`
	DepositMax string `env:"DEPOSIT_MAX" envDefault:"500000000"`
	DepositFee string `env:"DEPOSIT_FEE" envDefault:"2000"`

	GatewayBaseURL     string `env:"GATEWAY_BASE_URL" envDefault:"http://mock-gateway:8081"`
	GatewayClientID    string `env:"GATEWAY_CLIENT_ID,required,notEmpty"`
	GatewayAPIKey      string `env:"GATEWAY_API_KEY,required,notEmpty"`
	GatewayChecksumKey string `env:"GATEWAY_CHECKSUM_KEY,required,notEmpty"`
	DepositReturnURL   string `env:"DEPOSIT_RETURN_URL" envDefault:"http://localhost:3000/wallet?status=success"`
	DepositCancelURL   string `env:"DEPOSIT_CANCEL_URL" envDefault:"http://localhost:3000/wallet?status=cancelled"`

	LockTimeoutMS int `env:"LOCK_TIMEOUT_MS" envDefault:"5000"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"20"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"40"`

	CleanupSchedule       string        `env:"CLEANUP_SCHEDULE" envDefault:"0 0 * * * *"`
	PendingReportSchedule string        `env:"PENDING_REPORT_SCHEDULE" envDefault:"0 */15 * * * *"`
	PendingReportAge      time.Duration `env:"PENDING_REPORT_AGE" envDefault:"24h"`
	RateLimitSweep        string        `env:"RATE_LIMIT_SWEEP_SCHEDULE" envDefault:"0 */5 * * * *"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	DBMaxOpenConns     int `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	DBMaxIdleConns     int `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	DBConnMaxLifetimeS int `env:"DB_CONN_MAX_LIFETIME_S" envDefault:"300"`
	DBConnMaxIdleTimeS int `env:"DB_CONN_MAX_IDLE_TIME_S" envDefault:"60"`
}

// DepositLimits is the parsed form of the deposit settings.
type DepositLimits struct {
	Min domain.Amount
	Max domain.Amount
	Fee domain.Amount
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	if _, err := cfg.Limits(); err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Limits() (DepositLimits, error) {
	var l DepositLimits
	var err error
	if l.Min, err = domain.ParseAmount(c.DepositMin); err != nil {
		return l, fmt.Errorf("DEPOSIT_MIN: %w", err)
	}
	if l.Max, err = domain.ParseAmount(c.DepositMax); err != nil {
		return l, fmt.Errorf("DEPOSIT_MAX: %w", err)
	}
	if l.Fee, err = domain.ParseAmount(c.DepositFee); err != nil {
		return l, fmt.Errorf("DEPOSIT_FEE: %w", err)
	}
	if l.Min.Cmp(l.Max) > 0 {
		return l, fmt.Errorf("DEPOSIT_MIN %s exceeds DEPOSIT_MAX %s", l.Min, l.Max)
	}
	return l, nil
}

func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}
