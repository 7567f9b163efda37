package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Payment  PaymentConfig
	Ledger   LedgerConfig
}

type ServerConfig struct {
	Port         string
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DatabaseConfig struct {
	DSN             string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional; an empty Addr disables the stats cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	StatsTTL time.Duration
}

type JWTConfig struct {
	AccessSecret string
	AccessExpiry time.Duration
	Issuer       string
}

type PaymentConfig struct {
	// WebhookSecret signs capture callbacks (hex HMAC-SHA256 in X-Webhook-Signature).
	WebhookSecret string
}

type LedgerConfig struct {
	Currency string
	// Currencies lists extra wallet currencies accepted besides Currency.
	Currencies           []string
	PlatformFeePercent   string
	PlatformAccountID    uint
	PlatformAccountEmail string
	MinWithdrawalAmount  string
}

func Load() *Config {
	// .env is optional; real deployments pass env vars directly.
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         get("APP_PORT", "8099"),
			Env:          get("APP_ENV", "development"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			DSN:             get("DB_DSN", "ledger:ledger@tcp(localhost:3306)/ledger?charset=utf8mb4&parseTime=True&loc=Local"),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 100),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			Addr:     get("REDIS_ADDR", ""),
			Password: get("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			StatsTTL: getDuration("REDIS_STATS_TTL", 30*time.Second),
		},
		JWT: JWTConfig{
			AccessSecret: get("JWT_ACCESS_SECRET", "change-me-in-production"),
			AccessExpiry: getDuration("JWT_ACCESS_EXPIRY", 15*time.Minute),
			Issuer:       get("JWT_ISSUER", "wallet-ledger"),
		},
		Payment: PaymentConfig{
			WebhookSecret: get("PAYMENT_WEBHOOK_SECRET", ""),
		},
		Ledger: LedgerConfig{
			Currency:             get("LEDGER_CURRENCY", "USD"),
			Currencies:           getList("LEDGER_CURRENCIES"),
			PlatformFeePercent:   get("PLATFORM_FEE_PERCENT", "15"),
			PlatformAccountID:    uint(getInt("PLATFORM_ACCOUNT_ID", 0)),
			PlatformAccountEmail: get("PLATFORM_ACCOUNT_EMAIL", "revenue@platform.local"),
			MinWithdrawalAmount:  get("MIN_WITHDRAWAL_AMOUNT", "1.00"),
		},
	}
}

// IsProduction reports whether the server runs with production settings.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

func get(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

func getInt(k string, def int) int {
	v, err := strconv.Atoi(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}

func getList(k string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(k), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getDuration(k string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(k))
	if err != nil {
		return def
	}
	return v
}
