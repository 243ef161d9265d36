package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Redis    RedisConfig
	Log      LogConfig
	Ledger   LedgerConfig
	Cron     CronConfig
	Seed     SeedConfig

	allowedOrigins string

	// EnvFileLoaded reports whether a .env file was found
	EnvFileLoaded bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	AccessTokenMins  int
	RefreshTokenDays int
}

func (j JWTConfig) AccessTTL() time.Duration {
	return time.Duration(j.AccessTokenMins) * time.Minute
}

func (j JWTConfig) RefreshTTL() time.Duration {
	return time.Duration(j.RefreshTokenDays) * 24 * time.Hour
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// RedisConfig holds the dashboard cache connection. An empty URL disables caching.
type RedisConfig struct {
	URL      string
	CacheTTL time.Duration
}

// LogConfig holds logger settings
type LogConfig struct {
	Level    string
	Encoding string
}

// LedgerConfig holds business rules that vary per deployment
type LedgerConfig struct {
	LoanMinAmount decimal.Decimal
}

// CronConfig holds background job schedules. An empty spec disables the job.
type CronConfig struct {
	MonthlyReport string
	TokenCleanup  string
}

// SeedConfig holds the initial superadmin account
type SeedConfig struct {
	SuperAdminEmail    string
	SuperAdminPassword string
}

const (
	defaultSecret        = "default_secret"
	defaultRefreshSecret = "default_refresh_secret"
)

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// .env is optional; production reads the real environment
	envLoaded := godotenv.Load() == nil

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	// trim spaces for Windows compatibility
	appMode := strings.TrimSpace(v.GetString("APP_MODE"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	loanMin, err := decimal.NewFromString(v.GetString("LOAN_MIN_AMOUNT"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOAN_MIN_AMOUNT: %w", err)
	}

	config := &Config{
		AppMode:  appMode,
		Port:     v.GetString("PORT"),
		Database: loadDatabaseConfig(v, appMode),
		JWT:      loadJWTConfig(v, appMode),
		Cookie:   loadCookieConfig(v, appMode),
		Redis: RedisConfig{
			URL:      v.GetString("REDIS_URL"),
			CacheTTL: v.GetDuration("DASHBOARD_CACHE_TTL"),
		},
		Log: LogConfig{
			Level:    v.GetString("LOG_LEVEL"),
			Encoding: v.GetString("LOG_ENCODING"),
		},
		Ledger: LedgerConfig{LoanMinAmount: loanMin},
		Cron: CronConfig{
			MonthlyReport: v.GetString("REPORT_CRON"),
			TokenCleanup:  v.GetString("TOKEN_CLEANUP_CRON"),
		},
		Seed: SeedConfig{
			SuperAdminEmail:    v.GetString("SUPERADMIN_EMAIL"),
			SuperAdminPassword: v.GetString("SUPERADMIN_PASSWORD"),
		},
		EnvFileLoaded:  envLoaded,
		allowedOrigins: strings.TrimSpace(v.GetString("ALLOWED_ORIGINS")),
	}

	// dev logs are read by humans
	if config.Log.Encoding == "" {
		config.Log.Encoding = "json"
		if config.IsDev() {
			config.Log.Encoding = "console"
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_MODE", "dev")
	v.SetDefault("PORT", "3000")
	v.SetDefault("ACCESS_TOKEN_MINUTES", 15)
	v.SetDefault("REFRESH_TOKEN_DAYS", 7)
	v.SetDefault("COOKIE_SAMESITE", "lax")
	v.SetDefault("DASHBOARD_CACHE_TTL", "60s")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOAN_MIN_AMOUNT", "1000")
	v.SetDefault("REPORT_CRON", "0 1 1 * *")
	v.SetDefault("TOKEN_CLEANUP_CRON", "30 3 * * *")
}

// Validate rejects configurations the server must not start with
func (c *Config) Validate() error {
	var errs []error
	if c.IsProd() {
		if c.JWT.Secret == "" || c.JWT.Secret == defaultSecret {
			errs = append(errs, errors.New("PROD_JWT_SECRET must be set in prod mode"))
		}
		if c.JWT.RefreshSecret == "" || c.JWT.RefreshSecret == defaultRefreshSecret {
			errs = append(errs, errors.New("PROD_JWT_REFRESH_SECRET must be set in prod mode"))
		}
	}
	if c.JWT.AccessTokenMins <= 0 || c.JWT.RefreshTokenDays <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if !c.Ledger.LoanMinAmount.IsPositive() {
		errs = append(errs, errors.New("LOAN_MIN_AMOUNT must be positive"))
	}
	return errors.Join(errs...)
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(v *viper.Viper, mode string) DatabaseConfig {
	prefix := modePrefix(mode)

	return DatabaseConfig{
		Host:     stringOr(v, prefix+"DB_HOST", "localhost"),
		Port:     stringOr(v, prefix+"DB_PORT", "3306"),
		User:     stringOr(v, prefix+"DB_USER", "root"),
		Password: v.GetString(prefix + "DB_PASS"),
		DBName:   stringOr(v, prefix+"DB_NAME", "alumni_ledger"),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(v *viper.Viper, mode string) JWTConfig {
	prefix := modePrefix(mode)

	secret, refresh := defaultSecret, defaultRefreshSecret
	if mode == "prod" {
		secret, refresh = "", ""
	}

	return JWTConfig{
		Secret:           stringOr(v, prefix+"JWT_SECRET", secret),
		RefreshSecret:    stringOr(v, prefix+"JWT_REFRESH_SECRET", refresh),
		AccessTokenMins:  v.GetInt("ACCESS_TOKEN_MINUTES"),
		RefreshTokenDays: v.GetInt("REFRESH_TOKEN_DAYS"),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(v *viper.Viper, mode string) CookieConfig {
	prefix := modePrefix(mode)

	return CookieConfig{
		Secure:   v.GetBool(prefix + "COOKIE_SECURE"),
		SameSite: v.GetString("COOKIE_SAMESITE"),
		Domain:   v.GetString("COOKIE_DOMAIN"),
	}
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

func stringOr(v *viper.Viper, key, fallback string) string {
	if value := strings.TrimSpace(v.GetString(key)); value != "" {
		return value
	}
	return fallback
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	if c.allowedOrigins == "" {
		if c.IsDev() {
			return "*"
		}
		return "https://alumni.example.org"
	}
	return c.allowedOrigins
}
