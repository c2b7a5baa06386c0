package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Password      PasswordConfig
	AuthRateLimit AuthRateLimitConfig
	Quota         QuotaConfig
	Stripe        StripeConfig
	FeatureFlags  FeatureFlagsConfig
	Cron          CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"PHOTOSORT_APP_ENV" required:"true"`
	Port         string `envconfig:"PHOTOSORT_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PHOTOSORT_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PHOTOSORT_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PHOTOSORT_DB_DSN"`
	Driver string `envconfig:"PHOTOSORT_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PHOTOSORT_DB_HOST"`
	LegacyPort     int    `envconfig:"PHOTOSORT_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PHOTOSORT_DB_USER"`
	LegacyPassword string `envconfig:"PHOTOSORT_DB_PASSWORD"`
	LegacyName     string `envconfig:"PHOTOSORT_DB_NAME"`
	LegacySSLMode  string `envconfig:"PHOTOSORT_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PHOTOSORT_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PHOTOSORT_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PHOTOSORT_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PHOTOSORT_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (d *DBConfig) ensureDSN() error {
	if d.DSN != "" {
		return nil
	}
	if d.LegacyHost == "" || d.LegacyUser == "" || d.LegacyName == "" {
		return fmt.Errorf("either PHOTOSORT_DB_DSN or PHOTOSORT_DB_HOST/USER/NAME must be set")
	}
	userInfo := url.User(d.LegacyUser)
	if d.LegacyPassword != "" {
		userInfo = url.UserPassword(d.LegacyUser, d.LegacyPassword)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", d.LegacyHost, d.LegacyPort),
		Path:     d.LegacyName,
		RawQuery: "sslmode=" + d.LegacySSLMode,
	}
	d.DSN = u.String()
	return nil
}

type RedisConfig struct {
	URL          string        `envconfig:"PHOTOSORT_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PHOTOSORT_REDIS_ADDR"`
	Password     string        `envconfig:"PHOTOSORT_REDIS_PASSWORD"`
	DB           int           `envconfig:"PHOTOSORT_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PHOTOSORT_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PHOTOSORT_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PHOTOSORT_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PHOTOSORT_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PHOTOSORT_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret                 string `envconfig:"PHOTOSORT_JWT_SECRET" required:"true"`
	Issuer                 string `envconfig:"PHOTOSORT_JWT_ISSUER" required:"true"`
	ExpirationMinutes      int    `envconfig:"PHOTOSORT_JWT_EXPIRATION_MINUTES" required:"true"`
	RefreshTokenTTLMinutes int    `envconfig:"PHOTOSORT_REFRESH_TOKEN_TTL_MINUTES" default:"43200"`
}

// RefreshTokenTTL returns the refresh token TTL configured in minutes.
func (j JWTConfig) RefreshTokenTTL() time.Duration {
	if j.RefreshTokenTTLMinutes <= 0 {
		return 0
	}
	return time.Duration(j.RefreshTokenTTLMinutes) * time.Minute
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"PHOTOSORT_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"PHOTOSORT_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"PHOTOSORT_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"PHOTOSORT_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"PHOTOSORT_ARGON_KEY_LEN" default:"32"`
}

type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"PHOTOSORT_AUTH_RATE_LIMIT_LOGIN_WINDOW" default:"1m"`
	LoginEmailLimit    int           `envconfig:"PHOTOSORT_AUTH_RATE_LIMIT_LOGIN_EMAIL_LIMIT" default:"5"`
	LoginIPLimit       int           `envconfig:"PHOTOSORT_AUTH_RATE_LIMIT_LOGIN_IP_LIMIT" default:"20"`
	RegisterWindow     time.Duration `envconfig:"PHOTOSORT_AUTH_RATE_LIMIT_REGISTER_WINDOW" default:"5m"`
	RegisterEmailLimit int           `envconfig:"PHOTOSORT_AUTH_RATE_LIMIT_REGISTER_EMAIL_LIMIT" default:"3"`
	RegisterIPLimit    int           `envconfig:"PHOTOSORT_AUTH_RATE_LIMIT_REGISTER_IP_LIMIT" default:"20"`
}

// QuotaConfig controls the free-tier metering thresholds and the premium grant period.
type QuotaConfig struct {
	FreeTierLimit     int `envconfig:"PHOTOSORT_QUOTA_FREE_TIER_LIMIT" default:"1000"`
	PremiumPeriodDays int `envconfig:"PHOTOSORT_QUOTA_PREMIUM_PERIOD_DAYS" default:"30"`
}

// PremiumPeriod returns the default grant window applied when a checkout
// completes without an explicit period end.
func (q QuotaConfig) PremiumPeriod() time.Duration {
	days := q.PremiumPeriodDays
	if days <= 0 {
		days = 30
	}
	return time.Duration(days) * 24 * time.Hour
}

type StripeConfig struct {
	APIKey     string `envconfig:"PHOTOSORT_STRIPE_API_KEY"`
	Secret     string `envconfig:"PHOTOSORT_STRIPE_SECRET"`
	Env        string `envconfig:"PHOTOSORT_STRIPE_ENV" default:"test"`
	PriceID    string `envconfig:"PHOTOSORT_STRIPE_PRICE_ID"`
	SuccessURL string `envconfig:"PHOTOSORT_STRIPE_SUCCESS_URL"`
	CancelURL  string `envconfig:"PHOTOSORT_STRIPE_CANCEL_URL"`

	WebhookIdempotencyTTL time.Duration `envconfig:"PHOTOSORT_STRIPE_WEBHOOK_IDEMPOTENCY_TTL" default:"720h"`
}

// Environment reports the configured Stripe environment.
func (s StripeConfig) Environment() string {
	return s.Env
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"PHOTOSORT_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"PHOTOSORT_AUTO_MIGRATE" default:"false"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"PHOTOSORT_CRON_INTERVAL" default:"24h"`
	LockKey  string        `envconfig:"PHOTOSORT_CRON_LOCK_KEY" default:"photosort:cron:lock"`
	LockTTL  time.Duration `envconfig:"PHOTOSORT_CRON_LOCK_TTL" default:"25h"`
}
