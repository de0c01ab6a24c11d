package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const EnvPrefix = "SOKOPLACE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Password     PasswordConfig
	RateLimit    RateLimitConfig
	Paystack     PaystackConfig
	Delivery     DeliveryConfig
	Platform     PlatformConfig
	Email        EmailConfig
	FeatureFlags FeatureFlagsConfig
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
	Env          string `envconfig:"SOKOPLACE_APP_ENV" required:"true"`
	Port         string `envconfig:"SOKOPLACE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SOKOPLACE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SOKOPLACE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SOKOPLACE_DB_DSN"`
	Driver string `envconfig:"SOKOPLACE_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SOKOPLACE_DB_HOST"`
	Port     int    `envconfig:"SOKOPLACE_DB_PORT" default:"5432"`
	User     string `envconfig:"SOKOPLACE_DB_USER"`
	Password string `envconfig:"SOKOPLACE_DB_PASSWORD"`
	Name     string `envconfig:"SOKOPLACE_DB_NAME"`
	SSLMode  string `envconfig:"SOKOPLACE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SOKOPLACE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SOKOPLACE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SOKOPLACE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SOKOPLACE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SOKOPLACE_REDIS_URL"`
	Address      string        `envconfig:"SOKOPLACE_REDIS_ADDR"`
	Password     string        `envconfig:"SOKOPLACE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SOKOPLACE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SOKOPLACE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SOKOPLACE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SOKOPLACE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SOKOPLACE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SOKOPLACE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SOKOPLACE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SOKOPLACE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SOKOPLACE_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"SOKOPLACE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"SOKOPLACE_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"SOKOPLACE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"SOKOPLACE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"SOKOPLACE_ARGON_KEY_LEN" default:"32"`
}

type RateLimitConfig struct {
	PaymentWindow time.Duration `envconfig:"SOKOPLACE_RATE_LIMIT_PAYMENT_WINDOW" default:"1m"`
	PaymentLimit  int64         `envconfig:"SOKOPLACE_RATE_LIMIT_PAYMENT_LIMIT" default:"10"`
	CancelWindow  time.Duration `envconfig:"SOKOPLACE_RATE_LIMIT_CANCEL_WINDOW" default:"1m"`
	CancelLimit   int64         `envconfig:"SOKOPLACE_RATE_LIMIT_CANCEL_LIMIT" default:"5"`
}

type PaystackConfig struct {
	SecretKey     string        `envconfig:"SOKOPLACE_PAYSTACK_SECRET_KEY" required:"true"`
	BaseURL       string        `envconfig:"SOKOPLACE_PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	CallbackURL   string        `envconfig:"SOKOPLACE_PAYSTACK_CALLBACK_URL"`
	WebhookSecret string        `envconfig:"SOKOPLACE_PAYSTACK_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"SOKOPLACE_PAYSTACK_TIMEOUT" default:"15s"`
}

// SignatureSecret returns the key used to verify webhook signatures. Paystack
// signs webhooks with the account secret key unless a dedicated secret is set.
func (p PaystackConfig) SignatureSecret() string {
	if p.WebhookSecret != "" {
		return p.WebhookSecret
	}
	return p.SecretKey
}

type DeliveryConfig struct {
	BaseFee   float64 `envconfig:"SOKOPLACE_DELIVERY_BASE_FEE" default:"500"`
	PerKMFee  float64 `envconfig:"SOKOPLACE_DELIVERY_PER_KM_FEE" default:"100"`
	MinFee    float64 `envconfig:"SOKOPLACE_DELIVERY_MIN_FEE" default:"500"`
	MaxFee    float64 `envconfig:"SOKOPLACE_DELIVERY_MAX_FEE" default:"5000"`
	BaseMins  int     `envconfig:"SOKOPLACE_DELIVERY_BASE_MINUTES" default:"30"`
	MinsPerKM int     `envconfig:"SOKOPLACE_DELIVERY_MINUTES_PER_KM" default:"10"`
}

type PlatformConfig struct {
	FeePercent float64 `envconfig:"SOKOPLACE_PLATFORM_FEE_PERCENT" default:"5"`
}

type EmailConfig struct {
	APIKey      string        `envconfig:"SOKOPLACE_EMAIL_API_KEY"`
	BaseURL     string        `envconfig:"SOKOPLACE_EMAIL_BASE_URL"`
	DefaultFrom string        `envconfig:"SOKOPLACE_EMAIL_FROM" default:"no-reply@sokoplace.com"`
	Timeout     time.Duration `envconfig:"SOKOPLACE_EMAIL_TIMEOUT" default:"10s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SOKOPLACE_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SOKOPLACE_AUTO_MIGRATE" default:"false"`
	// CancelBlocksOnRefund gates cancellation on refund settlement instead of
	// cancelling immediately and finalizing stock on the refund webhook.
	CancelBlocksOnRefund bool `envconfig:"SOKOPLACE_CANCEL_BLOCKS_ON_REFUND" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	required := map[string]string{
		"SOKOPLACE_DB_HOST": db.Host,
		"SOKOPLACE_DB_USER": db.User,
		"SOKOPLACE_DB_NAME": db.Name,
	}
	for _, key := range []string{"SOKOPLACE_DB_HOST", "SOKOPLACE_DB_USER", "SOKOPLACE_DB_NAME"} {
		if required[key] == "" {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either SOKOPLACE_DB_DSN or %s are required", strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
