package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

const (
	EnvPrefix = ""

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Password PasswordConfig
	Fees     FeesConfig
	Platform PlatformConfig
	Cron     CronConfig

	FeatureFlags FeatureFlagsConfig
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"BATA_AUTO_MIGRATE" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Fees.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"BATA_APP_ENV" required:"true"`
	Port         string `envconfig:"BATA_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"BATA_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"BATA_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"BATA_DB_DSN"`
	Driver string `envconfig:"BATA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BATA_DB_HOST"`
	Port     int    `envconfig:"BATA_DB_PORT" default:"5432"`
	User     string `envconfig:"BATA_DB_USER"`
	Password string `envconfig:"BATA_DB_PASSWORD"`
	Name     string `envconfig:"BATA_DB_NAME"`
	SSLMode  string `envconfig:"BATA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BATA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BATA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BATA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BATA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"BATA_REDIS_URL"`
	Address      string        `envconfig:"BATA_REDIS_ADDR"`
	Password     string        `envconfig:"BATA_REDIS_PASSWORD"`
	DB           int           `envconfig:"BATA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BATA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BATA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BATA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BATA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BATA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BATA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BATA_JWT_ISSUER" default:"bata"`
	ExpirationMinutes int    `envconfig:"BATA_JWT_EXPIRATION_MINUTES" default:"60"`
}

type PasswordConfig struct {
	ArgonMemoryKB    int `envconfig:"BATA_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int `envconfig:"BATA_ARGON_TIME" default:"3"`
	ArgonParallelism int `envconfig:"BATA_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int `envconfig:"BATA_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int `envconfig:"BATA_ARGON_KEY_LEN" default:"32"`
}

// FeesConfig externalizes the money split policy so rate changes never touch
// the checkout or settlement code paths.
type FeesConfig struct {
	DefaultRate       string   `envconfig:"BATA_FEE_DEFAULT_RATE" default:"0.05"`
	HighRate          string   `envconfig:"BATA_FEE_HIGH_RATE" default:"0.10"`
	HighRateCategory  []string `envconfig:"BATA_FEE_HIGH_RATE_CATEGORIES" default:"food,drinks"`
	DeliveryFeeKobo   int64    `envconfig:"BATA_DELIVERY_FEE_KOBO" default:"80000"`
	RiderPayoutKobo   int64    `envconfig:"BATA_RIDER_PAYOUT_KOBO" default:"56000"`
	OrderNumberPrefix string   `envconfig:"BATA_ORDER_NUMBER_PREFIX" default:"BATA"`
}

func (f FeesConfig) validate() error {
	def, err := decimal.NewFromString(f.DefaultRate)
	if err != nil {
		return fmt.Errorf("invalid default fee rate %q: %w", f.DefaultRate, err)
	}
	high, err := decimal.NewFromString(f.HighRate)
	if err != nil {
		return fmt.Errorf("invalid high fee rate %q: %w", f.HighRate, err)
	}
	one := decimal.NewFromInt(1)
	if def.IsNegative() || def.GreaterThanOrEqual(one) || high.IsNegative() || high.GreaterThanOrEqual(one) {
		return fmt.Errorf("fee rates must be within [0,1)")
	}
	if f.RiderPayoutKobo > f.DeliveryFeeKobo {
		return fmt.Errorf("rider payout %d exceeds delivery fee %d", f.RiderPayoutKobo, f.DeliveryFeeKobo)
	}
	return nil
}

// DefaultRateDecimal returns the parsed default commission rate.
func (f FeesConfig) DefaultRateDecimal() decimal.Decimal {
	rate, _ := decimal.NewFromString(f.DefaultRate)
	return rate
}

// HighRateDecimal returns the parsed high-fee commission rate.
func (f FeesConfig) HighRateDecimal() decimal.Decimal {
	rate, _ := decimal.NewFromString(f.HighRate)
	return rate
}

type PlatformConfig struct {
	// AccountID is the user row that accrues platform commission and
	// unclaimed rider payouts.
	AccountID uuid.UUID `envconfig:"BATA_PLATFORM_ACCOUNT_ID" required:"true"`
}

type CronConfig struct {
	Interval         time.Duration `envconfig:"BATA_CRON_INTERVAL" default:"1h"`
	LockTTL          time.Duration `envconfig:"BATA_CRON_LOCK_TTL" default:"55m"`
	AutoConfirmAfter time.Duration `envconfig:"BATA_AUTO_CONFIRM_AFTER" default:"168h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for env, value := range map[string]string{
		"BATA_DB_HOST": db.Host,
		"BATA_DB_USER": db.User,
		"BATA_DB_NAME": db.Name,
	} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either BATA_DB_DSN or %s are required", strings.Join(missing, ", "))
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
