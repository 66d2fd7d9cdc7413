package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	CartLimits   CartRateLimitConfig
	Idempotency  IdempotencyConfig
	CORS         CORSConfig
	Tracing      TracingConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHOPCART_APP_ENV" required:"true"`
	Port         string `envconfig:"SHOPCART_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"SHOPCART_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHOPCART_LOG_WARN_STACK" default:"false"`
	// ShutdownTimeout bounds how long in-flight requests may drain on SIGTERM.
	ShutdownTimeout time.Duration `envconfig:"SHOPCART_SHUTDOWN_TIMEOUT" default:"15s"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"SHOPCART_DB_DSN"`
	Driver string `envconfig:"SHOPCART_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SHOPCART_DB_HOST"`
	LegacyPort     int    `envconfig:"SHOPCART_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SHOPCART_DB_USER"`
	LegacyPassword string `envconfig:"SHOPCART_DB_PASSWORD"`
	LegacyName     string `envconfig:"SHOPCART_DB_NAME"`
	LegacySSLMode  string `envconfig:"SHOPCART_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHOPCART_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHOPCART_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHOPCART_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHOPCART_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// Dialect normalizes the configured driver to either postgres or sqlite.
func (db DBConfig) Dialect() string {
	switch strings.ToLower(strings.TrimSpace(db.Driver)) {
	case DBDriverSQLite, "sqlite3":
		return DBDriverSQLite
	default:
		return DBDriverPostgres
	}
}

// RedisConfig is optional; leaving both URL and address empty runs the API
// without idempotency replay, rate limiting and session revocation checks.
type RedisConfig struct {
	URL          string        `envconfig:"SHOPCART_REDIS_URL"`
	Address      string        `envconfig:"SHOPCART_REDIS_ADDR"`
	Password     string        `envconfig:"SHOPCART_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPCART_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPCART_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHOPCART_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHOPCART_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPCART_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHOPCART_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.URL) != "" || strings.TrimSpace(r.Address) != ""
}

type JWTConfig struct {
	Secret            string `envconfig:"SHOPCART_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHOPCART_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHOPCART_JWT_EXPIRATION_MINUTES" default:"60"`
}

// AccessTokenTTL returns the access token lifetime configured in minutes.
func (j JWTConfig) AccessTokenTTL() time.Duration {
	if j.ExpirationMinutes <= 0 {
		return 0
	}
	return time.Duration(j.ExpirationMinutes) * time.Minute
}

type FeatureFlagsConfig struct {
	UseSQLite    bool `envconfig:"SHOPCART_USE_SQLITE" default:"false"`
	AutoMigrate  bool `envconfig:"SHOPCART_AUTO_MIGRATE" default:"false"`
	SessionCheck bool `envconfig:"SHOPCART_SESSION_CHECK" default:"false"`
}

type CartRateLimitConfig struct {
	MutationWindow time.Duration `envconfig:"SHOPCART_CART_RATE_LIMIT_WINDOW" default:"1m"`
	MutationLimit  int           `envconfig:"SHOPCART_CART_RATE_LIMIT_MUTATIONS" default:"120"`
}

type IdempotencyConfig struct {
	TTL        time.Duration `envconfig:"SHOPCART_IDEMPOTENCY_TTL" default:"24h"`
	RequireKey bool          `envconfig:"SHOPCART_IDEMPOTENCY_REQUIRE_KEY" default:"false"`
}

type CORSConfig struct {
	AllowedOrigins []string `envconfig:"SHOPCART_CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
}

// TracingConfig controls OpenTelemetry export. With no endpoint, spans go to stdout.
type TracingConfig struct {
	Enabled     bool    `envconfig:"SHOPCART_OTEL_ENABLED" default:"false"`
	Endpoint    string  `envconfig:"SHOPCART_OTEL_EXPORTER_OTLP_ENDPOINT"`
	Insecure    bool    `envconfig:"SHOPCART_OTEL_EXPORTER_OTLP_INSECURE" default:"false"`
	SampleRatio float64 `envconfig:"SHOPCART_OTEL_SAMPLER_RATIO" default:"0.1"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	if db.Dialect() == DBDriverSQLite {
		db.DSN = DefaultSQLiteDSN
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
