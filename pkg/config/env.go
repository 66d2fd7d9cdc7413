package config

const EnvPrefix = "SHOPCART"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	DefaultSQLiteDSN = "file:shopcart.db?_busy_timeout=5000&_foreign_keys=on&_txlock=immediate"
)

const (
	EnvAppEnv   = "SHOPCART_APP_ENV"
	EnvPort     = "SHOPCART_APP_PORT"
	EnvLogLevel = "SHOPCART_LOG_LEVEL"

	EnvDBDSN     = "SHOPCART_DB_DSN"
	EnvDBDriver  = "SHOPCART_DB_DRIVER"
	EnvDBHost    = "SHOPCART_DB_HOST"
	EnvDBUser    = "SHOPCART_DB_USER"
	EnvDBName    = "SHOPCART_DB_NAME"
	EnvUseSQLite = "SHOPCART_USE_SQLITE"

	EnvRedisURL = "SHOPCART_REDIS_URL"

	EnvJWTSecret  = "SHOPCART_JWT_SECRET"
	EnvJWTIssuer  = "SHOPCART_JWT_ISSUER"
	EnvJWTExpMins = "SHOPCART_JWT_EXPIRATION_MINUTES"

	EnvCartRateLimitWindow    = "SHOPCART_CART_RATE_LIMIT_WINDOW"
	EnvCartRateLimitMutations = "SHOPCART_CART_RATE_LIMIT_MUTATIONS"
	EnvIdempotencyRequireKey  = "SHOPCART_IDEMPOTENCY_REQUIRE_KEY"
	EnvCORSAllowedOrigins     = "SHOPCART_CORS_ALLOWED_ORIGINS"

	EnvOTelEnabled     = "SHOPCART_OTEL_ENABLED"
	EnvOTelEndpoint    = "SHOPCART_OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTelSampleRatio = "SHOPCART_OTEL_SAMPLER_RATIO"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
