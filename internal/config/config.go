package config

import "os"

type Config struct {
	App      AppConfig
	Auth     AuthConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Mailer   MailerConfig
}

type AppConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ClientURL string
}

type AuthConfig struct {
	AccessSecret    string
	ServiceSecret   string
	DeviceSecret    string
	AccessTTL       string
	RefreshTTL      string
	ServiceTTL      string
	DeviceTTL       string
	VerificationTTL string
	CookieDomain    string
	CookiePath      string
	CookieSecure    string
	CookieSameSite  string
}

type PostgresConfig struct {
	DatabaseURL string
	Host        string
	Port        string
	User        string
	Password    string
	Database    string
	SSLMode     string
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        string
	KeyPrefix string
}

type CacheConfig struct {
	LocalMaxItems string
	LocalTTL      string
	SweepInterval string
}

type MailerConfig struct {
	RelayURL string
	APIToken string
	From     string
}

func Load() Config {
	return Config{
		App: AppConfig{
			Port:      getenv("PORT", "8080"),
			Env:       getenv("APP_ENV", "development"),
			LogLevel:  getenv("LOG_LEVEL", "info"),
			ClientURL: getenv("CLIENT_URL", "http://localhost:3000"),
		},
		Auth: AuthConfig{
			AccessSecret:    os.Getenv("JWT_ACCESS_SECRET"),
			ServiceSecret:   os.Getenv("JWT_SERVICE_SECRET"),
			DeviceSecret:    os.Getenv("JWT_DEVICE_SECRET"),
			AccessTTL:       getenv("JWT_ACCESS_TTL", "15m"),
			RefreshTTL:      getenv("REFRESH_TOKEN_TTL", "168h"),
			ServiceTTL:      getenv("SERVICE_TOKEN_TTL", "15m"),
			DeviceTTL:       getenv("TRUSTED_DEVICE_TTL", "720h"),
			VerificationTTL: getenv("EMAIL_VERIFY_TTL", "24h"),
			CookieDomain:    os.Getenv("AUTH_COOKIE_DOMAIN"),
			CookiePath:      getenv("AUTH_COOKIE_PATH", "/"),
			CookieSecure:    getenv("AUTH_COOKIE_SECURE", "true"),
			CookieSameSite:  getenv("AUTH_COOKIE_SAMESITE", "lax"),
		},
		Postgres: PostgresConfig{
			DatabaseURL: os.Getenv("DATABASE_URL"),
			Host:        getenv("PGHOST", "localhost"),
			Port:        getenv("PGPORT", "5432"),
			User:        os.Getenv("PGUSER"),
			Password:    os.Getenv("PGPASSWORD"),
			Database:    os.Getenv("PGDATABASE"),
			SSLMode:     getenv("PGSSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:      getenv("REDIS_ADDR", "localhost:6379"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        getenv("REDIS_DB", "0"),
			KeyPrefix: getenv("REDIS_KEY_PREFIX", "authgrid:"),
		},
		Cache: CacheConfig{
			LocalMaxItems: getenv("CACHE_LOCAL_MAX_ITEMS", "5000"),
			LocalTTL:      getenv("CACHE_LOCAL_TTL", "30s"),
			SweepInterval: getenv("CACHE_SWEEP_INTERVAL", "30s"),
		},
		Mailer: MailerConfig{
			RelayURL: os.Getenv("MAIL_RELAY_URL"),
			APIToken: os.Getenv("MAIL_API_TOKEN"),
			From:     getenv("MAIL_FROM", "no-reply@authgrid.local"),
		},
	}
}

func getenv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
