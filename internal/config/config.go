package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server  ServerConfig
	App     AppConfig
	Log     LogConfig
	Store   StoreConfig
	Google  GoogleConfig
	OAuth   OAuthConfig
	Session SessionConfig
	Media   MediaConfig
	Cache   CacheConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name           string   `envconfig:"APP_NAME" default:"patrimonio-api"`
	Environment    string   `envconfig:"APP_ENV" default:"development"`
	Version        string   `envconfig:"APP_VERSION" default:"1.0.0"`
	AllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"json"` // json or text
}

// StoreConfig selects and configures the row store backing both sheets.
type StoreConfig struct {
	Type           string        `envconfig:"STORE_TYPE" default:"excel"` // google, excel, sqlite, mysql, postgres
	ItemsSheet     string        `envconfig:"STORE_ITEMS_SHEET" default:"patrimonios"`
	UsersSheet     string        `envconfig:"STORE_USERS_SHEET" default:"users"`
	HealthInterval time.Duration `envconfig:"STORE_HEALTH_INTERVAL" default:"30s"`

	ExcelPath  string `envconfig:"STORE_EXCEL_PATH" default:"./data/patrimonio.xlsx"`
	SQLitePath string `envconfig:"STORE_SQLITE_PATH" default:"./data/patrimonio.db"`

	// MySQL / PostgreSQL settings
	Host     string `envconfig:"STORE_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"STORE_DB_PORT" default:"0"`
	Name     string `envconfig:"STORE_DB_NAME" default:"patrimonio"`
	User     string `envconfig:"STORE_DB_USER" default:"root"`
	Password string `envconfig:"STORE_DB_PASS" default:""`
	SSLMode  string `envconfig:"STORE_DB_SSLMODE" default:"disable"`
}

// GoogleConfig holds the service-account settings for the Sheets backend.
type GoogleConfig struct {
	CredentialsFile string `envconfig:"GOOGLE_CREDENTIALS_FILE" default:"./credentials.json"`
	SpreadsheetID   string `envconfig:"GOOGLE_SPREADSHEET_ID" default:""`
}

// OAuthConfig holds the Google sign-in client settings.
type OAuthConfig struct {
	GoogleClientID     string        `envconfig:"GOOGLE_CLIENT_ID" default:""`
	GoogleClientSecret string        `envconfig:"GOOGLE_CLIENT_SECRET" default:""`
	GoogleRedirectURL  string        `envconfig:"GOOGLE_REDIRECT_URL" default:"http://localhost:8080/auth/google/callback"`
	StateTTL           time.Duration `envconfig:"OAUTH_STATE_TTL" default:"10m"`
}

// SessionConfig holds session cookie settings.
type SessionConfig struct {
	Secret     string        `envconfig:"SESSION_SECRET" default:"change-me-to-a-long-random-secret"`
	TTL        time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	CookieName string        `envconfig:"SESSION_COOKIE_NAME" default:"patrimonio_session"`
	Secure     bool          `envconfig:"SESSION_COOKIE_SECURE" default:"false"`
}

// MediaConfig selects and configures the photo upload backend.
type MediaConfig struct {
	Type           string `envconfig:"MEDIA_TYPE" default:"local"` // local, gcs, s3, none
	MaxUploadBytes int64  `envconfig:"MEDIA_MAX_UPLOAD_BYTES" default:"5242880"`
	MaxDimension   int    `envconfig:"MEDIA_MAX_DIMENSION" default:"1600"`
	KeyPrefix      string `envconfig:"MEDIA_KEY_PREFIX" default:"patrimonios"`
	PublicBaseURL  string `envconfig:"MEDIA_PUBLIC_BASE_URL" default:""`

	LocalDir string `envconfig:"MEDIA_LOCAL_DIR" default:"./data/uploads"`

	GCSBucket          string `envconfig:"GCS_BUCKET" default:""`
	GCSCredentialsJSON string `envconfig:"GCS_CREDENTIALS_JSON" default:""`

	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Endpoint  string `envconfig:"S3_ENDPOINT" default:""`
	S3Bucket    string `envconfig:"S3_BUCKET" default:""`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY" default:""`
	S3SecretKey string `envconfig:"S3_SECRET_KEY" default:""`
}

// CacheConfig holds cache and writer-lock settings.
type CacheConfig struct {
	Type           string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	LockTTL        time.Duration `envconfig:"WRITE_LOCK_TTL" default:"15s"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_KEY_PREFIX" default:"patrimonio:"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// MySQLDSN returns the MySQL data source name.
func (s *StoreConfig) MySQLDSN() string {
	port := s.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
		s.User, s.Password, s.Host, port, s.Name)
}

// PostgresDSN returns the PostgreSQL connection string.
func (s *StoreConfig) PostgresDSN() string {
	port := s.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		s.User, s.Password, s.Host, port, s.Name, s.SSLMode)
}

// Enabled reports whether Google sign-in is configured.
func (o *OAuthConfig) Enabled() bool {
	return o.GoogleClientID != "" && o.GoogleClientSecret != ""
}

// IsDevelopment returns true if running in development mode.
func (a *AppConfig) IsDevelopment() bool {
	return a.Environment == "development"
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// DefaultSessionSecret is the development-only signing secret.
const DefaultSessionSecret = "change-me-to-a-long-random-secret"

const minSessionSecretLength = 32

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT %d out of range 1-65535", c.Server.Port)
	}

	switch strings.ToLower(c.Store.Type) {
	case "", "excel", "xlsx", "google", "sheets", "sqlite", "mysql", "postgres", "postgresql":
	default:
		return fmt.Errorf("unknown STORE_TYPE %q", c.Store.Type)
	}

	switch strings.ToLower(c.Media.Type) {
	case "", "none", "local", "gcs", "s3":
	default:
		return fmt.Errorf("unknown MEDIA_TYPE %q", c.Media.Type)
	}

	switch strings.ToLower(c.Cache.Type) {
	case "", "memory", "redis":
	default:
		return fmt.Errorf("unknown CACHE_TYPE %q", c.Cache.Type)
	}

	if c.App.IsProduction() {
		if c.Session.Secret == DefaultSessionSecret {
			return errors.New("SESSION_SECRET must be set in production")
		}
		if len(c.Session.Secret) < minSessionSecretLength {
			return fmt.Errorf("SESSION_SECRET must be at least %d characters in production", minSessionSecretLength)
		}
	}
	return nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
