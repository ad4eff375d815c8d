package config

import (
	"fmt"
	"os"
	"time"
)

// Config configuración principal de la aplicación
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Relay    RelayConfig
	WhatsApp WhatsAppConfig
	Genesys  GenesysConfig
	Auth     AuthServiceConfig
}

// ServerConfig configuración del servidor HTTP
type ServerConfig struct {
	Port            string
	Environment     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig configuración de PostgreSQL
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configuración de Redis. El pool debe cubrir los consumers
// bloqueados en Pop además del tráfico de requests; con pocos conns los
// BRPOPLPUSH acaparan el pool y los handlers ven timeouts.
type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// StorageConfig configuración del object storage (S3/MinIO) para media
type StorageConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string // override para construir URLs públicas; vacío = endpoint
}

// UnsupportedMimeBehavior define qué hacer con MIME types no soportados
type UnsupportedMimeBehavior string

const (
	MimeConvertToDocument UnsupportedMimeBehavior = "convert_to_document"
	MimeTextFallback      UnsupportedMimeBehavior = "text_fallback"
	MimeReject            UnsupportedMimeBehavior = "reject"
)

// RelayConfig configuración del pipeline de entrega
type RelayConfig struct {
	MaxRetries       int
	Prefetch         int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	SendTimeout      time.Duration
	MediaTimeout     time.Duration
	DedupeTTL        time.Duration
	IgnoreSentStatus bool
	UnsupportedMime  UnsupportedMimeBehavior
}

// WhatsAppConfig configuración del lado Meta / WhatsApp Business
type WhatsAppConfig struct {
	APIVersion        string
	AppSecret         string // fallback global para verificación de firmas
	VerifyToken       string
	GraphBaseURL      string
}

// GenesysConfig configuración del lado Genesys Cloud Open Messaging
type GenesysConfig struct {
	Region        string
	WebhookSecret string // fallback global para verificación de firmas
}

// AuthServiceConfig ubicación del credential provider externo
type AuthServiceConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	TokenBuffer    time.Duration
}

// Load carga la configuración desde variables de entorno
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			ReadTimeout:     getDurationEnv("READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", getEnv("POSTGRES_HOST", "localhost")),
			Port:            getEnv("DB_PORT", getEnv("POSTGRES_PORT", "5432")),
			User:            getEnv("DB_USER", getEnv("POSTGRES_USER", "postgres")),
			Password:        getEnv("DB_PASSWORD", getEnv("POSTGRES_PASSWORD", "postgres")),
			DBName:          getEnv("DB_NAME", getEnv("POSTGRES_DB", "waba_relay")),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getIntEnv("REDIS_DB", 0),
			PoolSize:     getIntEnv("REDIS_POOL_SIZE", 30),
			MinIdleConns: getIntEnv("REDIS_MIN_IDLE_CONNS", 5),
		},
		Storage: StorageConfig{
			Endpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
			Region:    getEnv("STORAGE_REGION", "us-east-1"),
			AccessKey: getEnv("STORAGE_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("STORAGE_SECRET_KEY", "minioadmin"),
			Bucket:    getEnv("STORAGE_BUCKET", "relay-media"),
			UseSSL:    getBoolEnv("STORAGE_USE_SSL", false),
			PublicURL: getEnv("STORAGE_PUBLIC_URL", ""),
		},
		Relay: RelayConfig{
			MaxRetries:       getIntEnv("RELAY_MAX_RETRIES", 3),
			Prefetch:         getIntEnv("RELAY_PREFETCH", 5),
			RetryBaseDelay:   getDurationEnv("RELAY_RETRY_BASE_DELAY", 2*time.Second),
			RetryMaxDelay:    getDurationEnv("RELAY_RETRY_MAX_DELAY", 60*time.Second),
			SendTimeout:      getDurationEnv("RELAY_SEND_TIMEOUT", 30*time.Second),
			MediaTimeout:     getDurationEnv("RELAY_MEDIA_TIMEOUT", 60*time.Second),
			DedupeTTL:        getDurationEnv("RELAY_DEDUPE_TTL", 24*time.Hour),
			IgnoreSentStatus: getBoolEnv("RELAY_IGNORE_SENT_STATUS", true),
			UnsupportedMime:  UnsupportedMimeBehavior(getEnv("RELAY_UNSUPPORTED_MIME", string(MimeConvertToDocument))),
		},
		WhatsApp: WhatsAppConfig{
			APIVersion:   getEnv("WHATSAPP_API_VERSION", "v24.0"),
			AppSecret:    getEnv("WHATSAPP_APP_SECRET", ""),
			VerifyToken:  getEnv("WHATSAPP_VERIFY_TOKEN", ""),
			GraphBaseURL: getEnv("WHATSAPP_GRAPH_BASE_URL", "https://graph.facebook.com"),
		},
		Genesys: GenesysConfig{
			Region:        getEnv("GENESYS_REGION", "mypurecloud.com"),
			WebhookSecret: getEnv("GENESYS_WEBHOOK_SECRET", ""),
		},
		Auth: AuthServiceConfig{
			BaseURL:        getEnv("AUTH_SERVICE_URL", "http://localhost:3005"),
			RequestTimeout: getDurationEnv("AUTH_REQUEST_TIMEOUT", 10*time.Second),
			TokenBuffer:    getDurationEnv("AUTH_TOKEN_BUFFER", 5*time.Minute),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate valida la configuración
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.DBName == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}
	if c.Relay.MaxRetries < 0 {
		return fmt.Errorf("RELAY_MAX_RETRIES must be >= 0")
	}
	if c.Relay.Prefetch < 1 {
		return fmt.Errorf("RELAY_PREFETCH must be >= 1")
	}

	switch c.Relay.UnsupportedMime {
	case MimeConvertToDocument, MimeTextFallback, MimeReject:
	default:
		return fmt.Errorf("RELAY_UNSUPPORTED_MIME inválido: %s", c.Relay.UnsupportedMime)
	}

	return nil
}

// GetDSN retorna el DSN de PostgreSQL
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// GetAddr retorna la dirección de Redis
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var intValue int
		if _, err := fmt.Sscanf(value, "%d", &intValue); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	switch os.Getenv(key) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
