package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DatabaseConfig holds PostgreSQL database connection settings.
type DatabaseConfig struct {
	Host               string
	Port               string
	User               string
	Password           string
	Name               string
	SSLMode            string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeSec int
	// AutoMigrate runs the schema migration when the API starts.
	AutoMigrate bool
}

// MinIOConfig holds object storage settings for signature documents.
type MinIOConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	UseSSL     bool
	PresignTTL time.Duration
}

// DocuSignConfig holds the eSignature REST API credentials and Connect settings.
// AppToken, when set, is sent as a bearer token instead of the legacy
// X-DocuSign-Authentication header built from Username, Password and IntegratorKey.
type DocuSignConfig struct {
	RootURL       string
	AccountID     string
	AccountURL    string
	Username      string
	Password      string
	IntegratorKey string
	AppToken      string
	Timeout       time.Duration
	ConnectSecret string
	UseCallback   bool
}

// BaseURL returns the account-scoped API URL. AccountURL wins when set.
func (c DocuSignConfig) BaseURL() string {
	if c.AccountURL != "" {
		return strings.TrimRight(c.AccountURL, "/")
	}
	return strings.TrimRight(c.RootURL, "/") + "/accounts/" + c.AccountID
}

// LoggerConfig selects the zap encoder, level and output.
type LoggerConfig struct {
	Level      string
	Format     string
	OutputPath string
}

// TracingConfig holds the OpenTelemetry settings not covered by the standard OTEL_* variables.
type TracingConfig struct {
	Disabled    bool
	ServiceName string
	Protocol    string
	Endpoint    string
	Sampler     string
	SamplerArg  string
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from environment variables. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost   string
	Port      string
	PublicURL string
	Database  DatabaseConfig
	MinIO     MinIOConfig
	DocuSign  DocuSignConfig
	Logger    LoggerConfig
	Tracing   TracingConfig
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// This function does not require a .env file; real environment variables take precedence.
func Load() *AppConfig {
	port := getEnv("PORT", "8080")
	return &AppConfig{
		AppHost:   getEnv("APP_HOST", "localhost:8080"),
		Port:      port,
		PublicURL: strings.TrimRight(getEnv("PUBLIC_URL", "http://localhost:"+port), "/"),
		Database: DatabaseConfig{
			Host:               getEnv("DB_HOST", ""),
			Port:               getEnv("DB_PORT", "5432"),
			User:               getEnv("DB_USER", ""),
			Password:           getEnv("DB_PASSWORD", ""),
			Name:               getEnv("DB_NAME", ""),
			SSLMode:            getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", 300),
			AutoMigrate:        getEnvBool("DB_AUTO_MIGRATE", true),
		},
		MinIO: MinIOConfig{
			Endpoint:   getEnv("MINIO_ENDPOINT", ""),
			AccessKey:  getEnv("MINIO_ACCESS_KEY", ""),
			SecretKey:  getEnv("MINIO_SECRET_KEY", ""),
			Bucket:     getEnv("MINIO_BUCKET", ""),
			UseSSL:     getEnvBool("MINIO_USE_SSL", false),
			PresignTTL: time.Duration(getEnvInt("MINIO_PRESIGN_TTL_SEC", 900)) * time.Second,
		},
		DocuSign: DocuSignConfig{
			RootURL:       getEnv("DOCUSIGN_ROOT_URL", "https://demo.docusign.net/restapi/v2"),
			AccountID:     getEnv("DOCUSIGN_ACCOUNT_ID", ""),
			AccountURL:    getEnv("DOCUSIGN_ACCOUNT_URL", ""),
			Username:      getEnv("DOCUSIGN_USERNAME", ""),
			Password:      getEnv("DOCUSIGN_PASSWORD", ""),
			IntegratorKey: getEnv("DOCUSIGN_INTEGRATOR_KEY", ""),
			AppToken:      getEnv("DOCUSIGN_APP_TOKEN", ""),
			Timeout:       time.Duration(getEnvInt("DOCUSIGN_TIMEOUT_SEC", 30)) * time.Second,
			ConnectSecret: getEnv("DOCUSIGN_CONNECT_SECRET", ""),
			UseCallback:   getEnvBool("DOCUSIGN_USE_CALLBACK", true),
		},
		Logger: LoggerConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			Format:     getEnv("LOG_FORMAT", "json"),
			OutputPath: getEnv("LOG_OUTPUT", "stdout"),
		},
		Tracing: TracingConfig{
			Disabled:    getEnvBool("OTEL_SDK_DISABLED", false),
			ServiceName: getEnv("OTEL_SERVICE_NAME", "signflow"),
			Protocol:    getEnv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"),
			Endpoint:    getEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "")),
			Sampler:     getEnv("OTEL_TRACES_SAMPLER", "parentbased_traceidratio"),
			SamplerArg:  getEnv("OTEL_TRACES_SAMPLER_ARG", "1.0"),
		},
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}
