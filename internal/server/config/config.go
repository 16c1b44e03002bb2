// Package config handles configuration for the portal server,
// including defaults, JSON overlay, environment and command-line flags.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ibcol/portal/internal/common"
	"github.com/ibcol/portal/internal/translation"
)

// Storage backend names accepted in StorageBackend.
const (
	BackendS3   = "s3"
	BackendGCS  = "gcs"
	BackendFile = "file"
)

// MinSecretLength is the shortest FileRefSecret accepted at startup.
const MinSecretLength = 16

// Config holds runtime settings for the portal server.
//
// Shared infrastructure settings (FileRefSecret, bucket, SignedURLTTL) are
// passed into each component at construction; nothing reads the environment
// after Load.
type Config struct {
	EndpointAddrHTTP string `env:"HTTP_ADDR"`
	EndpointAddrGRPC string `env:"GRPC_ADDR"`

	// FileRefSecret keys the file reference cipher. It has no default and must
	// be identical on every instance.
	FileRefSecret string `env:"FILE_REF_SECRET"`
	// AdminTokenSecret verifies admin JWTs on delete routes. Empty disables the check.
	AdminTokenSecret string `env:"ADMIN_TOKEN_SECRET"`

	SignedURLTTL        time.Duration `env:"SIGNED_URL_TTL"`
	StorageTimeout      time.Duration `env:"STORAGE_TIMEOUT"`
	MaxUploadSize       int64         `env:"MAX_UPLOAD_SIZE"`
	AllowedContentTypes []string      `env:"ALLOWED_CONTENT_TYPES"`
	AllowedOrigins      []string      `env:"ALLOWED_ORIGINS"`

	StorageBackend string `env:"STORAGE_BACKEND"`

	S3AccessKey    string `env:"S3_ACCESS_KEY"`
	S3SecretKey    string `env:"S3_SECRET_KEY"`
	S3Bucket       string `env:"S3_BUCKET"`
	S3Region       string `env:"S3_REGION"`
	S3BaseEndpoint string `env:"S3_BASE_ENDPOINT"`
	S3UsePathStyle bool   `env:"S3_USE_PATH_STYLE"`

	GCSBucket            string `env:"GCS_BUCKET"`
	GCSSigningEmail      string `env:"GCS_SIGNING_EMAIL"`
	GCSSigningPrivateKey string `env:"GCS_SIGNING_PRIVATE_KEY"`

	FileStorageDir string `env:"FILE_STORAGE_DIR"`
	FileBaseURL    string `env:"FILE_BASE_URL"`

	LocalesDir       string   `env:"LOCALES_DIR"`
	DefaultLocale    string   `env:"DEFAULT_LOCALE"`
	SupportedLocales []string `env:"SUPPORTED_LOCALES"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`
}

// LoadDefaults populates Config with development defaults.
// FileRefSecret is deliberately left empty: there is no safe default.
func (c *Config) LoadDefaults() {
	c.EndpointAddrHTTP = ":8080"
	c.EndpointAddrGRPC = ":50051"
	c.SignedURLTTL = 15 * time.Minute
	c.StorageTimeout = 5 * time.Second
	c.MaxUploadSize = 500 << 20
	c.AllowedOrigins = []string{"http://localhost:3000"}
	c.StorageBackend = BackendS3
	c.S3Bucket = "ibcol-uploads"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = "http://127.0.0.1:9000/"
	c.S3UsePathStyle = true
	c.FileStorageDir = "./data/uploads"
	c.FileBaseURL = "http://localhost:8080/blob/"
	c.LocalesDir = "./locales"
	c.DefaultLocale = "en-us"
	c.SupportedLocales = []string{"en-us", "zh-hk"}
	c.LogLevel = "info"
	c.LogFormat = "json"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file, the environment and finally command-line flags.
// The result is not validated; call Validate before use.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every startup problem wrapped in common.ErrConfiguration.
func (c *Config) Validate() error {
	var problems []string

	if c.FileRefSecret == "" {
		problems = append(problems, "file reference secret is not set")
	} else if len(c.FileRefSecret) < MinSecretLength {
		problems = append(problems, fmt.Sprintf("file reference secret must be at least %d bytes", MinSecretLength))
	}
	if c.SignedURLTTL <= 0 {
		problems = append(problems, "signed URL TTL must be positive")
	}
	if c.MaxUploadSize <= 0 {
		problems = append(problems, "max upload size must be positive")
	}
	if c.DefaultLocale == "" {
		problems = append(problems, "default locale is not set")
	} else if !slices.ContainsFunc(c.SupportedLocales, func(l string) bool { return translation.SameLocale(l, c.DefaultLocale) }) {
		problems = append(problems, fmt.Sprintf("default locale %q is not in supported locales", c.DefaultLocale))
	}

	switch c.StorageBackend {
	case BackendS3:
		if c.S3Bucket == "" || c.S3Region == "" {
			problems = append(problems, "s3 backend needs bucket and region")
		}
	case BackendGCS:
		if c.GCSBucket == "" || c.GCSSigningEmail == "" || c.GCSSigningPrivateKey == "" {
			problems = append(problems, "gcs backend needs bucket, signing email and private key")
		}
	case BackendFile:
		if c.FileStorageDir == "" || c.FileBaseURL == "" {
			problems = append(problems, "file backend needs storage dir and base URL")
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown storage backend %q", c.StorageBackend))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", common.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}
