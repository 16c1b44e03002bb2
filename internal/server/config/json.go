package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ibcol/portal/internal/flagx"
	"github.com/ibcol/portal/internal/timex"
)

// JsonConfig is the on-disk shape of the optional config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP     string         `json:"endpoint_addr_http"`
	EndpointAddrGRPC     string         `json:"endpoint_addr_grpc"`
	FileRefSecret        string         `json:"file_ref_secret"`
	AdminTokenSecret     string         `json:"admin_token_secret"`
	SignedURLTTL         timex.Duration `json:"signed_url_ttl"`
	StorageTimeout       timex.Duration `json:"storage_timeout"`
	MaxUploadSize        int64          `json:"max_upload_size"`
	AllowedContentTypes  []string       `json:"allowed_content_types"`
	AllowedOrigins       []string       `json:"allowed_origins"`
	StorageBackend       string         `json:"storage_backend"`
	S3AccessKey          string         `json:"s3_access_key"`
	S3SecretKey          string         `json:"s3_secret_key"`
	S3Bucket             string         `json:"s3_bucket"`
	S3Region             string         `json:"s3_region"`
	S3BaseEndpoint       string         `json:"s3_base_endpoint"`
	S3UsePathStyle       *bool          `json:"s3_use_path_style"`
	GCSBucket            string         `json:"gcs_bucket"`
	GCSSigningEmail      string         `json:"gcs_signing_email"`
	GCSSigningPrivateKey string         `json:"gcs_signing_private_key"`
	FileStorageDir       string         `json:"file_storage_dir"`
	FileBaseURL          string         `json:"file_base_url"`
	LocalesDir           string         `json:"locales_dir"`
	DefaultLocale        string         `json:"default_locale"`
	SupportedLocales     []string       `json:"supported_locales"`
	LogLevel             string         `json:"log_level"`
	LogFormat            string         `json:"log_format"`
}

// parseJson overlays values from the file named by -c/-config (or
// $IBCOL_CONFIG). Keys absent from the file leave the current value alone.
func parseJson(config *Config) error {
	path := flagx.ConfigPath(os.Args[1:])
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.EndpointAddrGRPC, c.EndpointAddrGRPC)
	setString(&config.FileRefSecret, c.FileRefSecret)
	setString(&config.AdminTokenSecret, c.AdminTokenSecret)
	if c.SignedURLTTL.Duration > 0 {
		config.SignedURLTTL = c.SignedURLTTL.Duration
	}
	if c.StorageTimeout.Duration > 0 {
		config.StorageTimeout = c.StorageTimeout.Duration
	}
	if c.MaxUploadSize > 0 {
		config.MaxUploadSize = c.MaxUploadSize
	}
	setStrings(&config.AllowedContentTypes, c.AllowedContentTypes)
	setStrings(&config.AllowedOrigins, c.AllowedOrigins)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.S3AccessKey, c.S3AccessKey)
	setString(&config.S3SecretKey, c.S3SecretKey)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	if c.S3UsePathStyle != nil {
		config.S3UsePathStyle = *c.S3UsePathStyle
	}
	setString(&config.GCSBucket, c.GCSBucket)
	setString(&config.GCSSigningEmail, c.GCSSigningEmail)
	setString(&config.GCSSigningPrivateKey, c.GCSSigningPrivateKey)
	setString(&config.FileStorageDir, c.FileStorageDir)
	setString(&config.FileBaseURL, c.FileBaseURL)
	setString(&config.LocalesDir, c.LocalesDir)
	setString(&config.DefaultLocale, c.DefaultLocale)
	setStrings(&config.SupportedLocales, c.SupportedLocales)
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)

	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setStrings(dst *[]string, v []string) {
	if len(v) > 0 {
		*dst = v
	}
}
