package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// AppConfig represents the complete application configuration
type AppConfig struct {
	Source      SourceConfig      `json:"source" yaml:"source"`
	Metadata    MetadataConfig    `json:"metadata" yaml:"metadata"`
	Destination DestinationConfig `json:"destination" yaml:"destination"`
	Logger      LoggerConfig      `json:"logger" yaml:"logger"`
}

// Validate validates the entire configuration
func (ac *AppConfig) Validate() error {
	if err := ac.Source.Validate(); err != nil {
		return fmt.Errorf("source config error: %w", err)
	}
	if err := ac.Metadata.Validate(); err != nil {
		return fmt.Errorf("metadata config error: %w", err)
	}
	if err := ac.Destination.Validate(); err != nil {
		return fmt.Errorf("destination config error: %w", err)
	}
	if err := ac.Logger.Validate(); err != nil {
		return fmt.Errorf("logger config error: %w", err)
	}
	return nil
}

// ApplyDefaults applies default values to all components. The sidecar
// metadata tree defaults to a hidden directory inside the local mirror root.
func (ac *AppConfig) ApplyDefaults() {
	ac.Source.ApplyDefaults()
	ac.Destination.ApplyDefaults()
	ac.Metadata.ApplyDefaults()
	ac.Logger.ApplyDefaults()

	if ac.Metadata.StoreType == MetadataStoreSidecar {
		if ac.Metadata.Sidecar == nil {
			ac.Metadata.Sidecar = &SidecarConfig{}
			ac.Metadata.Sidecar.ApplyDefaults()
		}
		if ac.Metadata.Sidecar.Dir == "" {
			if ac.Destination.DestinationType == DestinationTypeLocal && ac.Destination.Local != nil {
				ac.Metadata.Sidecar.Dir = filepath.Join(ac.Destination.Local.Dir, ".metadata")
			} else {
				ac.Metadata.Sidecar.Dir = ".metadata"
			}
		}
	}
}

// LoadFromEnv loads configuration from environment variables.
// PARALLEL_JOBS bounds concurrency for both the crawl and download phases;
// an unset or unparseable value falls back to the default of 50.
func LoadFromEnv() (*AppConfig, error) {
	cfg := &AppConfig{}

	// Logger configuration
	cfg.Logger.Level = LogLevel(getEnv("LOG_LEVEL", string(LogLevelInfo)))
	cfg.Logger.Color = getEnvBool("LOG_COLOR", false)

	// Source configuration
	cfg.Source.BaseURL = getEnv("SOURCE_BASE_URL", "")
	cfg.Source.Common.WorkerCount = getEnvInt("PARALLEL_JOBS", 0)
	cfg.Source.Common.MaxQueueSize = getEnvInt("SOURCE_MAX_QUEUE_SIZE", 0)
	cfg.Source.Common.TimeoutSeconds = getEnvInt("SOURCE_TIMEOUT_SECONDS", 0)
	cfg.Source.Common.ConnectTimeoutSeconds = getEnvInt("SOURCE_CONNECT_TIMEOUT_SECONDS", 0)
	cfg.Source.Common.MaxRPS = getEnvInt("SOURCE_MAX_RPS", 0)
	cfg.Source.Common.UserAgent = getEnv("SOURCE_USER_AGENT", "")

	// Metadata configuration
	cfg.Metadata.StoreType = MetadataStoreType(getEnv("METADATA_STORE", string(MetadataStoreSidecar)))
	cfg.Metadata.Sidecar = &SidecarConfig{
		Dir:    getEnv("METADATA_SIDECAR_DIR", ""),
		Suffix: getEnv("METADATA_SIDECAR_SUFFIX", ".meta"),
	}
	cfg.Metadata.Bbolt = &BboltConfig{
		Path:   getEnv("METADATA_BBOLT_PATH", "./validators.db"),
		Bucket: getEnv("METADATA_BBOLT_BUCKET", "validators"),
		Mode:   0600,
		NoSync: getEnvBool("METADATA_BBOLT_NO_SYNC", false),
	}

	// Destination configuration
	cfg.Destination.DestinationType = DestinationType(getEnv("DESTINATION_TYPE", string(DestinationTypeLocal)))
	cfg.Destination.Local = &LocalConfig{
		Dir: getEnv("DESTINATION_LOCAL_DIR", "."),
	}
	cfg.Destination.FTP = &FTPConfig{
		Host:     getEnv("FTP_HOST", ""),
		Port:     getEnvInt("FTP_PORT", 21),
		Username: getEnv("FTP_USERNAME", ""),
		Password: getEnv("FTP_PASSWORD", ""),
		BasePath: getEnv("FTP_BASE_PATH", "/"),
		UseTLS:   getEnvBool("FTP_USE_TLS", false),
	}

	// Apply defaults
	cfg.ApplyDefaults()

	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file, then fills the gaps
// with defaults.
func LoadFromFile(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AppConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// Helper functions for environment variables
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
