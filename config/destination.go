package config

import "fmt"

// DestinationType represents the type of destination backend
type DestinationType string

const (
	DestinationTypeLocal DestinationType = "local"
	DestinationTypeFTP   DestinationType = "ftp"
)

// DestinationConfig holds the configuration for the mirror target.
type DestinationConfig struct {
	DestinationType DestinationType `json:"type" yaml:"type"`

	// Type-specific configurations
	Local *LocalConfig `json:"local,omitempty" yaml:"local,omitempty"`
	FTP   *FTPConfig   `json:"ftp,omitempty" yaml:"ftp,omitempty"`
}

// LocalConfig holds local-filesystem destination configuration.
type LocalConfig struct {
	Dir string `json:"dir" yaml:"dir"` // Root directory of the mirrored tree
}

// FTPConfig holds FTP-specific configuration
type FTPConfig struct {
	Host           string `json:"host" yaml:"host"`                                           // FTP server host
	Port           int    `json:"port" yaml:"port"`                                           // FTP server port (default: 21)
	Username       string `json:"username" yaml:"username"`                                   // FTP username
	Password       string `json:"password,omitempty" yaml:"password,omitempty"`               // FTP password
	BasePath       string `json:"base_path,omitempty" yaml:"base_path,omitempty"`             // Base path on FTP server (optional)
	UseTLS         bool   `json:"use_tls,omitempty" yaml:"use_tls,omitempty"`                 // Use FTPS (FTP over TLS)
	TimeoutSeconds int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"` // Dial timeout in seconds
	PoolSize       int    `json:"pool_size,omitempty" yaml:"pool_size,omitempty"`             // Connection pool size
}

// Validate ensures the configuration is valid for the specified destination type
func (dc *DestinationConfig) Validate() error {
	switch dc.DestinationType {
	case DestinationTypeLocal:
		if dc.Local == nil {
			return fmt.Errorf("local configuration is required when type is 'local'")
		}
		return dc.Local.Validate()
	case DestinationTypeFTP:
		if dc.FTP == nil {
			return fmt.Errorf("ftp configuration is required when type is 'ftp'")
		}
		return dc.FTP.Validate()
	default:
		return fmt.Errorf("unsupported destination type: %s", dc.DestinationType)
	}
}

// ApplyDefaults sets default values for destination configuration.
func (dc *DestinationConfig) ApplyDefaults() {
	if dc.DestinationType == "" {
		dc.DestinationType = DestinationTypeLocal
	}
	if dc.Local != nil {
		dc.Local.ApplyDefaults()
	}
	if dc.FTP != nil {
		dc.FTP.ApplyDefaults()
	}
}

// Validate validates local destination configuration.
func (lc *LocalConfig) Validate() error {
	if lc.Dir == "" {
		return fmt.Errorf("local destination dir is required")
	}
	return nil
}

// ApplyDefaults sets default values for the local destination.
func (lc *LocalConfig) ApplyDefaults() {
	if lc.Dir == "" {
		lc.Dir = "."
	}
}

// Validate validates FTP configuration
func (fc *FTPConfig) Validate() error {
	if fc.Host == "" {
		return fmt.Errorf("ftp host is required")
	}
	if fc.Port <= 0 || fc.Port > 65535 {
		return fmt.Errorf("ftp port must be between 1 and 65535")
	}
	if fc.Username == "" {
		return fmt.Errorf("ftp username is required")
	}
	// Password can be empty for anonymous FTP
	return nil
}

// ApplyDefaults sets default values for FTP configuration
func (fc *FTPConfig) ApplyDefaults() {
	if fc.Port == 0 {
		fc.Port = 21
	}
	if fc.BasePath == "" {
		fc.BasePath = "/"
	}
	if fc.TimeoutSeconds <= 0 {
		fc.TimeoutSeconds = 30
	}
	if fc.PoolSize <= 0 {
		fc.PoolSize = 5
	}
}
