package config

import (
	"fmt"
	"net/url"
	"strings"
)

// SourceConfig holds the configuration for the remote Caddy file server.
type SourceConfig struct {
	// BaseURL is the root of the remote tree, without a trailing slash.
	BaseURL string `json:"base_url" yaml:"base_url"`

	Common CommonSourceConfig `json:"common,omitempty" yaml:"common,omitempty"`
}

// CommonSourceConfig contains general settings for remote access.
type CommonSourceConfig struct {
	WorkerCount           int    `json:"worker_count,omitempty" yaml:"worker_count,omitempty"`                       // optional: concurrency bound for both crawl and download phases
	MaxQueueSize          int    `json:"max_queue_size,omitempty" yaml:"max_queue_size,omitempty"`                   // optional: crawl work queue buffer size
	TimeoutSeconds        int    `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`                 // optional: full request timeout in seconds
	ConnectTimeoutSeconds int    `json:"connect_timeout_seconds,omitempty" yaml:"connect_timeout_seconds,omitempty"` // optional: dial timeout in seconds
	MaxRPS                int    `json:"max_rps,omitempty" yaml:"max_rps,omitempty"`                                 // optional: max requests per second to the server (0 = no limit)
	UserAgent             string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`                           // optional: User-Agent header
}

// Validate ensures the source configuration is usable.
func (sc *SourceConfig) Validate() error {
	if err := sc.Common.Validate(); err != nil {
		return err
	}
	if sc.BaseURL == "" {
		return fmt.Errorf("base url is required")
	}
	u, err := url.Parse(sc.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base url must use http or https, got %q", u.Scheme)
	}
	return nil
}

// ApplyDefaults sets default values if they are not provided.
func (sc *SourceConfig) ApplyDefaults() {
	sc.BaseURL = strings.TrimRight(sc.BaseURL, "/")
	sc.Common.ApplyDefaults()
}

func (c *CommonSourceConfig) Validate() error {
	if c.WorkerCount < 0 {
		return fmt.Errorf("worker_count cannot be negative")
	}
	if c.MaxRPS < 0 {
		return fmt.Errorf("max_rps cannot be negative")
	}
	return nil
}

// ApplyDefaults sets default values if they are not provided.
func (c *CommonSourceConfig) ApplyDefaults() {
	if c.WorkerCount <= 0 {
		c.WorkerCount = 50
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = 100000
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 300
	}
	if c.ConnectTimeoutSeconds <= 0 {
		c.ConnectTimeoutSeconds = 60
	}
	if c.UserAgent == "" {
		c.UserAgent = "mirror-caddy/0.1"
	}
	// MaxRPS stays 0 (no limit)
}
