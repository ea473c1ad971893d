package destination

import (
	"context"
	"fmt"
	"io"

	"github.com/tarkah/mirror-caddy/config"
)

// Provider is a write target for mirrored files.
type Provider interface {
	// Store replaces the file at relPath with content. Implementations write
	// to a temporary sibling first and rename it over the final path, so a
	// crash never leaves a partial file at the final location.
	Store(ctx context.Context, relPath string, content io.Reader) error
	Close() error
}

// CreateDestination creates a destination provider based on configuration
func CreateDestination(cfg *config.DestinationConfig) (Provider, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid destination configuration: %w", err)
	}

	switch cfg.DestinationType {
	case config.DestinationTypeLocal:
		return NewLocalDestination(cfg.Local)
	case config.DestinationTypeFTP:
		return NewFTPDestination(cfg.FTP)
	default:
		return nil, fmt.Errorf("unsupported destination type: %s", cfg.DestinationType)
	}
}
