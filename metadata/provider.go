package metadata

import (
	"errors"
	"fmt"

	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/model"
)

// Store persists per-file cache validators keyed by the file's relative
// path. It is a pure optimization: losing an entry only forces the next run
// to fetch that file unconditionally, so implementations degrade any read
// problem to ErrNotFound rather than surfacing corruption.
type Store interface {
	// Get returns the validator recorded for a relative path. A missing or
	// unreadable record yields ErrNotFound.
	Get(relPath string) (model.Validator, error)
	// Put replaces the validator recorded for a relative path.
	Put(relPath string, v model.Validator) error
	Close() error
}

// ErrNotFound is returned by Get when no usable validator exists for a path.
var ErrNotFound = errors.New("validator not found")

// CreateStore creates a validator store based on configuration
func CreateStore(cfg *config.MetadataConfig) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid metadata configuration: %w", err)
	}

	switch cfg.StoreType {
	case config.MetadataStoreSidecar:
		return NewSidecarStore(cfg.Sidecar)
	case config.MetadataStoreBbolt:
		return NewBboltStore(cfg.Bbolt)
	default:
		return nil, fmt.Errorf("unsupported metadata store type: %s", cfg.StoreType)
	}
}
