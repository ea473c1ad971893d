package destination

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tarkah/mirror-caddy/config"
)

var _ Provider = (*LocalDestination)(nil)

// LocalDestination mirrors files into a local directory tree.
type LocalDestination struct {
	dir string
}

// NewLocalDestination creates the mirror root if needed and returns a
// destination writing under it.
func NewLocalDestination(cfg *config.LocalConfig) (*LocalDestination, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid local config: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	return &LocalDestination{dir: cfg.Dir}, nil
}

// Store writes content to a temporary file next to the final destination and
// atomically renames it into place. On any failure the temporary file is
// removed best-effort, so retries and crashes leave either the previous file
// or nothing at the final path.
func (d *LocalDestination) Store(_ context.Context, relPath string, content io.Reader) error {
	finalPath := filepath.Join(d.dir, filepath.FromSlash(relPath))
	tempPath := finalPath + ".tmp"

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", relPath, err)
	}

	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", relPath, err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write %s: %w", relPath, err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to move %s into place: %w", relPath, err)
	}
	return nil
}

func (d *LocalDestination) Close() error {
	return nil
}
