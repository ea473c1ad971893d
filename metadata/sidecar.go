package metadata

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/model"
)

var _ Store = (*SidecarStore)(nil)

// SidecarStore keeps one small key=value file per mirrored file, in a shadow
// tree that mirrors the content tree's relative paths. Recognized keys are
// "etag" and "last_modified"; anything else is ignored. The empty string and
// the literal token "null" read back as an absent value.
type SidecarStore struct {
	dir    string
	suffix string
}

// NewSidecarStore creates a sidecar-file store rooted at the configured
// metadata directory.
func NewSidecarStore(cfg *config.SidecarConfig) (*SidecarStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sidecar config: %w", err)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create metadata directory: %w", err)
	}

	return &SidecarStore{
		dir:    cfg.Dir,
		suffix: cfg.Suffix,
	}, nil
}

// sidecarPath maps a relative content path to its sidecar file.
func (s *SidecarStore) sidecarPath(relPath string) string {
	return filepath.Join(s.dir, filepath.FromSlash(relPath)) + s.suffix
}

func (s *SidecarStore) Get(relPath string) (model.Validator, error) {
	f, err := os.Open(s.sidecarPath(relPath))
	if err != nil {
		return model.Validator{}, ErrNotFound
	}
	defer f.Close()

	var v model.Validator
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if value, ok := strings.CutPrefix(line, "etag="); ok {
			v.ETag = value
		} else if value, ok := strings.CutPrefix(line, "last_modified="); ok {
			v.LastModified = value
		}
		// Unrecognized lines are ignored.
	}
	if err := scanner.Err(); err != nil {
		// A torn or unreadable sidecar degrades to an unconditional fetch.
		return model.Validator{}, ErrNotFound
	}

	v = v.Normalize()
	if v.IsZero() {
		return model.Validator{}, ErrNotFound
	}
	return v, nil
}

func (s *SidecarStore) Put(relPath string, v model.Validator) error {
	path := s.sidecarPath(relPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	content := fmt.Sprintf("etag=%s\nlast_modified=%s\n", v.ETag, v.LastModified)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write sidecar for %s: %w", relPath, err)
	}
	return nil
}

func (s *SidecarStore) Close() error {
	return nil
}
