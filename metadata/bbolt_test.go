package metadata

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/model"
)

func newTestBboltStore(t *testing.T) (*BboltStore, func()) {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "bolt-*.db")
	require.NoError(t, err)

	cfg := &config.BboltConfig{
		Path: tmpFile.Name(),
	}
	s, err := NewBboltStore(cfg)
	require.NoError(t, err)

	// Cleanup function
	return s, func() {
		s.Close()
		os.Remove(tmpFile.Name())
	}
}

func TestBboltOpenInvalidPath(t *testing.T) {
	cfg := &config.BboltConfig{
		Path: "/invalid/path.db",
	}
	_, err := NewBboltStore(cfg)
	require.Error(t, err)
}

func TestBboltPutAndGet(t *testing.T) {
	s, cleanup := newTestBboltStore(t)
	defer cleanup()

	v := model.Validator{
		ETag:         `"abc123"`,
		LastModified: "Wed, 21 Oct 2015 07:28:00 GMT",
	}

	err := s.Put("dir/file1", v)
	require.NoError(t, err)

	got, err := s.Get("dir/file1")
	require.NoError(t, err)
	require.Equal(t, v, got)

	// Key not found
	_, err = s.Get("missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBboltNullValuesReadAsAbsent(t *testing.T) {
	s, cleanup := newTestBboltStore(t)
	defer cleanup()

	require.NoError(t, s.Put("f1", model.Validator{ETag: "null", LastModified: "lm"}))
	got, err := s.Get("f1")
	require.NoError(t, err)
	require.Empty(t, got.ETag)
	require.Equal(t, "lm", got.LastModified)

	require.NoError(t, s.Put("f2", model.Validator{}))
	_, err = s.Get("f2")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestBboltCount(t *testing.T) {
	s, cleanup := newTestBboltStore(t)
	defer cleanup()

	require.NoError(t, s.Put("a", model.Validator{ETag: `"1"`}))
	require.NoError(t, s.Put("b", model.Validator{ETag: `"2"`}))
	require.NoError(t, s.Put("a", model.Validator{ETag: `"3"`})) // Overwrite

	count, err := s.Count()
	require.NoError(t, err)
	require.Equal(t, int64(2), count)
}

func TestBboltPersistsAcrossReopen(t *testing.T) {
	tmpFile, err := os.CreateTemp("", "bolt-*.db")
	require.NoError(t, err)
	defer os.Remove(tmpFile.Name())

	cfg := &config.BboltConfig{Path: tmpFile.Name()}

	s, err := NewBboltStore(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put("key", model.Validator{ETag: `"v"`}))
	require.NoError(t, s.Close())

	s2, err := NewBboltStore(cfg)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("key")
	require.NoError(t, err)
	require.Equal(t, `"v"`, got.ETag)
}
