package destination

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tarkah/mirror-caddy/config"
)

func newTestLocalDestination(t *testing.T) (*LocalDestination, string) {
	t.Helper()
	dir := t.TempDir()
	d, err := NewLocalDestination(&config.LocalConfig{Dir: dir})
	require.NoError(t, err)
	return d, dir
}

func TestLocalStore_CreatesNestedDirectories(t *testing.T) {
	d, dir := newTestLocalDestination(t)

	err := d.Store(context.Background(), "a/b/c.txt", strings.NewReader("nested"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "a", "b", "c.txt"))
	require.NoError(t, err)
	require.Equal(t, "nested", string(data))
}

func TestLocalStore_Overwrites(t *testing.T) {
	d, dir := newTestLocalDestination(t)

	require.NoError(t, d.Store(context.Background(), "f.txt", strings.NewReader("old")))
	require.NoError(t, d.Store(context.Background(), "f.txt", strings.NewReader("new")))

	data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "new", string(data))
}

func TestLocalStore_NoTempFileLeftBehind(t *testing.T) {
	d, dir := newTestLocalDestination(t)

	require.NoError(t, d.Store(context.Background(), "f.txt", strings.NewReader("data")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "f.txt", entries[0].Name())
}

func TestLocalStore_FailedWriteKeepsPreviousFile(t *testing.T) {
	d, dir := newTestLocalDestination(t)

	require.NoError(t, d.Store(context.Background(), "f.txt", strings.NewReader("keep me")))

	err := d.Store(context.Background(), "f.txt", failingReader{})
	require.Error(t, err)

	// The previous content survives a failed replacement
	data, err := os.ReadFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "keep me", string(data))

	// And the temp file was cleaned up
	_, statErr := os.Stat(filepath.Join(dir, "f.txt.tmp"))
	require.True(t, os.IsNotExist(statErr))
}

func TestCreateDestination_Local(t *testing.T) {
	cfg := &config.DestinationConfig{
		DestinationType: config.DestinationTypeLocal,
		Local:           &config.LocalConfig{Dir: t.TempDir()},
	}
	d, err := CreateDestination(cfg)
	require.NoError(t, err)
	require.NoError(t, d.Close())
}

func TestCreateDestination_UnsupportedType(t *testing.T) {
	cfg := &config.DestinationConfig{DestinationType: "carrier-pigeon"}
	_, err := CreateDestination(cfg)
	require.Error(t, err)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, os.ErrClosed
}
