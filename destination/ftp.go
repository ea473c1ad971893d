package destination

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/tarkah/mirror-caddy/config"
)

var _ Provider = (*FTPDestination)(nil)

// FTPDestination mirrors files onto an FTP server. Connections are pooled so
// concurrent downloads do not each pay the dial and login cost. Store does
// not retry internally; a failed upload surfaces to the caller, which owns
// the retry schedule.
type FTPDestination struct {
	config     *config.FTPConfig
	connPool   chan *ftp.ServerConn
	dialConfig *ftp.DialOption
	mu         sync.Mutex
	closed     bool
}

// NewFTPDestination creates a new FTP destination and verifies connectivity
// with an initial connection.
func NewFTPDestination(cfg *config.FTPConfig) (*FTPDestination, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ftp config: %w", err)
	}

	var dialConfig *ftp.DialOption
	if cfg.UseTLS {
		opt := ftp.DialWithExplicitTLS(&tls.Config{})
		dialConfig = &opt
	}

	dest := &FTPDestination{
		config:     cfg,
		connPool:   make(chan *ftp.ServerConn, cfg.PoolSize),
		dialConfig: dialConfig,
	}

	conn, err := dest.createConnection()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to FTP server: %w", err)
	}
	dest.returnConnection(conn)

	return dest, nil
}

func (f *FTPDestination) createConnection() (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", f.config.Host, f.config.Port)
	timeout := ftp.DialWithTimeout(time.Duration(f.config.TimeoutSeconds) * time.Second)

	var conn *ftp.ServerConn
	var err error
	if f.dialConfig != nil {
		conn, err = ftp.Dial(addr, *f.dialConfig, timeout)
	} else {
		conn, err = ftp.Dial(addr, timeout)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %w", err)
	}

	if err := conn.Login(f.config.Username, f.config.Password); err != nil {
		conn.Quit()
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	return conn, nil
}

// getConnection retrieves a connection from the pool or creates a new one.
func (f *FTPDestination) getConnection(ctx context.Context) (*ftp.ServerConn, error) {
	select {
	case conn := <-f.connPool:
		if err := conn.NoOp(); err != nil {
			conn.Quit()
			return f.createConnection()
		}
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
		return f.createConnection()
	}
}

func (f *FTPDestination) returnConnection(conn *ftp.ServerConn) {
	if conn == nil {
		return
	}
	f.mu.Lock()
	closed := f.closed
	f.mu.Unlock()
	if closed {
		conn.Quit()
		return
	}
	select {
	case f.connPool <- conn:
	default:
		conn.Quit()
	}
}

// Store uploads content next to the final path and renames it into place, so
// readers of the mirror never observe a half-written file.
func (f *FTPDestination) Store(ctx context.Context, relPath string, content io.Reader) error {
	fullPath := path.Join(f.config.BasePath, relPath)
	tempPath := fullPath + ".tmp"

	conn, err := f.getConnection(ctx)
	if err != nil {
		return err
	}
	defer f.returnConnection(conn)

	if dir := path.Dir(fullPath); dir != "/" && dir != "." {
		if err := f.ensureDirectory(conn, dir); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	if err := conn.Stor(tempPath, content); err != nil {
		conn.Delete(tempPath)
		return fmt.Errorf("failed to upload %s: %w", fullPath, err)
	}

	// Rename over an existing file fails on some servers; clear it first.
	conn.Delete(fullPath)
	if err := conn.Rename(tempPath, fullPath); err != nil {
		conn.Delete(tempPath)
		return fmt.Errorf("failed to move %s into place: %w", fullPath, err)
	}
	return nil
}

// ensureDirectory creates the directory structure recursively.
func (f *FTPDestination) ensureDirectory(conn *ftp.ServerConn, dirPath string) error {
	dirPath = path.Clean(dirPath)
	if dirPath == "/" || dirPath == "." {
		return nil
	}

	currentDir, err := conn.CurrentDir()
	if err != nil {
		return err
	}

	if err := conn.ChangeDir(dirPath); err == nil {
		conn.ChangeDir(currentDir)
		return nil
	}

	parts := strings.Split(dirPath, "/")
	currentPath := ""
	for _, part := range parts {
		if part == "" {
			continue
		}
		if currentPath == "" {
			currentPath = part
		} else {
			currentPath = path.Join(currentPath, part)
		}
		// Ignore errors for segments that already exist.
		conn.MakeDir(currentPath)
	}

	return conn.ChangeDir(currentDir)
}

// Close drains the pool and closes every pooled connection.
func (f *FTPDestination) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	f.mu.Unlock()

	close(f.connPool)
	for conn := range f.connPool {
		conn.Quit()
	}
	return nil
}
