package metadata

import (
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/tarkah/mirror-caddy/config"
	"github.com/tarkah/mirror-caddy/model"
)

var _ Store = (*BboltStore)(nil)

// BboltStore keeps all validators in a single bbolt database file, one
// bucket, relative path keys and JSON-encoded validator values. Compared to
// the sidecar tree it avoids scattering thousands of tiny files.
type BboltStore struct {
	db     *bbolt.DB
	bucket string
}

// NewBboltStore creates a new BboltStore based on configuration
func NewBboltStore(cfg *config.BboltConfig) (*BboltStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bbolt config: %w", err)
	}

	db, err := bbolt.Open(cfg.Path, cfg.Mode, nil)
	if err != nil {
		return nil, err
	}
	db.NoSync = cfg.NoSync

	// Create bucket if not exists
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(cfg.Bucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BboltStore{
		db:     db,
		bucket: cfg.Bucket,
	}, nil
}

func (s *BboltStore) Get(relPath string) (model.Validator, error) {
	var v model.Validator
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(s.bucket))
		if b == nil {
			return ErrNotFound
		}
		val := b.Get([]byte(relPath))
		if val == nil {
			return ErrNotFound
		}
		return json.Unmarshal(val, &v)
	})
	if err != nil {
		// Corrupt entries degrade to an unconditional fetch.
		return model.Validator{}, ErrNotFound
	}

	v = v.Normalize()
	if v.IsZero() {
		return model.Validator{}, ErrNotFound
	}
	return v, nil
}

func (s *BboltStore) Put(relPath string, v model.Validator) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(s.bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", s.bucket)
		}
		val, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put([]byte(relPath), val)
	})
}

// Count returns the number of stored validators.
func (s *BboltStore) Count() (int64, error) {
	var count int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(s.bucket))
		if b == nil {
			return fmt.Errorf("bucket %s not found", s.bucket)
		}
		return b.ForEach(func(k, v []byte) error {
			count++
			return nil
		})
	})
	return count, err
}

func (s *BboltStore) Close() error {
	return s.db.Close()
}
