package config

import (
	"fmt"
	"os"
)

// MetadataStoreType represents the type of validator store backend
type MetadataStoreType string

const (
	MetadataStoreSidecar MetadataStoreType = "sidecar"
	MetadataStoreBbolt   MetadataStoreType = "bbolt"
)

// MetadataConfig holds the configuration for the validator store.
type MetadataConfig struct {
	StoreType MetadataStoreType `json:"type" yaml:"type"`

	// Type-specific configs
	Sidecar *SidecarConfig `json:"sidecar,omitempty" yaml:"sidecar,omitempty"`
	Bbolt   *BboltConfig   `json:"bbolt,omitempty" yaml:"bbolt,omitempty"`
}

// SidecarConfig holds configuration for the sidecar-file store: a shadow
// tree mirroring the content tree, one small file per downloaded file.
type SidecarConfig struct {
	Dir    string `json:"dir" yaml:"dir"`                           // Root of the metadata shadow tree
	Suffix string `json:"suffix,omitempty" yaml:"suffix,omitempty"` // Appended to each relative path
}

// BboltConfig holds bbolt-specific configuration
type BboltConfig struct {
	Path   string      `json:"path" yaml:"path"`                           // Path to bbolt DB file
	Bucket string      `json:"bucket" yaml:"bucket"`                       // Name of the bucket
	Mode   os.FileMode `json:"mode,omitempty" yaml:"mode,omitempty"`       // File open mode: "0600", "0644"
	NoSync bool        `json:"no_sync,omitempty" yaml:"no_sync,omitempty"` // Disable fsync for better performance
}

// Validate validates the metadata configuration
func (mc *MetadataConfig) Validate() error {
	switch mc.StoreType {
	case MetadataStoreSidecar:
		if mc.Sidecar == nil {
			return fmt.Errorf("sidecar configuration is required when type is 'sidecar'")
		}
		return mc.Sidecar.Validate()
	case MetadataStoreBbolt:
		if mc.Bbolt == nil {
			return fmt.Errorf("bbolt configuration is required when type is 'bbolt'")
		}
		return mc.Bbolt.Validate()
	default:
		return fmt.Errorf("unsupported metadata store type: %s", mc.StoreType)
	}
}

// ApplyDefaults sets default values for the metadata configuration.
func (mc *MetadataConfig) ApplyDefaults() {
	if mc.StoreType == "" {
		mc.StoreType = MetadataStoreSidecar
	}
	if mc.Sidecar != nil {
		mc.Sidecar.ApplyDefaults()
	}
	if mc.Bbolt != nil {
		mc.Bbolt.ApplyDefaults()
	}
}

func (sc *SidecarConfig) Validate() error {
	if sc.Dir == "" {
		return fmt.Errorf("sidecar dir is required")
	}
	if sc.Suffix == "" {
		return fmt.Errorf("sidecar suffix is required")
	}
	return nil
}

// ApplyDefaults sets default values for the sidecar store.
func (sc *SidecarConfig) ApplyDefaults() {
	if sc.Suffix == "" {
		sc.Suffix = ".meta"
	}
}

func (bc *BboltConfig) Validate() error {
	if bc.Path == "" {
		return fmt.Errorf("bbolt path is required")
	}
	if bc.Bucket == "" {
		return fmt.Errorf("bbolt bucket is required")
	}
	return nil
}

// ApplyDefaults sets default values if not provided for bbolt
func (bc *BboltConfig) ApplyDefaults() {
	if bc.Bucket == "" {
		bc.Bucket = "validators"
	}
	if bc.Mode == 0 {
		bc.Mode = 0600
	}
	// NoSync remains false by default for data safety
}
