package tabkv

import (
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
	"go.etcd.io/bbolt"
)

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendPebble = "pebble"
)

// Config selects and tunes a storage backend. The backend is always
// chosen here, never compiled in.
type Config struct {
	// Backend is one of BackendMemory, BackendBolt, BackendPebble.
	Backend string

	// Path is the database file (Bolt) or directory (Pebble). Ignored by
	// the memory backend.
	Path string

	// IsTesting relaxes durability settings for faster test runs.
	IsTesting bool

	// MmapSize overrides the initial mmap size of the Bolt backend.
	MmapSize int
}

// Open creates a Store for the configured backend.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory:
		return newMemStore(), nil

	case BackendBolt:
		bopt := &bbolt.Options{}
		*bopt = *bbolt.DefaultOptions
		bopt.Timeout = 10 * time.Second
		if cfg.IsTesting {
			bopt.NoSync = true
			bopt.NoFreelistSync = true
			bopt.InitialMmapSize = 1024 * 1024 * 5
		} else {
			bopt.InitialMmapSize = 1024 * 1024 * 1024
			bopt.FreelistType = bbolt.FreelistMapType
		}
		if cfg.MmapSize != 0 {
			bopt.InitialMmapSize = cfg.MmapSize
		}
		bdb, err := bbolt.Open(cfg.Path, 0666, bopt)
		if err != nil {
			return nil, fmt.Errorf("tabkv: %w", err)
		}
		return newBoltStore(bdb), nil

	case BackendPebble:
		pdb, err := pebble.Open(cfg.Path, &pebble.Options{})
		if err != nil {
			return nil, fmt.Errorf("tabkv: %w", err)
		}
		return newPebbleStore(pdb, cfg.IsTesting), nil

	default:
		return nil, fmt.Errorf("tabkv: unknown backend %q", cfg.Backend)
	}
}
