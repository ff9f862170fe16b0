package store

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/heysubinoy/dollarkv/pkg/kv"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendBadger = "badger"
)

// Open creates the store selected by backend. Disk backends keep their files
// under dataDir, which is created if missing.
func Open(backend, dataDir string, log *zap.Logger) (kv.Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemStore(), nil
	case BackendBolt, BackendBadger:
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}

	if dataDir == "" {
		return nil, fmt.Errorf("%s backend requires a data directory", backend)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	if backend == BackendBolt {
		s, err := OpenBoltStore(dataDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := OpenBadgerStore(dataDir, log)
	if err != nil {
		return nil, err
	}
	return s, nil
}
