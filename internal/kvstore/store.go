// Package kvstore provides the small key-value persistence port used for
// playback progress and player settings, plus its backends.
package kvstore

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by Get when the key is absent.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is a string-keyed byte store. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
}

// Lister is implemented by stores that can enumerate keys with a prefix.
type Lister interface {
	Keys(prefix string) ([]string, error)
}

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Options selects and configures a backend.
type Options struct {
	Backend string
	// Path is the JSON document for the file backend or the database file
	// for the sqlite backend.
	Path string
}

// Open constructs the configured store. Callers should Close it when the
// returned value implements io.Closer.
func Open(opts Options) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(opts.Backend))
	switch backend {
	case BackendMemory:
		return NewMemory(), nil
	case "", BackendFile:
		if opts.Path == "" {
			return nil, fmt.Errorf("file store requires a path")
		}
		return NewFile(opts.Path), nil
	case BackendSQLite:
		if opts.Path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		return OpenSQLite(opts.Path)
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", opts.Backend)
	}
}

// DefaultPath returns the conventional store location for a backend inside dataDir.
func DefaultPath(backend, dataDir string) string {
	if strings.EqualFold(backend, BackendSQLite) {
		return filepath.Join(dataDir, "player.db")
	}
	return filepath.Join(dataDir, "player-state.json")
}
