package kvstore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/gofrs/flock"
)

const fileFormatVersion = 1

// fileData is the persisted document.
type fileData struct {
	Version int                        `json:"version"`
	Values  map[string]json.RawMessage `json:"values"`
}

// File persists all keys in a single JSON document. Every mutation reloads
// the document under an advisory lock, applies the change and rewrites the
// file atomically, so concurrent player processes do not lose each other's
// writes.
type File struct {
	mu     sync.Mutex
	path   string
	lock   *flock.Flock
	loaded bool
	values map[string][]byte
}

// NewFile creates a file-backed store at path. The file is created on the
// first write.
func NewFile(path string) *File {
	return &File{
		path:   path,
		lock:   flock.New(path + ".lock"),
		values: make(map[string][]byte),
	}
}

// Path returns the document location.
func (f *File) Path() string {
	return f.path
}

// Get returns the value for key.
func (f *File) Get(key string) ([]byte, error) {
	f.mu.Lock()
	if !f.loaded {
		if err := f.loadUnsafe(); err != nil {
			f.mu.Unlock()
			return nil, err
		}
	}
	value, ok := f.values[key]
	f.mu.Unlock()

	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Set stores value under key and persists the document.
func (f *File) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("failed to store %q: value is not valid JSON", key)
	}
	return f.mutate(func(values map[string][]byte) {
		values[key] = append([]byte(nil), value...)
	})
}

// Delete removes key and persists the document.
func (f *File) Delete(key string) error {
	return f.mutate(func(values map[string][]byte) {
		delete(values, key)
	})
}

// Keys lists keys with the given prefix in sorted order.
func (f *File) Keys(prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.loaded {
		if err := f.loadUnsafe(); err != nil {
			return nil, err
		}
	}
	var keys []string
	for key := range f.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *File) mutate(apply func(map[string][]byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	defer func() { _ = f.lock.Unlock() }()

	// Pick up writes from other processes before applying ours.
	if err := f.loadUnsafe(); err != nil {
		return err
	}
	apply(f.values)
	return f.saveUnsafe()
}

func (f *File) loadUnsafe() error {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.values = make(map[string][]byte)
		f.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}

	var doc fileData
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("failed to parse store file: %w", err)
		}
	}

	f.values = make(map[string][]byte, len(doc.Values))
	for key, raw := range doc.Values {
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return fmt.Errorf("failed to parse store value %q: %w", key, err)
		}
		f.values[key] = compact.Bytes()
	}
	f.loaded = true
	return nil
}

func (f *File) saveUnsafe() error {
	doc := fileData{
		Version: fileFormatVersion,
		Values:  make(map[string]json.RawMessage, len(f.values)),
	}
	for key, value := range f.values {
		doc.Values[key] = json.RawMessage(value)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write store file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	return nil
}
