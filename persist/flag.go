// Package persist stores the "trust this device" preference. The value
// survives restarts and is independent of the live session.
package persist

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Key is the fixed name of the durable entry
const Key = "persist"

// Flag reads and writes the durable preference. Get returns false when no
// value has ever been stored.
type Flag interface {
	Get() (bool, error)
	Set(trustDevice bool) error
}

// FileFlag keeps the flag in a small JSON document on disk
type FileFlag struct {
	path string
	mu   sync.Mutex
}

var _ Flag = (*FileFlag)(nil)

func NewFileFlag(path string) *FileFlag {
	return &FileFlag{path: path}
}

func (f *FileFlag) Path() string {
	return f.path
}

func (f *FileFlag) Get() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		return false, err
	}
	v, ok := doc[Key]
	if !ok {
		return false, nil
	}
	var trust bool
	if err := json.Unmarshal(v, &trust); err != nil {
		return false, fmt.Errorf("decode %q in %s: %w", Key, f.path, err)
	}
	return trust, nil
}

// Set writes the flag, keeping any other keys already in the document
func (f *FileFlag) Set(trustDevice bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.read()
	if err != nil {
		// unreadable document, start over rather than refusing to store the preference
		doc = map[string]json.RawMessage{}
	}
	raw, err := json.Marshal(trustDevice)
	if err != nil {
		return err
	}
	doc[Key] = raw

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create folder for %s: %w", f.path, err)
	}

	// Write to temp file first, then rename over the old one
	tempFile := f.path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, f.path); err != nil {
		if removeErr := os.Remove(tempFile); removeErr != nil {
			return fmt.Errorf("failed to rename temp file: %v; additionally failed to remove temp file: %w", err, removeErr)
		}
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (f *FileFlag) read() (map[string]json.RawMessage, error) {
	doc := map[string]json.RawMessage{}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", f.path, err)
	}
	return doc, nil
}
