package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileBackend keeps every key in one JSON object on disk, the way a
// browser keeps localStorage for an origin. Writes replace the file
// atomically.
type FileBackend struct {
	path string

	mu   sync.Mutex
	data map[string]string
}

// NewFileBackend opens (or creates on first write) the file at path. An
// unreadable or corrupt file starts empty; it is overwritten on the next
// write.
func NewFileBackend(path string) (*FileBackend, error) {
	f := &FileBackend{path: path, data: make(map[string]string)}
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Debug("local store file not found, starting empty", "path", path)
	case err != nil:
		return nil, fmt.Errorf("read local store %s: %w", path, err)
	default:
		if err := json.Unmarshal(raw, &f.data); err != nil {
			slog.Warn("corrupt local store file, starting empty", "path", path, "error", err)
			f.data = make(map[string]string)
		}
	}
	return f, nil
}

func (f *FileBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(v), true, nil
}

func (f *FileBackend) Set(ctx context.Context, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = string(value)
	return f.flushLocked()
}

func (f *FileBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; !ok {
		return nil
	}
	delete(f.data, key)
	return f.flushLocked()
}

func (f *FileBackend) Close() error {
	return nil
}

func (f *FileBackend) flushLocked() error {
	raw, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create local store dir: %w", err)
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write local store: %w", err)
	}
	return os.Rename(tmp, f.path)
}
