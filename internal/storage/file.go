package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStorage keeps one session's cart as a JSON file in dir. Used when no
// Redis is configured.
type FileStorage struct {
	path string
}

// NewFileStorage names the file after a hash of the session id, which keeps
// it inside dir and distinct per session whatever the id contains.
func NewFileStorage(dir, sessionID string) *FileStorage {
	sum := sha256.Sum256([]byte(sessionID))
	return &FileStorage{path: filepath.Join(dir, "cart-"+hex.EncodeToString(sum[:])+".json")}
}

func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read cart file failed: %w", err)
	}
	return data, nil
}

// Save writes to a temp file and renames it over the old one, so a crash
// mid-write never leaves a truncated cart behind.
func (f *FileStorage) Save(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create cart dir failed: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".cart-*")
	if err != nil {
		return fmt.Errorf("create temp file failed: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write cart file failed: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cart file failed: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("rename cart file failed: %w", err)
	}
	return nil
}

