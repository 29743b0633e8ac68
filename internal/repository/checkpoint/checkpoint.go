// Package checkpoint persists per-case evaluation results so an interrupted
// run can resume where it stopped.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kailas-cloud/legalrag/internal/db"
)

// FileStore keeps one file per key under a directory. Writes go through a
// temporary file and a rename, so a crash never leaves a torn checkpoint.
type FileStore struct {
	dir string
}

// NewFileStore creates a store rooted at dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

func (s *FileStore) path(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		p = unsafeChars.ReplaceAllString(p, "_")
		if p == "" || p == "." || p == ".." {
			p = "_" + p
		}
		parts[i] = p
	}
	return filepath.Join(s.dir, filepath.Join(parts...)+".json")
}

// Get returns the stored value and whether it exists.
func (s *FileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read checkpoint %s: %w", key, err)
	}
	return data, true, nil
}

// Put stores value under key.
func (s *FileStore) Put(_ context.Context, key string, value []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}
	f, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create checkpoint %s: %w", key, err)
	}
	tmp := f.Name()
	if _, err := f.Write(value); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write checkpoint %s: %w", key, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close checkpoint %s: %w", key, err)
	}
	if err := os.Rename(tmp, p); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit checkpoint %s: %w", key, err)
	}
	return nil
}

const kvPrefix = "legalrag:ckpt:"

// kv is the subset of db.KVStore checkpoints need.
type kv interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// KVStore keeps checkpoints in Valkey/Redis so several workers can share a run.
type KVStore struct {
	store kv
}

// NewKVStore creates a KV-backed store.
func NewKVStore(store kv) *KVStore {
	return &KVStore{store: store}
}

// Get returns the stored value and whether it exists.
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.store.Get(ctx, kvPrefix+key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get checkpoint %s: %w", key, err)
	}
	return data, true, nil
}

// Put stores value under key without expiry.
func (s *KVStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.store.Set(ctx, kvPrefix+key, value); err != nil {
		return fmt.Errorf("put checkpoint %s: %w", key, err)
	}
	return nil
}
