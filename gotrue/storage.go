package gotrue

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Storage is the medium a client persists its session in. Get returns "" and
// no error when the key is absent.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*FileStorage)(nil)
)

// MemoryStorage keeps items for the lifetime of the process.
type MemoryStorage struct {
	items map[string]string
	lock  sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: make(map[string]string)}
}

func (m *MemoryStorage) Get(_ context.Context, key string) (string, error) {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.items[key], nil
}

func (m *MemoryStorage) Set(_ context.Context, key, value string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.items[key] = value
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.items, key)
	return nil
}

// FileStorage keeps one file per key in a directory, readable only by the owner.
type FileStorage struct {
	dir  string
	lock sync.Mutex
}

func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFileStorage] create directory")
	}
	return &FileStorage{dir: dir}, nil
}

func (f *FileStorage) path(key string) string {
	safe := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(f.dir, safe+".json")
}

func (f *FileStorage) Get(_ context.Context, key string) (string, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "[FileStorage.Get] read")
	}
	return string(data), nil
}

func (f *FileStorage) Set(_ context.Context, key, value string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".session-*")
	if err != nil {
		return errors.Wrap(err, "[FileStorage.Set] create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(value); err != nil {
		tmp.Close()
		return errors.Wrap(err, "[FileStorage.Set] write")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "[FileStorage.Set] close")
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return errors.Wrap(err, "[FileStorage.Set] chmod")
	}
	return errors.Wrap(os.Rename(tmp.Name(), f.path(key)), "[FileStorage.Set] rename")
}

func (f *FileStorage) Remove(_ context.Context, key string) error {
	f.lock.Lock()
	defer f.lock.Unlock()

	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "[FileStorage.Remove] remove")
	}
	return nil
}
