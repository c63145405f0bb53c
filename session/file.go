package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var _ Store = &FileStore{}

// FileStore keeps the token in a file readable only by the kiosk user, so a
// login survives restarts.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) GetToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNoToken
		}
		return "", NewFailedToReadError(fmt.Sprintf("Failed to read token file %q", f.path), err)
	}

	token := strings.TrimSpace(string(b))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

func (f *FileStore) SetToken(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.MkdirAll(filepath.Dir(f.path), 0o700)
	if err != nil {
		return NewFailedToWriteError(fmt.Sprintf("Failed to create directory for %q", f.path), err)
	}

	// write then rename so a crash never leaves half a token behind
	tmp := f.path + ".tmp"
	err = os.WriteFile(tmp, []byte(token), 0o600)
	if err != nil {
		return NewFailedToWriteError(fmt.Sprintf("Failed to write token file %q", tmp), err)
	}

	err = os.Rename(tmp, f.path)
	if err != nil {
		return NewFailedToWriteError(fmt.Sprintf("Failed to move token file into %q", f.path), err)
	}

	return nil
}

func (f *FileStore) ClearToken(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return NewFailedToWriteError(fmt.Sprintf("Failed to remove token file %q", f.path), err)
	}

	return nil
}
