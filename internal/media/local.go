package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes objects under a directory served by the API itself.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates the directory if needed. baseURL is the public
// prefix objects are served under, e.g. "/uploads".
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Put writes data to dir/key.
func (s *LocalStore) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	full := filepath.Join(s.dir, filepath.FromSlash(key))
	if !strings.HasPrefix(full, filepath.Clean(s.dir)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid key %q", key)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + "/" + key, nil
}

var _ Store = (*LocalStore)(nil)
