package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/execution-hub/fnhub/internal/domain/types"
)

// ErrNoIdentity means no identity has been stored yet.
var ErrNoIdentity = errors.New("no stored identity")

// FileIdentity persists the worker id issued by the control plane.
type FileIdentity struct {
	path string
}

func NewFileIdentity(path string) *FileIdentity {
	return &FileIdentity{path: path}
}

func (f *FileIdentity) Load() (types.ID, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return types.Nil, ErrNoIdentity
	}
	if err != nil {
		return types.Nil, err
	}
	id, err := types.ParseID(strings.TrimSpace(string(data)))
	if err != nil {
		return types.Nil, fmt.Errorf("corrupt identity file %s: %w", f.path, err)
	}
	return id, nil
}

// Save writes the id atomically.
func (f *FileIdentity) Save(id types.ID) error {
	if dir := filepath.Dir(f.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(id.String()+"\n"), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileIdentity) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
