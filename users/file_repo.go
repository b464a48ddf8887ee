package users

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

var _ Repo = (*FileRepo)(nil)

// FileRepo reads a flat YAML mapping of username to password on every Load, so edits to
// the file apply without a restart.
type FileRepo struct {
	path string
}

func NewFileRepo(path string) *FileRepo {
	return &FileRepo{path: path}
}

func (r *FileRepo) Load() (map[string]string, error) {
	if r.path == "" {
		return map[string]string{}, nil
	}

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("[FileRepo.Load] read %s: %w", r.path, err)
	}

	entries := map[string]string{}
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("[FileRepo.Load] parse %s: %w", r.path, err)
	}
	return entries, nil
}
