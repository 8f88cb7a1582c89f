// Package backup keeps a copy of an in-progress change description
// so that user-authored text survives a failed upload.
package backup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileName is the name of the backup file inside the git directory.
const FileName = "gitcl-description-backup"

// ErrNotExist indicates that there is no saved description.
var ErrNotExist = errors.New("no saved description")

// File is a description backup on disk.
type File struct {
	path string
}

// New returns the backup file for a repository
// with the given git directory.
func New(gitDir string) *File {
	return &File{path: filepath.Join(gitDir, FileName)}
}

// Path reports where the description is saved.
func (f *File) Path() string {
	return f.path
}

// Save replaces the saved description.
func (f *File) Save(desc string) error {
	if err := os.WriteFile(f.path, []byte(desc), 0o600); err != nil {
		return fmt.Errorf("save description: %w", err)
	}
	return nil
}

// Load returns the saved description.
func (f *File) Load() (string, error) {
	bs, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotExist
		}
		return "", fmt.Errorf("load description: %w", err)
	}
	return string(bs), nil
}

// Remove deletes the saved description, if any.
func (f *File) Remove() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove description: %w", err)
	}
	return nil
}
