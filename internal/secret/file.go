package secret

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.abhg.dev/gitcl/internal/silog"
	"gopkg.in/yaml.v3"
)

// File stores secrets in plain text in a YAML file.
// It warns the first time it creates the file.
type File struct {
	Path string        // required
	Log  *silog.Logger // required

	mu sync.Mutex
}

var _ Stash = (*File)(nil)

// fileData maps service to key to secret.
type fileData map[string]map[string]string

func (f *File) load() (fileData, error) {
	bs, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(fileData), nil
		}
		return nil, fmt.Errorf("read secrets: %w", err)
	}

	data := make(fileData)
	if err := yaml.Unmarshal(bs, &data); err != nil {
		return nil, fmt.Errorf("parse %v: %w", f.Path, err)
	}
	return data, nil
}

func (f *File) save(data fileData) error {
	for svc, secrets := range data {
		if len(secrets) == 0 {
			delete(data, svc)
		}
	}
	if len(data) == 0 {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove secrets: %w", err)
		}
		return nil
	}

	bs, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	_, statErr := os.Stat(f.Path)
	created := errors.Is(statErr, os.ErrNotExist)

	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create secrets directory: %w", err)
	}
	if err := os.WriteFile(f.Path, bs, 0o600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}

	if created {
		f.Log.Warnf("Storing credentials in plain text at %s", f.Path)
	}
	return nil
}

// SaveSecret stores a secret in the file.
func (f *File) SaveSecret(service, key, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	if data[service] == nil {
		data[service] = make(map[string]string)
	}
	data[service][key] = secret
	return f.save(data)
}

// LoadSecret retrieves a secret from the file.
func (f *File) LoadSecret(service, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return "", err
	}
	secret, ok := data[service][key]
	if !ok {
		return "", ErrNotFound
	}
	return secret, nil
}

// DeleteSecret removes a secret from the file.
// The file is removed when it no longer holds any secrets.
func (f *File) DeleteSecret(service, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := data[service][key]; !ok {
		return nil
	}
	delete(data[service], key)
	return f.save(data)
}
