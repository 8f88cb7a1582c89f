package secret

import "sync"

type memoryKey struct{ service, key string }

// Memory is an in-memory [Stash].
// Its zero value is ready for use.
type Memory struct {
	m sync.Map // memoryKey -> string
}

var _ Stash = (*Memory)(nil)

// SaveSecret saves a secret in memory.
func (m *Memory) SaveSecret(service, key, secret string) error {
	m.m.Store(memoryKey{service, key}, secret)
	return nil
}

// LoadSecret loads a secret from memory.
func (m *Memory) LoadSecret(service, key string) (string, error) {
	v, ok := m.m.Load(memoryKey{service, key})
	if !ok {
		return "", ErrNotFound
	}
	return v.(string), nil
}

// DeleteSecret deletes a secret from memory.
func (m *Memory) DeleteSecret(service, key string) error {
	m.m.Delete(memoryKey{service, key})
	return nil
}
