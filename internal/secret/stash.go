// Package secret stores credentials used to talk to Gerrit hosts.
//
// Secrets are addressed by a service (usually the Gerrit host)
// and a key within that service.
package secret

import (
	"errors"

	"github.com/zalando/go-keyring"
)

var (
	// ErrNotFound is returned when a secret is not found.
	ErrNotFound = errors.New("secret not found")

	// ErrKeyringUnsupported indicates that the system keychain
	// is not available on this platform.
	ErrKeyringUnsupported = keyring.ErrUnsupportedPlatform
)

// Stash stores and retrieves secrets.
type Stash interface {
	SaveSecret(service, key, secret string) error

	// LoadSecret returns ErrNotFound if the secret does not exist.
	LoadSecret(service, key string) (string, error)

	// DeleteSecret is a no-op if the secret does not exist.
	DeleteSecret(service, key string) error
}

// Keyring stores secrets in the system keychain.
//
// Its zero value is ready for use.
type Keyring struct{}

var _ Stash = (*Keyring)(nil)

func keyringService(service string) string {
	return "git-cl:" + service
}

// SaveSecret saves a secret in the keychain.
func (*Keyring) SaveSecret(service, key, secret string) error {
	return keyring.Set(keyringService(service), key, secret)
}

// LoadSecret loads a secret from the keychain.
func (*Keyring) LoadSecret(service, key string) (string, error) {
	secret, err := keyring.Get(keyringService(service), key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return secret, err
}

// DeleteSecret deletes a secret from the keychain.
func (*Keyring) DeleteSecret(service, key string) error {
	err := keyring.Delete(keyringService(service), key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// Fallback uses Primary, and Secondary whenever Primary fails.
//
// A missing secret in Primary is not a failure.
type Fallback struct {
	Primary, Secondary Stash // required
}

var _ Stash = (*Fallback)(nil)

// SaveSecret saves to Primary, or to Secondary if that fails.
func (f *Fallback) SaveSecret(service, key, secret string) error {
	if err := f.Primary.SaveSecret(service, key, secret); err != nil {
		return f.Secondary.SaveSecret(service, key, secret)
	}
	return nil
}

// LoadSecret loads from Primary, or from Secondary if that fails.
func (f *Fallback) LoadSecret(service, key string) (string, error) {
	secret, err := f.Primary.LoadSecret(service, key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return f.Secondary.LoadSecret(service, key)
	}
	return secret, err
}

// DeleteSecret deletes from both stashes.
// It fails only if neither stash could delete the secret.
func (f *Fallback) DeleteSecret(service, key string) error {
	perr := f.Primary.DeleteSecret(service, key)
	serr := f.Secondary.DeleteSecret(service, key)
	if perr != nil && serr != nil {
		return errors.Join(perr, serr)
	}
	return nil
}
