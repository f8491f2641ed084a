// Package keyring stores local vault passwords in the OS keyring (macOS
// Keychain, Secret Service, Windows Credential Manager). Entries are keyed
// by vault path.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "dsconf"

// ErrNotFound is returned when no password is stored for a vault.
var ErrNotFound = keyring.ErrNotFound

// SavePassword stores the password for the vault at path.
func SavePassword(path, password string) error {
	return keyring.Set(serviceName, path, password)
}

// GetPassword returns the password stored for the vault at path.
func GetPassword(path string) (string, error) {
	return keyring.Get(serviceName, path)
}

// DeletePassword removes the stored password. A missing entry is not an
// error.
func DeletePassword(path string) error {
	if err := keyring.Delete(serviceName, path); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// HasPassword reports whether a password is stored for the vault at path.
func HasPassword(path string) bool {
	_, err := keyring.Get(serviceName, path)
	return err == nil
}
