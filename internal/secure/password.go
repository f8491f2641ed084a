package secure

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrDestroyed is returned when a destroyed Password is revealed.
var ErrDestroyed = errors.New("password has been destroyed")

// Password holds a vault password inside a memguard enclave.
//
// memguard refuses to seal empty input, so an empty password is tracked
// with a flag instead of an enclave.
type Password struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	empty     bool
	destroyed bool
}

// NewPassword seals s into a new enclave.
func NewPassword(s string) *Password {
	if s == "" {
		return &Password{empty: true}
	}
	// NewEnclave wipes its input, so hand it a private copy.
	return &Password{enclave: memguard.NewEnclave([]byte(s))}
}

// Reveal decrypts the password. The returned string is an ordinary Go
// string; keep its lifetime short.
func (p *Password) Reveal() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.destroyed {
		return "", ErrDestroyed
	}
	if p.empty {
		return "", nil
	}

	locked, err := p.enclave.Open()
	if err != nil {
		return "", err
	}
	defer locked.Destroy()

	return string(locked.Bytes()), nil
}

// Empty reports whether the sealed password is the empty string.
func (p *Password) Empty() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.empty
}

// Destroy drops the enclave. Calling it more than once is safe.
func (p *Password) Destroy() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.destroyed {
		return
	}
	p.enclave = nil
	p.destroyed = true
}

// Purge wipes every memguard allocation in the process. Call it once on
// exit.
func Purge() {
	memguard.Purge()
}
