// Package machineid reads a stable per-machine identifier and derives the
// default vault password from it.
//
// The derivation is fixed: vaults created by earlier installs on the same
// machine must keep opening, so do not change it.
package machineid

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	dserrors "github.com/systmms/dsconf/internal/errors"
	pkgexec "github.com/systmms/dsconf/pkg/exec"
)

var (
	// ErrUnavailable is returned when no identifier source produced a value.
	ErrUnavailable = errors.New("machine identifier unavailable")
	// ErrNoKeyMaterial is returned when identifier and path contain no
	// ASCII letters to build a key from.
	ErrNoKeyMaterial = errors.New("machine identifier contains no key material")
)

const commandTimeout = 10 * time.Second

// Reader returns the machine identifier.
type Reader func(ctx context.Context) (string, error)

// PlatformReader returns the Reader for the running platform. Commands
// run through ex.
func PlatformReader(ex pkgexec.CommandExecutor) Reader {
	return func(ctx context.Context) (string, error) {
		return platformID(ctx, ex)
	}
}

// ID returns the identifier for the running platform.
func ID(ctx context.Context) (string, error) {
	return PlatformReader(pkgexec.DefaultExecutor())(ctx)
}

// PasswordFrom derives the vault password using read as the identifier
// source.
func PasswordFrom(ctx context.Context, read Reader, path string) (string, error) {
	id, err := read(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(id) == "" {
		return "", ErrUnavailable
	}
	return Derive(id, path)
}

// Derive XORs id+path with the ASCII letters of id+path, repeated, and
// returns the standard Base64 encoding of the UTF-8 result.
func Derive(id, path string) (string, error) {
	base := []rune(id + path)

	key := make([]rune, 0, len(base))
	for _, r := range base {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
			key = append(key, r)
		}
	}
	if len(key) == 0 {
		return "", ErrNoKeyMaterial
	}

	out := make([]rune, len(base))
	for i, r := range base {
		out[i] = r ^ key[i%len(key)]
	}
	return base64.StdEncoding.EncodeToString([]byte(string(out))), nil
}

// runCmd runs name with args and returns trimmed stdout.
func runCmd(ctx context.Context, ex pkgexec.CommandExecutor, name string, args ...string) (string, error) {
	if _, err := ex.LookPath(name); err != nil {
		return "", dserrors.WrapCommandNotFound(name, err)
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	stdout, stderr, err := ex.Execute(ctx, name, args...)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(stderr)))
	}
	return strings.TrimSpace(string(stdout)), nil
}

// readFirst returns the trimmed contents of the first readable, non-empty
// file in paths.
func readFirst(paths ...string) (string, error) {
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	return "", ErrUnavailable
}
