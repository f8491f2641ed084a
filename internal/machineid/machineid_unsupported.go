//go:build !linux && !darwin && !windows && !freebsd && !openbsd

package machineid

import (
	"context"

	pkgexec "github.com/systmms/dsconf/pkg/exec"
)

func platformID(_ context.Context, _ pkgexec.CommandExecutor) (string, error) {
	return "", ErrUnavailable
}
