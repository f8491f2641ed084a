//go:build freebsd || openbsd

package machineid

import (
	"context"

	pkgexec "github.com/systmms/dsconf/pkg/exec"
)

func platformID(ctx context.Context, ex pkgexec.CommandExecutor) (string, error) {
	if id, err := readFirst("/etc/hostid"); err == nil {
		return id, nil
	}
	id, err := runCmd(ctx, ex, "kenv", "-q", "smbios.system.uuid")
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", ErrUnavailable
	}
	return id, nil
}
