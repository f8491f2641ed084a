//go:build linux

package machineid

import (
	"context"

	pkgexec "github.com/systmms/dsconf/pkg/exec"
)

func platformID(_ context.Context, _ pkgexec.CommandExecutor) (string, error) {
	return readFirst("/var/lib/dbus/machine-id", "/etc/machine-id")
}
