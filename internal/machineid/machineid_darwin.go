//go:build darwin

package machineid

import (
	"context"
	"strings"

	pkgexec "github.com/systmms/dsconf/pkg/exec"
)

func platformID(ctx context.Context, ex pkgexec.CommandExecutor) (string, error) {
	out, err := runCmd(ctx, ex, "ioreg", "-d2", "-c", "IOPlatformExpertDevice")
	if err != nil {
		return "", err
	}
	return parseIOReg(out)
}

// parseIOReg extracts the value of the IOPlatformUUID property, e.g.
//
//	"IOPlatformUUID" = "8A1E2C54-1F0B-5E57-9C3F-2D8E6B1C4A90"
func parseIOReg(out string) (string, error) {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, `"IOPlatformUUID"`) {
			continue
		}
		parts := strings.Split(line, `"`)
		if len(parts) >= 4 {
			return parts[len(parts)-2], nil
		}
	}
	return "", ErrUnavailable
}
