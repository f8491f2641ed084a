//go:build windows

package machineid

import (
	"context"
	"strings"

	pkgexec "github.com/systmms/dsconf/pkg/exec"
)

func platformID(ctx context.Context, ex pkgexec.CommandExecutor) (string, error) {
	out, err := runCmd(ctx, ex, "wmic", "csproduct", "get", "uuid")
	if err != nil {
		return "", err
	}
	return parseWMIC(out)
}

// parseWMIC returns the first value line after the UUID header.
func parseWMIC(out string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(out, "\r", ""), "\n")
	for _, line := range lines[1:] {
		if v := strings.TrimSpace(line); v != "" {
			return v, nil
		}
	}
	return "", ErrUnavailable
}
