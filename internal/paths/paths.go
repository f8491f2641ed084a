// Package paths computes the per-OS log, data and temp roots of an
// application.
package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/systmms/dsconf/internal/logging"
)

// Paths holds the directory roots of one application.
type Paths struct {
	AppName  string `json:"app_name"`
	LogRoot  string `json:"log_root"`
	AppData  string `json:"app_data"`
	UserData string `json:"user_data"`
	Temp     string `json:"temp"`
	DevMode  bool   `json:"dev_mode"`
}

// Options overrides the process environment when computing paths.
type Options struct {
	OS         string // runtime.GOOS when empty
	DevMode    bool
	WorkingDir string // os.Getwd when empty
	HomeDir    string // os.UserHomeDir when empty
	Getenv     func(string) string
}

// New computes the roots for appName. In dev mode every root sits under
// the working directory.
func New(appName string, opts Options) (*Paths, error) {
	if appName == "" {
		return nil, fmt.Errorf("application name is required")
	}
	if opts.OS == "" {
		opts.OS = runtime.GOOS
	}
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}

	p := &Paths{AppName: appName, DevMode: opts.DevMode}

	if opts.DevMode {
		wd := opts.WorkingDir
		if wd == "" {
			var err error
			if wd, err = os.Getwd(); err != nil {
				return nil, fmt.Errorf("failed to get working directory: %w", err)
			}
		}
		p.LogRoot = filepath.Join(wd, "logs")
		p.AppData = filepath.Join(wd, "data", "app")
		p.UserData = filepath.Join(wd, "data", "usr")
		p.Temp = filepath.Join(wd, "temp")
		return p, nil
	}

	home := opts.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
	}
	env := opts.Getenv

	switch opts.OS {
	case "windows":
		p.LogRoot = filepath.Join(env("LOCALAPPDATA"), appName, "logs")
		p.AppData = filepath.Join(env("ALLUSERSPROFILE"), appName)
		p.UserData = filepath.Join(env("APPDATA"), appName)
		p.Temp = filepath.Join(env("TEMP"), appName)
	case "darwin":
		p.LogRoot = filepath.Join(home, "Library", "Logs", appName)
		p.AppData = filepath.Join("/Library", "Application Support", appName)
		p.UserData = filepath.Join(home, "Library", "Application Support", appName)
		p.Temp = filepath.Join(tmpDir(env), appName)
	default:
		p.LogRoot = filepath.Join("/var", "log", appName)
		p.AppData = filepath.Join("/etc", appName)
		p.UserData = filepath.Join(home, ".config", appName)
		p.Temp = filepath.Join(tmpDir(env), appName)
	}
	return p, nil
}

func tmpDir(env func(string) string) string {
	if dir := env("TMPDIR"); dir != "" {
		return dir
	}
	return "/tmp"
}

// Create makes every root, clearing Temp first when cleanTemp is set.
// Roots that cannot be created are logged and skipped; only the user data
// root is required.
func (p *Paths) Create(cleanTemp bool, logger *logging.Logger) error {
	if logger == nil {
		logger = logging.Nop()
	}
	if cleanTemp {
		if err := os.RemoveAll(p.Temp); err != nil {
			logger.Warn("Failed to clean temp root %s: %v", p.Temp, err)
		}
	}

	if err := os.MkdirAll(p.UserData, 0o700); err != nil {
		return fmt.Errorf("failed to create user data root %s: %w", p.UserData, err)
	}
	for _, dir := range []string{p.Temp, p.LogRoot, p.AppData} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("Failed to create %s: %v", dir, err)
		}
	}
	return nil
}

// Log writes every root at debug level.
func (p *Paths) Log(logger *logging.Logger) {
	logger.Debug("Logging Root Path: %s", p.LogRoot)
	logger.Debug("Application Data Root Path: %s", p.AppData)
	logger.Debug("User Data Root Path: %s", p.UserData)
	logger.Debug("Temp Root Path: %s", p.Temp)
}
