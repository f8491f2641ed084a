// Package app builds the process-wide application context: paths,
// settings resolver and secrets manager, constructed once and shared.
package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/systmms/dsconf/internal/execenv"
	"github.com/systmms/dsconf/internal/logging"
	"github.com/systmms/dsconf/internal/paths"
	"github.com/systmms/dsconf/internal/secrets"
	"github.com/systmms/dsconf/internal/settings"
)

// Options configures New.
type Options struct {
	Name        string
	Password    string // explicit vault password, wins over the environment
	Env         Environment
	WorkingDir  string       // os.Getwd when empty
	Paths       *paths.Paths // computed when nil
	Handoff     *Handoff     // set for workers
	Logger      *logging.Logger
	SecretsOpts []secrets.Option
}

// Context owns everything resolved once per process.
type Context struct {
	Name     string
	Env      Environment
	Paths    *paths.Paths
	Settings *settings.Resolver
	Secrets  *secrets.Manager
	Logger   *logging.Logger

	logFolderID string
	worker      bool
}

// New computes paths, loads settings and builds the secrets manager, then
// binds the manager into the resolver for SEC/ and provider markers.
func New(ctx context.Context, opts Options) (*Context, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	c := &Context{
		Name:        opts.Name,
		Env:         opts.Env,
		Logger:      logger,
		logFolderID: opts.Env.LogFolderID,
	}

	wd := opts.WorkingDir
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
	}

	switch {
	case opts.Handoff != nil:
		h := opts.Handoff
		p := h.Paths
		c.Paths = &p
		c.Name = h.AppName
		c.Env.DevMode = h.DevMode
		c.Env.DefaultLogging = h.DefaultLogging
		c.logFolderID = h.LogFolderID
		c.worker = true
	case opts.Paths != nil:
		c.Paths = opts.Paths
	default:
		p, err := paths.New(opts.Name, paths.Options{DevMode: opts.Env.DevMode, WorkingDir: wd})
		if err != nil {
			return nil, err
		}
		c.Paths = p
	}
	c.Paths.Log(logger)

	if !c.worker {
		if err := c.Paths.Create(true, logger); err != nil {
			return nil, err
		}
		if c.logFolderID == "" {
			c.logFolderID = time.Now().Format("20060102-150405")
		}
	}

	resolver, err := settings.Load(settings.Roots{
		WorkingDir: wd,
		AppData:    c.Paths.AppData,
		UserData:   c.Paths.UserData,
	}, settings.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	c.Settings = resolver

	sm, err := resolver.SecretsManager()
	if err != nil {
		return nil, err
	}

	secretsOpts := append([]secrets.Option{secrets.WithLogger(logger)}, opts.SecretsOpts...)
	manager, err := secrets.New(ctx, secrets.Config{
		UserRoot:       c.Paths.UserData,
		AppRoot:        c.Paths.AppData,
		Password:       opts.Password,
		EnvPassword:    c.Env.SecretsStorePassword,
		SecretsManager: sm,
	}, secretsOpts...)
	if err != nil {
		return nil, err
	}
	c.Secrets = manager
	resolver.BindSecrets(manager)

	return c, nil
}

// IsWorker reports whether the context was built from a handoff.
func (c *Context) IsWorker() bool {
	return c.worker
}

// LogFolderID identifies the log folder shared by a parent and its
// workers.
func (c *Context) LogFolderID() string {
	return c.logFolderID
}

// Handoff returns the record passed to spawned workers.
func (c *Context) Handoff() Handoff {
	return Handoff{
		Version:        HandoffVersion,
		AppName:        c.Name,
		Paths:          *c.Paths,
		LogFolderID:    c.logFolderID,
		DevMode:        c.Env.DevMode,
		DefaultLogging: c.Env.DefaultLogging,
	}
}

// Spawn runs opts.Command as a worker, passing the handoff on descriptor 3
// and the log folder id in the environment.
func (c *Context) Spawn(ctx context.Context, opts execenv.SpawnOptions) error {
	var buf bytes.Buffer
	if err := c.Handoff().Encode(&buf); err != nil {
		return err
	}
	opts.Handoff = buf.Bytes()

	env := make(map[string]string, len(opts.Environment)+1)
	for k, v := range opts.Environment {
		env[k] = v
	}
	env[EnvLogFolderID] = c.logFolderID
	opts.Environment = env

	return execenv.New(c.Logger).Spawn(ctx, opts)
}

// Close releases the secrets stores.
func (c *Context) Close() error {
	if c.Secrets == nil {
		return nil
	}
	return c.Secrets.Close()
}
