package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/systmms/dsconf/internal/app"
	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/logging"
	"github.com/systmms/dsconf/internal/providers"
	"github.com/systmms/dsconf/internal/secrets"
	"github.com/systmms/dsconf/pkg/secretstore"
)

// secretsOptions is passed to every secrets manager the commands build.
// Tests replace the machine identifier source through it.
var secretsOptions []secrets.Option

// openContext builds the application context for one command run.
func openContext(ctx context.Context, cfg *config.Config) (*app.Context, error) {
	env := app.LoadEnvironment(nil)
	env.DevMode = env.DevMode || cfg.DevMode

	return app.New(ctx, app.Options{
		Name:        appName(cfg),
		Password:    cfg.Password,
		Env:         env,
		WorkingDir:  cfg.WorkingDir,
		Logger:      logger(cfg),
		SecretsOpts: secretsOptions,
	})
}

func appName(cfg *config.Config) string {
	if cfg.AppName == "" {
		return "dsconf"
	}
	return cfg.AppName
}

func logger(cfg *config.Config) *logging.Logger {
	if cfg.Logger == nil {
		return logging.Nop()
	}
	return cfg.Logger
}

// parseScope maps a --scope flag onto a store priority. An empty flag is
// unscoped.
func parseScope(s string) (secretstore.Priority, error) {
	if strings.TrimSpace(s) == "" {
		return secrets.Unscoped, nil
	}
	p, err := secretstore.ParsePriority(s)
	if err != nil {
		return 0, dserrors.UserError{
			Message:    fmt.Sprintf("Invalid scope %q", s),
			Suggestion: "Use one of: user, app, aws, azure, gcp",
			Err:        err,
		}
	}
	return p, nil
}

// localStores returns the local vault stores of the manager.
func localStores(m *secrets.Manager) []*providers.LocalVaultStore {
	var out []*providers.LocalVaultStore
	for _, s := range m.Stores() {
		if l, ok := s.(*providers.LocalVaultStore); ok {
			out = append(out, l)
		}
	}
	return out
}
