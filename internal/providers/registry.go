package providers

import (
	"context"

	"github.com/systmms/dsconf/internal/config"
	"github.com/systmms/dsconf/internal/logging"
	"github.com/systmms/dsconf/pkg/secretstore"
)

// RemoteFactory builds one remote store from the secrets_manager section.
type RemoteFactory struct {
	// Block is the secrets_manager key that enables the store
	Block string
	// Present reports whether the block is configured
	Present func(sm config.SecretsManager) bool
	// New constructs the store and checks access
	New func(ctx context.Context, sm config.SecretsManager, logger *logging.Logger) (secretstore.Store, error)
}

// Registry holds the remote store factories in registration order.
type Registry struct {
	remotes []RemoteFactory
}

// NewRegistry creates a registry with the built-in remote stores.
func NewRegistry() *Registry {
	r := &Registry{}

	r.Register(RemoteFactory{
		Block:   "aws_secrets",
		Present: func(sm config.SecretsManager) bool { return sm.AWS != nil },
		New: func(ctx context.Context, sm config.SecretsManager, logger *logging.Logger) (secretstore.Store, error) {
			return NewAWSSecretsManagerStore(ctx, *sm.AWS, WithAWSLogger(logger))
		},
	})
	r.Register(RemoteFactory{
		Block:   "azure_secrets",
		Present: func(sm config.SecretsManager) bool { return sm.Azure != nil },
		New: func(ctx context.Context, sm config.SecretsManager, logger *logging.Logger) (secretstore.Store, error) {
			return NewAzureKeyVaultStore(ctx, *sm.Azure, WithAzureLogger(logger))
		},
	})
	r.Register(RemoteFactory{
		Block:   "gcp_secrets",
		Present: func(sm config.SecretsManager) bool { return sm.GCP != nil },
		New: func(ctx context.Context, sm config.SecretsManager, logger *logging.Logger) (secretstore.Store, error) {
			return NewGCPSecretManagerStore(ctx, *sm.GCP, WithGCPLogger(logger))
		},
	})

	return r
}

// Register adds a factory, replacing any existing one for the same block.
func (r *Registry) Register(f RemoteFactory) {
	for i, existing := range r.remotes {
		if existing.Block == f.Block {
			r.remotes[i] = f
			return
		}
	}
	r.remotes = append(r.remotes, f)
}

// Remotes returns the registered factories.
func (r *Registry) Remotes() []RemoteFactory {
	return append([]RemoteFactory(nil), r.remotes...)
}

// Blocks returns the secrets_manager keys the registry understands.
func (r *Registry) Blocks() []string {
	blocks := make([]string, 0, len(r.remotes))
	for _, f := range r.remotes {
		blocks = append(blocks, f.Block)
	}
	return blocks
}
