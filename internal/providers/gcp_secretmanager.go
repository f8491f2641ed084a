package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/logging"
	"github.com/systmms/dsconf/pkg/secretstore"
)

// GCPStoreName is the name of the GCP Secret Manager store.
const GCPStoreName = "GCP_Secrets_Store"

// GCPSecretManagerClientAPI defines the Secret Manager operations the store
// uses. CheckAccess stands in for the ListSecrets iterator.
type GCPSecretManagerClientAPI interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error)
	CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error)
	DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest) error
	CheckAccess(ctx context.Context, parent string) error
	Close() error
}

// gcpSDKClient adapts *secretmanager.Client to GCPSecretManagerClientAPI.
type gcpSDKClient struct {
	c *secretmanager.Client
}

func (g gcpSDKClient) AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	return g.c.AccessSecretVersion(ctx, req)
}

func (g gcpSDKClient) AddSecretVersion(ctx context.Context, req *secretmanagerpb.AddSecretVersionRequest) (*secretmanagerpb.SecretVersion, error) {
	return g.c.AddSecretVersion(ctx, req)
}

func (g gcpSDKClient) CreateSecret(ctx context.Context, req *secretmanagerpb.CreateSecretRequest) (*secretmanagerpb.Secret, error) {
	return g.c.CreateSecret(ctx, req)
}

func (g gcpSDKClient) DeleteSecret(ctx context.Context, req *secretmanagerpb.DeleteSecretRequest) error {
	return g.c.DeleteSecret(ctx, req)
}

func (g gcpSDKClient) CheckAccess(ctx context.Context, parent string) error {
	it := g.c.ListSecrets(ctx, &secretmanagerpb.ListSecretsRequest{
		Parent:   parent,
		PageSize: 1,
	})
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

func (g gcpSDKClient) Close() error {
	return g.c.Close()
}

// GCPSecretManagerStore stores secrets in Google Cloud Secret Manager.
type GCPSecretManagerStore struct {
	priority  secretstore.Priority
	client    GCPSecretManagerClientAPI
	logger    *logging.Logger
	projectID string
}

// GCPOption is a functional option for configuring the GCP store.
type GCPOption func(*GCPSecretManagerStore)

// WithGCPSecretManagerClient sets a custom Secret Manager client (for testing)
func WithGCPSecretManagerClient(client GCPSecretManagerClientAPI) GCPOption {
	return func(s *GCPSecretManagerStore) {
		s.client = client
	}
}

// WithGCPLogger sets the logger.
func WithGCPLogger(logger *logging.Logger) GCPOption {
	return func(s *GCPSecretManagerStore) {
		s.logger = logger
	}
}

// NewGCPSecretManagerStore builds a client for the configured project and
// checks access by listing one secret.
func NewGCPSecretManagerStore(ctx context.Context, cfg config.GCPSecrets, opts ...GCPOption) (*GCPSecretManagerStore, error) {
	s := &GCPSecretManagerStore{
		priority:  secretstore.PriorityGCP,
		logger:    logging.Nop(),
		projectID: cfg.Project(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.projectID == "" {
		return nil, secretstore.NewStoreError(GCPStoreName, "open",
			"GCP Secrets Store requires a project_id or GOOGLE_CLOUD_PROJECT", nil)
	}

	if s.client == nil {
		client, err := newGCPSecretManagerClient(ctx, cfg)
		if err != nil {
			return nil, secretstore.NewStoreError(GCPStoreName, "open", "GCP Secrets Store not available", err)
		}
		s.client = client
	}

	if err := s.client.CheckAccess(ctx, s.parent()); err != nil {
		_ = s.client.Close()
		return nil, secretstore.NewStoreError(GCPStoreName, "connect", "GCP Secrets Store not available",
			dserrors.ProviderError("gcp", "connect", err))
	}

	s.logger.Info("Connected to GCP Secret Manager project %s", s.projectID)
	return s, nil
}

func newGCPSecretManagerClient(ctx context.Context, cfg config.GCPSecrets) (GCPSecretManagerClientAPI, error) {
	var clientOptions []option.ClientOption

	if path := cfg.CredentialsFile; path != "" {
		if strings.HasPrefix(path, "~/") {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, fmt.Errorf("failed to get home directory: %w", err)
			}
			path = filepath.Join(home, path[2:])
		}
		clientOptions = append(clientOptions, option.WithCredentialsFile(path))
	}

	client, err := secretmanager.NewClient(ctx, clientOptions...)
	if err != nil {
		return nil, err
	}
	return gcpSDKClient{c: client}, nil
}

// Name returns the store name.
func (s *GCPSecretManagerStore) Name() string {
	return GCPStoreName
}

// Priority returns the store priority.
func (s *GCPSecretManagerStore) Priority() secretstore.Priority {
	return s.priority
}

// Get returns the latest version of key. Errors are logged and def is
// returned.
func (s *GCPSecretManagerStore) Get(ctx context.Context, key, def string) string {
	resp, err := s.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: s.secretName(key) + "/versions/latest",
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			s.logger.Debug("GCP secret %s not found", key)
		} else {
			s.logger.Error("GCP Secret Manager get %s: %v", key, err)
		}
		return def
	}
	if resp.GetPayload() == nil || len(resp.GetPayload().GetData()) == 0 {
		return def
	}
	return string(resp.GetPayload().GetData())
}

// Set adds a new version of key, creating the secret with automatic
// replication when it does not exist yet.
func (s *GCPSecretManagerStore) Set(ctx context.Context, key, value string) error {
	req := &secretmanagerpb.AddSecretVersionRequest{
		Parent:  s.secretName(key),
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}

	version, err := s.client.AddSecretVersion(ctx, req)
	if status.Code(err) == codes.NotFound {
		_, cerr := s.client.CreateSecret(ctx, &secretmanagerpb.CreateSecretRequest{
			Parent:   s.parent(),
			SecretId: key,
			Secret: &secretmanagerpb.Secret{
				Replication: &secretmanagerpb.Replication{
					Replication: &secretmanagerpb.Replication_Automatic_{
						Automatic: &secretmanagerpb.Replication_Automatic{},
					},
				},
			},
		})
		if cerr != nil {
			s.logger.Error("GCP Secret Manager create %s: %v", key, cerr)
			return secretstore.NewStoreError(GCPStoreName, "set", "failed to create secret "+key, cerr)
		}
		version, err = s.client.AddSecretVersion(ctx, req)
	}
	if err != nil {
		s.logger.Error("GCP Secret Manager set %s: %v", key, err)
		return secretstore.NewStoreError(GCPStoreName, "set", "failed to store secret "+key, err)
	}
	if version.GetName() == "" {
		return secretstore.NewStoreError(GCPStoreName, "set", "inconsistent response from GCP: missing version name", nil)
	}
	return nil
}

// Delete removes key and all of its versions.
func (s *GCPSecretManagerStore) Delete(ctx context.Context, key string) error {
	if err := s.client.DeleteSecret(ctx, &secretmanagerpb.DeleteSecretRequest{Name: s.secretName(key)}); err != nil {
		s.logger.Error("GCP Secret Manager delete %s: %v", key, err)
		return secretstore.NewStoreError(GCPStoreName, "delete", "failed to delete secret "+key, err)
	}
	return nil
}

// Close releases the client connection.
func (s *GCPSecretManagerStore) Close() error {
	return s.client.Close()
}

func (s *GCPSecretManagerStore) parent() string {
	return "projects/" + s.projectID
}

func (s *GCPSecretManagerStore) secretName(key string) string {
	return s.parent() + "/secrets/" + key
}
