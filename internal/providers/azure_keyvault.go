package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"

	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/logging"
	pkgexec "github.com/systmms/dsconf/pkg/exec"
	"github.com/systmms/dsconf/pkg/secretstore"
)

// AzureStoreName is the name of the Azure Key Vault store.
const AzureStoreName = "Azure_Secrets_Store"

// Deleted secrets become purgeable only once Key Vault finishes the
// deletion. Delete polls for that state before purging.
const (
	defaultAzureDeletePoll    = 2 * time.Second
	defaultAzureDeleteTimeout = 2 * time.Minute
)

// AzureKeyVaultClientAPI defines the Key Vault operations the store uses.
// CheckAccess stands in for the first page of NewListSecretPropertiesPager
// so the pager does not need mocking.
type AzureKeyVaultClientAPI interface {
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	DeleteSecret(ctx context.Context, name string, options *azsecrets.DeleteSecretOptions) (azsecrets.DeleteSecretResponse, error)
	GetDeletedSecret(ctx context.Context, name string, options *azsecrets.GetDeletedSecretOptions) (azsecrets.GetDeletedSecretResponse, error)
	PurgeDeletedSecret(ctx context.Context, name string, options *azsecrets.PurgeDeletedSecretOptions) (azsecrets.PurgeDeletedSecretResponse, error)
	CheckAccess(ctx context.Context) error
}

// azsecretsClient adapts *azsecrets.Client to AzureKeyVaultClientAPI.
type azsecretsClient struct {
	*azsecrets.Client
}

func (c azsecretsClient) CheckAccess(ctx context.Context) error {
	pager := c.NewListSecretPropertiesPager(nil)
	if !pager.More() {
		return nil
	}
	_, err := pager.NextPage(ctx)
	return err
}

// AzureKeyVaultStore stores secrets in Azure Key Vault.
type AzureKeyVaultStore struct {
	priority      secretstore.Priority
	client        AzureKeyVaultClientAPI
	executor      pkgexec.CommandExecutor
	logger        *logging.Logger
	vaultURL      string
	purgeOnDelete bool
	deletePoll    time.Duration
	deleteTimeout time.Duration
}

// AzureOption is a functional option for configuring the Azure store.
type AzureOption func(*AzureKeyVaultStore)

// WithAzureKeyVaultClient sets a custom Azure Key Vault client (for testing)
func WithAzureKeyVaultClient(client AzureKeyVaultClientAPI) AzureOption {
	return func(s *AzureKeyVaultStore) {
		s.client = client
	}
}

// WithAzureExecutor sets the executor used for the az CLI check.
func WithAzureExecutor(ex pkgexec.CommandExecutor) AzureOption {
	return func(s *AzureKeyVaultStore) {
		s.executor = ex
	}
}

// WithAzureLogger sets the logger.
func WithAzureLogger(logger *logging.Logger) AzureOption {
	return func(s *AzureKeyVaultStore) {
		s.logger = logger
	}
}

// WithAzureDeletePolling sets how often and how long Delete waits for a
// deleted secret to become purgeable.
func WithAzureDeletePolling(interval, timeout time.Duration) AzureOption {
	return func(s *AzureKeyVaultStore) {
		s.deletePoll = interval
		s.deleteTimeout = timeout
	}
}

// NewAzureKeyVaultStore checks the az CLI prerequisite, builds a client
// for https://<keyvault_name>.vault.azure.net and checks access.
func NewAzureKeyVaultStore(ctx context.Context, cfg config.AzureSecrets, opts ...AzureOption) (*AzureKeyVaultStore, error) {
	s := &AzureKeyVaultStore{
		priority:      secretstore.PriorityAzure,
		executor:      pkgexec.DefaultExecutor(),
		logger:        logging.Nop(),
		vaultURL:      cfg.VaultURL(),
		purgeOnDelete: cfg.PurgeOnDelete,
		deletePoll:    defaultAzureDeletePoll,
		deleteTimeout: defaultAzureDeleteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.executor.LookPath("az"); err != nil {
		return nil, secretstore.NewStoreError(AzureStoreName, "open",
			"Azure Secrets Store requires the Azure command line utility to be installed",
			dserrors.WrapCommandNotFound("az", err))
	}
	if cfg.KeyVaultName == "" {
		return nil, secretstore.NewStoreError(AzureStoreName, "open",
			"Azure Secrets Store requires a valid key vault name to be provided", nil)
	}

	if s.client == nil {
		client, err := newAzureKeyVaultClient(cfg)
		if err != nil {
			return nil, secretstore.NewStoreError(AzureStoreName, "open", "Azure Secrets Store not available", err)
		}
		s.client = client
	}

	if err := s.client.CheckAccess(ctx); err != nil {
		return nil, secretstore.NewStoreError(AzureStoreName, "connect", "Azure Secrets Store not available",
			dserrors.ProviderError("azure", "connect", err))
	}

	s.logger.Info("Connected to Azure Key Vault %s", s.vaultURL)
	return s, nil
}

func newAzureKeyVaultClient(cfg config.AzureSecrets) (AzureKeyVaultClientAPI, error) {
	var cred azcore.TokenCredential
	var err error

	if cfg.ClientSecret != "" {
		cred, err = azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	} else {
		cred, err = azidentity.NewDefaultAzureCredential(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure credential: %w", err)
	}

	client, err := azsecrets.NewClient(cfg.VaultURL(), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
	}
	return azsecretsClient{client}, nil
}

// Name returns the store name.
func (s *AzureKeyVaultStore) Name() string {
	return AzureStoreName
}

// Priority returns the store priority.
func (s *AzureKeyVaultStore) Priority() secretstore.Priority {
	return s.priority
}

// Get returns the latest version of key. Errors are logged and def is
// returned.
func (s *AzureKeyVaultStore) Get(ctx context.Context, key, def string) string {
	resp, err := s.client.GetSecret(ctx, key, "", nil)
	if err != nil {
		if isAzureNotFound(err) {
			s.logger.Debug("Azure secret %s not found", key)
		} else {
			s.logger.Error("Azure Key Vault get %s: %v", key, err)
		}
		return def
	}
	if resp.Value == nil || *resp.Value == "" {
		return def
	}
	return *resp.Value
}

// Set writes a new version of key.
func (s *AzureKeyVaultStore) Set(ctx context.Context, key, value string) error {
	resp, err := s.client.SetSecret(ctx, key, azsecrets.SetSecretParameters{Value: &value}, nil)
	if err != nil {
		s.logger.Error("Azure Key Vault set %s: %v", key, err)
		return secretstore.NewStoreError(AzureStoreName, "set", "failed to store secret "+key, err)
	}
	if resp.ID == nil {
		return secretstore.NewStoreError(AzureStoreName, "set", "inconsistent response from Azure: missing secret id", nil)
	}
	return nil
}

// Delete removes key, purging it as well when purge_on_delete is set.
func (s *AzureKeyVaultStore) Delete(ctx context.Context, key string) error {
	resp, err := s.client.DeleteSecret(ctx, key, nil)
	if err != nil {
		s.logger.Error("Azure Key Vault delete %s: %v", key, err)
		return secretstore.NewStoreError(AzureStoreName, "delete", "failed to delete secret "+key, err)
	}
	if resp.ID == nil {
		return secretstore.NewStoreError(AzureStoreName, "delete", "inconsistent response from Azure: missing secret id", nil)
	}

	if s.purgeOnDelete {
		if err := s.waitDeleted(ctx, key); err != nil {
			s.logger.Error("Azure Key Vault delete %s did not complete: %v", key, err)
			return secretstore.NewStoreError(AzureStoreName, "delete", "secret "+key+" was deleted but could not be purged", err)
		}
		if _, err := s.client.PurgeDeletedSecret(ctx, key, nil); err != nil {
			s.logger.Error("Azure Key Vault purge %s: %v", key, err)
			return secretstore.NewStoreError(AzureStoreName, "delete", "failed to purge secret "+key, err)
		}
	}
	return nil
}

// waitDeleted blocks until key is listed as a deleted secret, the timeout
// passes or ctx is done.
func (s *AzureKeyVaultStore) waitDeleted(ctx context.Context, key string) error {
	ctx, cancel := context.WithTimeout(ctx, s.deleteTimeout)
	defer cancel()

	ticker := time.NewTicker(s.deletePoll)
	defer ticker.Stop()

	for {
		_, err := s.client.GetDeletedSecret(ctx, key, nil)
		if err == nil {
			return nil
		}
		if !isAzureNotFound(err) {
			return err
		}
		s.logger.Debug("Waiting for Azure secret %s to finish deleting", key)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func isAzureNotFound(err error) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound
}
