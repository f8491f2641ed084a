// Package config holds runtime CLI configuration and the typed form of
// the secrets_manager settings section.
package config

import (
	"os"

	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/logging"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration shared by CLI commands.
type Config struct {
	AppName    string
	Logger     *logging.Logger
	Debug      bool
	NoColor    bool
	DevMode    bool   // --dev, ORed with DEV_MODE
	Password   string // explicit vault password from --password
	WorkingDir string // current directory when empty
}

// SecretsManager is the secrets_manager section of a settings layer.
// Remote stores are only constructed when their block is present.
type SecretsManager struct {
	UseKeyring bool          `yaml:"use_keyring,omitempty"`
	AWS        *AWSSecrets   `yaml:"aws_secrets,omitempty"`
	Azure      *AzureSecrets `yaml:"azure_secrets,omitempty"`
	GCP        *GCPSecrets   `yaml:"gcp_secrets,omitempty"`
}

// AWSSecrets configures the AWS Secrets Manager store.
type AWSSecrets struct {
	Profile  string `yaml:"aws_profile"`
	SSO      bool   `yaml:"aws_sso,omitempty"`
	Region   string `yaml:"region,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty"` // LocalStack or testing

	// Static credentials, only honoured together with Endpoint.
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
}

// AzureSecrets configures the Azure Key Vault store.
type AzureSecrets struct {
	KeyVaultName  string `yaml:"keyvault_name"`
	TenantID      string `yaml:"tenant_id,omitempty"`
	ClientID      string `yaml:"client_id,omitempty"`
	ClientSecret  string `yaml:"client_secret,omitempty"`
	PurgeOnDelete bool   `yaml:"purge_on_delete,omitempty"`
}

// VaultURL returns the Key Vault endpoint for KeyVaultName.
func (a AzureSecrets) VaultURL() string {
	return "https://" + a.KeyVaultName + ".vault.azure.net"
}

// GCPSecrets configures the GCP Secret Manager store.
type GCPSecrets struct {
	ProjectID       string `yaml:"project_id"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
}

// Project returns ProjectID, falling back to GOOGLE_CLOUD_PROJECT.
func (g GCPSecrets) Project() string {
	if g.ProjectID != "" {
		return g.ProjectID
	}
	return os.Getenv("GOOGLE_CLOUD_PROJECT")
}

// DecodeSecretsManager converts the raw secrets_manager value of a
// settings layer into its typed form. A nil raw value yields the zero
// SecretsManager.
func DecodeSecretsManager(raw interface{}) (SecretsManager, error) {
	var sm SecretsManager
	if raw == nil {
		return sm, nil
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return sm, dserrors.ConfigError{
			Field:   "secrets_manager",
			Message: "cannot encode section: " + err.Error(),
		}
	}
	if err := yaml.Unmarshal(data, &sm); err != nil {
		return sm, dserrors.ConfigError{
			Field:      "secrets_manager",
			Message:    "invalid section: " + err.Error(),
			Suggestion: "Check the secrets_manager block in config.yaml",
		}
	}
	return sm, nil
}
