package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/logging"
	pkgexec "github.com/systmms/dsconf/pkg/exec"
	"github.com/systmms/dsconf/pkg/secretstore"
)

// AWSStoreName is the name of the AWS Secrets Manager store.
const AWSStoreName = "AWS_Secrets_Store"

const awsSSOSuccess = "Successfully logged into Start URL"

// SecretsManagerClientAPI defines the AWS Secrets Manager operations the
// store uses. This allows for mocking in tests.
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	ListSecrets(ctx context.Context, params *secretsmanager.ListSecretsInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.ListSecretsOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	DeleteSecret(ctx context.Context, params *secretsmanager.DeleteSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DeleteSecretOutput, error)
}

// AWSSecretsManagerStore stores secrets in AWS Secrets Manager.
type AWSSecretsManagerStore struct {
	priority secretstore.Priority
	client   SecretsManagerClientAPI
	executor pkgexec.CommandExecutor
	logger   *logging.Logger
	profile  string
	region   string
}

// AWSOption is a functional option for configuring the AWS store.
type AWSOption func(*AWSSecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) AWSOption {
	return func(s *AWSSecretsManagerStore) {
		s.client = client
	}
}

// WithAWSExecutor sets the executor used for the aws CLI.
func WithAWSExecutor(ex pkgexec.CommandExecutor) AWSOption {
	return func(s *AWSSecretsManagerStore) {
		s.executor = ex
	}
}

// WithAWSLogger sets the logger.
func WithAWSLogger(logger *logging.Logger) AWSOption {
	return func(s *AWSSecretsManagerStore) {
		s.logger = logger
	}
}

// NewAWSSecretsManagerStore checks the aws CLI prerequisite, optionally
// runs an SSO login, then checks access by listing one secret.
func NewAWSSecretsManagerStore(ctx context.Context, cfg config.AWSSecrets, opts ...AWSOption) (*AWSSecretsManagerStore, error) {
	s := &AWSSecretsManagerStore{
		priority: secretstore.PriorityAWS,
		executor: pkgexec.DefaultExecutor(),
		logger:   logging.Nop(),
		profile:  cfg.Profile,
		region:   cfg.Region,
	}
	for _, opt := range opts {
		opt(s)
	}

	if _, err := s.executor.LookPath("aws"); err != nil {
		return nil, secretstore.NewStoreError(AWSStoreName, "open",
			"AWS Secrets Store requires the AWS command line utility to be installed",
			dserrors.WrapCommandNotFound("aws", err))
	}
	if cfg.Profile == "" {
		return nil, secretstore.NewStoreError(AWSStoreName, "open",
			"AWS Secrets Store requires a valid profile to be provided", nil)
	}

	if cfg.SSO {
		if err := s.ssoLogin(ctx); err != nil {
			return nil, err
		}
	}

	if s.client == nil {
		client, err := newSecretsManagerClient(ctx, cfg)
		if err != nil {
			return nil, secretstore.NewStoreError(AWSStoreName, "open", "failed to load AWS config", err)
		}
		s.client = client
	}

	if _, err := s.client.ListSecrets(ctx, &secretsmanager.ListSecretsInput{MaxResults: aws.Int32(1)}); err != nil {
		return nil, secretstore.NewStoreError(AWSStoreName, "connect", "AWS Secrets Store not available",
			dserrors.ProviderError("aws", "connect", err))
	}

	s.logger.Info("Connected to AWS Secrets Manager with profile %s", cfg.Profile)
	return s, nil
}

func newSecretsManagerClient(ctx context.Context, cfg config.AWSSecrets) (*secretsmanager.Client, error) {
	configOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithSharedConfigProfile(cfg.Profile),
	}
	if cfg.Region != "" {
		configOpts = append(configOpts, awsconfig.WithRegion(cfg.Region))
	}
	// Static credentials are for LocalStack-style endpoints only.
	if cfg.Endpoint != "" && cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, err
	}

	var clientOpts []func(*secretsmanager.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	return secretsmanager.NewFromConfig(awsCfg, clientOpts...), nil
}

func (s *AWSSecretsManagerStore) ssoLogin(ctx context.Context) error {
	stdout, stderr, err := s.executor.Execute(ctx, "aws", "sso", "login", "--profile", s.profile)
	if err != nil || !strings.Contains(string(stdout), awsSSOSuccess) {
		if err == nil {
			err = errors.New(strings.TrimSpace(string(stderr)))
		}
		return secretstore.NewStoreError(AWSStoreName, "open",
			fmt.Sprintf("unable to initialise SSO for the AWS profile %s", s.profile), err)
	}
	return nil
}

// Name returns the store name.
func (s *AWSSecretsManagerStore) Name() string {
	return AWSStoreName
}

// Priority returns the store priority.
func (s *AWSSecretsManagerStore) Priority() secretstore.Priority {
	return s.priority
}

// Get returns the SecretString of key. Errors are logged and def is
// returned.
func (s *AWSSecretsManagerStore) Get(ctx context.Context, key, def string) string {
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			s.logger.Debug("AWS secret %s not found", key)
		} else {
			s.logger.Error("AWS Secrets Manager get %s: %v", key, err)
		}
		return def
	}

	switch {
	case out.SecretString != nil && *out.SecretString != "":
		return *out.SecretString
	case len(out.SecretBinary) > 0:
		return string(out.SecretBinary)
	default:
		return def
	}
}

// Set writes a new version of key, creating the secret when it does not
// exist yet.
func (s *AWSSecretsManagerStore) Set(ctx context.Context, key, value string) error {
	out, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(key),
		SecretString: aws.String(value),
	})
	if err == nil {
		return s.checkName("set", out.Name, out)
	}
	if !isNotFoundError(err) {
		s.logger.Error("AWS Secrets Manager set %s: %v", key, err)
		return secretstore.NewStoreError(AWSStoreName, "set", "failed to store secret "+key, err)
	}

	created, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:                        aws.String(key),
		SecretString:                aws.String(value),
		ForceOverwriteReplicaSecret: true,
	})
	if err != nil {
		s.logger.Error("AWS Secrets Manager create %s: %v", key, err)
		return secretstore.NewStoreError(AWSStoreName, "set", "failed to create secret "+key, err)
	}
	return s.checkName("set", created.Name, created)
}

// Delete removes key immediately, without a recovery window.
func (s *AWSSecretsManagerStore) Delete(ctx context.Context, key string) error {
	out, err := s.client.DeleteSecret(ctx, &secretsmanager.DeleteSecretInput{
		SecretId:                   aws.String(key),
		ForceDeleteWithoutRecovery: aws.Bool(true),
	})
	if err != nil {
		s.logger.Error("AWS Secrets Manager delete %s: %v", key, err)
		return secretstore.NewStoreError(AWSStoreName, "delete", "failed to delete secret "+key, err)
	}
	return s.checkName("delete", out.Name, out)
}

func (s *AWSSecretsManagerStore) checkName(op string, name *string, resp interface{}) error {
	if name == nil || *name == "" {
		return secretstore.NewStoreError(AWSStoreName, op,
			fmt.Sprintf("inconsistent response from AWS: %+v", resp), nil)
	}
	return nil
}

func isNotFoundError(err error) bool {
	var resourceNotFound *types.ResourceNotFoundException
	return errors.As(err, &resourceNotFound)
}
