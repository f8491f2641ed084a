package errors

import (
	"errors"
	"fmt"
	"strings"
)

// UserError represents an error that should be shown to the user with helpful context
type UserError struct {
	Message    string
	Suggestion string
	Details    string
	Err        error
}

func (e UserError) Error() string {
	var parts []string

	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}

	if e.Details != "" {
		parts = append(parts, "\n  Details: "+e.Details)
	}

	if e.Suggestion != "" {
		parts = append(parts, "\n  Try: "+e.Suggestion)
	}

	return strings.Join(parts, "")
}

func (e UserError) Unwrap() error {
	return e.Err
}

// ConfigError represents a configuration error with helpful context
type ConfigError struct {
	Field      string
	Value      interface{}
	Message    string
	Suggestion string
}

func (e ConfigError) Error() string {
	msg := "Configuration error"
	if e.Field != "" {
		msg += fmt.Sprintf(" in field '%s'", e.Field)
	}
	if e.Value != nil {
		msg += fmt.Sprintf(" (value: %v)", e.Value)
	}
	msg += ": " + e.Message

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

// CommandError represents a command execution error
type CommandError struct {
	Command    string
	ExitCode   int
	Message    string
	Suggestion string
}

func (e CommandError) Error() string {
	msg := fmt.Sprintf("Command '%s' failed", e.Command)
	if e.ExitCode != 0 {
		msg += fmt.Sprintf(" (exit code: %d)", e.ExitCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}

	if e.Suggestion != "" {
		msg += "\n  " + e.Suggestion
	}

	return msg
}

// ProviderError enhances store-specific errors with context
func ProviderError(provider string, operation string, err error) error {
	return UserError{
		Message:    fmt.Sprintf("%s store error during %s", provider, operation),
		Suggestion: getProviderSuggestion(provider, err),
		Err:        err,
	}
}

// getProviderSuggestion returns helpful suggestions based on store and error
func getProviderSuggestion(provider string, err error) string {
	errStr := err.Error()

	switch provider {
	case "aws", "AWS_Secrets_Store":
		if strings.Contains(errStr, "credentials") || strings.Contains(errStr, "authorization") {
			return "Configure AWS credentials: 'aws configure' or set aws_profile under secrets_manager.aws_secrets"
		}
		if strings.Contains(errStr, "AccessDenied") {
			return "Check IAM permissions for secretsmanager:GetSecretValue and secretsmanager:ListSecrets"
		}
		if strings.Contains(errStr, "ResourceNotFoundException") {
			return "Verify the secret name and region. List secrets with: 'aws secretsmanager list-secrets'"
		}
		if strings.Contains(errStr, "ThrottlingException") {
			return "AWS rate limit exceeded. Wait a moment and try again"
		}

	case "azure", "Azure_Secrets_Store":
		if strings.Contains(errStr, "Forbidden") || strings.Contains(errStr, "403") {
			return "Check Key Vault access policies: 'Get', 'List', 'Set' and 'Delete' permissions are required"
		}
		if strings.Contains(errStr, "SecretNotFound") || strings.Contains(errStr, "404") {
			return "Verify the secret name exists in the Key Vault. Secret names are case-sensitive"
		}
		if strings.Contains(errStr, "401") || strings.Contains(strings.ToLower(errStr), "unauthorized") {
			return "Run 'az login' or provide tenant_id, client_id and client_secret"
		}

	case "gcp", "GCP_Secrets_Store":
		if strings.Contains(errStr, "PermissionDenied") {
			return "Check IAM permissions: secretmanager.secrets.list, secretmanager.versions.access"
		}
		if strings.Contains(errStr, "Unauthenticated") {
			return "Set GOOGLE_APPLICATION_CREDENTIALS or run 'gcloud auth application-default login'"
		}

	case "local", "User_Local_Store", "App_Local_Store":
		if strings.Contains(errStr, "authentication failed") {
			return "The vault password is wrong. Pass --password or set SECRETS_STORE_PASSWORD"
		}
		if strings.Contains(errStr, "machine") {
			return "No machine identifier is available. Pass --password or set SECRETS_STORE_PASSWORD"
		}
	}

	// Generic suggestions
	if strings.Contains(errStr, "timeout") {
		return "The operation timed out. Check your network connection and try again"
	}
	if strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Unable to connect. Check your network and store configuration"
	}

	return ""
}

// WrapCommandNotFound wraps command not found errors with helpful suggestions
func WrapCommandNotFound(command string, err error) error {
	suggestions := map[string]string{
		"aws":    "Install the AWS CLI from https://aws.amazon.com/cli/",
		"az":     "Install the Azure CLI from https://learn.microsoft.com/cli/azure/install-azure-cli",
		"gcloud": "Install the Google Cloud CLI from https://cloud.google.com/sdk/docs/install",
		"ioreg":  "ioreg ships with macOS; check your PATH",
		"wmic":   "wmic ships with Windows; check your PATH",
		"kenv":   "kenv ships with FreeBSD; check your PATH",
	}

	suggestion := suggestions[command]
	if suggestion == "" {
		suggestion = fmt.Sprintf("Make sure '%s' is installed and in your PATH", command)
	}

	msg := "command not found"
	if err != nil && !strings.Contains(err.Error(), msg) {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}

	return CommandError{
		Command:    command,
		Message:    msg,
		Suggestion: suggestion,
	}
}

// SimplifyError simplifies complex error messages for users
func SimplifyError(err error) error {
	if err == nil {
		return nil
	}

	// Unwrap to get the root cause
	rootErr := err
	for {
		unwrapped := errors.Unwrap(rootErr)
		if unwrapped == nil {
			break
		}
		rootErr = unwrapped
	}

	// Already a user-friendly error
	switch err.(type) {
	case UserError, ConfigError, CommandError:
		return err
	}

	errStr := rootErr.Error()

	if strings.Contains(errStr, "yaml:") {
		return ConfigError{
			Message:    "Invalid YAML format",
			Suggestion: "Check config.yaml for indentation errors and missing quotes",
		}
	}

	if strings.Contains(errStr, "permission denied") {
		return UserError{
			Message:    "Permission denied",
			Suggestion: "Check file permissions or run with appropriate privileges",
			Err:        err,
		}
	}

	if strings.Contains(errStr, "no such file or directory") {
		return UserError{
			Message:    "File or directory not found",
			Suggestion: "Verify the path exists and is spelled correctly",
			Err:        err,
		}
	}

	return err
}
