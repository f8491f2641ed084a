package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/systmms/dsconf/internal/errors"
)

// TestUserErrorFormatting verifies UserError displays properly
func TestUserErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.UserError{
		Message:    "Operation failed",
		Details:    "Connection timeout",
		Suggestion: "Check network connectivity",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "Operation failed")
	assert.Contains(t, errMsg, "Details: Connection timeout")
	assert.Contains(t, errMsg, "Try: Check network connectivity")
}

// TestConfigErrorFormatting verifies ConfigError displays with context
func TestConfigErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.ConfigError{
		Field:      "secrets_manager.aws_secrets.aws_profile",
		Value:      "",
		Message:    "profile is required",
		Suggestion: "Set aws_profile to a profile from ~/.aws/config",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "secrets_manager.aws_secrets.aws_profile")
	assert.Contains(t, errMsg, "profile is required")
	assert.Contains(t, errMsg, "~/.aws/config")
}

// TestCommandErrorFormatting verifies CommandError includes exit code
func TestCommandErrorFormatting(t *testing.T) {
	t.Parallel()

	err := errors.CommandError{
		Command:    "aws sso login --profile dev",
		ExitCode:   255,
		Message:    "token expired",
		Suggestion: "Log in again",
	}

	errMsg := err.Error()

	assert.Contains(t, errMsg, "aws sso login --profile dev")
	assert.Contains(t, errMsg, "exit code: 255")
	assert.Contains(t, errMsg, "token expired")
}

func TestProviderSuggestions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name               string
		provider           string
		errorMsg           string
		expectedSuggestion string
	}{
		{"aws credentials", "aws", "credentials not found", "aws configure"},
		{"aws access denied", "aws", "AccessDenied", "IAM permissions"},
		{"aws not found", "AWS_Secrets_Store", "ResourceNotFoundException", "list-secrets"},
		{"aws throttling", "aws", "ThrottlingException", "rate limit"},
		{"azure forbidden", "azure", "403 Forbidden", "access policies"},
		{"azure unauthorized", "Azure_Secrets_Store", "401 Unauthorized", "az login"},
		{"gcp permission", "gcp", "rpc error: code = PermissionDenied", "IAM permissions"},
		{"local wrong password", "User_Local_Store", "authentication failed", "--password"},
		{"generic timeout", "unknown", "i/o timeout", "timed out"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			providerErr := errors.ProviderError(tt.provider, "get", fmt.Errorf("%s", tt.errorMsg))
			assert.Contains(t, providerErr.Error(), tt.expectedSuggestion)
		})
	}
}

// TestWrapCommandNotFound verifies command not found errors have helpful suggestions
func TestWrapCommandNotFound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		command            string
		expectedSuggestion string
	}{
		{"aws", "AWS CLI"},
		{"az", "Azure CLI"},
		{"gcloud", "Google Cloud CLI"},
		{"unknown-cmd", "in your PATH"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.command, func(t *testing.T) {
			t.Parallel()

			err := errors.WrapCommandNotFound(tt.command, fmt.Errorf("executable file not found in $PATH"))

			errMsg := err.Error()
			assert.Contains(t, errMsg, tt.command)
			assert.Contains(t, errMsg, "command not found")
			assert.Contains(t, errMsg, tt.expectedSuggestion)
		})
	}
}

// TestSimplifyError verifies error simplification for common cases
func TestSimplifyError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		inputError    error
		expectedType  string
		expectedInMsg string
	}{
		{
			name:          "yaml_error",
			inputError:    fmt.Errorf("load layer: %w", fmt.Errorf("yaml: line 5: mapping values are not allowed")),
			expectedType:  "ConfigError",
			expectedInMsg: "Invalid YAML",
		},
		{
			name:          "permission_denied",
			inputError:    fmt.Errorf("open /etc/app/secrets.store: permission denied"),
			expectedType:  "UserError",
			expectedInMsg: "Permission denied",
		},
		{
			name:          "file_not_found",
			inputError:    fmt.Errorf("no such file or directory"),
			expectedType:  "UserError",
			expectedInMsg: "not found",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			simplified := errors.SimplifyError(tt.inputError)
			assert.Contains(t, simplified.Error(), tt.expectedInMsg)

			switch tt.expectedType {
			case "ConfigError":
				_, ok := simplified.(errors.ConfigError)
				assert.True(t, ok, "Should be ConfigError type")
			case "UserError":
				_, ok := simplified.(errors.UserError)
				assert.True(t, ok, "Should be UserError type")
			}
		})
	}
}

func TestSimplifyErrorPassesThroughFriendlyErrors(t *testing.T) {
	t.Parallel()

	friendly := errors.UserError{Message: "already friendly"}
	assert.Equal(t, friendly, errors.SimplifyError(friendly))

	plain := fmt.Errorf("something else")
	assert.Equal(t, plain, errors.SimplifyError(plain))
}

// TestUserErrorUnwrap verifies error unwrapping works correctly
func TestUserErrorUnwrap(t *testing.T) {
	t.Parallel()

	baseErr := fmt.Errorf("base error")
	userErr := errors.UserError{
		Message: "wrapped error",
		Err:     baseErr,
	}

	assert.Equal(t, baseErr, userErr.Unwrap())
}

func TestNilErrorHandling(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.SimplifyError(nil))
}
