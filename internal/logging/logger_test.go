package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestSecretRedaction(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "secret is redacted", input: "my-secret-password"},
		{name: "empty secret is still redacted", input: ""},
		{name: "complex secret is redacted", input: "password123!@#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "[REDACTED]", Secret(tt.input).String())
			assert.Equal(t, "[REDACTED]", Secret(tt.input).GoString())
			assert.Equal(t, "[REDACTED]", fmt.Sprintf("%#v", Secret(tt.input)))
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true)

	logger.Info("formatted %s message", "info")
	logger.Warn("formatted %s message", "warn")
	logger.Error("formatted %s message", "error")
	logger.Debug("formatted %s message", "debug")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 4)

	for i, level := range []string{"info", "warn", "error", "debug"} {
		assert.Equal(t, level, lines[i]["level"])
		assert.Equal(t, "formatted "+level+" message", lines[i]["message"])
	}
}

func TestDebugModeDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false)

	logger.Debug("hidden")
	logger.Info("visible")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "visible", lines[0]["message"])
	assert.False(t, logger.IsDebug())
}

func TestSecretRedactionInMessages(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, true)

	logger.Info("Opening store with password %s", Secret("hunter2-password"))
	logger.Debug("Accessing secret: %v", Secret("db-password"))

	out := buf.String()
	assert.NotContains(t, out, "hunter2-password")
	assert.NotContains(t, out, "db-password")
	assert.Equal(t, 2, strings.Count(out, "[REDACTED]"))
}

func TestWithAddsField(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, false).With("store", "User_Local_Store")

	logger.Warn("missing")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "User_Local_Store", lines[0]["store"])
}

func TestNopDiscards(t *testing.T) {
	logger := Nop()
	logger.Info("nothing")
	logger.Error("nothing")
	logger.Debug("nothing")
}

// TestRedactFunction tests the Redact utility function
func TestRedactFunction(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		secrets  []string
		expected string
	}{
		{
			name:     "single secret redacted",
			input:    "The password is secret123",
			secrets:  []string{"secret123"},
			expected: "The password is [REDACTED]",
		},
		{
			name:     "multiple secrets redacted",
			input:    "User admin with password secret123 and API key abc123",
			secrets:  []string{"admin", "secret123", "abc123"},
			expected: "User [REDACTED] with password [REDACTED] and API key [REDACTED]",
		},
		{
			name:     "empty secret ignored",
			input:    "This has no secrets",
			secrets:  []string{""},
			expected: "This has no secrets",
		},
		{
			name:     "short secret ignored",
			input:    "Short secret: ab",
			secrets:  []string{"ab"},
			expected: "Short secret: ab", // Too short to redact
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Redact(tt.input, tt.secrets))
		})
	}
}
