package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"

	"github.com/systmms/dsconf/internal/config"
	dserrors "github.com/systmms/dsconf/internal/errors"
	"github.com/systmms/dsconf/internal/keyring"
	"github.com/systmms/dsconf/internal/providers"
	"github.com/systmms/dsconf/internal/secrets"
	"github.com/systmms/dsconf/pkg/secretstore"
)

func TestMain(m *testing.M) {
	gokeyring.MockInit()
	secretsOptions = []secrets.Option{
		secrets.WithLocalVaultOptions(
			providers.WithMachineIDReader(func(context.Context) (string, error) {
				return "4c4c4544-0042-3510-8052-b4c04f4e4d32", nil
			}),
			providers.WithVaultIterations(1000),
		),
	}
	os.Exit(m.Run())
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("SECRETS_STORE_PASSWORD", "")
	t.Setenv("DEV_MODE", "")
	return &config.Config{
		AppName:    "dsconf-test",
		DevMode:    true,
		WorkingDir: t.TempDir(),
	}
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), cmd, args...)
}

func executeContext(t *testing.T, ctx context.Context, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func writeLayer(t *testing.T, cfg *config.Config, content string) {
	t.Helper()
	dir := filepath.Join(cfg.WorkingDir, "config")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))
}

func TestSecretCommand_RoundTrip(t *testing.T) {
	cfg := newTestConfig(t)

	_, err := execute(t, NewSecretCommand(cfg), "set", "db_password", "hunter2")
	require.NoError(t, err)

	out, err := execute(t, NewSecretCommand(cfg), "get", "db_password")
	require.NoError(t, err)
	assert.Equal(t, "hunter2\n", out)

	out, err = execute(t, NewSecretCommand(cfg), "get", "db_password", "--scope", "app")
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Empty(t, out)

	_, err = execute(t, NewSecretCommand(cfg), "delete", "db_password")
	require.NoError(t, err)

	_, err = execute(t, NewSecretCommand(cfg), "get", "db_password")
	assert.ErrorAs(t, err, &userErr)
}

func TestSecretCommand_InvalidScope(t *testing.T) {
	cfg := newTestConfig(t)

	_, err := execute(t, NewSecretCommand(cfg), "get", "x", "--scope", "vault")
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Message, "Invalid scope")
}

func TestSecretCommand_Generate(t *testing.T) {
	cfg := newTestConfig(t)

	out, err := execute(t, NewSecretCommand(cfg), "generate", "api_key", "--length", "16", "--show")
	require.NoError(t, err)
	generated := strings.TrimSuffix(out, "\n")
	assert.Len(t, generated, 16)

	out, err = execute(t, NewSecretCommand(cfg), "get", "api_key")
	require.NoError(t, err)
	assert.Equal(t, generated+"\n", out)

	out, err = execute(t, NewSecretCommand(cfg), "generate", "quiet")
	require.NoError(t, err)
	assert.Empty(t, out)

	_, err = execute(t, NewSecretCommand(cfg), "generate", "too_long", "--length", "95")
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.True(t, errors.Is(err, secrets.ErrSecretLength))
}

func TestAddSecretCommand(t *testing.T) {
	cfg := newTestConfig(t)

	_, err := execute(t, NewAddSecretCommand(cfg), "--name", "visible", "--value", "a")
	require.NoError(t, err)
	_, err = execute(t, NewAddSecretCommand(cfg), "--name", "hidden", "--value", "b", "--hidden")
	require.NoError(t, err)
	_, err = execute(t, NewAddSecretCommand(cfg), "--name", "shared", "--value", "c", "--scope", "app")
	require.NoError(t, err)

	out, err := execute(t, NewSecretCommand(cfg), "list")
	require.NoError(t, err)
	assert.Equal(t, "shared\nvisible\n", out)

	out, err = execute(t, NewSecretCommand(cfg), "list", "--all")
	require.NoError(t, err)
	assert.Equal(t, "hidden\nshared\nvisible\n", out)

	out, err = execute(t, NewSecretCommand(cfg), "list", "--scope", "app")
	require.NoError(t, err)
	assert.Equal(t, "shared\n", out)
}

func TestAddSecretCommand_Errors(t *testing.T) {
	cfg := newTestConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"env and hidden", []string{"--name", "x", "--value", "y", "--env", "--hidden"}},
		{"unknown scope", []string{"--name", "x", "--value", "y", "--scope", "nowhere"}},
		{"no remote store", []string{"--name", "x", "--value", "y", "--scope", "aws"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewAddSecretCommand(cfg), tt.args...)
			var userErr dserrors.UserError
			assert.ErrorAs(t, err, &userErr)
		})
	}

	_, err := execute(t, NewAddSecretCommand(cfg), "--value", "y")
	assert.Error(t, err)
}

func TestGetCommand(t *testing.T) {
	cfg := newTestConfig(t)
	writeLayer(t, cfg, `
database:
  host: db.internal
  port: 5432
  password: SEC/db_password
`)

	_, err := execute(t, NewSecretCommand(cfg), "set", "db_password", "s3cret")
	require.NoError(t, err)

	t.Run("scalar", func(t *testing.T) {
		out, err := execute(t, NewGetCommand(cfg), "database.host")
		require.NoError(t, err)
		assert.Equal(t, "db.internal\n", out)
	})

	t.Run("secret indirection", func(t *testing.T) {
		out, err := execute(t, NewGetCommand(cfg), "database.password")
		require.NoError(t, err)
		assert.Equal(t, "s3cret\n", out)
	})

	t.Run("mapping as yaml", func(t *testing.T) {
		out, err := execute(t, NewGetCommand(cfg), "database")
		require.NoError(t, err)
		assert.Contains(t, out, "host: db.internal")
		assert.Contains(t, out, "port: 5432")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, NewGetCommand(cfg), "database.port", "--json")
		require.NoError(t, err)
		assert.JSONEq(t, `{"key": "database.port", "value": 5432}`, out)
	})

	t.Run("undefined", func(t *testing.T) {
		_, err := execute(t, NewGetCommand(cfg), "database.user")
		var userErr dserrors.UserError
		require.ErrorAs(t, err, &userErr)
		assert.Contains(t, userErr.Message, "database.user")
	})
}

func TestSetCommand(t *testing.T) {
	cfg := newTestConfig(t)
	writeLayer(t, cfg, "workers: 1\n")

	_, err := execute(t, NewSetCommand(cfg), "workers", "4", "--type", "int")
	require.NoError(t, err)

	out, err := execute(t, NewGetCommand(cfg), "workers")
	require.NoError(t, err)
	assert.Equal(t, "4\n", out)

	_, err = execute(t, NewSetCommand(cfg), "workers", "8", "--type", "int", "--scope", "app")
	require.NoError(t, err)

	out, err = execute(t, NewGetCommand(cfg), "workers")
	require.NoError(t, err)
	assert.Equal(t, "8\n", out)

	_, err = execute(t, NewUnsetCommand(cfg), "workers", "--scope", "app")
	require.NoError(t, err)
	_, err = execute(t, NewUnsetCommand(cfg), "workers")
	require.NoError(t, err)

	out, err = execute(t, NewGetCommand(cfg), "workers")
	require.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestSetCommand_Errors(t *testing.T) {
	cfg := newTestConfig(t)

	tests := []struct {
		name string
		args []string
	}{
		{"remote scope", []string{"k", "v", "--scope", "gcp"}},
		{"bad int", []string{"k", "four", "--type", "int"}},
		{"bad bool", []string{"k", "maybe", "--type", "bool"}},
		{"not a mapping", []string{"k", "plain", "--type", "mapping"}},
		{"unknown type", []string{"k", "v", "--type", "date"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, NewSetCommand(cfg), tt.args...)
			var userErr dserrors.UserError
			assert.ErrorAs(t, err, &userErr)
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw, typ string
		want     interface{}
	}{
		{"abc", "", "abc"},
		{"abc", "string", "abc"},
		{"42", "int", int64(42)},
		{"1.5", "float", 1.5},
		{"true", "bool", true},
		{"{a: 1}", "mapping", map[string]interface{}{"a": 1}},
	}

	for _, tt := range tests {
		t.Run(tt.typ+"/"+tt.raw, func(t *testing.T) {
			got, err := parseValue(tt.raw, tt.typ)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseScope(t *testing.T) {
	p, err := parseScope("")
	require.NoError(t, err)
	assert.Equal(t, secrets.Unscoped, p)

	p, err = parseScope("Azure")
	require.NoError(t, err)
	assert.Equal(t, secretstore.PriorityAzure, p)

	_, err = parseScope("moon")
	assert.Error(t, err)
}

func TestInitCommand(t *testing.T) {
	cfg := newTestConfig(t)

	out, err := execute(t, NewInitCommand(cfg))
	require.NoError(t, err)
	assert.Contains(t, out, providers.UserLocalStoreName+": ")
	assert.Contains(t, out, providers.AppLocalStoreName+": ")

	_, err = execute(t, NewInitCommand(cfg), "--keyring")
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
}

func TestInitCommand_RekeyAndKeyring(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Password = "first"

	_, err := execute(t, NewSecretCommand(cfg), "set", "token", "abc")
	require.NoError(t, err)

	_, err = execute(t, NewInitCommand(cfg), "--new-password", "second", "--keyring")
	require.NoError(t, err)

	cfg.Password = "second"
	out, err := execute(t, NewSecretCommand(cfg), "get", "token")
	require.NoError(t, err)
	assert.Equal(t, "abc\n", out)

	userStore := filepath.Join(cfg.WorkingDir, "data", "usr", providers.VaultFileName)
	stored, err := keyring.GetPassword(userStore)
	require.NoError(t, err)
	assert.Equal(t, "second", stored)

	cfg.Password = "first"
	_, err = execute(t, NewSecretCommand(cfg), "get", "token")
	assert.Error(t, err)

	cfg.Password = "second"
	out, err = execute(t, NewInitCommand(cfg))
	require.NoError(t, err)
	assert.Contains(t, out, userStore+" (password in keyring)")

	out, err = execute(t, NewInitCommand(cfg), "--forget-keyring")
	require.NoError(t, err)
	assert.NotContains(t, out, "(password in keyring)")
	assert.False(t, keyring.HasPassword(userStore))

	_, err = execute(t, NewInitCommand(cfg), "--keyring", "--forget-keyring")
	var userErr dserrors.UserError
	assert.ErrorAs(t, err, &userErr)
}

func TestRunCommand(t *testing.T) {
	cfg := newTestConfig(t)
	writeLayer(t, cfg, "api:\n  token: SEC/api_token\n  url: https://example.com\n")

	_, err := execute(t, NewSecretCommand(cfg), "set", "api_token", "tok-1234567890")
	require.NoError(t, err)

	out, err := execute(t, NewRunCommand(cfg), "api.token", "api.url", "api.missing")
	require.NoError(t, err)

	assert.Contains(t, out, "Application: dsconf-test")
	assert.Contains(t, out, "user="+filepath.Join(cfg.WorkingDir, "data", "usr"))
	assert.Contains(t, out, providers.UserLocalStoreName+" (USER)")
	assert.Contains(t, out, providers.AppLocalStoreName+" (APP)")
	assert.Contains(t, out, "api.token=tok********90")
	assert.NotContains(t, out, "tok-1234567890")
	assert.NotContains(t, out, "api.missing")
}

func TestWorkerCommand(t *testing.T) {
	cfg := newTestConfig(t)
	writeLayer(t, cfg, "greeting: hello-worker\n")

	ac, err := openContext(context.Background(), cfg)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, ac.Handoff().Encode(&buf))
	logFolder := ac.LogFolderID()
	require.NoError(t, ac.Close())

	marker := filepath.Join(cfg.WorkingDir, "temp", "keep")
	require.NoError(t, os.WriteFile(marker, nil, 0o600))

	saved := openHandoff
	t.Cleanup(func() { openHandoff = saved })
	openHandoff = func() (io.ReadCloser, error) {
		return io.NopCloser(&buf), nil
	}

	out, err := execute(t, NewWorkerCommand(cfg), "greeting")
	require.NoError(t, err)
	assert.Contains(t, out, "Log folder:  "+logFolder)
	assert.Contains(t, out, "greeting=hel********er")
	assert.FileExists(t, marker)
}

func TestWorkerCommand_NoHandoff(t *testing.T) {
	cfg := newTestConfig(t)

	saved := openHandoff
	t.Cleanup(func() { openHandoff = saved })
	openHandoff = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader("not json")), nil
	}

	_, err := execute(t, NewWorkerCommand(cfg))
	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.Suggestion, "dsconf spawn")
}

func TestSpawnCommand(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("handoff descriptor is not supported on windows")
	}
	cfg := newTestConfig(t)

	out, err := execute(t, NewSpawnCommand(cfg), "--", "sh", "-c", "cat <&3 >/dev/null; printf %s \"$DSCONF_LOG_FOLDER_ID\"")
	require.NoError(t, err)
	assert.NotEmpty(t, out)

	_, err = execute(t, NewSpawnCommand(cfg), "--timeout", "1", "--", "sh", "-c", "sleep 5")
	var timeoutErr dserrors.CommandError
	require.ErrorAs(t, err, &timeoutErr)

	_, err = execute(t, NewSpawnCommand(cfg), "--", "sh", "-c", "exit 4")
	var cmdErr dserrors.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, 4, cmdErr.ExitCode)

	_, err = execute(t, NewSpawnCommand(cfg), "definitely-not-a-command-dsconf")
	assert.Error(t, err)
}

func TestCompletionCommand(t *testing.T) {
	root := &cobra.Command{Use: "dsconf"}
	root.AddCommand(NewCompletionCommand(nil))

	out, err := execute(t, root, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "dsconf")

	_, err = execute(t, root, "completion", "tcsh")
	assert.Error(t, err)
}

func TestCompleteScopes(t *testing.T) {
	all, directive := completeScopes()(nil, nil, "a")
	assert.Equal(t, []string{"app", "aws", "azure"}, all)
	assert.Equal(t, cobra.ShellCompDirectiveNoFileComp, directive)

	settingsOnly, _ := completeScopes(secretstore.PriorityUser, secretstore.PriorityApplication)(nil, nil, "")
	assert.Equal(t, []string{"user", "app"}, settingsOnly)
}

func TestGetCommand_CountsSecretLookups(t *testing.T) {
	cfg := newTestConfig(t)
	writeLayer(t, cfg, "database:\n  password: SEC/db_password\n")

	_, err := execute(t, NewSecretCommand(cfg), "set", "db_password", "s3cret")
	require.NoError(t, err)

	hits := secrets.GetSecretLookupsTotal().WithLabelValues(providers.UserLocalStoreName, secrets.OutcomeHit)
	before := testutil.ToFloat64(hits)

	out, err := execute(t, NewGetCommand(cfg), "database.password")
	require.NoError(t, err)
	assert.Equal(t, "s3cret\n", out)
	assert.Equal(t, before+1, testutil.ToFloat64(hits))

	_, err = execute(t, NewSecretCommand(cfg), "get", "db_password")
	require.NoError(t, err)
	assert.Equal(t, before+2, testutil.ToFloat64(hits))
}

func TestRunCommand_ServesMetricsOfItsLookups(t *testing.T) {
	cfg := newTestConfig(t)
	writeLayer(t, cfg, "api:\n  token: SEC/api_token\n")

	_, err := execute(t, NewSecretCommand(cfg), "set", "api_token", "tok-1234567890")
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := executeContext(t, ctx, NewRunCommand(cfg), "--metrics-addr", addr, "api.token")
		done <- result{out, err}
	}()

	var body string
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return false
		}
		body = string(data)
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.Contains(t, body, `dsconf_secret_lookups_total{outcome="hit",store="`+providers.UserLocalStoreName+`"}`)

	cancel()
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Contains(t, r.out, "api.token=tok********90")
		assert.Contains(t, r.out, "Serving metrics on "+addr)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not stop after cancellation")
	}
}
