package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsconf/internal/execenv"
	"github.com/systmms/dsconf/internal/logging"
	"github.com/systmms/dsconf/internal/paths"
	"github.com/systmms/dsconf/internal/providers"
	"github.com/systmms/dsconf/internal/secrets"
	"github.com/systmms/dsconf/pkg/secretstore"
)

func fixedMachineID(context.Context) (string, error) {
	return "4c4c4544-0042-3510-8052-b4c04f4e4d32", nil
}

func testSecretsOpts() []secrets.Option {
	return []secrets.Option{secrets.WithLocalVaultOptions(
		providers.WithMachineIDReader(fixedMachineID),
		providers.WithVaultIterations(1000),
	)}
}

func newDevContext(t *testing.T, wd string) *Context {
	t.Helper()
	c, err := New(context.Background(), Options{
		Name:        "demo",
		Env:         Environment{DevMode: true, LogFolderID: "job-7"},
		WorkingDir:  wd,
		SecretsOpts: testSecretsOpts(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestLoadEnvironment(t *testing.T) {
	t.Parallel()

	env := LoadEnvironment(func(k string) string {
		return map[string]string{
			EnvSecretsStorePassword: "pw",
			EnvDevMode:              "True",
			EnvLogFolderID:          " 12 ",
			EnvDefaultLogging:       "0",
		}[k]
	})
	assert.Equal(t, Environment{
		SecretsStorePassword: "pw",
		DevMode:              true,
		LogFolderID:          "12",
		DefaultLogging:       false,
	}, env)

	assert.True(t, LoadEnvironment(func(k string) string {
		if k == EnvDevMode {
			return "yes"
		}
		return ""
	}).DevMode)
	assert.Equal(t, Environment{}, LoadEnvironment(func(string) string { return "" }))
}

func TestHandoff_RoundTrip(t *testing.T) {
	t.Parallel()

	h := Handoff{
		Version: HandoffVersion,
		AppName: "demo",
		Paths: paths.Paths{
			AppName:  "demo",
			LogRoot:  "/l",
			AppData:  "/a",
			UserData: "/u",
			Temp:     "/t",
			DevMode:  true,
		},
		LogFolderID:    "3",
		DevMode:        true,
		DefaultLogging: true,
	}

	var buf bytes.Buffer
	require.NoError(t, h.Encode(&buf))
	got, err := DecodeHandoff(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestDecodeHandoff_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"garbage", "not json", "failed to decode handoff"},
		{"empty", "", "failed to decode handoff"},
		{"wrong version", `{"version":99,"paths":{"user_data":"/u"}}`, "unsupported handoff version"},
		{"no user data", `{"version":1}`, "missing the user data root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeHandoff(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_DevMode(t *testing.T) {
	t.Parallel()

	wd := t.TempDir()
	c := newDevContext(t, wd)

	assert.Equal(t, filepath.Join(wd, "data", "usr"), c.Paths.UserData)
	assert.DirExists(t, c.Paths.LogRoot)
	assert.False(t, c.IsWorker())
	assert.Equal(t, "job-7", c.LogFolderID())

	stores := c.Secrets.Stores()
	require.Len(t, stores, 2)
	assert.FileExists(t, filepath.Join(c.Paths.UserData, providers.VaultFileName))
	assert.FileExists(t, filepath.Join(c.Paths.AppData, providers.VaultFileName))
}

func TestNew_SecretIndirectionEndToEnd(t *testing.T) {
	t.Parallel()

	wd := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(wd, "config"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(wd, "config", "config.yaml"), []byte(`
database:
  password: SEC/db_password
  user: app
`), 0o600))

	c := newDevContext(t, wd)
	ctx := context.Background()

	assert.Equal(t, "fallback", c.Settings.Get(ctx, "database.password", "fallback"))

	require.NoError(t, c.Secrets.Set(ctx, "db_password", "hunter2", secretstore.PriorityUser))
	assert.Equal(t, "hunter2", c.Settings.Get(ctx, "database.password", "fallback"))
	assert.Equal(t, "app", c.Settings.GetString(ctx, "database.user", ""))

	require.NoError(t, c.Settings.Set("database.user", "override", secretstore.PriorityUser))
	assert.Equal(t, "override", c.Settings.GetString(ctx, "database.user", ""))
}

func TestNew_WorkerUsesHandoff(t *testing.T) {
	t.Parallel()

	wd := t.TempDir()
	parent := newDevContext(t, wd)
	require.NoError(t, parent.Secrets.Set(context.Background(), "shared", "v", secretstore.PriorityUser))

	tempMarker := filepath.Join(parent.Paths.Temp, "in-flight")
	require.NoError(t, os.WriteFile(tempMarker, []byte("x"), 0o600))

	var buf bytes.Buffer
	require.NoError(t, parent.Handoff().Encode(&buf))
	h, err := DecodeHandoff(&buf)
	require.NoError(t, err)
	require.NoError(t, parent.Close())

	worker, err := New(context.Background(), Options{
		Handoff:     &h,
		WorkingDir:  wd,
		SecretsOpts: testSecretsOpts(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = worker.Close() })

	assert.True(t, worker.IsWorker())
	assert.Equal(t, "demo", worker.Name)
	assert.Equal(t, parent.Paths, worker.Paths)
	assert.Equal(t, "job-7", worker.LogFolderID())
	assert.True(t, worker.Env.DevMode)
	assert.FileExists(t, tempMarker)
	assert.Equal(t, "v", worker.Secrets.Get(context.Background(), "shared", "", secrets.Unscoped))
}

func TestContext_SpawnMissingCommand(t *testing.T) {
	t.Parallel()

	c := newDevContext(t, t.TempDir())
	err := c.Spawn(context.Background(), execenv.SpawnOptions{Command: []string{"definitely-not-a-real-command-xyz"}})
	require.Error(t, err)
}

func TestContext_SpawnPassesHandoffAndLogFolder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("inherited descriptors are not supported on windows")
	}
	t.Parallel()

	c := newDevContext(t, t.TempDir())

	var stdout bytes.Buffer
	err := c.Spawn(context.Background(), execenv.SpawnOptions{
		Command: []string{"sh", "-c", "cat <&3; printf '\\n%s' \"$DSCONF_LOG_FOLDER_ID\""},
		Stdout:  &stdout,
	})
	require.NoError(t, err)

	lines := strings.SplitN(stdout.String(), "\n", 2)
	require.Len(t, lines, 2)
	h, err := DecodeHandoff(strings.NewReader(lines[0]))
	require.NoError(t, err)
	assert.Equal(t, c.Paths.UserData, h.Paths.UserData)
	assert.Equal(t, c.LogFolderID(), strings.TrimSpace(lines[1]))
}

func TestNew_LogsPathsAtDebug(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	c, err := New(context.Background(), Options{
		Name:        "demo",
		Env:         Environment{DevMode: true},
		WorkingDir:  t.TempDir(),
		Logger:      logging.NewWithWriter(&logs, true),
		SecretsOpts: testSecretsOpts(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	assert.Contains(t, logs.String(), "User Data Root Path")
	assert.Contains(t, logs.String(), `"level":"debug"`)
}
