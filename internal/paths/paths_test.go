package paths

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systmms/dsconf/internal/logging"
)

func fakeEnv(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts Options
		want Paths
	}{
		{
			name: "dev mode",
			opts: Options{OS: "linux", DevMode: true, WorkingDir: "/work"},
			want: Paths{
				LogRoot:  "/work/logs",
				AppData:  "/work/data/app",
				UserData: "/work/data/usr",
				Temp:     "/work/temp",
				DevMode:  true,
			},
		},
		{
			name: "linux",
			opts: Options{OS: "linux", HomeDir: "/home/u", Getenv: fakeEnv(nil)},
			want: Paths{
				LogRoot:  "/var/log/demo",
				AppData:  "/etc/demo",
				UserData: "/home/u/.config/demo",
				Temp:     "/tmp/demo",
			},
		},
		{
			name: "darwin",
			opts: Options{OS: "darwin", HomeDir: "/Users/u", Getenv: fakeEnv(map[string]string{"TMPDIR": "/var/folders/x"})},
			want: Paths{
				LogRoot:  "/Users/u/Library/Logs/demo",
				AppData:  "/Library/Application Support/demo",
				UserData: "/Users/u/Library/Application Support/demo",
				Temp:     "/var/folders/x/demo",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := New("demo", tt.opts)
			require.NoError(t, err)
			tt.want.AppName = "demo"
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestNew_RequiresName(t *testing.T) {
	t.Parallel()

	_, err := New("", Options{})
	assert.Error(t, err)
}

func TestCreate(t *testing.T) {
	t.Parallel()

	wd := t.TempDir()
	p, err := New("demo", Options{DevMode: true, WorkingDir: wd})
	require.NoError(t, err)

	stale := filepath.Join(p.Temp, "stale")
	require.NoError(t, os.MkdirAll(p.Temp, 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))

	require.NoError(t, p.Create(true, nil))
	for _, dir := range []string{p.LogRoot, p.AppData, p.UserData, p.Temp} {
		assert.DirExists(t, dir)
	}
	assert.NoFileExists(t, stale)

	var buf bytes.Buffer
	p.Log(logging.NewWithWriter(&buf, true))
	assert.Contains(t, buf.String(), p.UserData)
}

func TestCreate_UserDataRequired(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	p := &Paths{
		AppName:  "demo",
		UserData: filepath.Join(blocker, "usr"),
		AppData:  filepath.Join(blocker, "app"),
		LogRoot:  filepath.Join(t.TempDir(), "logs"),
		Temp:     filepath.Join(t.TempDir(), "temp"),
	}
	assert.Error(t, p.Create(false, nil))
}
