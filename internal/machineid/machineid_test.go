package machineid

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgexec "github.com/systmms/dsconf/pkg/exec"
)

func TestDerive_KnownVectors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		id   string
		path string
		want string
	}{
		{
			name: "short ascii",
			id:   "abc1",
			path: "/x",
			want: "AAAASU4a",
		},
		{
			name: "dmi uuid with store path",
			id:   "4c4c4544-0042-3510-8052-b4c04f4e4d32",
			path: "/home/user/.config/app/secrets.store",
			want: "VwBWAFJQUFxCXVVBQUhBVl5eS1FXVEJdEVEAQlESRxZAC0FXTAsNDgNKERsKH0pbEAocBQYJSQgXEV8DFgYRFxEHXQAAAAAA",
		},
		{
			name: "non-ascii path",
			id:   "0123",
			path: "/é/Z",
			want: "amtoaXXCs3UA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Derive(tt.id, tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDerive_Deterministic(t *testing.T) {
	t.Parallel()

	a, err := Derive("machine-1234", "/tmp/secrets.store")
	require.NoError(t, err)
	b, err := Derive("machine-1234", "/tmp/secrets.store")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := Derive("machine-1234", "/tmp/other.store")
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestDerive_NoLetters(t *testing.T) {
	t.Parallel()

	_, err := Derive("1234-5678", "/9/0")
	assert.ErrorIs(t, err, ErrNoKeyMaterial)
}

func TestPasswordFrom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("uses reader", func(t *testing.T) {
		t.Parallel()
		read := func(context.Context) (string, error) { return "abc1", nil }
		got, err := PasswordFrom(ctx, read, "/x")
		require.NoError(t, err)
		assert.Equal(t, "AAAASU4a", got)
	})

	t.Run("reader error", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		read := func(context.Context) (string, error) { return "", boom }
		_, err := PasswordFrom(ctx, read, "/x")
		assert.ErrorIs(t, err, boom)
	})

	t.Run("blank identifier", func(t *testing.T) {
		t.Parallel()
		read := func(context.Context) (string, error) { return "  \n", nil }
		_, err := PasswordFrom(ctx, read, "/x")
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestReadFirst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	good := filepath.Join(dir, "machine-id")
	require.NoError(t, os.WriteFile(empty, []byte("\n"), 0o600))
	require.NoError(t, os.WriteFile(good, []byte("deadbeef\n"), 0o600))

	got, err := readFirst(filepath.Join(dir, "missing"), empty, good)
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", got)

	_, err = readFirst(filepath.Join(dir, "missing"))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestRunCmd(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fake := pkgexec.NewFakeExecutor("kenv").
		On("kenv -q smbios.system.uuid", pkgexec.FakeResult{Stdout: "  4c4c4544-0042\n"}).
		On("kenv -q missing", pkgexec.FakeResult{Stderr: "no such key", Err: errors.New("exit status 1")})

	got, err := runCmd(ctx, fake, "kenv", "-q", "smbios.system.uuid")
	require.NoError(t, err)
	assert.Equal(t, "4c4c4544-0042", got)

	_, err = runCmd(ctx, fake, "kenv", "-q", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such key")

	_, err = runCmd(ctx, fake, "ioreg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "command not found")
}
