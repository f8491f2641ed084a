package exec

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
}

func TestRealCommandExecutor_Output(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	ex := DefaultExecutor()

	tests := []struct {
		name       string
		script     string
		wantStdout string
		wantStderr string
		wantErr    bool
	}{
		{"stdout only", "printf 'IOPlatformUUID'", "IOPlatformUUID", "", false},
		{"stderr only", "printf 'profile not found' >&2", "", "profile not found", false},
		{"both streams", "printf out; printf err >&2", "out", "err", false},
		{"non-zero exit keeps output", "printf partial; exit 2", "partial", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stdout, stderr, err := ex.Execute(context.Background(), "sh", "-c", tt.script)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantStdout, string(stdout))
			assert.Equal(t, tt.wantStderr, string(stderr))
		})
	}
}

func TestRealCommandExecutor_MissingBinary(t *testing.T) {
	t.Parallel()

	ex := DefaultExecutor()

	_, err := ex.LookPath("dsconf-no-such-cli")
	assert.Error(t, err)

	_, _, err = ex.Execute(context.Background(), "dsconf-no-such-cli")
	assert.Error(t, err)
}

func TestRealCommandExecutor_CanceledContext(t *testing.T) {
	t.Parallel()
	skipWithoutShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := DefaultExecutor().Execute(ctx, "sh", "-c", "sleep 5")
	assert.Error(t, err)
}

func TestDefaultExecutor(t *testing.T) {
	t.Parallel()

	_, ok := DefaultExecutor().(*RealCommandExecutor)
	assert.True(t, ok)
}

func TestFakeExecutor(t *testing.T) {
	t.Parallel()

	accessErr := errors.New("exit status 255")
	fake := NewFakeExecutor("aws", "ioreg").
		On("aws sso login --profile dev", FakeResult{Stdout: "Successfully logged into Start URL"}).
		On("ioreg -rd1 -c IOPlatformExpertDevice", FakeResult{Stdout: `"IOPlatformUUID" = "ABC"`}).
		On("aws sts get-caller-identity", FakeResult{Stderr: "expired", Err: accessErr})

	t.Run("installed binaries", func(t *testing.T) {
		path, err := fake.LookPath("aws")
		require.NoError(t, err)
		assert.Equal(t, "/usr/bin/aws", path)

		_, err = fake.LookPath("az")
		assert.Error(t, err)
	})

	t.Run("canned results", func(t *testing.T) {
		stdout, _, err := fake.Execute(context.Background(), "ioreg", "-rd1", "-c", "IOPlatformExpertDevice")
		require.NoError(t, err)
		assert.Contains(t, string(stdout), "IOPlatformUUID")

		_, stderr, err := fake.Execute(context.Background(), "aws", "sts", "get-caller-identity")
		assert.ErrorIs(t, err, accessErr)
		assert.Equal(t, "expired", string(stderr))
	})

	t.Run("unknown command line", func(t *testing.T) {
		_, _, err := fake.Execute(context.Background(), "aws", "configure")
		assert.ErrorContains(t, err, "unexpected command: aws configure")
	})
}

func TestFakeExecutor_RecordsCalls(t *testing.T) {
	t.Parallel()

	fake := NewFakeExecutor("aws").
		On("aws sso login --profile dev", FakeResult{})

	_, _, _ = fake.Execute(context.Background(), "aws", "sso", "login", "--profile", "dev")
	_, _, _ = fake.Execute(context.Background(), "az", "account", "show")

	assert.Equal(t, []string{"aws sso login --profile dev", "az account show"}, fake.Calls())
}
