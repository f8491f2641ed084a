package secure

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPassword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantEmpty bool
	}{
		{name: "plain password", input: "my-secret-password"},
		{name: "empty password", input: "", wantEmpty: true},
		{name: "unicode password", input: "pässwörd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pw := NewPassword(tt.input)
			defer pw.Destroy()

			assert.Equal(t, tt.wantEmpty, pw.Empty())

			got, err := pw.Reveal()
			require.NoError(t, err)
			assert.Equal(t, tt.input, got)
		})
	}
}

func TestPassword_MultipleReveals(t *testing.T) {
	t.Parallel()

	pw := NewPassword("test-secret")
	defer pw.Destroy()

	for i := 0; i < 3; i++ {
		got, err := pw.Reveal()
		require.NoError(t, err)
		assert.Equal(t, "test-secret", got)
	}
}

func TestPassword_Destroy(t *testing.T) {
	t.Parallel()

	pw := NewPassword("secret-to-destroy")
	pw.Destroy()
	// Idempotent
	pw.Destroy()

	_, err := pw.Reveal()
	assert.ErrorIs(t, err, ErrDestroyed)
}

func TestPassword_ConcurrentReveal(t *testing.T) {
	t.Parallel()

	pw := NewPassword("concurrent-secret")
	defer pw.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := pw.Reveal()
			assert.NoError(t, err)
			assert.Equal(t, "concurrent-secret", got)
		}()
	}
	wg.Wait()
}
