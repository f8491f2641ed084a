package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gokeyring "github.com/zalando/go-keyring"
)

func TestPasswordLifecycle(t *testing.T) {
	gokeyring.MockInit()

	path := "/home/user/.config/dsconf/secrets.store"

	assert.False(t, HasPassword(path))
	_, err := GetPassword(path)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, SavePassword(path, "hunter2"))
	assert.True(t, HasPassword(path))

	got, err := GetPassword(path)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)

	require.NoError(t, DeletePassword(path))
	assert.False(t, HasPassword(path))

	// Deleting again is fine
	require.NoError(t, DeletePassword(path))
}
