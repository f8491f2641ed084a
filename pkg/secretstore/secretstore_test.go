package secretstore

import (
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriorityOrdering(t *testing.T) {
	t.Parallel()

	assert.True(t, sort.SliceIsSorted(Priorities, func(i, j int) bool {
		return Priorities[i] < Priorities[j]
	}))
	assert.Less(t, PriorityUser, PriorityApplication)
	assert.Less(t, PriorityApplication, PriorityAWS)
	assert.Less(t, PriorityAWS, PriorityAzure)
	assert.Less(t, PriorityAzure, PriorityGCP)
}

func TestParsePriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected Priority
		wantErr  bool
	}{
		{"user", PriorityUser, false},
		{"USER", PriorityUser, false},
		{"app", PriorityApplication, false},
		{"Application", PriorityApplication, false},
		{"aws", PriorityAWS, false},
		{" azure ", PriorityAzure, false},
		{"gcp", PriorityGCP, false},
		{"vault", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			p, err := ParsePriority(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestPriorityStringRoundTrip(t *testing.T) {
	t.Parallel()

	for _, p := range Priorities {
		parsed, err := ParsePriority(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}
	assert.Equal(t, "Priority(42)", Priority(42).String())
}

func TestPriorityIsLocal(t *testing.T) {
	t.Parallel()

	assert.True(t, PriorityUser.IsLocal())
	assert.True(t, PriorityApplication.IsLocal())
	assert.False(t, PriorityAWS.IsLocal())
	assert.False(t, PriorityGCP.IsLocal())
}

func TestParseTag(t *testing.T) {
	t.Parallel()

	assert.Equal(t, TagEnv, ParseTag("ENV"))
	assert.Equal(t, TagEnv, ParseTag("env"))
	assert.Equal(t, TagHidden, ParseTag("HIDDEN"))
	assert.Equal(t, TagNone, ParseTag("-"))
	assert.Equal(t, TagNone, ParseTag("api_key"))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	base := fmt.Errorf("permission denied")
	err := NewStoreError("App_Local_Store", "create", "failed to create secrets store", base)

	assert.Equal(t, "App_Local_Store: create: failed to create secrets store: permission denied", err.Error())
	assert.ErrorIs(t, err, base)
	assert.True(t, IsStoreError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsStoreError(base))

	bare := &StoreError{Message: "no machine identifier"}
	assert.Equal(t, "no machine identifier", bare.Error())
}
