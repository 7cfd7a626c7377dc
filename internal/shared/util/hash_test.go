package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashUserKey(t *testing.T) {
	id := "user-abc-123"
	got := HashUserKey(id)
	require.Equal(t, got, HashUserKey(id), "hash must be stable")
	require.Len(t, got, 64)
	require.Regexp(t, "^[0-9a-f]+$", got)
	require.NotEqual(t, got, HashUserKey("user-abc-124"))
}
