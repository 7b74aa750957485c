package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()

	_, ok := s.Load("ml_model")
	assert.False(t, ok)

	require.NoError(t, s.Save("ml_model", []byte("payload")))

	data, ok := s.Load("ml_model")
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))
}

func TestMemoryStoreCopiesData(t *testing.T) {
	s := NewMemoryStore()

	original := []byte("payload")
	require.NoError(t, s.Save("ml_model", original))
	original[0] = 'x'

	data, ok := s.Load("ml_model")
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))

	// Mutating the loaded slice must not affect the stored artifact.
	data[0] = 'y'
	again, _ := s.Load("ml_model")
	assert.Equal(t, "payload", string(again))
}

func TestMemoryStoreListSorted(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Save("role_model:hr", nil))
	require.NoError(t, s.Save("role_model:finance", nil))
	require.NoError(t, s.Save("cluster_history", nil))

	keys, err := s.List("role_model:")
	require.NoError(t, err)
	assert.Equal(t, []string{"role_model:finance", "role_model:hr"}, keys)
}
