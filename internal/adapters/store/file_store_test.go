package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	_, ok := s.Load("ml_model")
	assert.False(t, ok)

	require.NoError(t, s.Save("ml_model", []byte(`{"terms":[]}`)))

	data, ok := s.Load("ml_model")
	require.True(t, ok)
	assert.Equal(t, `{"terms":[]}`, string(data))
}

func TestFileStoreOverwrite(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Save("training_data", []byte("first")))
	require.NoError(t, s.Save("training_data", []byte("second")))

	data, ok := s.Load("training_data")
	require.True(t, ok)
	assert.Equal(t, "second", string(data))
}

func TestFileStoreListByPrefix(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Save("role_model:finance", []byte("a")))
	require.NoError(t, s.Save("role_model:hr", []byte("b")))
	require.NoError(t, s.Save("cluster_history", []byte("c")))

	keys, err := s.List("role_model:")
	require.NoError(t, err)
	assert.Equal(t, []string{"role_model:finance", "role_model:hr"}, keys)

	all, err := s.List("")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestFileStoreKeySanitization(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Save("role_model:finance", []byte("a")))

	// Colons never reach the filesystem.
	_, err = os.Stat(filepath.Join(dir, "role_model__finance.json"))
	assert.NoError(t, err)
}

func TestFileStoreEmptyFileIsAbsent(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ml_model.json"), nil, 0o644))

	_, ok := s.Load("ml_model")
	assert.False(t, ok)
}

func TestFileStorePersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	s, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Save("organization_context", []byte(`{"roles":["finance"]}`)))

	reopened, err := NewFileStore(dir, zap.NewNop())
	require.NoError(t, err)
	data, ok := reopened.Load("organization_context")
	require.True(t, ok)
	assert.Contains(t, string(data), "finance")
}
