package localdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMountsRecreateIsIdempotentAndClearsForeignContent(t *testing.T) {
	dir := t.TempDir()
	paths, err := New(dir)
	require.NoError(t, err)

	id := uuid.New()
	mounts := paths.MountsOf(id)

	// present-foreign: pre-create non-empty directory.
	mountDir := paths.MountDir(id, PurposeInstaller)
	require.NoError(t, os.MkdirAll(mountDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(mountDir, "leftover.txt"), []byte("x"), 0600))

	got, err := mounts.Recreate(PurposeInstaller)
	require.NoError(t, err)
	assert.Equal(t, mountDir, got)

	entries, err := os.ReadDir(got)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// absent case: remove then recreate again.
	require.NoError(t, os.RemoveAll(got))
	got2, err := mounts.Recreate(PurposeInstaller)
	require.NoError(t, err)
	entries2, err := os.ReadDir(got2)
	require.NoError(t, err)
	assert.Empty(t, entries2)
}

func TestGetCreatesWithoutClearing(t *testing.T) {
	dir := t.TempDir()
	paths, err := New(dir)
	require.NoError(t, err)

	id := uuid.New()
	mounts := paths.MountsOf(id)

	mountDir := paths.MountDir(id, PurposeServer)
	require.NoError(t, os.MkdirAll(mountDir, 0700))
	require.NoError(t, os.WriteFile(filepath.Join(mountDir, "keep.txt"), []byte("x"), 0600))

	got, err := mounts.Get(PurposeServer)
	require.NoError(t, err)

	entries, err := os.ReadDir(got)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestContainerNameScheme(t *testing.T) {
	id := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	assert.Equal(t, "11111111-1111-1111-1111-111111111111_installer", ContainerName(id, PurposeInstaller))
}
