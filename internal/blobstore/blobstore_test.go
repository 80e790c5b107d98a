package blobstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	full := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(full, content, 0o640))
	return full
}

func TestStoreDeduplicates(t *testing.T) {
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, ".blob_store"))
	require.NoError(t, err)

	src := writeFile(t, tmp, "x.png", []byte("hello screenshot"))
	hash1, err := store.Store(src)
	require.NoError(t, err)
	require.True(t, store.Exists(hash1))

	src2 := writeFile(t, tmp, "y.png", []byte("hello screenshot"))
	hash2, err := store.Store(src2)
	require.NoError(t, err)
	require.Equal(t, hash1, hash2)

	entries, err := os.ReadDir(filepath.Join(tmp, ".blob_store"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "deduplicated content should produce exactly one blob")
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, ".blob_store"))
	require.NoError(t, err)

	shots := filepath.Join(tmp, "screenshots")
	require.NoError(t, os.MkdirAll(shots, 0o750))
	writeFile(t, shots, "a.png", []byte("aaa"))
	writeFile(t, shots, "b.jpg", []byte("bbb"))
	writeFile(t, shots, "notes.txt", []byte("ignored"))

	manifest, err := store.Snapshot(shots)
	require.NoError(t, err)
	require.Len(t, manifest, 2)

	dest := filepath.Join(tmp, "restored")
	restored, err := store.Restore(manifest, dest, false)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a.png", "b.jpg"}, restored)

	content, err := os.ReadFile(filepath.Join(dest, "a.png"))
	require.NoError(t, err)
	require.Equal(t, "aaa", string(content))

	manifest2, err := store.Snapshot(dest)
	require.NoError(t, err)
	require.Equal(t, manifest["a.png"].Hash, manifest2["a.png"].Hash)
	require.Equal(t, manifest["b.jpg"].Hash, manifest2["b.jpg"].Hash)
}

func TestGCDryRunThenReal(t *testing.T) {
	tmp := t.TempDir()
	store, err := Open(filepath.Join(tmp, ".blob_store"))
	require.NoError(t, err)

	shots := filepath.Join(tmp, "screenshots")
	require.NoError(t, os.MkdirAll(shots, 0o750))
	writeFile(t, shots, "keep.png", []byte("keep"))
	writeFile(t, shots, "drop.png", []byte("drop"))

	manifest, err := store.Snapshot(shots)
	require.NoError(t, err)

	liveManifest := Manifest{"keep.png": manifest["keep.png"]}
	live, err := store.LiveHashes([]Manifest{liveManifest}, filepath.Join(tmp, "empty"))
	require.NoError(t, err)

	dryRun, err := store.GC(live, true)
	require.NoError(t, err)
	require.Contains(t, dryRun, manifest["drop.png"].Hash)

	real, err := store.GC(live, false)
	require.NoError(t, err)
	require.Equal(t, dryRun, real)
	require.True(t, store.Exists(manifest["keep.png"].Hash))
	require.False(t, store.Exists(manifest["drop.png"].Hash))
}
