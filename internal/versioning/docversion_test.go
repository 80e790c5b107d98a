package versioning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/docstore"
)

func newTestDocStore(t *testing.T) (*docstore.Store, *DocStore, string) {
	t.Helper()
	dir := t.TempDir()
	docs := docstore.Open(dir)
	_, docID, err := docs.CreateDoc("my video.mp4", docstore.ConflictNew)
	require.NoError(t, err)
	vs := NewDocStore(docs)
	return docs, vs, docID
}

func writeScreenshot(t *testing.T, docs *docstore.Store, docID, name string) {
	t.Helper()
	dir := docs.ScreenshotsDir(docID)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fake-png-bytes"), 0o640))
}

func TestAutoPatch_EmptyWorkingDir_ReturnsNil(t *testing.T) {
	_, vs, docID := newTestDocStore(t)
	v, err := vs.AutoPatch(docID, "edit")
	require.NoError(t, err)
	assert.Nil(t, v)
}

// S1 — auto-patch round-trip.
func TestAutoPatch_RoundTrip(t *testing.T) {
	docs, vs, docID := newTestDocStore(t)
	require.NoError(t, docs.PutContent(docID, "en", "# A"))
	writeScreenshot(t, docs, docID, "x.png")

	v, err := vs.AutoPatch(docID, "edit")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "1.0.1", *v)

	require.NoError(t, docs.PutContent(docID, "en", "# B"))

	snapContent, err := os.ReadFile(filepath.Join(docs.DocDir(docID), "versions", "v1.0.0", "en", "doc.md"))
	require.NoError(t, err)
	assert.Equal(t, "# A", string(snapContent))

	manifestData, err := os.ReadFile(filepath.Join(docs.DocDir(docID), "versions", "v1.0.0", "screenshots.json"))
	require.NoError(t, err)
	assert.Contains(t, string(manifestData), "x.png")

	blobEntries, err := os.ReadDir(filepath.Join(docs.DocDir(docID), ".blob_store"))
	require.NoError(t, err)
	assert.Len(t, blobEntries, 1)
}

// S2 — restore after minor bump.
func TestRestore_AfterMinorBump(t *testing.T) {
	docs, vs, docID := newTestDocStore(t)
	require.NoError(t, docs.PutContent(docID, "en", "C0"))

	// Overwriting C0 is auto-patched first, so v1.0.0's snapshot holds C0.
	_, patchErr := vs.AutoPatch(docID, "edit")
	require.NoError(t, patchErr)
	require.NoError(t, docs.PutContent(docID, "en", "C1"))
	_, err := vs.Bump(docID, BumpMinor, "v1.1")
	require.NoError(t, err)

	require.NoError(t, docs.PutContent(docID, "en", "C2"))

	ok, err := vs.Restore(docID, "1.0.0", "en")
	require.NoError(t, err)
	assert.True(t, ok)

	content, found := docs.GetContent(docID, "en")
	require.True(t, found)
	assert.Equal(t, "C0", content)

	meta, err := docs.GetMetadata(docID)
	require.NoError(t, err)
	versions := make([]string, 0, len(meta.Version.History))
	for _, h := range meta.Version.History {
		versions = append(versions, h.Version)
	}
	assert.Contains(t, versions, "1.0.0")
	assert.Contains(t, versions, "1.1.0")
}

func TestRestore_CurrentVersionIsNoop(t *testing.T) {
	docs, vs, docID := newTestDocStore(t)
	require.NoError(t, docs.PutContent(docID, "en", "only"))
	meta, err := docs.GetMetadata(docID)
	require.NoError(t, err)

	ok, err := vs.Restore(docID, meta.Version.Number, "en")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRestore_MissingSnapshot_ReturnsFalse(t *testing.T) {
	docs, vs, docID := newTestDocStore(t)
	require.NoError(t, docs.PutContent(docID, "en", "only"))

	ok, err := vs.Restore(docID, "9.9.9", "en")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBump_RejectsPatchKind(t *testing.T) {
	_, vs, docID := newTestDocStore(t)
	_, err := vs.Bump(docID, BumpPatch, "nope")
	assert.Error(t, err)
}

func TestEvaluation_SaveGetDelete(t *testing.T) {
	docs, vs, docID := newTestDocStore(t)
	require.NoError(t, docs.PutContent(docID, "en", "content"))

	err := vs.SaveEvaluation(docID, map[string]any{"score": 9.5}, "en", "")
	require.NoError(t, err)

	report, err := vs.GetEvaluation(docID, "en", "")
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.InDelta(t, 9.5, report["score"], 0.001)

	require.NoError(t, vs.DeleteEvaluation(docID, "en", ""))
	report, err = vs.GetEvaluation(docID, "en", "")
	require.NoError(t, err)
	assert.Nil(t, report)
}

// S5 — blob-store GC after version prune (abbreviated: 3 versions, keep 1).
func TestGC_PrunesOldSnapshotsAndBlobs(t *testing.T) {
	docs, vs, docID := newTestDocStore(t)
	for i := 0; i < 3; i++ {
		require.NoError(t, docs.PutContent(docID, "en", "content"))
		writeScreenshot(t, docs, docID, "shot.png")
		_, err := vs.AutoPatch(docID, "edit")
		require.NoError(t, err)
	}

	require.NoError(t, vs.GC(docID, 1))

	entries, err := os.ReadDir(filepath.Join(docs.DocDir(docID), "versions"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDiff_StructuralSummary(t *testing.T) {
	docs, vs, docID := newTestDocStore(t)
	require.NoError(t, docs.PutContent(docID, "en", "# A\n\nFirst line.\n"))
	v, err := vs.AutoPatch(docID, "edit")
	require.NoError(t, err)
	require.NoError(t, docs.PutContent(docID, "en", "# A\n\nFirst line edited.\n"))

	diff, err := vs.Diff(docID, "1.0.0", *v, "en")
	require.NoError(t, err)
	assert.Positive(t, diff.LinesChanged)
}
