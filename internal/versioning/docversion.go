package versioning

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stubborncoder/vdocs/internal/blobstore"
	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/mddiff"
	"github.com/stubborncoder/vdocs/internal/verrors"
)

// contentFilename is the canonical snapshot content filename, matching
// docstore's current-layout write path.
const contentFilename = "doc.md"

// DocStore implements the Document Version Store (spec.md §4.3): hybrid
// auto-patch/manual-bump versioning over a Document Store's working state.
type DocStore struct {
	docs *docstore.Store
}

// NewDocStore wraps a Document Store with versioning.
func NewDocStore(docs *docstore.Store) *DocStore {
	return &DocStore{docs: docs}
}

func (s *DocStore) docDir(docID string) string       { return s.docs.DocDir(docID) }
func (s *DocStore) versionsDir(docID string) string   { return filepath.Join(s.docDir(docID), "versions") }
func (s *DocStore) snapshotDir(docID string, v Version) string {
	return filepath.Join(s.versionsDir(docID), "v"+v.String())
}
func (s *DocStore) evaluationsDir(docID string) string { return filepath.Join(s.docDir(docID), "evaluations") }

func (s *DocStore) blobStore(docID string) (*blobstore.Store, error) {
	return blobstore.Open(filepath.Join(s.docDir(docID), ".blob_store"))
}

func currentVersion(meta *docstore.Metadata) Version {
	if meta == nil || meta.Version.Number == "" {
		return InitialVersion
	}
	v, err := Parse(meta.Version.Number)
	if err != nil {
		return InitialVersion
	}
	return v
}

// VersionInfo describes one version of a document, current or historical.
type VersionInfo struct {
	Version   string
	IsCurrent bool
	CreatedAt time.Time
	Notes     string
}

// metadataSnapshot is metadata_snapshot.json's schema: the version string,
// timestamp, notes, and a filtered copy of document metadata excluding the
// mutable version subtree itself (spec.md §4.3).
type metadataSnapshot struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	Notes     string    `json:"notes"`
	Title     string    `json:"title"`
	Tags      []string  `json:"tags,omitempty"`
	ProjectID *string   `json:"project_id,omitempty"`
	ChapterID *string   `json:"chapter_id,omitempty"`
}

// snapshotCurrent writes versions/v{version}/ from the document's current
// working state: per-language content, a screenshots.json manifest from
// the blob store, and metadata_snapshot.json.
func (s *DocStore) snapshotCurrent(docID string, version Version, notes string, meta *docstore.Metadata) error {
	dir := s.snapshotDir(docID, version)
	for _, lang := range s.docs.Languages(docID) {
		content, ok := s.docs.GetContent(docID, lang)
		if !ok {
			continue
		}
		langDir := filepath.Join(dir, lang)
		if err := os.MkdirAll(langDir, 0o750); err != nil {
			return verrors.IOError("mkdir snapshot lang dir", err)
		}
		if err := os.WriteFile(filepath.Join(langDir, contentFilename), []byte(content), 0o640); err != nil {
			return verrors.IOError("write snapshot content", err)
		}
	}

	blobs, err := s.blobStore(docID)
	if err != nil {
		return err
	}
	manifest, err := blobs.Snapshot(s.docs.ScreenshotsDir(docID))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return verrors.IOError("mkdir snapshot dir", err)
	}
	manifestData, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return verrors.Internal("marshal screenshots.json", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "screenshots.json"), manifestData, 0o640); err != nil {
		return verrors.IOError("write screenshots.json", err)
	}

	snap := metadataSnapshot{Version: version.String(), CreatedAt: time.Now(), Notes: notes}
	if meta != nil {
		snap.Title = meta.Title
		snap.Tags = meta.Tags
		snap.ProjectID = meta.ProjectID
		snap.ChapterID = meta.ChapterID
	}
	snapData, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return verrors.Internal("marshal metadata_snapshot.json", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "metadata_snapshot.json"), snapData, 0o640); err != nil {
		return verrors.IOError("write metadata_snapshot.json", err)
	}
	return nil
}

// AutoPatch snapshots the current working state and bumps the patch
// component, called before any write that would overwrite working
// content. Returns nil without mutating anything if the working
// directory has no content yet (spec.md §4.3, §8 boundary behavior).
func (s *DocStore) AutoPatch(docID, notes string) (*string, error) {
	if len(s.docs.Languages(docID)) == 0 {
		return nil, nil
	}
	meta, err := s.docs.GetMetadata(docID)
	if err != nil {
		return nil, err
	}
	cur := currentVersion(meta)

	if err := s.snapshotCurrent(docID, cur, notes, meta); err != nil {
		return nil, err
	}

	next, err := cur.Next(BumpPatch)
	if err != nil {
		return nil, err
	}
	_, err = s.docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
		m.Version.Number = next.String()
		m.Version.History = append(m.Version.History, docstore.HistoryEntry{
			Version:     cur.String(),
			CreatedAt:   time.Now(),
			SnapshotDir: "versions/v" + cur.String(),
			Notes:       notes,
		})
	})
	if err != nil {
		return nil, err
	}
	result := next.String()
	return &result, nil
}

// Bump always snapshots current state, appends history, and bumps either
// the minor or major component. kind=patch is an input error: patch bumps
// are produced only by AutoPatch.
func (s *DocStore) Bump(docID string, kind BumpKind, notes string) (string, error) {
	if kind == BumpPatch {
		return "", verrors.InvalidInput("kind", "patch bumps are only produced by auto_patch")
	}
	meta, err := s.docs.GetMetadata(docID)
	if err != nil {
		return "", err
	}
	cur := currentVersion(meta)

	if err := s.snapshotCurrent(docID, cur, notes, meta); err != nil {
		return "", err
	}

	next, err := cur.Next(kind)
	if err != nil {
		return "", err
	}
	_, err = s.docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
		m.Version.Number = next.String()
		m.Version.History = append(m.Version.History, docstore.HistoryEntry{
			Version:     cur.String(),
			CreatedAt:   time.Now(),
			SnapshotDir: "versions/v" + cur.String(),
			Notes:       notes,
		})
	})
	if err != nil {
		return "", err
	}
	return next.String(), nil
}

// List returns every version of a document, current first, then history
// newest-first.
func (s *DocStore) List(docID string) ([]VersionInfo, error) {
	meta, err := s.docs.GetMetadata(docID)
	if err != nil {
		return nil, err
	}
	cur := currentVersion(meta)
	infos := []VersionInfo{{Version: cur.String(), IsCurrent: true}}
	if meta == nil {
		return infos, nil
	}
	for i := len(meta.Version.History) - 1; i >= 0; i-- {
		h := meta.Version.History[i]
		infos = append(infos, VersionInfo{Version: h.Version, CreatedAt: h.CreatedAt, Notes: h.Notes})
	}
	return infos, nil
}

// Get returns the named version's info, or nil if it does not resolve.
func (s *DocStore) Get(docID, version string) (*VersionInfo, error) {
	infos, err := s.List(docID)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Version == version {
			return &info, nil
		}
	}
	return nil, nil
}

// Restore overwrites the working content of language from the named
// snapshot, after first auto-patching the state being replaced. Restoring
// the current version is a no-op returning true. A missing snapshot
// directory returns false without mutating anything.
func (s *DocStore) Restore(docID, version, language string) (bool, error) {
	meta, err := s.docs.GetMetadata(docID)
	if err != nil {
		return false, err
	}
	cur := currentVersion(meta)
	if version == cur.String() {
		return true, nil
	}

	v, err := Parse(version)
	if err != nil {
		return false, err
	}
	dir := s.snapshotDir(docID, v)
	if _, statErr := os.Stat(dir); statErr != nil {
		return false, nil
	}

	if _, err := s.AutoPatch(docID, "auto-patch before restoring v"+version); err != nil {
		return false, err
	}

	contentPath := filepath.Join(dir, language, contentFilename)
	content, err := os.ReadFile(contentPath) // #nosec G304 -- contentPath derives from a validated doc_id/version
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, verrors.IOError("read snapshot content", err)
	}
	if err := s.docs.PutContent(docID, language, string(content)); err != nil {
		return false, err
	}

	if err := s.restoreScreenshots(docID, dir); err != nil {
		return false, err
	}
	return true, nil
}

// restoreScreenshots restores a snapshot's screenshots into the working
// directory: via the blob-store manifest for current-layout snapshots, or
// by raw file copy for snapshots predating the blob store.
func (s *DocStore) restoreScreenshots(docID, snapshotDir string) error {
	manifestPath := filepath.Join(snapshotDir, "screenshots.json")
	data, err := os.ReadFile(manifestPath) // #nosec G304 -- manifestPath derives from a validated doc_id/version
	if err == nil {
		var manifest blobstore.Manifest
		if jsonErr := json.Unmarshal(data, &manifest); jsonErr == nil {
			blobs, err := s.blobStore(docID)
			if err != nil {
				return err
			}
			_, err = blobs.Restore(manifest, s.docs.ScreenshotsDir(docID), true)
			return err
		}
	}

	// Backward-compat: legacy snapshots copied screenshot files directly
	// into a "screenshots/" subdirectory rather than recording a manifest.
	legacyDir := filepath.Join(snapshotDir, "screenshots")
	entries, err := os.ReadDir(legacyDir)
	if err != nil {
		return nil // no screenshots in this snapshot at all
	}
	destDir := s.docs.ScreenshotsDir(docID)
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return verrors.IOError("mkdir screenshots dir", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		src := filepath.Join(legacyDir, e.Name())
		dst := filepath.Join(destDir, e.Name())
		data, err := os.ReadFile(src) // #nosec G304 -- src derives from a directory we just listed
		if err != nil {
			continue
		}
		if err := os.WriteFile(dst, data, 0o640); err != nil {
			return verrors.IOError("write restored screenshot", err)
		}
	}
	return nil
}

// contentForVersion resolves a version's language content, whether it is
// the current working version or a historical snapshot.
func (s *DocStore) contentForVersion(docID, version, language string) (string, error) {
	meta, err := s.docs.GetMetadata(docID)
	if err != nil {
		return "", err
	}
	cur := currentVersion(meta)
	if version == cur.String() {
		content, _ := s.docs.GetContent(docID, language)
		return content, nil
	}
	v, err := Parse(version)
	if err != nil {
		return "", err
	}
	path := filepath.Join(s.snapshotDir(docID, v), language, contentFilename)
	data, err := os.ReadFile(path) // #nosec G304 -- path derives from a validated doc_id/version
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", verrors.IOError("read snapshot content", err)
	}
	return string(data), nil
}

// Diff returns a structural summary (not a full textual diff) comparing
// v1 and v2's content for language.
func (s *DocStore) Diff(docID, v1, v2, language string) (mddiff.Summary, error) {
	c1, err := s.contentForVersion(docID, v1, language)
	if err != nil {
		return mddiff.Summary{}, err
	}
	c2, err := s.contentForVersion(docID, v2, language)
	if err != nil {
		return mddiff.Summary{}, err
	}
	return mddiff.Compare(c1, c2), nil
}

// evaluationPath returns evaluations/v{version}_{lang}.json for a document.
func (s *DocStore) evaluationPath(docID, version, language string) string {
	return filepath.Join(s.evaluationsDir(docID), "v"+version+"_"+language+".json")
}

// SaveEvaluation persists a structured quality report for (version,
// language). An empty version means "the current version".
func (s *DocStore) SaveEvaluation(docID string, report map[string]any, language, version string) error {
	version, err := s.resolveVersion(docID, version)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(s.evaluationsDir(docID), 0o750); err != nil {
		return verrors.IOError("mkdir evaluations dir", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return verrors.Internal("marshal evaluation", err)
	}
	if err := os.WriteFile(s.evaluationPath(docID, version, language), data, 0o640); err != nil {
		return verrors.IOError("write evaluation", err)
	}
	return nil
}

// GetEvaluation reads a saved evaluation, returning (nil, nil) if absent
// or malformed (corrupted JSON is treated as absent, per spec.md §7).
func (s *DocStore) GetEvaluation(docID, language, version string) (map[string]any, error) {
	version, err := s.resolveVersion(docID, version)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.evaluationPath(docID, version, language)) // #nosec G304 -- path is derived from validated inputs
	if err != nil {
		return nil, nil
	}
	var report map[string]any
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, nil
	}
	return report, nil
}

// DeleteEvaluation removes a saved evaluation, if present.
func (s *DocStore) DeleteEvaluation(docID, language, version string) error {
	version, err := s.resolveVersion(docID, version)
	if err != nil {
		return err
	}
	if err := os.Remove(s.evaluationPath(docID, version, language)); err != nil && !os.IsNotExist(err) {
		return verrors.IOError("remove evaluation", err)
	}
	return nil
}

// ListEvaluations returns every (version, language) evaluation recorded
// for a document.
func (s *DocStore) ListEvaluations(docID string) ([]string, error) {
	entries, err := os.ReadDir(s.evaluationsDir(docID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.IOError("list evaluations", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *DocStore) resolveVersion(docID, version string) (string, error) {
	if version != "" {
		return version, nil
	}
	meta, err := s.docs.GetMetadata(docID)
	if err != nil {
		return "", err
	}
	return currentVersion(meta).String(), nil
}

// GC deletes the oldest snapshot directories beyond keepCount, purges the
// corresponding history entries, and invokes the blob store's GC over the
// remaining live set.
func (s *DocStore) GC(docID string, keepCount int) error {
	meta, err := s.docs.GetMetadata(docID)
	if err != nil {
		return err
	}
	if meta == nil || len(meta.Version.History) <= keepCount {
		return nil
	}

	cut := len(meta.Version.History) - keepCount
	toRemove := meta.Version.History[:cut]
	kept := append([]docstore.HistoryEntry{}, meta.Version.History[cut:]...)

	for _, h := range toRemove {
		v, err := Parse(h.Version)
		if err != nil {
			continue
		}
		if err := os.RemoveAll(s.snapshotDir(docID, v)); err != nil {
			return verrors.IOError("remove pruned snapshot", err)
		}
	}

	_, err = s.docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
		m.Version.History = kept
	})
	if err != nil {
		return err
	}

	return s.gcBlobs(docID, kept)
}

func (s *DocStore) gcBlobs(docID string, kept []docstore.HistoryEntry) error {
	blobs, err := s.blobStore(docID)
	if err != nil {
		return err
	}
	var manifests []blobstore.Manifest
	for _, h := range kept {
		v, err := Parse(h.Version)
		if err != nil {
			continue
		}
		data, readErr := os.ReadFile(filepath.Join(s.snapshotDir(docID, v), "screenshots.json")) // #nosec G304
		if readErr != nil {
			continue
		}
		var m blobstore.Manifest
		if json.Unmarshal(data, &m) == nil {
			manifests = append(manifests, m)
		}
	}
	live, err := blobs.LiveHashes(manifests, s.docs.ScreenshotsDir(docID))
	if err != nil {
		return err
	}
	_, err = blobs.GC(live, false)
	return err
}
