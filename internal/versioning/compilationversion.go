package versioning

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// CompilationHistoryEntry records one project compilation version, per
// spec.md §4.4's "compilation-history record".
type CompilationHistoryEntry struct {
	Version           string            `json:"version"`
	CreatedAt         time.Time         `json:"created_at"`
	Languages         []string          `json:"languages,omitempty"`
	SourceDocVersions map[string]string `json:"source_doc_versions,omitempty"`
	MergePlanSummary  string            `json:"merge_plan_summary,omitempty"`
	Notes             string            `json:"notes,omitempty"`
	Tags              []string          `json:"tags,omitempty"`
	SnapshotDir       string            `json:"snapshot_dir,omitempty"`
}

// CompilationHistory is compilation_history.json's schema.
type CompilationHistory struct {
	CurrentVersion string                     `json:"current_version"`
	Entries        []CompilationHistoryEntry  `json:"entries"`
}

// CompilationStore implements the Compilation Version Store (spec.md
// §4.4): the same auto-save/bump/restore/GC discipline as the Document
// Version Store, applied to a project's compiled output, plus lazy
// legacy-layout migration.
type CompilationStore struct{}

// NewCompilationStore constructs a Compilation Version Store. It is
// stateless; every method takes the project directory it operates on.
func NewCompilationStore() *CompilationStore { return &CompilationStore{} }

func (s *CompilationStore) compiledDir(projectDir string) string {
	return filepath.Join(projectDir, "compiled")
}
func (s *CompilationStore) versionsDir(projectDir string) string {
	return filepath.Join(s.compiledDir(projectDir), "versions")
}
func (s *CompilationStore) historyPath(projectDir string) string {
	return filepath.Join(projectDir, "compilation_history.json")
}

func (s *CompilationStore) readHistory(projectDir string) (*CompilationHistory, error) {
	data, err := os.ReadFile(s.historyPath(projectDir)) // #nosec G304 -- projectDir is derived from a validated project_id
	if err != nil {
		return &CompilationHistory{CurrentVersion: InitialVersion.String()}, nil
	}
	var h CompilationHistory
	if err := json.Unmarshal(data, &h); err != nil {
		return &CompilationHistory{CurrentVersion: InitialVersion.String()}, nil
	}
	if h.CurrentVersion == "" {
		h.CurrentVersion = InitialVersion.String()
	}
	return &h, nil
}

func (s *CompilationStore) writeHistory(projectDir string, h *CompilationHistory) error {
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return verrors.Internal("marshal compilation_history.json", err)
	}
	if err := os.WriteFile(s.historyPath(projectDir), data, 0o640); err != nil {
		return verrors.IOError("write compilation_history.json", err)
	}
	return nil
}

// GetCurrentDirectory performs the lazy, idempotent legacy-layout
// migration (files directly under compiled/ instead of compiled/current/)
// and returns the current/ path writers should always target.
func (s *CompilationStore) GetCurrentDirectory(projectDir string) (string, error) {
	cur := filepath.Join(s.compiledDir(projectDir), "current")
	if _, err := os.Stat(cur); err == nil {
		return cur, nil
	}

	compiled := s.compiledDir(projectDir)
	entries, err := os.ReadDir(compiled)
	if err != nil {
		if mkErr := os.MkdirAll(cur, 0o750); mkErr != nil {
			return "", verrors.IOError("mkdir compiled current", mkErr)
		}
		return cur, nil
	}

	var legacyFiles []string
	hasLegacyScreenshots := false
	for _, e := range entries {
		switch {
		case e.Name() == "versions" || e.Name() == "current":
			continue
		case e.IsDir() && e.Name() == "screenshots":
			hasLegacyScreenshots = true
		case !e.IsDir():
			legacyFiles = append(legacyFiles, e.Name())
		}
	}

	if err := os.MkdirAll(cur, 0o750); err != nil {
		return "", verrors.IOError("mkdir compiled current", err)
	}
	if len(legacyFiles) == 0 && !hasLegacyScreenshots {
		return cur, nil
	}

	for _, name := range legacyFiles {
		if err := os.Rename(filepath.Join(compiled, name), filepath.Join(cur, name)); err != nil {
			return "", verrors.IOError("migrate legacy compiled file", err)
		}
	}
	if hasLegacyScreenshots {
		if err := os.Rename(filepath.Join(compiled, "screenshots"), filepath.Join(cur, "screenshots")); err != nil {
			return "", verrors.IOError("migrate legacy compiled screenshots", err)
		}
	}

	hist, err := s.readHistory(projectDir)
	if err != nil {
		return "", err
	}
	hist.Entries = append(hist.Entries, CompilationHistoryEntry{
		Version:   hist.CurrentVersion,
		CreatedAt: time.Now(),
		Notes:     "Migrated from legacy structure",
	})
	if err := s.writeHistory(projectDir, hist); err != nil {
		return "", err
	}
	return cur, nil
}

func copyDirRecursive(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		data, err := os.ReadFile(path) // #nosec G304 -- path is produced by filepath.Walk over a known source tree
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o640)
	})
}

// AutoSaveBeforeCompile is called by the compile pipeline before writing a
// new compilation. The first call on a pristine project (no current
// content) returns nil, mutating nothing. Later calls snapshot current/
// into versions/v{current}_{timestamp} and bump the patch component.
func (s *CompilationStore) AutoSaveBeforeCompile(projectDir string, languages []string) (*string, error) {
	cur, err := s.GetCurrentDirectory(projectDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(cur)
	if err != nil {
		return nil, verrors.IOError("read compiled current dir", err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	hist, err := s.readHistory(projectDir)
	if err != nil {
		return nil, err
	}
	v, err := Parse(hist.CurrentVersion)
	if err != nil {
		v = InitialVersion
	}

	ts := timestampNow()
	snapDirName := fmt.Sprintf("v%s_%s", v.String(), ts)
	snapDir := filepath.Join(s.versionsDir(projectDir), snapDirName)
	if err := copyDirRecursive(cur, snapDir); err != nil {
		return nil, verrors.IOError("snapshot compiled current", err)
	}

	next, err := v.Next(BumpPatch)
	if err != nil {
		return nil, err
	}
	hist.CurrentVersion = next.String()
	hist.Entries = append(hist.Entries, CompilationHistoryEntry{
		Version:     v.String(),
		CreatedAt:   time.Now(),
		Languages:   languages,
		Notes:       "auto-save before compile",
		SnapshotDir: filepath.Join("compiled", "versions", snapDirName),
	})
	if err := s.writeHistory(projectDir, hist); err != nil {
		return nil, err
	}
	result := next.String()
	return &result, nil
}

// timestampNow is a var so tests can make it deterministic.
var timestampNow = func() string { return time.Now().Format("20060102_150405") }

// Bump snapshots current/ unconditionally and bumps minor or major,
// recording the compilation-specific detail (languages covered, source
// document versions, and a merge-plan summary) in compilation_history.json.
func (s *CompilationStore) Bump(projectDir string, kind BumpKind, notes string, languages []string, sourceDocVersions map[string]string, mergePlanSummary string) (string, error) {
	if kind == BumpPatch {
		return "", verrors.InvalidInput("kind", "patch bumps are only produced by auto_save_before_compile")
	}
	cur, err := s.GetCurrentDirectory(projectDir)
	if err != nil {
		return "", err
	}
	hist, err := s.readHistory(projectDir)
	if err != nil {
		return "", err
	}
	v, err := Parse(hist.CurrentVersion)
	if err != nil {
		v = InitialVersion
	}

	ts := timestampNow()
	snapDirName := fmt.Sprintf("v%s_%s", v.String(), ts)
	snapDir := filepath.Join(s.versionsDir(projectDir), snapDirName)
	if err := copyDirRecursive(cur, snapDir); err != nil {
		return "", verrors.IOError("snapshot compiled current", err)
	}

	next, err := v.Next(kind)
	if err != nil {
		return "", err
	}
	hist.CurrentVersion = next.String()
	hist.Entries = append(hist.Entries, CompilationHistoryEntry{
		Version:           v.String(),
		CreatedAt:         time.Now(),
		Languages:         languages,
		SourceDocVersions: sourceDocVersions,
		MergePlanSummary:  mergePlanSummary,
		Notes:             notes,
		SnapshotDir:       filepath.Join("compiled", "versions", snapDirName),
	})
	return next.String(), s.writeHistory(projectDir, hist)
}

// findSnapshotDir locates the versions/ subdirectory for a requested
// compilation version (its name carries a trailing timestamp the caller
// does not know in advance).
func (s *CompilationStore) findSnapshotDir(projectDir, version string) (string, bool) {
	entries, err := os.ReadDir(s.versionsDir(projectDir))
	if err != nil {
		return "", false
	}
	prefix := "v" + version + "_"
	var matches []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			matches = append(matches, e.Name())
		}
	}
	if len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return filepath.Join(s.versionsDir(projectDir), matches[len(matches)-1]), true
}

// Restore replaces current/ with the chosen snapshot's content (removing
// current/ and then copying the snapshot in, not as one atomic step),
// after first auto-saving the state being replaced.
func (s *CompilationStore) Restore(projectDir, version string) (bool, error) {
	snapDir, ok := s.findSnapshotDir(projectDir, version)
	if !ok {
		return false, nil
	}
	if _, err := s.AutoSaveBeforeCompile(projectDir, nil); err != nil {
		return false, err
	}
	cur, err := s.GetCurrentDirectory(projectDir)
	if err != nil {
		return false, err
	}
	if err := os.RemoveAll(cur); err != nil {
		return false, verrors.IOError("clear compiled current", err)
	}
	if err := copyDirRecursive(snapDir, cur); err != nil {
		return false, verrors.IOError("restore compiled current", err)
	}
	hist, err := s.readHistory(projectDir)
	if err != nil {
		return false, err
	}
	hist.CurrentVersion = version
	return true, s.writeHistory(projectDir, hist)
}

// List returns the compilation history, current version first.
func (s *CompilationStore) List(projectDir string) (*CompilationHistory, error) {
	return s.readHistory(projectDir)
}

// GC deletes the oldest compiled snapshot directories beyond keepCount.
func (s *CompilationStore) GC(projectDir string, keepCount int) error {
	hist, err := s.readHistory(projectDir)
	if err != nil {
		return err
	}
	if len(hist.Entries) <= keepCount {
		return nil
	}
	cut := len(hist.Entries) - keepCount
	for _, e := range hist.Entries[:cut] {
		if e.SnapshotDir == "" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(projectDir, e.SnapshotDir)); err != nil {
			return verrors.IOError("remove pruned compiled snapshot", err)
		}
	}
	hist.Entries = hist.Entries[cut:]
	return s.writeHistory(projectDir, hist)
}
