// Package docstore implements the Document Store (spec.md §4.2): the
// working, mutable filesystem state of a document, language-aware, with
// tolerance for legacy content layouts on read.
package docstore

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/stubborncoder/vdocs/internal/slug"
	"github.com/stubborncoder/vdocs/internal/verrors"
)

// ConflictPolicy selects behavior when CreateDoc targets an already-used slug.
type ConflictPolicy string

const (
	// ConflictReuse returns the existing doc_id unchanged.
	ConflictReuse ConflictPolicy = "reuse"
	// ConflictNew picks the first unused numeric-suffixed doc_id.
	ConflictNew ConflictPolicy = "new"
)

// contentFilenames lists the filenames GetContent checks, in priority order:
// the current layout first, then older layouts the system has migrated
// through. Writes always use contentFilenames[0].
var contentFilenames = []string{"doc.md", "manual.md"}

// Store is the Document Store for a single user's subtree:
// {userDir}/docs/{doc_id}/...
type Store struct {
	userDir string

	mu    sync.RWMutex
	index map[string]string // doc_id -> doc_id (set of document directories), lazily rebuilt
}

// Open returns a Document Store rooted at userDir (a single user's isolated
// filesystem subtree; this package never reads across users).
func Open(userDir string) *Store {
	return &Store{userDir: userDir}
}

func (s *Store) docsRoot() string {
	return filepath.Join(s.userDir, "docs")
}

func (s *Store) docDir(docID string) string {
	return filepath.Join(s.docsRoot(), docID)
}

// CreateDoc derives a doc_id from the video's extensionless stem and
// creates its directory, resolving slug collisions per policy.
func (s *Store) CreateDoc(videoName string, policy ConflictPolicy) (docDir, docID string, err error) {
	stem := strings.TrimSuffix(filepath.Base(videoName), filepath.Ext(videoName))
	base := slug.Make(stem)

	if err := os.MkdirAll(s.docsRoot(), 0o750); err != nil {
		return "", "", verrors.IOError("mkdir docs root", err)
	}

	defer s.InvalidateIndex()

	candidate := base
	if _, statErr := os.Stat(s.docDir(candidate)); statErr != nil {
		// Unused: create it.
		if mkErr := os.MkdirAll(s.docDir(candidate), 0o750); mkErr != nil {
			return "", "", verrors.IOError("mkdir doc dir", mkErr)
		}
		return s.docDir(candidate), candidate, nil
	}

	if policy == ConflictReuse {
		return s.docDir(candidate), candidate, nil
	}

	for i := 2; ; i++ {
		candidate = base + "-" + strconv.Itoa(i)
		if _, statErr := os.Stat(s.docDir(candidate)); statErr != nil {
			if mkErr := os.MkdirAll(s.docDir(candidate), 0o750); mkErr != nil {
				return "", "", verrors.IOError("mkdir doc dir", mkErr)
			}
			return s.docDir(candidate), candidate, nil
		}
	}
}

// PutContent writes the markdown body for a language, using the current
// content filename, creating the language subdirectory if needed.
func (s *Store) PutContent(docID, language, text string) error {
	docDir := s.docDir(docID)
	if _, err := os.Stat(docDir); err != nil {
		return verrors.NotFound("document", docID)
	}
	langDir := filepath.Join(docDir, language)
	if err := os.MkdirAll(langDir, 0o750); err != nil {
		return verrors.IOError("mkdir language dir", err)
	}
	path := filepath.Join(langDir, contentFilenames[0])
	if err := os.WriteFile(path, []byte(text), 0o640); err != nil {
		return verrors.IOError("write content", err)
	}
	return nil
}

// GetContent returns the markdown body for a language, tolerating three
// historical layouts: {lang}/doc.md, {lang}/manual.md, and root-level
// doc.md. Returns ("", false) if none resolve.
func (s *Store) GetContent(docID, language string) (string, bool) {
	docDir := s.docDir(docID)
	langDir := filepath.Join(docDir, language)
	for _, name := range contentFilenames {
		if data, err := os.ReadFile(filepath.Join(langDir, name)); err == nil { // #nosec G304
			return string(data), true
		}
	}
	if data, err := os.ReadFile(filepath.Join(docDir, "doc.md")); err == nil { // #nosec G304
		return string(data), true
	}
	return "", false
}

// Languages returns the set of language directories under the document that
// contain at least one recognized content filename.
func (s *Store) Languages(docID string) []string {
	docDir := s.docDir(docID)
	entries, err := os.ReadDir(docDir)
	if err != nil {
		return nil
	}
	var langs []string
	for _, e := range entries {
		if !e.IsDir() || e.Name() == "versions" || e.Name() == "evaluations" ||
			e.Name() == "exports" || e.Name() == "screenshots" || e.Name() == ".blob_store" {
			continue
		}
		for _, name := range contentFilenames {
			if _, err := os.Stat(filepath.Join(docDir, e.Name(), name)); err == nil {
				langs = append(langs, e.Name())
				break
			}
		}
	}
	sort.Strings(langs)
	return langs
}

// ScreenshotsDir returns the working-copy screenshots directory for a document.
func (s *Store) ScreenshotsDir(docID string) string {
	return filepath.Join(s.docDir(docID), "screenshots")
}

// Screenshots returns image files present in the document's working
// screenshots directory.
func (s *Store) Screenshots(docID string) []string {
	entries, err := os.ReadDir(s.ScreenshotsDir(docID))
	if err != nil {
		return nil
	}
	var shots []string
	for _, e := range entries {
		if !e.IsDir() {
			shots = append(shots, e.Name())
		}
	}
	sort.Strings(shots)
	return shots
}

// GetMetadata reads the document's metadata.json, returning nil if absent
// or malformed.
func (s *Store) GetMetadata(docID string) (*Metadata, error) {
	m, err := readMetadata(s.docDir(docID))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// UpdateMetadata applies patch to the current metadata (creating a fresh
// record with CreatedAt=now if none exists) and stamps UpdatedAt, which is
// always strictly advanced per spec.md §8 property 5.
func (s *Store) UpdateMetadata(docID string, patch func(*Metadata)) (*Metadata, error) {
	docDir := s.docDir(docID)
	if _, err := os.Stat(docDir); err != nil {
		return nil, verrors.NotFound("document", docID)
	}

	m, err := readMetadata(docDir)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if m == nil {
		m = &Metadata{CreatedAt: now, Version: VersionMeta{Number: "1.0.0"}}
	}
	prevUpdated := m.UpdatedAt
	patch(m)
	m.UpdatedAt = now
	if !m.UpdatedAt.After(prevUpdated) {
		m.UpdatedAt = prevUpdated.Add(time.Nanosecond)
	}
	if err := writeMetadata(docDir, m); err != nil {
		return nil, err
	}
	return m, nil
}

// DocDir exposes the on-disk directory for a doc_id, for collaborating
// packages (versioning, blobstore) that need direct filesystem access.
func (s *Store) DocDir(docID string) string {
	return s.docDir(docID)
}

// ListDocs returns every doc_id present under the user's docs root.
func (s *Store) ListDocs() ([]string, error) {
	entries, err := os.ReadDir(s.docsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.IOError("list docs", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// rebuildIndex records every document directory's doc_id (there is no
// literal stored video name; docs are indexed by the slug form of their
// originating stem, which is the doc_id). Metadata is not read. Lazily
// invalidated: callers trigger a rebuild whenever the index is nil.
func (s *Store) rebuildIndex() error {
	s.index = make(map[string]string)
	ids, err := s.ListDocs()
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.index[id] = id
	}
	return nil
}

// FindByVideo returns the doc_id whose slug was derived from videoName's
// stem, if a document directory with that exact slug exists.
func (s *Store) FindByVideo(videoName string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		_ = s.rebuildIndex()
	}
	stem := strings.TrimSuffix(filepath.Base(videoName), filepath.Ext(videoName))
	want := slug.Make(stem)
	if _, ok := s.index[want]; ok {
		return want, true
	}
	return "", false
}

// FindExisting is an alias for FindByVideo kept for call-site clarity where
// callers are checking "does a document already exist for this video"
// rather than "what is its id".
func (s *Store) FindExisting(videoName string) bool {
	_, ok := s.FindByVideo(videoName)
	return ok
}

// InvalidateIndex forces the next FindByVideo/FindExisting call to rescan
// the filesystem; called after CreateDoc.
func (s *Store) InvalidateIndex() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.index = nil
}
