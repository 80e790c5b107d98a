// Package projectstore implements the Project Store (spec.md §4.5):
// chapter/section hierarchy, tag index, and per-project JSON persistence,
// grounded on the teacher's per-entity CRUD-with-autosave pattern.
package projectstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/slug"
	"github.com/stubborncoder/vdocs/internal/verrors"
)

// DefaultProjectID is the lazily-created project every user gets, per
// spec.md §3: "cannot be deleted."
const DefaultProjectID = "__default__"

// Chapter is an ordered group of documents within a project.
type Chapter struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Order       int      `json:"order"`
	DocIDs      []string `json:"doc_ids"`
}

// Section is a coarser, optional grouping of chapters.
type Section struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Order       int      `json:"order"`
	ChapterIDs  []string `json:"chapter_ids"`
}

// ShareMeta records an active public share token for a project.
type ShareMeta struct {
	Token     string    `json:"token"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

// Project is project.json's schema (spec.md §3).
type Project struct {
	ProjectID       string         `json:"project_id"`
	Name            string         `json:"name"`
	Description     string         `json:"description,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DefaultLanguage string         `json:"default_language"`
	IsDefault       bool           `json:"is_default,omitempty"`
	Chapters        []Chapter      `json:"chapters"`
	Sections        []Section      `json:"sections,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	TemplateID      string         `json:"template_id,omitempty"`
	ExportSettings  map[string]any `json:"export_settings,omitempty"`
	Share           *ShareMeta     `json:"share,omitempty"`
}

// Store is the Project Store for a single user's subtree:
// {userDir}/projects/{project_id}/...
type Store struct {
	userDir string
	mu      sync.Mutex
}

// Open returns a Project Store rooted at userDir.
func Open(userDir string) *Store {
	return &Store{userDir: userDir}
}

func (s *Store) projectsRoot() string { return filepath.Join(s.userDir, "projects") }
func (s *Store) projectDir(projectID string) string {
	return filepath.Join(s.projectsRoot(), projectID)
}
func (s *Store) projectPath(projectID string) string {
	return filepath.Join(s.projectDir(projectID), "project.json")
}

// ProjectDir exposes the on-disk directory for a project_id, for
// collaborating packages (the Compilation Version Store).
func (s *Store) ProjectDir(projectID string) string { return s.projectDir(projectID) }

func readProject(path string) (*Project, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is derived from a validated project_id
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.IOError("read project.json", err)
	}
	var p Project
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, nil
	}
	return &p, nil
}

func writeProject(dir string, p *Project) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return verrors.IOError("mkdir project dir", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return verrors.Internal("marshal project.json", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "project.json"), data, 0o640); err != nil {
		return verrors.IOError("write project.json", err)
	}
	return nil
}

// GetProject reads a project's metadata, returning (nil, nil) if absent or
// malformed.
func (s *Store) GetProject(projectID string) (*Project, error) {
	return readProject(s.projectPath(projectID))
}

// ListProjects returns every project_id present under the user's projects root.
func (s *Store) ListProjects() ([]string, error) {
	entries, err := os.ReadDir(s.projectsRoot())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.IOError("list projects", err)
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

// CreateProject slugifies name (suffixing on collision), creates
// project.json and an exports/ subdirectory, and returns the new project_id.
func (s *Store) CreateProject(name, description, defaultLanguage string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := slug.Make(name)
	projectID := base
	for i := 2; ; i++ {
		if _, err := os.Stat(s.projectDir(projectID)); err != nil {
			break
		}
		projectID = base + "-" + strconv.Itoa(i)
	}

	now := time.Now()
	p := &Project{
		ProjectID:       projectID,
		Name:            name,
		Description:     description,
		CreatedAt:       now,
		UpdatedAt:       now,
		DefaultLanguage: defaultLanguage,
		Chapters:        []Chapter{},
	}
	if err := writeProject(s.projectDir(projectID), p); err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(s.projectDir(projectID), "exports"), 0o750); err != nil {
		return "", verrors.IOError("mkdir exports dir", err)
	}
	return projectID, nil
}

// EnsureDefaultProject idempotently creates the __default__ project with
// is_default=true and an initial "Uncategorized" chapter.
func (s *Store) EnsureDefaultProject() (*Project, error) {
	p, err := s.GetProject(DefaultProjectID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	now := time.Now()
	p = &Project{
		ProjectID:       DefaultProjectID,
		Name:            "Default",
		CreatedAt:       now,
		UpdatedAt:       now,
		DefaultLanguage: "en",
		IsDefault:       true,
		Chapters: []Chapter{
			{ID: "uncategorized", Title: "Uncategorized", Order: 1, DocIDs: []string{}},
		},
	}
	if err := writeProject(s.projectDir(DefaultProjectID), p); err != nil {
		return nil, err
	}
	return p, nil
}

// update reads, applies patch, stamps UpdatedAt (strictly advanced), and
// writes the project back. Returns verrors.NotFound if absent.
func (s *Store) update(projectID string, patch func(*Project) error) (*Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.GetProject(projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, verrors.NotFound("project", projectID)
	}
	prevUpdated := p.UpdatedAt
	if err := patch(p); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now()
	if !p.UpdatedAt.After(prevUpdated) {
		p.UpdatedAt = prevUpdated.Add(time.Nanosecond)
	}
	if err := writeProject(s.projectDir(projectID), p); err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateProject applies an arbitrary patch (name/description/default
// language/tags/template/export settings) to a project.
func (s *Store) UpdateProject(projectID string, patch func(*Project)) (*Project, error) {
	return s.update(projectID, func(p *Project) error {
		patch(p)
		return nil
	})
}

// DeleteProject removes a project. __default__ can never be deleted. If
// deleteDocs is true, every document owned by the project is removed from
// docs; otherwise their project/chapter back-references are merely cleared.
func (s *Store) DeleteProject(projectID string, deleteDocs bool, docs *docstore.Store) error {
	if projectID == DefaultProjectID {
		return verrors.InvalidInput("project_id", "the default project cannot be deleted")
	}
	p, err := s.GetProject(projectID)
	if err != nil {
		return err
	}
	if p == nil {
		return verrors.NotFound("project", projectID)
	}

	for _, ch := range p.Chapters {
		for _, docID := range ch.DocIDs {
			if deleteDocs {
				if err := os.RemoveAll(docs.DocDir(docID)); err != nil {
					return verrors.IOError("remove project document", err)
				}
				continue
			}
			if _, err := docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
				m.ProjectID = nil
				m.ChapterID = nil
			}); err != nil {
				return err
			}
		}
	}
	if deleteDocs {
		docs.InvalidateIndex()
	}

	if err := os.RemoveAll(s.projectDir(projectID)); err != nil {
		return verrors.IOError("remove project dir", err)
	}
	return nil
}

func findChapterIndex(p *Project, chapterID string) int {
	for i := range p.Chapters {
		if p.Chapters[i].ID == chapterID {
			return i
		}
	}
	return -1
}

func renumberChapters(p *Project) {
	sort.SliceStable(p.Chapters, func(i, j int) bool { return p.Chapters[i].Order < p.Chapters[j].Order })
	for i := range p.Chapters {
		p.Chapters[i].Order = i + 1
	}
}

// AddChapter appends a new chapter and returns its id.
func (s *Store) AddChapter(projectID, title, description string) (string, error) {
	chapterID := slug.Make(title)
	var final string
	_, err := s.update(projectID, func(p *Project) error {
		id := chapterID
		for i := 2; findChapterIndex(p, id) >= 0; i++ {
			id = chapterID + "-" + strconv.Itoa(i)
		}
		final = id
		p.Chapters = append(p.Chapters, Chapter{
			ID: id, Title: title, Description: description,
			Order: len(p.Chapters) + 1, DocIDs: []string{},
		})
		return nil
	})
	if err != nil {
		return "", err
	}
	return final, nil
}

// UpdateChapter applies patch to a chapter's title/description.
func (s *Store) UpdateChapter(projectID, chapterID string, patch func(*Chapter)) error {
	_, err := s.update(projectID, func(p *Project) error {
		idx := findChapterIndex(p, chapterID)
		if idx < 0 {
			return verrors.NotFound("chapter", chapterID)
		}
		patch(&p.Chapters[idx])
		return nil
	})
	return err
}

// DeleteChapter removes a chapter. If deleteDocs is true its documents are
// removed from docs; otherwise their back-reference is cleared rather than
// orphaned silently (spec.md §3 invariant).
func (s *Store) DeleteChapter(projectID, chapterID string, deleteDocs bool, docs *docstore.Store) error {
	_, err := s.update(projectID, func(p *Project) error {
		idx := findChapterIndex(p, chapterID)
		if idx < 0 {
			return verrors.NotFound("chapter", chapterID)
		}
		for _, docID := range p.Chapters[idx].DocIDs {
			if deleteDocs {
				if err := os.RemoveAll(docs.DocDir(docID)); err != nil {
					return verrors.IOError("remove chapter document", err)
				}
				continue
			}
			if _, err := docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
				m.ChapterID = nil
			}); err != nil {
				return err
			}
		}
		p.Chapters = append(p.Chapters[:idx], p.Chapters[idx+1:]...)
		renumberChapters(p)
		return nil
	})
	return err
}

// ReorderChapters re-numbers chapters per order, which must be exactly the
// set of current chapter ids (spec.md §4.5, §8 boundary behavior).
func (s *Store) ReorderChapters(projectID string, order []string) error {
	_, err := s.update(projectID, func(p *Project) error {
		if len(order) != len(p.Chapters) {
			return verrors.InvalidInput("order", "must name exactly the project's current chapters")
		}
		have := make(map[string]bool, len(p.Chapters))
		for _, ch := range p.Chapters {
			have[ch.ID] = true
		}
		seen := make(map[string]bool, len(order))
		for _, id := range order {
			if !have[id] || seen[id] {
				return verrors.InvalidInput("order", "must name exactly the project's current chapters")
			}
			seen[id] = true
		}

		byID := make(map[string]Chapter, len(p.Chapters))
		for _, ch := range p.Chapters {
			byID[ch.ID] = ch
		}
		reordered := make([]Chapter, len(order))
		for i, id := range order {
			ch := byID[id]
			ch.Order = i + 1
			reordered[i] = ch
		}
		p.Chapters = reordered
		return nil
	})
	return err
}

// AddDocToProject adds docID to chapterID (or an auto-created/found
// "Uncategorized" chapter if chapterID is empty), verifying the document
// directory exists and stamping its back-reference.
func (s *Store) AddDocToProject(projectID, docID, chapterID string, docs *docstore.Store) error {
	if _, err := os.Stat(docs.DocDir(docID)); err != nil {
		return verrors.NotFound("document", docID)
	}
	var resolvedChapterID string
	_, err := s.update(projectID, func(p *Project) error {
		if chapterID == "" {
			idx := -1
			for i := range p.Chapters {
				if p.Chapters[i].ID == "uncategorized" {
					idx = i
					break
				}
			}
			if idx < 0 {
				p.Chapters = append(p.Chapters, Chapter{
					ID: "uncategorized", Title: "Uncategorized",
					Order: len(p.Chapters) + 1, DocIDs: []string{},
				})
				idx = len(p.Chapters) - 1
			}
			chapterID = p.Chapters[idx].ID
		}
		idx := findChapterIndex(p, chapterID)
		if idx < 0 {
			return verrors.NotFound("chapter", chapterID)
		}
		p.Chapters[idx].DocIDs = append(p.Chapters[idx].DocIDs, docID)
		resolvedChapterID = chapterID
		return nil
	})
	if err != nil {
		return err
	}
	_, err = docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
		pid := projectID
		cid := resolvedChapterID
		m.ProjectID = &pid
		m.ChapterID = &cid
	})
	return err
}

// RemoveDocFromProject drops docID from whichever chapter holds it. With
// deleteDoc it also removes the document's directory entirely; otherwise
// it clears the document's project/chapter back-references, the same
// delete-vs-clear choice DeleteProject and DeleteChapter offer.
func (s *Store) RemoveDocFromProject(projectID, docID string, deleteDoc bool, docs *docstore.Store) error {
	_, err := s.update(projectID, func(p *Project) error {
		for i := range p.Chapters {
			p.Chapters[i].DocIDs = removeString(p.Chapters[i].DocIDs, docID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if deleteDoc {
		if err := os.RemoveAll(docs.DocDir(docID)); err != nil {
			return verrors.IOError("remove document", err)
		}
		return nil
	}
	_, err = docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
		m.ProjectID = nil
		m.ChapterID = nil
	})
	return err
}

// MoveDocToChapter removes docID from its current chapter and appends it
// to targetChapterID, atomically from the project's viewpoint, updating
// the document's back-reference.
func (s *Store) MoveDocToChapter(projectID, docID, targetChapterID string, docs *docstore.Store) error {
	_, err := s.update(projectID, func(p *Project) error {
		targetIdx := findChapterIndex(p, targetChapterID)
		if targetIdx < 0 {
			return verrors.NotFound("chapter", targetChapterID)
		}
		for i := range p.Chapters {
			p.Chapters[i].DocIDs = removeString(p.Chapters[i].DocIDs, docID)
		}
		p.Chapters[targetIdx].DocIDs = append(p.Chapters[targetIdx].DocIDs, docID)
		return nil
	})
	if err != nil {
		return err
	}
	_, err = docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
		cid := targetChapterID
		m.ChapterID = &cid
	})
	return err
}

// ReorderDocsInChapter re-orders a chapter's documents; order must be
// exactly the chapter's current document ids.
func (s *Store) ReorderDocsInChapter(projectID, chapterID string, order []string) error {
	_, err := s.update(projectID, func(p *Project) error {
		idx := findChapterIndex(p, chapterID)
		if idx < 0 {
			return verrors.NotFound("chapter", chapterID)
		}
		current := p.Chapters[idx].DocIDs
		if len(order) != len(current) {
			return verrors.InvalidInput("order", "must name exactly the chapter's current documents")
		}
		have := make(map[string]bool, len(current))
		for _, id := range current {
			have[id] = true
		}
		seen := make(map[string]bool, len(order))
		for _, id := range order {
			if !have[id] || seen[id] {
				return verrors.InvalidInput("order", "must name exactly the chapter's current documents")
			}
			seen[id] = true
		}
		p.Chapters[idx].DocIDs = append([]string{}, order...)
		return nil
	})
	return err
}

func removeString(items []string, target string) []string {
	out := items[:0:0]
	for _, it := range items {
		if it != target {
			out = append(out, it)
		}
	}
	return out
}

// ListAllTags scans every document of this user (in a project or not) and
// returns the union of tags (spec.md §4.5: "the index is a scan").
func (s *Store) ListAllTags(docs *docstore.Store) ([]string, error) {
	ids, err := docs.ListDocs()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, id := range ids {
		m, err := docs.GetMetadata(id)
		if err != nil || m == nil {
			continue
		}
		for _, t := range m.Tags {
			seen[t] = true
		}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags, nil
}

// DocsByTag scans every document for this user and returns ids tagged with tag.
func (s *Store) DocsByTag(docs *docstore.Store, tag string) ([]string, error) {
	ids, err := docs.ListDocs()
	if err != nil {
		return nil, err
	}
	var matched []string
	for _, id := range ids {
		m, err := docs.GetMetadata(id)
		if err != nil || m == nil {
			continue
		}
		for _, t := range m.Tags {
			if t == tag {
				matched = append(matched, id)
				break
			}
		}
	}
	return matched, nil
}

// AddTagToDoc adds tag to a document's metadata tag set (idempotent).
func AddTagToDoc(docs *docstore.Store, docID, tag string) error {
	_, err := docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
		for _, t := range m.Tags {
			if t == tag {
				return
			}
		}
		m.Tags = append(m.Tags, tag)
	})
	return err
}

// RemoveTagFromDoc removes tag from a document's metadata tag set.
func RemoveTagFromDoc(docs *docstore.Store, docID, tag string) error {
	_, err := docs.UpdateMetadata(docID, func(m *docstore.Metadata) {
		m.Tags = removeString(m.Tags, tag)
	})
	return err
}
