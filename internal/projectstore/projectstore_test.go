package projectstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stubborncoder/vdocs/internal/docstore"
)

func newTestStores(t *testing.T) (*Store, *docstore.Store) {
	t.Helper()
	dir := t.TempDir()
	return Open(dir), docstore.Open(dir)
}

func TestEnsureDefaultProject_Idempotent(t *testing.T) {
	ps, _ := newTestStores(t)
	p1, err := ps.EnsureDefaultProject()
	require.NoError(t, err)
	require.Len(t, p1.Chapters, 1)
	assert.Equal(t, "uncategorized", p1.Chapters[0].ID)

	p2, err := ps.EnsureDefaultProject()
	require.NoError(t, err)
	assert.Equal(t, p1.CreatedAt, p2.CreatedAt)
}

func TestDeleteProject_DefaultForbidden(t *testing.T) {
	ps, docs := newTestStores(t)
	_, err := ps.EnsureDefaultProject()
	require.NoError(t, err)
	err = ps.DeleteProject(DefaultProjectID, false, docs)
	assert.Error(t, err)
}

func TestCreateProject_SlugCollisionSuffixes(t *testing.T) {
	ps, _ := newTestStores(t)
	id1, err := ps.CreateProject("My Project", "", "en")
	require.NoError(t, err)
	id2, err := ps.CreateProject("My Project", "", "en")
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)
}

func TestAddChapter_And_ReorderChapters(t *testing.T) {
	ps, _ := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)

	c1, err := ps.AddChapter(projectID, "Intro", "")
	require.NoError(t, err)
	c2, err := ps.AddChapter(projectID, "Body", "")
	require.NoError(t, err)

	p, err := ps.GetProject(projectID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Chapters[0].Order)
	assert.Equal(t, 2, p.Chapters[1].Order)

	err = ps.ReorderChapters(projectID, []string{c2, c1})
	require.NoError(t, err)
	p, err = ps.GetProject(projectID)
	require.NoError(t, err)
	assert.Equal(t, c2, p.Chapters[0].ID)
	assert.Equal(t, 1, p.Chapters[0].Order)
	assert.Equal(t, c1, p.Chapters[1].ID)
	assert.Equal(t, 2, p.Chapters[1].Order)
}

func TestReorderChapters_WrongSetRejected(t *testing.T) {
	ps, _ := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)
	c1, err := ps.AddChapter(projectID, "Intro", "")
	require.NoError(t, err)

	err = ps.ReorderChapters(projectID, []string{c1, "bogus"})
	assert.Error(t, err)

	// No partial mutation: chapter order is untouched.
	p, err := ps.GetProject(projectID)
	require.NoError(t, err)
	assert.Len(t, p.Chapters, 1)
	assert.Equal(t, 1, p.Chapters[0].Order)
}

func TestAddDocToProject_DefaultsToUncategorized(t *testing.T) {
	ps, docs := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)
	_, docID, err := docs.CreateDoc("vid.mp4", docstore.ConflictNew)
	require.NoError(t, err)

	err = ps.AddDocToProject(projectID, docID, "", docs)
	require.NoError(t, err)

	p, err := ps.GetProject(projectID)
	require.NoError(t, err)
	require.Len(t, p.Chapters, 1)
	assert.Equal(t, "uncategorized", p.Chapters[0].ID)
	assert.Contains(t, p.Chapters[0].DocIDs, docID)

	meta, err := docs.GetMetadata(docID)
	require.NoError(t, err)
	require.NotNil(t, meta.ProjectID)
	assert.Equal(t, projectID, *meta.ProjectID)
}

func TestMoveDocToChapter(t *testing.T) {
	ps, docs := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)
	c1, err := ps.AddChapter(projectID, "Intro", "")
	require.NoError(t, err)
	c2, err := ps.AddChapter(projectID, "Body", "")
	require.NoError(t, err)
	_, docID, err := docs.CreateDoc("vid.mp4", docstore.ConflictNew)
	require.NoError(t, err)
	require.NoError(t, ps.AddDocToProject(projectID, docID, c1, docs))

	err = ps.MoveDocToChapter(projectID, docID, c2, docs)
	require.NoError(t, err)

	p, err := ps.GetProject(projectID)
	require.NoError(t, err)
	for _, ch := range p.Chapters {
		if ch.ID == c1 {
			assert.NotContains(t, ch.DocIDs, docID)
		}
		if ch.ID == c2 {
			assert.Contains(t, ch.DocIDs, docID)
		}
	}

	meta, err := docs.GetMetadata(docID)
	require.NoError(t, err)
	require.NotNil(t, meta.ChapterID)
	assert.Equal(t, c2, *meta.ChapterID)
}

func TestRemoveDocFromProject_ClearsBackReferenceByDefault(t *testing.T) {
	ps, docs := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)
	c1, err := ps.AddChapter(projectID, "Intro", "")
	require.NoError(t, err)
	_, docID, err := docs.CreateDoc("vid.mp4", docstore.ConflictNew)
	require.NoError(t, err)
	require.NoError(t, ps.AddDocToProject(projectID, docID, c1, docs))

	require.NoError(t, ps.RemoveDocFromProject(projectID, docID, false, docs))

	p, err := ps.GetProject(projectID)
	require.NoError(t, err)
	for _, ch := range p.Chapters {
		assert.NotContains(t, ch.DocIDs, docID)
	}

	meta, err := docs.GetMetadata(docID)
	require.NoError(t, err)
	assert.Nil(t, meta.ProjectID)
	assert.Nil(t, meta.ChapterID)
}

func TestRemoveDocFromProject_DeleteDocsRemovesDocDir(t *testing.T) {
	ps, docs := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)
	c1, err := ps.AddChapter(projectID, "Intro", "")
	require.NoError(t, err)
	docDir, docID, err := docs.CreateDoc("vid.mp4", docstore.ConflictNew)
	require.NoError(t, err)
	require.NoError(t, ps.AddDocToProject(projectID, docID, c1, docs))

	require.NoError(t, ps.RemoveDocFromProject(projectID, docID, true, docs))

	p, err := ps.GetProject(projectID)
	require.NoError(t, err)
	for _, ch := range p.Chapters {
		assert.NotContains(t, ch.DocIDs, docID)
	}

	_, err = os.Stat(docDir)
	assert.True(t, os.IsNotExist(err))
}

func TestReorderDocsInChapter_WrongSetRejected(t *testing.T) {
	ps, docs := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)
	c1, err := ps.AddChapter(projectID, "Intro", "")
	require.NoError(t, err)
	_, docID, err := docs.CreateDoc("vid.mp4", docstore.ConflictNew)
	require.NoError(t, err)
	require.NoError(t, ps.AddDocToProject(projectID, docID, c1, docs))

	err = ps.ReorderDocsInChapter(projectID, c1, []string{"bogus"})
	assert.Error(t, err)
}

func TestDeleteChapter_ClearsBackReferenceWhenNotDeletingDocs(t *testing.T) {
	ps, docs := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)
	c1, err := ps.AddChapter(projectID, "Intro", "")
	require.NoError(t, err)
	_, docID, err := docs.CreateDoc("vid.mp4", docstore.ConflictNew)
	require.NoError(t, err)
	require.NoError(t, ps.AddDocToProject(projectID, docID, c1, docs))

	require.NoError(t, ps.DeleteChapter(projectID, c1, false, docs))

	meta, err := docs.GetMetadata(docID)
	require.NoError(t, err)
	assert.Nil(t, meta.ChapterID)
	assert.DirExists(t, docs.DocDir(docID))
}

func TestDeleteProject_DeleteDocsRemovesThem(t *testing.T) {
	ps, docs := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)
	c1, err := ps.AddChapter(projectID, "Intro", "")
	require.NoError(t, err)
	_, docID, err := docs.CreateDoc("vid.mp4", docstore.ConflictNew)
	require.NoError(t, err)
	require.NoError(t, ps.AddDocToProject(projectID, docID, c1, docs))

	require.NoError(t, ps.DeleteProject(projectID, true, docs))
	_, err = os.Stat(docs.DocDir(docID))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(ps.ProjectDir(projectID))
	assert.True(t, os.IsNotExist(err))
}

func TestTagIndex(t *testing.T) {
	ps, docs := newTestStores(t)
	_, docA, err := docs.CreateDoc("a.mp4", docstore.ConflictNew)
	require.NoError(t, err)
	_, docB, err := docs.CreateDoc("b.mp4", docstore.ConflictNew)
	require.NoError(t, err)

	require.NoError(t, AddTagToDoc(docs, docA, "onboarding"))
	require.NoError(t, AddTagToDoc(docs, docB, "onboarding"))
	require.NoError(t, AddTagToDoc(docs, docA, "release"))

	tags, err := ps.ListAllTags(docs)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"onboarding", "release"}, tags)

	matched, err := ps.DocsByTag(docs, "onboarding")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{docA, docB}, matched)

	require.NoError(t, RemoveTagFromDoc(docs, docA, "release"))
	tags, err = ps.ListAllTags(docs)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"onboarding"}, tags)
}

func TestCreateProject_MakesExportsDir(t *testing.T) {
	ps, _ := newTestStores(t)
	projectID, err := ps.CreateProject("Proj", "", "en")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(ps.ProjectDir(projectID), "exports"))
}
