package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/projectstore"
	"github.com/stubborncoder/vdocs/internal/versioning"
)

// ProjectCmd groups every project/chapter subcommand.
type ProjectCmd struct {
	Create        ProjectCreateCmd        `cmd:"" help:"Create a project"`
	List          ProjectListCmd          `cmd:"" help:"List projects"`
	Show          ProjectShowCmd          `cmd:"" help:"Show a project's chapters and documents"`
	Delete        ProjectDeleteCmd        `cmd:"" help:"Delete a project"`
	ChapterAdd    ChapterAddCmd           `cmd:"" name:"chapter-add" help:"Add a chapter to a project"`
	ChapterUpdate ChapterUpdateCmd        `cmd:"" name:"chapter-update" help:"Update a chapter's title/description"`
	ChapterDelete ChapterDeleteCmd        `cmd:"" name:"chapter-delete" help:"Delete a chapter"`
	ChapterReorder ChapterReorderCmd      `cmd:"" name:"chapter-reorder" help:"Reorder a project's chapters"`
	AddDoc        AddDocCmd               `cmd:"" name:"add-doc" help:"Add a document to a project chapter"`
	RemoveDoc     RemoveDocCmd            `cmd:"" name:"remove-doc" help:"Remove a document from a project (clearing or deleting it)"`
	MoveDoc       MoveDocCmd              `cmd:"" name:"move-doc" help:"Move a document to a different chapter"`
	Export        ProjectExportCmd        `cmd:"" help:"Export a project's compiled manual"`
	Compile       ProjectCompileCmd       `cmd:"" help:"Compile a project's chapters into a combined manual"`
}

func openStores(root *CLI) (*projectstore.Store, *docstore.Store, string, error) {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return nil, nil, "", err
	}
	userDir := filepath.Join(cfg.DataDir, "users", root.UserID)
	return projectstore.Open(userDir), docstore.Open(userDir), userDir, nil
}

type ProjectCreateCmd struct {
	Name            string `arg:"" help:"Project name"`
	Description     string `short:"d" help:"Project description"`
	DefaultLanguage string `short:"l" default:"en" help:"Default language"`
}

func (c *ProjectCreateCmd) Run(g *Global, root *CLI) error {
	store, _, _, err := openStores(root)
	if err != nil {
		return err
	}
	id, err := store.CreateProject(c.Name, c.Description, c.DefaultLanguage)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

type ProjectListCmd struct{}

func (c *ProjectListCmd) Run(g *Global, root *CLI) error {
	store, _, _, err := openStores(root)
	if err != nil {
		return err
	}
	ids, err := store.ListProjects()
	if err != nil {
		return err
	}
	for _, id := range ids {
		p, err := store.GetProject(id)
		if err != nil {
			continue
		}
		fmt.Printf("%s\t%s\n", id, p.Name)
	}
	return nil
}

type ProjectShowCmd struct {
	ProjectID string `arg:"" help:"Project id"`
}

func (c *ProjectShowCmd) Run(g *Global, root *CLI) error {
	store, _, _, err := openStores(root)
	if err != nil {
		return err
	}
	p, err := store.GetProject(c.ProjectID)
	if err != nil {
		return err
	}
	fmt.Printf("%s (%s)\n", p.Name, p.ProjectID)
	for _, ch := range p.Chapters {
		fmt.Printf("  [%d] %s (%s)\n", ch.Order, ch.Title, ch.ID)
		for _, docID := range ch.DocIDs {
			fmt.Printf("      - %s\n", docID)
		}
	}
	return nil
}

type ProjectDeleteCmd struct {
	ProjectID  string `arg:"" help:"Project id"`
	DeleteDocs bool   `help:"Delete owned documents instead of clearing their project reference"`
}

func (c *ProjectDeleteCmd) Run(g *Global, root *CLI) error {
	store, docs, _, err := openStores(root)
	if err != nil {
		return err
	}
	return store.DeleteProject(c.ProjectID, c.DeleteDocs, docs)
}

type ChapterAddCmd struct {
	ProjectID   string `arg:"" help:"Project id"`
	Title       string `arg:"" help:"Chapter title"`
	Description string `short:"d" help:"Chapter description"`
}

func (c *ChapterAddCmd) Run(g *Global, root *CLI) error {
	store, _, _, err := openStores(root)
	if err != nil {
		return err
	}
	id, err := store.AddChapter(c.ProjectID, c.Title, c.Description)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

type ChapterUpdateCmd struct {
	ProjectID   string `arg:"" help:"Project id"`
	ChapterID   string `arg:"" help:"Chapter id"`
	Title       string `short:"t" help:"New title (empty leaves unchanged)"`
	Description string `short:"d" help:"New description (empty leaves unchanged)"`
}

func (c *ChapterUpdateCmd) Run(g *Global, root *CLI) error {
	store, _, _, err := openStores(root)
	if err != nil {
		return err
	}
	return store.UpdateChapter(c.ProjectID, c.ChapterID, func(ch *projectstore.Chapter) {
		if c.Title != "" {
			ch.Title = c.Title
		}
		if c.Description != "" {
			ch.Description = c.Description
		}
	})
}

type ChapterDeleteCmd struct {
	ProjectID  string `arg:"" help:"Project id"`
	ChapterID  string `arg:"" help:"Chapter id"`
	DeleteDocs bool   `help:"Delete owned documents instead of clearing their chapter reference"`
}

func (c *ChapterDeleteCmd) Run(g *Global, root *CLI) error {
	store, docs, _, err := openStores(root)
	if err != nil {
		return err
	}
	return store.DeleteChapter(c.ProjectID, c.ChapterID, c.DeleteDocs, docs)
}

type ChapterReorderCmd struct {
	ProjectID string   `arg:"" help:"Project id"`
	Order     []string `arg:"" help:"Chapter ids in the desired order (must be the exact current set)"`
}

func (c *ChapterReorderCmd) Run(g *Global, root *CLI) error {
	store, _, _, err := openStores(root)
	if err != nil {
		return err
	}
	return store.ReorderChapters(c.ProjectID, c.Order)
}

type AddDocCmd struct {
	ProjectID string `arg:"" help:"Project id"`
	DocID     string `arg:"" help:"Document id"`
	ChapterID string `help:"Target chapter id (defaults to Uncategorized)"`
}

func (c *AddDocCmd) Run(g *Global, root *CLI) error {
	store, docs, _, err := openStores(root)
	if err != nil {
		return err
	}
	return store.AddDocToProject(c.ProjectID, c.DocID, c.ChapterID, docs)
}

type RemoveDocCmd struct {
	ProjectID string `arg:"" help:"Project id"`
	DocID     string `arg:"" help:"Document id"`
	Delete    bool   `help:"Delete the document entirely instead of clearing its project reference"`
}

func (c *RemoveDocCmd) Run(g *Global, root *CLI) error {
	store, docs, _, err := openStores(root)
	if err != nil {
		return err
	}
	return store.RemoveDocFromProject(c.ProjectID, c.DocID, c.Delete, docs)
}

type MoveDocCmd struct {
	ProjectID       string `arg:"" help:"Project id"`
	DocID           string `arg:"" help:"Document id"`
	TargetChapterID string `arg:"" help:"Destination chapter id"`
}

func (c *MoveDocCmd) Run(g *Global, root *CLI) error {
	store, docs, _, err := openStores(root)
	if err != nil {
		return err
	}
	return store.MoveDocToChapter(c.ProjectID, c.DocID, c.TargetChapterID, docs)
}

type ProjectCompileCmd struct {
	ProjectID string   `arg:"" help:"Project id"`
	Languages []string `short:"l" default:"en" help:"Languages to compile"`
	Notes     string   `short:"n" help:"Notes for the auto-save checkpoint"`
}

// Run concatenates every chapter's per-language content, in chapter and
// document order, into compiled/current/manual_{lang}.md, auto-saving any
// prior compiled state first per spec.md §4.4.
func (c *ProjectCompileCmd) Run(g *Global, root *CLI) error {
	store, docs, _, err := openStores(root)
	if err != nil {
		return err
	}
	p, err := store.GetProject(c.ProjectID)
	if err != nil {
		return err
	}
	projectDir := store.ProjectDir(c.ProjectID)
	comp := versioning.NewCompilationStore()

	if _, err := comp.AutoSaveBeforeCompile(projectDir, c.Languages); err != nil {
		return err
	}
	currentDir, err := comp.GetCurrentDirectory(projectDir)
	if err != nil {
		return err
	}

	sourceDocVersions := map[string]string{}
	for _, lang := range c.Languages {
		var sections []string
		for _, ch := range p.Chapters {
			sections = append(sections, fmt.Sprintf("# %s\n", ch.Title))
			for _, docID := range ch.DocIDs {
				content, ok := docs.GetContent(docID, lang)
				if !ok {
					continue
				}
				sections = append(sections, content)
				if meta, err := docs.GetMetadata(docID); err == nil && meta != nil {
					sourceDocVersions[docID] = meta.Version.Number
				}
			}
		}
		merged := strings.Join(sections, "\n")
		if err := os.WriteFile(filepath.Join(currentDir, fmt.Sprintf("manual_%s.md", lang)), []byte(merged), 0o640); err != nil {
			return err
		}
	}

	version, err := comp.Bump(projectDir, versioning.BumpMinor, c.Notes, c.Languages, sourceDocVersions, "")
	if err != nil {
		return err
	}
	fmt.Printf("Compiled project %s to v%s\n", c.ProjectID, version)
	return nil
}

type ProjectExportCmd struct {
	ProjectID string `arg:"" help:"Project id"`
	Language  string `short:"L" default:"en" help:"Language to export"`
	Output    string `short:"o" help:"Output file path (defaults to stdout)"`
}

func (c *ProjectExportCmd) Run(g *Global, root *CLI) error {
	store, _, _, err := openStores(root)
	if err != nil {
		return err
	}
	projectDir := store.ProjectDir(c.ProjectID)
	comp := versioning.NewCompilationStore()
	currentDir, err := comp.GetCurrentDirectory(projectDir)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(filepath.Join(currentDir, fmt.Sprintf("manual_%s.md", c.Language)))
	if err != nil {
		return fmt.Errorf("no compiled output for language %s: %w", c.Language, err)
	}
	if c.Output == "" {
		fmt.Print(string(data))
		return nil
	}
	return os.WriteFile(c.Output, data, 0o640)
}
