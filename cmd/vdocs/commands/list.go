package commands

import (
	"fmt"
	"path/filepath"

	"github.com/stubborncoder/vdocs/internal/docstore"
)

// ListCmd lists every document id for the current user, one per line,
// alongside its title and current version.
type ListCmd struct{}

func (l *ListCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	docs := docstore.Open(filepath.Join(cfg.DataDir, "users", root.UserID))

	ids, err := docs.ListDocs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No documents found.")
		return nil
	}
	for _, id := range ids {
		meta, err := docs.GetMetadata(id)
		if err != nil || meta == nil {
			fmt.Printf("%s\t(no metadata)\n", id)
			continue
		}
		fmt.Printf("%s\tv%s\t%s\n", id, meta.Version.Number, meta.Title)
	}
	return nil
}

// ViewCmd prints a document's content for a language.
type ViewCmd struct {
	DocID    string `arg:"" help:"Document id"`
	Language string `short:"L" default:"en" help:"Language to view"`
}

func (v *ViewCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	docs := docstore.Open(filepath.Join(cfg.DataDir, "users", root.UserID))

	content, ok := docs.GetContent(v.DocID, v.Language)
	if !ok {
		return fmt.Errorf("no content for document %s in language %s", v.DocID, v.Language)
	}
	fmt.Print(content)
	return nil
}
