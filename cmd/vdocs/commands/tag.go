package commands

import (
	"fmt"
	"path/filepath"

	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/projectstore"
)

// TagCmd groups the tag subcommands.
type TagCmd struct {
	Add    TagAddCmd    `cmd:"" help:"Add a tag to a document"`
	Remove TagRemoveCmd `cmd:"" help:"Remove a tag from a document"`
	List   TagListCmd   `cmd:"" help:"List every tag in use"`
	Search TagSearchCmd `cmd:"" help:"List documents carrying a tag"`
}

type TagAddCmd struct {
	DocID string `arg:"" help:"Document id"`
	Tag   string `arg:"" help:"Tag to add"`
}

func (c *TagAddCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	docs := docstore.Open(filepath.Join(cfg.DataDir, "users", root.UserID))
	return projectstore.AddTagToDoc(docs, c.DocID, c.Tag)
}

type TagRemoveCmd struct {
	DocID string `arg:"" help:"Document id"`
	Tag   string `arg:"" help:"Tag to remove"`
}

func (c *TagRemoveCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	docs := docstore.Open(filepath.Join(cfg.DataDir, "users", root.UserID))
	return projectstore.RemoveTagFromDoc(docs, c.DocID, c.Tag)
}

type TagListCmd struct{}

func (c *TagListCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	userDir := filepath.Join(cfg.DataDir, "users", root.UserID)
	docs := docstore.Open(userDir)
	store := projectstore.Open(userDir)

	tags, err := store.ListAllTags(docs)
	if err != nil {
		return err
	}
	for _, t := range tags {
		fmt.Println(t)
	}
	return nil
}

type TagSearchCmd struct {
	Tag string `arg:"" help:"Tag to search for"`
}

func (c *TagSearchCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	userDir := filepath.Join(cfg.DataDir, "users", root.UserID)
	docs := docstore.Open(userDir)
	store := projectstore.Open(userDir)

	ids, err := store.DocsByTag(docs, c.Tag)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}
