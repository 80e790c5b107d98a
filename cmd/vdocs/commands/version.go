package commands

import (
	"fmt"
	"path/filepath"

	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/versioning"
)

// VersionCmd groups the document-version subcommands.
type VersionCmd struct {
	List    VersionListCmd    `cmd:"" help:"List a document's versions"`
	Bump    VersionBumpCmd    `cmd:"" help:"Explicitly bump a document's version"`
	Restore VersionRestoreCmd `cmd:"" help:"Restore a document to a prior version"`
	Diff    VersionDiffCmd    `cmd:"" help:"Show a structural diff between two versions"`
}

func docVersionStore(root *CLI) (*versioning.DocStore, error) {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return nil, err
	}
	docs := docstore.Open(filepath.Join(cfg.DataDir, "users", root.UserID))
	return versioning.NewDocStore(docs), nil
}

type VersionListCmd struct {
	DocID string `arg:"" help:"Document id"`
}

func (c *VersionListCmd) Run(g *Global, root *CLI) error {
	store, err := docVersionStore(root)
	if err != nil {
		return err
	}
	infos, err := store.List(c.DocID)
	if err != nil {
		return err
	}
	for _, v := range infos {
		fmt.Printf("%s\t%s\t%s\n", v.Version, v.CreatedAt, v.Notes)
	}
	return nil
}

type VersionBumpCmd struct {
	DocID string `arg:"" help:"Document id"`
	Kind  string `arg:"" enum:"minor,major" help:"Bump kind: minor or major"`
	Notes string `short:"n" help:"Notes to attach to this version"`
}

func (c *VersionBumpCmd) Run(g *Global, root *CLI) error {
	store, err := docVersionStore(root)
	if err != nil {
		return err
	}
	v, err := store.Bump(c.DocID, versioning.BumpKind(c.Kind), c.Notes)
	if err != nil {
		return err
	}
	fmt.Printf("Bumped %s to v%s\n", c.DocID, v)
	return nil
}

type VersionRestoreCmd struct {
	DocID    string `arg:"" help:"Document id"`
	Version  string `arg:"" help:"Version to restore"`
	Language string `short:"L" default:"en" help:"Language to restore"`
}

func (c *VersionRestoreCmd) Run(g *Global, root *CLI) error {
	store, err := docVersionStore(root)
	if err != nil {
		return err
	}
	ok, err := store.Restore(c.DocID, c.Version, c.Language)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("version %s not found for document %s", c.Version, c.DocID)
	}
	fmt.Printf("Restored %s to v%s\n", c.DocID, c.Version)
	return nil
}

type VersionDiffCmd struct {
	DocID    string `arg:"" help:"Document id"`
	V1       string `arg:"" help:"First version"`
	V2       string `arg:"" help:"Second version"`
	Language string `short:"L" default:"en" help:"Language to diff"`
}

func (c *VersionDiffCmd) Run(g *Global, root *CLI) error {
	store, err := docVersionStore(root)
	if err != nil {
		return err
	}
	summary, err := store.Diff(c.DocID, c.V1, c.V2, c.Language)
	if err != nil {
		return err
	}
	fmt.Printf("lines: %d -> %d (changed %d)\nchars: %d -> %d (changed %d)\n",
		summary.LinesV1, summary.LinesV2, summary.LinesChanged,
		summary.CharsV1, summary.CharsV2, summary.CharsChanged)
	return nil
}
