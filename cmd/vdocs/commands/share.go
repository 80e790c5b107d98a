package commands

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/stubborncoder/vdocs/internal/docstore"
	"github.com/stubborncoder/vdocs/internal/projectstore"
	"github.com/stubborncoder/vdocs/internal/sharetoken"
)

// ShareCmd groups the Share Token Resolver subcommands (spec.md §4.9). A
// token's authoritative record lives in its target's own metadata.json
// Share field, not in a separate index, so create/revoke/list only ever
// touch that file; resolve falls back to the global metadata scan spec.md
// §9 calls out as acceptable for small deployments absent a live index.
type ShareCmd struct {
	Create  ShareCreateCmd  `cmd:"" help:"Create a share token for a document or project"`
	Revoke  ShareRevokeCmd  `cmd:"" help:"Revoke a document or project's share token"`
	Resolve ShareResolveCmd `cmd:"" help:"Resolve a share token to its target"`
	List    ShareListCmd    `cmd:"" help:"List documents and projects with an active share token"`
}

type ShareCreateCmd struct {
	TargetID string `arg:"" help:"Document or project id to share"`
	Scope    string `short:"s" default:"document" enum:"document,project" help:"Scope of TargetID"`
	Language string `short:"L" default:"en" help:"Language the share token exposes"`
}

func (c *ShareCreateCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	userDir := filepath.Join(cfg.DataDir, "users", root.UserID)

	token, err := sharetoken.GenerateToken()
	if err != nil {
		return err
	}

	switch sharetoken.Scope(c.Scope) {
	case sharetoken.ScopeProject:
		projects := projectstore.Open(userDir)
		_, err = projects.UpdateProject(c.TargetID, func(p *projectstore.Project) {
			p.Share = &projectstore.ShareMeta{Token: token, Language: c.Language, CreatedAt: time.Now()}
		})
	default:
		docs := docstore.Open(userDir)
		_, err = docs.UpdateMetadata(c.TargetID, func(m *docstore.Metadata) {
			m.Share = &docstore.ShareMeta{Token: token, Language: c.Language, CreatedAt: time.Now()}
		})
	}
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

type ShareRevokeCmd struct {
	TargetID string `arg:"" help:"Document or project id"`
	Scope    string `short:"s" default:"document" enum:"document,project" help:"Scope of TargetID"`
}

func (c *ShareRevokeCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	userDir := filepath.Join(cfg.DataDir, "users", root.UserID)

	switch sharetoken.Scope(c.Scope) {
	case sharetoken.ScopeProject:
		projects := projectstore.Open(userDir)
		_, err = projects.UpdateProject(c.TargetID, func(p *projectstore.Project) {
			p.Share = nil
		})
	default:
		docs := docstore.Open(userDir)
		_, err = docs.UpdateMetadata(c.TargetID, func(m *docstore.Metadata) {
			m.Share = nil
		})
	}
	return err
}

type ShareResolveCmd struct {
	Token string `arg:"" help:"Share token to resolve"`
}

func (c *ShareResolveCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	userDir := filepath.Join(cfg.DataDir, "users", root.UserID)

	entry, ok, err := scanForShareToken(userDir, c.Token)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("token not found or revoked")
		return nil
	}
	fmt.Printf("scope=%s target_id=%s language=%s\n", entry.Scope, entry.TargetID, entry.Language)
	return nil
}

type ShareListCmd struct{}

func (c *ShareListCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root.Config)
	if err != nil {
		return err
	}
	userDir := filepath.Join(cfg.DataDir, "users", root.UserID)

	docs := docstore.Open(userDir)
	docIDs, err := docs.ListDocs()
	if err != nil {
		return err
	}
	for _, docID := range docIDs {
		meta, err := docs.GetMetadata(docID)
		if err != nil || meta == nil || meta.Share == nil {
			continue
		}
		fmt.Printf("document\t%s\t%s\t%s\n", docID, meta.Share.Token, meta.Share.Language)
	}

	projects := projectstore.Open(userDir)
	projectIDs, err := projects.ListProjects()
	if err != nil {
		return err
	}
	for _, projectID := range projectIDs {
		p, err := projects.GetProject(projectID)
		if err != nil || p == nil || p.Share == nil {
			continue
		}
		fmt.Printf("project\t%s\t%s\t%s\n", projectID, p.Share.Token, p.Share.Language)
	}
	return nil
}

// scanForShareToken performs the global metadata scan spec.md §9 allows as
// a stopgap in front of a real reverse index (internal/sharetoken.Index,
// wired by the daemon instead).
func scanForShareToken(userDir, token string) (sharetoken.Entry, bool, error) {
	docs := docstore.Open(userDir)
	docIDs, err := docs.ListDocs()
	if err != nil {
		return sharetoken.Entry{}, false, err
	}
	for _, docID := range docIDs {
		meta, err := docs.GetMetadata(docID)
		if err != nil || meta == nil || meta.Share == nil {
			continue
		}
		if meta.Share.Token == token {
			return sharetoken.Entry{
				Token:    token,
				Scope:    sharetoken.ScopeDocument,
				TargetID: docID,
				Language: meta.Share.Language,
			}, true, nil
		}
	}

	projects := projectstore.Open(userDir)
	projectIDs, err := projects.ListProjects()
	if err != nil {
		return sharetoken.Entry{}, false, err
	}
	for _, projectID := range projectIDs {
		p, err := projects.GetProject(projectID)
		if err != nil || p == nil || p.Share == nil {
			continue
		}
		if p.Share.Token == token {
			return sharetoken.Entry{
				Token:    token,
				Scope:    sharetoken.ScopeProject,
				TargetID: projectID,
				Language: p.Share.Language,
			}, true, nil
		}
	}
	return sharetoken.Entry{}, false, nil
}
