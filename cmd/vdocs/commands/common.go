// Package commands holds the vdocs CLI's subcommand definitions, grounded
// on cmd/docbuilder/commands/common.go's CLI-struct-of-subcommands shape.
package commands

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"github.com/stubborncoder/vdocs/internal/config"
	"github.com/stubborncoder/vdocs/internal/logging"
	"github.com/stubborncoder/vdocs/internal/verrors"
)

// Global carries state shared across subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI is the root command definition and global flags.
type CLI struct {
	Config  string           `short:"c" default:"config.yaml" env:"VDOCS_CONFIG" help:"Configuration file path"`
	UserID  string           `short:"u" default:"default" env:"VDOCS_USER" help:"User id whose subtree to operate on"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Process  ProcessCmd `cmd:"" help:"Run the video-to-documentation pipeline on a video file"`
	List     ListCmd    `cmd:"" help:"List documents for the current user"`
	View     ViewCmd    `cmd:"" help:"Print a document's content"`
	Project  ProjectCmd `cmd:"" help:"Manage projects, chapters, and project documents"`
	Tag      TagCmd     `cmd:"" help:"Manage document tags"`
	Versions VersionCmd `cmd:"" name:"version" help:"Manage document versions"`
	Share    ShareCmd   `cmd:"" help:"Manage read-only share tokens for documents and projects"`
	Daemon   DaemonCmd  `cmd:"" help:"Run the watcher/scheduler/streaming daemon"`
}

// AfterApply sets up logging once flags are parsed, matching the teacher's
// single install-default-logger-in-AfterApply idiom.
func (c *CLI) AfterApply() error {
	logging.Setup(false, c.Verbose)
	return nil
}

// loadConfig loads root.Config, falling back to a minimal config seeded by
// VDOCS_DATA_DIR if the config file doesn't exist yet — the CLI should
// work against a bare data directory without requiring a config.yaml.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		dataDir := os.Getenv("VDOCS_DATA_DIR")
		if dataDir == "" {
			dataDir = "./data"
		}
		return config.FromDataDir(dataDir), nil
	}
	return config.Load(path)
}

// ExitCodeFor maps a VDocsError category to a CLI exit code, grounded on
// internal/errors/cli_adapter.go's ExitCodeFor but retargeted at
// verrors.Category.
func ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var ve *verrors.VDocsError
	if e, ok := err.(*verrors.VDocsError); ok {
		ve = e
	} else {
		return 1
	}
	switch ve.Category {
	case verrors.CategoryInvalidInput:
		return 2
	case verrors.CategoryNotFound:
		return 3
	case verrors.CategoryConflict:
		return 4
	case verrors.CategoryDependency:
		return 8
	case verrors.CategoryIO:
		return 9
	case verrors.CategoryProtocol:
		return 10
	case verrors.CategoryInternal:
		return 11
	default:
		return 1
	}
}
