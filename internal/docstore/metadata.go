package docstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// Metadata is the canonical per-document metadata.json schema (spec.md §6).
type Metadata struct {
	Title     string       `json:"title"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Version   VersionMeta  `json:"version"`
	Tags      []string     `json:"tags,omitempty"`
	ProjectID *string      `json:"project_id,omitempty"`
	ChapterID *string      `json:"chapter_id,omitempty"`
	Share     *ShareMeta   `json:"share,omitempty"`
}

// VersionMeta is the mutable version subtree of a document's metadata.
type VersionMeta struct {
	Number  string         `json:"number"`
	History []HistoryEntry `json:"history"`
}

// HistoryEntry records one past version in version.history, newest-last on
// disk (version stores present it newest-first).
type HistoryEntry struct {
	Version     string    `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
	SnapshotDir string    `json:"snapshot_dir"`
	Notes       string    `json:"notes"`
}

// ShareMeta records an active public share token for a document.
type ShareMeta struct {
	Token     string    `json:"token"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
}

func metadataPath(docDir string) string {
	return filepath.Join(docDir, "metadata.json")
}

// readMetadata reads metadata.json for the document at docDir. A missing or
// malformed file returns (nil, nil): per spec.md §7, corrupted JSON is
// treated as absent rather than fatal so one bad document never blocks the
// whole system.
func readMetadata(docDir string) (*Metadata, error) {
	data, err := os.ReadFile(metadataPath(docDir)) // #nosec G304 -- docDir is derived from a validated doc_id
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.IOError("read metadata.json", err)
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, nil
	}
	return &m, nil
}

// writeMetadata writes metadata.json with 2-space indent, UTF-8, per
// spec.md §6's "canonical metadata" contract.
func writeMetadata(docDir string, m *Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return verrors.Internal("marshal metadata.json", err)
	}
	if err := os.MkdirAll(docDir, 0o750); err != nil {
		return verrors.IOError("mkdir doc dir", err)
	}
	if err := os.WriteFile(metadataPath(docDir), data, 0o640); err != nil {
		return verrors.IOError("write metadata.json", err)
	}
	return nil
}
