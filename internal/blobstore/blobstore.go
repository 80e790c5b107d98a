// Package blobstore implements the content-addressable screenshot store
// described in spec.md §4.1: a per-document ".blob_store/" directory that
// deduplicates binary assets by content hash, with reference-set queries
// for garbage collection.
package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// HashLen is the number of hex characters of the SHA-256 digest retained
// as the blob identity (64 bits of collision resistance, per spec.md §4.1).
const HashLen = 16

// imageExtensions is the allowlist of file extensions snapshot() considers
// an image. The original source's allowlist is broader than spec.md's bare
// three (.png/.jpg/.jpeg); carried forward since a real screenshot tool may
// emit any of these and it costs nothing to accept them.
var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

// ManifestEntry describes one blob referenced from a version snapshot.
type ManifestEntry struct {
	Hash       string    `json:"hash"`
	SizeBytes  int64     `json:"size_bytes"`
	CapturedAt time.Time `json:"captured_at"`
}

// Manifest maps a working-directory filename to the blob that holds its content.
type Manifest map[string]ManifestEntry

// Store is a per-document content-addressable blob store rooted at basePath
// (conventionally "<doc_dir>/.blob_store").
type Store struct {
	basePath string
}

// Open creates (if absent) and returns the blob store rooted at basePath.
func Open(basePath string) (*Store, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, verrors.IOError("mkdir blob store", err)
	}
	return &Store{basePath: basePath}, nil
}

// blobPath returns the on-disk path for a given hash+ext pair.
func (s *Store) blobPath(hash, ext string) string {
	return filepath.Join(s.basePath, hash+ext)
}

// findExisting returns the full path of an already-stored blob with the
// given hash, regardless of extension, or "" if none exists.
func (s *Store) findExisting(hash string) string {
	matches, err := filepath.Glob(filepath.Join(s.basePath, hash+".*"))
	if err != nil || len(matches) == 0 {
		return ""
	}
	return matches[0]
}

// Store computes the SHA-256 of the file at path and copies its bytes into
// the store, preserving the original extension, unless a blob with that
// hash prefix already exists (in which case it is left untouched). Returns
// the truncated hex hash.
func (s *Store) Store(path string) (string, error) {
	src, err := os.Open(path) // #nosec G304 -- path is caller-controlled local file
	if err != nil {
		return "", verrors.IOError("open source image", err)
	}
	defer src.Close()

	h := sha256.New()
	if _, err := io.Copy(h, src); err != nil {
		return "", verrors.IOError("hash source image", err)
	}
	hash := hex.EncodeToString(h.Sum(nil))[:HashLen]
	ext := strings.ToLower(filepath.Ext(path))

	if existing := s.findExisting(hash); existing != "" {
		return hash, nil
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return "", verrors.IOError("rewind source image", err)
	}
	dst, err := os.OpenFile(s.blobPath(hash, ext), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", verrors.IOError("create blob", err)
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return "", verrors.IOError("write blob", err)
	}
	return hash, nil
}

// Exists reports whether a blob with the given hash prefix is present.
func (s *Store) Exists(hash string) bool {
	return s.findExisting(hash) != ""
}

// Snapshot stores every image file found directly under sourceDir and
// returns a manifest mapping filename to blob metadata. Non-image files
// are skipped silently.
func (s *Store) Snapshot(sourceDir string) (Manifest, error) {
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		if os.IsNotExist(err) {
			return Manifest{}, nil
		}
		return nil, verrors.IOError("read screenshots dir", err)
	}

	manifest := make(Manifest)
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExtensions[ext] {
			continue
		}
		full := filepath.Join(sourceDir, entry.Name())
		hash, err := s.Store(full)
		if err != nil {
			return nil, err
		}
		info, err := entry.Info()
		var size int64
		if err == nil {
			size = info.Size()
		}
		manifest[entry.Name()] = ManifestEntry{Hash: hash, SizeBytes: size, CapturedAt: now}
	}
	return manifest, nil
}

// Restore materializes the files named in manifest into destDir, reading
// their bytes from the blob store. Missing blobs are skipped (logged by the
// caller, not fatal here) rather than failing the whole restore. Returns the
// list of filenames actually restored.
func (s *Store) Restore(manifest Manifest, destDir string, overwrite bool) ([]string, error) {
	if err := os.MkdirAll(destDir, 0o750); err != nil {
		return nil, verrors.IOError("mkdir restore dest", err)
	}

	names := make([]string, 0, len(manifest))
	for name := range manifest {
		names = append(names, name)
	}
	sort.Strings(names)

	var restored []string
	for _, name := range names {
		entry := manifest[name]
		src := s.findExisting(entry.Hash)
		if src == "" {
			continue
		}
		dst := filepath.Join(destDir, name)
		if !overwrite {
			if _, err := os.Stat(dst); err == nil {
				continue
			}
		}
		if err := copyFile(src, dst); err != nil {
			return restored, err
		}
		restored = append(restored, name)
	}
	return restored, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- src is derived from an internal blob path
	if err != nil {
		return verrors.IOError("open blob", err)
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return verrors.IOError("create restore target", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return verrors.IOError("copy blob bytes", err)
	}
	return nil
}

// LiveHashes returns the set of hashes referenced by any of the given
// version manifests, plus the hashes of every image currently present in
// workingDir (hashed fresh, not looked up — the working copy may contain
// images never snapshotted).
func (s *Store) LiveHashes(manifests []Manifest, workingDir string) (map[string]bool, error) {
	live := make(map[string]bool)
	for _, m := range manifests {
		for _, entry := range m {
			live[entry.Hash] = true
		}
	}

	entries, err := os.ReadDir(workingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return live, nil
		}
		return nil, verrors.IOError("read working screenshots dir", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !imageExtensions[ext] {
			continue
		}
		full := filepath.Join(workingDir, entry.Name())
		f, err := os.Open(full) // #nosec G304 -- full is derived from a directory we just listed
		if err != nil {
			continue
		}
		h := sha256.New()
		_, copyErr := io.Copy(h, f)
		f.Close()
		if copyErr != nil {
			continue
		}
		live[hex.EncodeToString(h.Sum(nil))[:HashLen]] = true
	}
	return live, nil
}

// GC removes blobs not present in liveHashes. When dryRun is true, no files
// are deleted and the function only reports what would be removed.
func (s *Store) GC(liveHashes map[string]bool, dryRun bool) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, verrors.IOError("read blob store dir", err)
	}

	var removed []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := filepath.Ext(name)
		hash := strings.TrimSuffix(name, ext)
		if liveHashes[hash] {
			continue
		}
		removed = append(removed, hash)
		if dryRun {
			continue
		}
		if err := os.Remove(filepath.Join(s.basePath, name)); err != nil && !os.IsNotExist(err) {
			return removed, verrors.IOError("remove blob", err)
		}
	}
	sort.Strings(removed)
	return removed, nil
}
