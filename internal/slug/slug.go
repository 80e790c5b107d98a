// Package slug derives filesystem-safe identifiers (doc_id, project_id)
// from human-facing names, including accented video filenames.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonAlnum  = regexp.MustCompile(`[^a-z0-9]+`)
	collapser = regexp.MustCompile(`-+`)
)

// stripDiacritics builds a transform.Transformer that normalizes to NFD,
// drops combining marks (accents), then normalizes back to NFC.
var stripDiacritics = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Make derives a filesystem-safe slug from an arbitrary human-facing name:
// diacritics are stripped, the result is lowercased, and any run of
// non-alphanumeric characters collapses to a single hyphen.
func Make(name string) string {
	normalized, _, err := transform.String(stripDiacritics, name)
	if err != nil {
		normalized = name
	}
	lower := strings.ToLower(normalized)
	dashed := nonAlnum.ReplaceAllString(lower, "-")
	dashed = collapser.ReplaceAllString(dashed, "-")
	dashed = strings.Trim(dashed, "-")
	if dashed == "" {
		dashed = "untitled"
	}
	return dashed
}
