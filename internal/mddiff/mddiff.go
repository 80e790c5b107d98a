// Package mddiff computes a structural summary (line/char counts and a
// changed-line count) between two markdown revisions, per spec.md §4.3's
// diff operation: "a structural summary only, not a full textual diff."
// Both revisions are parsed into block ASTs with goldmark so the line
// counts and changed-line/char counts reflect rendered text; CharsV1 and
// CharsV2 are the raw byte lengths of the two inputs.
package mddiff

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Summary is the structural diff result spec.md §4.3 defines.
type Summary struct {
	LinesV1      int
	LinesV2      int
	CharsV1      int
	CharsV2      int
	LinesChanged int
	CharsChanged int
}

// renderedText walks a goldmark AST collecting block-level text content,
// one output line per leaf text block, so headings/paragraphs/list items
// become comparable lines independent of the markdown markup used to
// express them.
func renderedText(source []byte) []string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var lines []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if n.Type() != ast.TypeBlock {
			return ast.WalkContinue, nil
		}
		if n.ChildCount() == 0 && n.Kind() != ast.KindText {
			return ast.WalkContinue, nil
		}
		var sb strings.Builder
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			if txt, ok := c.(*ast.Text); ok {
				sb.Write(txt.Segment.Value(source))
			}
		}
		if line := sb.String(); line != "" {
			lines = append(lines, line)
		}
		return ast.WalkContinue, nil
	})
	if len(lines) == 0 && len(strings.TrimSpace(string(source))) > 0 {
		// Fallback for content goldmark didn't surface as block text
		// (e.g. a bare line with no block-level wrapper matched above).
		for _, l := range strings.Split(string(source), "\n") {
			if strings.TrimSpace(l) != "" {
				lines = append(lines, l)
			}
		}
	}
	return lines
}

// Compare returns the structural summary between two markdown revisions.
func Compare(v1, v2 string) Summary {
	lines1 := renderedText([]byte(v1))
	lines2 := renderedText([]byte(v2))

	common := lcsLength(lines1, lines2)
	linesChanged := (len(lines1) - common) + (len(lines2) - common)

	charsChanged := 0
	matched1, matched2 := lcsMatchedSets(lines1, lines2)
	for i, l := range lines1 {
		if !matched1[i] {
			charsChanged += len(l)
		}
	}
	for i, l := range lines2 {
		if !matched2[i] {
			charsChanged += len(l)
		}
	}

	return Summary{
		LinesV1:      len(lines1),
		LinesV2:      len(lines2),
		CharsV1:      len(v1),
		CharsV2:      len(v2),
		LinesChanged: linesChanged,
		CharsChanged: charsChanged,
	}
}

// lcsLength returns the length of the longest common subsequence of a, b.
func lcsLength(a, b []string) int {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}
	return dp[n][m]
}

// lcsMatchedSets reports, for each line in a and b, whether it participates
// in the longest common subsequence (i.e. is "unchanged").
func lcsMatchedSets(a, b []string) (map[int]bool, map[int]bool) {
	n, m := len(a), len(b)
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				dp[i][j] = dp[i-1][j-1] + 1
			} else if dp[i-1][j] >= dp[i][j-1] {
				dp[i][j] = dp[i-1][j]
			} else {
				dp[i][j] = dp[i][j-1]
			}
		}
	}

	matchedA := make(map[int]bool)
	matchedB := make(map[int]bool)
	i, j := n, m
	for i > 0 && j > 0 {
		switch {
		case a[i-1] == b[j-1]:
			matchedA[i-1] = true
			matchedB[j-1] = true
			i--
			j--
		case dp[i-1][j] >= dp[i][j-1]:
			i--
		default:
			j--
		}
	}
	return matchedA, matchedB
}
