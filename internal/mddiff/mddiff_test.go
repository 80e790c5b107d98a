package mddiff

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompare_Identical(t *testing.T) {
	s := Compare("# Title\n\nSome body text.\n", "# Title\n\nSome body text.\n")
	assert.Equal(t, 0, s.LinesChanged)
	assert.Equal(t, 0, s.CharsChanged)
}

func TestCompare_OneLineChanged(t *testing.T) {
	a := "# Title\n\nLine one.\n\nLine two.\n"
	b := "# Title\n\nLine one.\n\nLine TWO edited.\n"
	s := Compare(a, b)
	assert.Positive(t, s.LinesChanged)
	assert.Positive(t, s.CharsChanged)
	assert.Equal(t, len(a), s.CharsV1)
	assert.Equal(t, len(b), s.CharsV2)
}

func TestCompare_Empty(t *testing.T) {
	s := Compare("", "# New content\n")
	assert.Equal(t, 0, s.LinesV1)
	assert.Positive(t, s.LinesV2)
}
