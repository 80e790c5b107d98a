package versioning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_ParseString(t *testing.T) {
	v, err := Parse("1.2.3")
	require.NoError(t, err)
	assert.Equal(t, Version{1, 2, 3}, v)
	assert.Equal(t, "1.2.3", v.String())
}

func TestVersion_ParseInvalid(t *testing.T) {
	_, err := Parse("1.2")
	assert.Error(t, err)
	_, err = Parse("a.b.c")
	assert.Error(t, err)
}

func TestVersion_CompareComponentWise(t *testing.T) {
	// Lexical comparison of "1.9.0" vs "1.10.0" would get this backwards.
	v1, _ := Parse("1.9.0")
	v2, _ := Parse("1.10.0")
	assert.True(t, v1.Less(v2))
	assert.Equal(t, 1, v2.Compare(v1))
	assert.Equal(t, 0, v1.Compare(v1))
}

func TestVersion_Next(t *testing.T) {
	v := Version{1, 0, 0}

	patch, err := v.Next(BumpPatch)
	require.NoError(t, err)
	assert.Equal(t, Version{1, 0, 1}, patch)

	minor, err := v.Next(BumpMinor)
	require.NoError(t, err)
	assert.Equal(t, Version{1, 1, 0}, minor)

	major, err := v.Next(BumpMajor)
	require.NoError(t, err)
	assert.Equal(t, Version{2, 0, 0}, major)

	_, err = v.Next("patch-kind-typo")
	assert.Error(t, err)
}
