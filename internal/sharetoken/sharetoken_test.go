package sharetoken

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken_URLSafeAnd256Bit(t *testing.T) {
	tok, err := GenerateToken()
	require.NoError(t, err)
	assert.NotContains(t, tok, "+")
	assert.NotContains(t, tok, "/")
	assert.NotContains(t, tok, "=")
	// 32 raw bytes -> 43 base64url chars (no padding).
	assert.Len(t, tok, 43)
}

func TestResolver_CreateAndResolve(t *testing.T) {
	r := NewResolver(NewMemIndex())
	ctx := context.Background()

	token, err := r.CreateShare(ctx, "user-1", ScopeDocument, "doc-1", "en")
	require.NoError(t, err)

	entry, ok, err := r.Resolve(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-1", entry.UserID)
	assert.Equal(t, ScopeDocument, entry.Scope)
	assert.Equal(t, "doc-1", entry.TargetID)
}

func TestResolver_UnknownTokenIsNotAnError(t *testing.T) {
	r := NewResolver(NewMemIndex())
	entry, ok, err := r.Resolve(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, entry)
}

func TestResolver_RevokeRemovesToken(t *testing.T) {
	r := NewResolver(NewMemIndex())
	ctx := context.Background()
	token, err := r.CreateShare(ctx, "user-1", ScopeProject, "proj-1", "en")
	require.NoError(t, err)

	require.NoError(t, r.Revoke(ctx, token))

	_, ok, err := r.Resolve(ctx, token)
	require.NoError(t, err)
	assert.False(t, ok)
}
