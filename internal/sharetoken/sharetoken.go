// Package sharetoken implements the Share Token Resolver (spec.md §4.9):
// 256-bit random URL-safe tokens that resolve, read-only, to a document or
// project without scanning every user's metadata on the hot path.
package sharetoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"sync"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// Scope names what kind of entity a token routes to (spec.md §4.9).
type Scope string

const (
	ScopeDocument Scope = "document"
	ScopeProject  Scope = "project"
)

// Entry is what a token resolves to.
type Entry struct {
	Token    string
	UserID   string
	Scope    Scope
	TargetID string
	Language string
}

// Index is the sparse reverse-lookup backing a Resolver. MemIndex is the
// single-process default; NatsIndex additionally fans the index out across
// replicas (spec.md §9's suggestion, grounded on
// internal/linkverify/nats_client.go's JetStream KV usage).
type Index interface {
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, token string) (*Entry, bool, error)
	Delete(ctx context.Context, token string) error
}

// GenerateToken returns a 256-bit random, URL-safe token (spec.md §4.9).
func GenerateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", verrors.Internal("generate share token", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Resolver creates and resolves share tokens against an Index.
type Resolver struct {
	index Index
}

// NewResolver constructs a Resolver over the given Index.
func NewResolver(index Index) *Resolver {
	return &Resolver{index: index}
}

// CreateShare mints a new token for (userID, scope, targetID) and registers
// it in the index. Callers are responsible for also persisting the token
// in the owning document/project's own Share metadata field, since that
// metadata record -- not the index -- is authoritative for revocation
// (spec.md §4.9: "token lifetime ends on revocation (metadata edit) or
// owner deletion").
func (r *Resolver) CreateShare(ctx context.Context, userID string, scope Scope, targetID, language string) (string, error) {
	token, err := GenerateToken()
	if err != nil {
		return "", err
	}
	entry := Entry{Token: token, UserID: userID, Scope: scope, TargetID: targetID, Language: language}
	if err := r.index.Put(ctx, entry); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve looks up a token. A (nil, false, nil) result means the token is
// unknown or has been revoked; callers must not treat this as an error.
func (r *Resolver) Resolve(ctx context.Context, token string) (*Entry, bool, error) {
	return r.index.Get(ctx, token)
}

// Revoke removes a token from the index. It must be called whenever the
// owning metadata's Share field is cleared, so the index never outlives
// the authoritative record.
func (r *Resolver) Revoke(ctx context.Context, token string) error {
	return r.index.Delete(ctx, token)
}

// MemIndex is an in-memory Index, sufficient for a single-process
// deployment or tests.
type MemIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemIndex constructs an empty in-memory index.
func NewMemIndex() *MemIndex {
	return &MemIndex{entries: make(map[string]Entry)}
}

// Put implements Index.
func (m *MemIndex) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Token] = e
	return nil
}

// Get implements Index.
func (m *MemIndex) Get(_ context.Context, token string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[token]
	if !ok {
		return nil, false, nil
	}
	return &e, true, nil
}

// Delete implements Index.
func (m *MemIndex) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, token)
	return nil
}
