package docstore

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/stubborncoder/vdocs/internal/verrors"
)

// generateToken produces a 256-bit URL-safe random share token.
func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", verrors.Internal("generate share token", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// CreateShare mints a new share token for (docID, language) and records it
// in the document's metadata, overwriting any previous token.
func (s *Store) CreateShare(docID, language string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	_, err = s.UpdateMetadata(docID, func(m *Metadata) {
		m.Share = &ShareMeta{Token: token, Language: language, CreatedAt: time.Now()}
	})
	if err != nil {
		return "", err
	}
	return token, nil
}

// ResolveShare looks up (docID, language) for a share token local to this
// user's document set by scanning its documents' metadata. The Share Token
// Resolver (internal/sharetoken) does not call it; it reads its own Index.
func (s *Store) ResolveShare(token string) (docID, language string, ok bool) {
	ids, err := s.ListDocs()
	if err != nil {
		return "", "", false
	}
	for _, id := range ids {
		m, err := s.GetMetadata(id)
		if err != nil || m == nil || m.Share == nil {
			continue
		}
		if m.Share.Token == token {
			return id, m.Share.Language, true
		}
	}
	return "", "", false
}

// RevokeShare clears the active share token for a document. Returns false
// if the document had no active share.
func (s *Store) RevokeShare(docID string) (bool, error) {
	m, err := s.GetMetadata(docID)
	if err != nil {
		return false, err
	}
	if m == nil || m.Share == nil {
		return false, nil
	}
	_, err = s.UpdateMetadata(docID, func(m *Metadata) {
		m.Share = nil
	})
	if err != nil {
		return false, err
	}
	return true, nil
}
