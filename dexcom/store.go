package dexcom

import (
	"context"
	"sync"
)

// TokenStore persists tokens per (user, provider) pair. Implementations must
// be safe for concurrent use. Get returns ErrTokenNotFound when no token is
// stored.
type TokenStore interface {
	Get(ctx context.Context, user, provider string) (*Token, error)
	Put(ctx context.Context, user, provider string, token *Token) error
	Delete(ctx context.Context, user, provider string) error
}

// MemoryTokenStore is an in-memory TokenStore. Suitable for tests and
// single-process deployments; production systems supply a store backed by
// their own persistence.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]*Token
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]*Token)}
}

func storeKey(user, provider string) string {
	return user + "\x00" + provider
}

// Get returns a copy of the stored token.
func (s *MemoryTokenStore) Get(_ context.Context, user, provider string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.tokens[storeKey(user, provider)]
	if !ok {
		return nil, ErrTokenNotFound
	}
	return token.clone(), nil
}

// Put stores a copy of token, replacing any previous token wholesale.
func (s *MemoryTokenStore) Put(_ context.Context, user, provider string, token *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[storeKey(user, provider)] = token.clone()
	return nil
}

// Delete removes the stored token. Deleting a missing token is not an error.
func (s *MemoryTokenStore) Delete(_ context.Context, user, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, storeKey(user, provider))
	return nil
}

var _ TokenStore = (*MemoryTokenStore)(nil)
