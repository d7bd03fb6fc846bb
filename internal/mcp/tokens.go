// ABOUTME: Bearer token store for the HTTP transport
// ABOUTME: Tokens come from config or are generated at startup and checked on every MCP request

package mcp

import (
	"sync"

	"github.com/google/uuid"
)

// TokenStore holds the tokens accepted on /mcp and a label for each.
type TokenStore struct {
	mu     sync.RWMutex
	tokens map[string]string // token -> label
}

// NewTokenStore creates a token store seeded with the configured tokens.
func NewTokenStore(configured []string) *TokenStore {
	s := &TokenStore{tokens: make(map[string]string)}
	for _, tok := range configured {
		s.tokens[tok] = "config"
	}
	return s
}

// CreateToken generates a new token with the given label.
func (s *TokenStore) CreateToken(label string) string {
	token := uuid.New().String()

	s.mu.Lock()
	s.tokens[token] = label
	s.mu.Unlock()

	return token
}

// Lookup returns the label for a token.
func (s *TokenStore) Lookup(token string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	label, ok := s.tokens[token]
	return label, ok
}

// InvalidateToken removes a token from the store.
func (s *TokenStore) InvalidateToken(token string) {
	s.mu.Lock()
	delete(s.tokens, token)
	s.mu.Unlock()
}

// TokenCount returns the number of active tokens.
func (s *TokenStore) TokenCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}
