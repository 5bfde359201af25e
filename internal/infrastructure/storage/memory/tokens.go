package memory

import (
	"context"
	"time"

	"retailcore/internal/core/apperror"
	"retailcore/internal/core/id"
	"retailcore/internal/domain/auth"
)

// Compile-time interface check.
var _ auth.TokenRepository = (*Store)(nil)

// SaveRefreshToken saves a refresh token.
func (s *Store) SaveRefreshToken(_ context.Context, token *auth.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[token.ID] = *token
	s.tokensByHash[token.TokenHash] = token.ID
	return nil
}

// GetRefreshToken retrieves refresh token by hash.
func (s *Store) GetRefreshToken(_ context.Context, tokenHash string) (*auth.RefreshToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokenID, ok := s.tokensByHash[tokenHash]
	if !ok {
		return nil, apperror.NewNotFound("refresh token", "")
	}
	token := s.tokens[tokenID]
	return &token, nil
}

// RevokeRefreshToken revokes a refresh token.
func (s *Store) RevokeRefreshToken(_ context.Context, tokenID id.ID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[tokenID]
	if !ok {
		return apperror.NewNotFound("refresh token", tokenID.String())
	}
	if token.RevokedAt == nil {
		now := time.Now()
		token.RevokedAt = &now
		token.RevokedReason = reason
		s.tokens[tokenID] = token
	}
	return nil
}

// RevokeAllUserTokens revokes all tokens for a user.
func (s *Store) RevokeAllUserTokens(_ context.Context, userID id.ID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for tid, token := range s.tokens {
		if token.UserID == userID && token.RevokedAt == nil {
			token.RevokedAt = &now
			token.RevokedReason = reason
			s.tokens[tid] = token
		}
	}
	return nil
}
