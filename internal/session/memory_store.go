package session

import (
	"context"
	"sync"
	"time"
)

type loginBucket struct {
	count   int
	resetAt time.Time
}

// MemoryStore is the single-instance fallback used when Redis is not
// configured. Revocations go to the optional Revoker so they survive restarts.
type MemoryStore struct {
	revoker Revoker
	now     func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time
	logins  map[string]*loginBucket
}

func NewMemoryStore(revoker Revoker) *MemoryStore {
	return &MemoryStore{
		revoker: revoker,
		now:     time.Now,
		revoked: map[string]time.Time{},
		logins:  map[string]*loginBucket{},
	}
}

func (s *MemoryStore) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	if s.revoker != nil {
		return s.revoker.RevokeToken(ctx, jti, expiresAt)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemoryStore) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	if s.revoker != nil {
		return s.revoker.IsTokenRevoked(ctx, jti)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[jti]
	if !ok {
		return false, nil
	}
	if s.now().After(exp) {
		delete(s.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) bucket(key string) *loginBucket {
	now := s.now()
	b, ok := s.logins[key]
	if !ok || now.After(b.resetAt) {
		b = &loginBucket{resetAt: now.Add(LoginWindow)}
		s.logins[key] = b
	}
	return b
}

func (s *MemoryStore) RecordLoginFailure(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.bucket(key)
	b.count++
	return b.count, nil
}

func (s *MemoryStore) LoginFailures(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bucket(key).count, nil
}

func (s *MemoryStore) ResetLoginFailures(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.logins, key)
	return nil
}
