// Package session tracks revoked access tokens and failed sign-in attempts.
package session

import (
	"context"
	"time"
)

const (
	MaxLoginFailures = 10
	LoginWindow      = 15 * time.Minute
)

// Store is implemented by RedisStore and MemoryStore.
type Store interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	// RecordLoginFailure counts a failed sign-in for key within LoginWindow
	// and returns the running total.
	RecordLoginFailure(ctx context.Context, key string) (int, error)
	LoginFailures(ctx context.Context, key string) (int, error)
	ResetLoginFailures(ctx context.Context, key string) error
}

// Revoker persists revoked token ids. The Postgres store implements it.
type Revoker interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}
