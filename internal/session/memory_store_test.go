package session

import (
	"context"
	"testing"
	"time"
)

type recordingRevoker struct {
	revoked map[string]time.Time
}

func (r *recordingRevoker) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	r.revoked[jti] = expiresAt
	return nil
}

func (r *recordingRevoker) IsTokenRevoked(ctx context.Context, jti string) (bool, error) {
	_, ok := r.revoked[jti]
	return ok, nil
}

func TestMemoryStoreRevocationInProcess(t *testing.T) {
	store := NewMemoryStore(nil)
	clock := time.Now()
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "jti-1", clock.Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if revoked, _ := store.IsTokenRevoked(ctx, "jti-1"); !revoked {
		t.Fatal("expected revoked token")
	}

	clock = clock.Add(2 * time.Hour)
	if revoked, _ := store.IsTokenRevoked(ctx, "jti-1"); revoked {
		t.Fatal("revocation should lapse after expiry")
	}
}

func TestMemoryStoreDelegatesRevocation(t *testing.T) {
	revoker := &recordingRevoker{revoked: map[string]time.Time{}}
	store := NewMemoryStore(revoker)
	ctx := context.Background()

	if err := store.RevokeToken(ctx, "jti-2", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken failed: %v", err)
	}
	if _, ok := revoker.revoked["jti-2"]; !ok {
		t.Fatal("expected revocation to reach the revoker")
	}
	if revoked, _ := store.IsTokenRevoked(ctx, "jti-2"); !revoked {
		t.Fatal("expected revoked token")
	}
}

func TestMemoryStoreLoginWindow(t *testing.T) {
	store := NewMemoryStore(nil)
	clock := time.Now()
	store.now = func() time.Time { return clock }
	ctx := context.Background()

	for i := 0; i < MaxLoginFailures; i++ {
		if _, err := store.RecordLoginFailure(ctx, "k"); err != nil {
			t.Fatalf("RecordLoginFailure failed: %v", err)
		}
	}
	if n, _ := store.LoginFailures(ctx, "k"); n != MaxLoginFailures {
		t.Fatalf("expected %d failures, got %d", MaxLoginFailures, n)
	}

	clock = clock.Add(LoginWindow + time.Second)
	if n, _ := store.LoginFailures(ctx, "k"); n != 0 {
		t.Fatalf("expected window reset, got %d", n)
	}

	_, _ = store.RecordLoginFailure(ctx, "k")
	if err := store.ResetLoginFailures(ctx, "k"); err != nil {
		t.Fatalf("ResetLoginFailures failed: %v", err)
	}
	if n, _ := store.LoginFailures(ctx, "k"); n != 0 {
		t.Fatalf("expected reset, got %d", n)
	}
}
