package store

import (
	"context"
	"testing"
	"time"

	"github.com/erazemk/ecoleta/internal/db"
)

func TestRevokeAndCheckToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	revoked, err := IsTokenRevoked(ctx, database, "jti-1")
	if err != nil {
		t.Fatalf("IsTokenRevoked: %v", err)
	}
	if revoked {
		t.Error("expected token not to be revoked")
	}

	if err := RevokeToken(ctx, database, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	// Revoking twice is fine.
	if err := RevokeToken(ctx, database, "jti-1", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("second RevokeToken: %v", err)
	}

	revoked, _ = IsTokenRevoked(ctx, database, "jti-1")
	if !revoked {
		t.Error("expected token to be revoked")
	}

	revoked, _ = IsTokenRevoked(ctx, database, "jti-2")
	if revoked {
		t.Error("expected different token not to be revoked")
	}
}

func TestPurgeRevokedTokens(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	now := time.Now()
	RevokeToken(ctx, database, "expired", now.Add(-time.Hour))
	RevokeToken(ctx, database, "live", now.Add(time.Hour))

	n, err := PurgeRevokedTokens(ctx, database, now)
	if err != nil {
		t.Fatalf("PurgeRevokedTokens: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 purged revocation, got %d", n)
	}

	if revoked, _ := IsTokenRevoked(ctx, database, "live"); !revoked {
		t.Error("expected unexpired revocation to remain")
	}
}
