package auth

import (
	"testing"
	"time"
)

func TestAuthorizationState_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	s := AuthorizationState{Token: "t", CreatedAt: now.Add(-DefaultStateTTL)}
	if s.Expired(now, DefaultStateTTL) {
		t.Fatalf("state exactly at ttl should still be valid")
	}
	if !s.Expired(now.Add(time.Nanosecond), DefaultStateTTL) {
		t.Fatalf("state past ttl should be expired")
	}
}

func TestSession_Expired(t *testing.T) {
	now := time.Now()
	if (Session{ExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatalf("did not expect expired")
	}
	if !(Session{ExpiresAt: now}).Expired(now) {
		t.Fatalf("session at expires_at should be expired")
	}
}

func TestIdentity_HasExternalID(t *testing.T) {
	empty := ""
	ext := "google-123"
	if (Identity{}).HasExternalID() {
		t.Fatalf("nil external id should not count")
	}
	if (Identity{ExternalID: &empty}).HasExternalID() {
		t.Fatalf("empty external id should not count")
	}
	if !(Identity{ExternalID: &ext}).HasExternalID() {
		t.Fatalf("expected linked identity")
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  A@X.com "); got != "a@x.com" {
		t.Fatalf("NormalizeEmail() = %q", got)
	}
}
