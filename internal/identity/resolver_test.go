package identity

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolverRegisterThenResolve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity_map.json")
	r, err := NewResolver(path)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	if err := r.RegisterIdentity("temp-1", "uuid-alice", "owner"); err != nil {
		t.Fatalf("RegisterIdentity() error = %v", err)
	}

	uuid, role := r.Resolve("temp-1", 0.9)
	if uuid != "uuid-alice" || role != "owner" {
		t.Fatalf("Resolve() = (%q, %q), want (uuid-alice, owner)", uuid, role)
	}
}

func TestResolverDegradesLowConfidenceToGuest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity_map.json")
	r, err := NewResolver(path)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if err := r.RegisterIdentity("temp-2", "uuid-bob", "household"); err != nil {
		t.Fatalf("RegisterIdentity() error = %v", err)
	}
	// Reopen from disk so the role cached by RegisterIdentity doesn't answer
	// ahead of the alias path.
	r, err = NewResolver(path)
	if err != nil {
		t.Fatalf("NewResolver() reopen error = %v", err)
	}

	// Below min_voice_confidence (0.55) but above degrade_confidence (0.35):
	// alias still resolves, but role degrades to guest.
	uuid, role := r.Resolve("temp-2", 0.4)
	if uuid != "uuid-bob" || role != "guest" {
		t.Fatalf("Resolve() = (%q, %q), want (uuid-bob, guest)", uuid, role)
	}
}

func TestResolverUnknownAliasReturnsGuest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity_map.json")
	r, err := NewResolver(path)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	uuid, role := r.Resolve("never-seen", 0.95)
	if uuid != "" || role != "guest" {
		t.Fatalf("Resolve() = (%q, %q), want (\"\", guest)", uuid, role)
	}
}

func TestResolverRejectsInvertedConfidenceBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity_map.json")
	_, err := NewResolver(path, WithMinVoiceConfidence(0.3), WithDegradeConfidence(0.6))
	if err == nil {
		t.Fatal("NewResolver() error = nil, want failure for degrade > min_voice_confidence")
	}
}

func TestResolverBacksUpCorruptMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity_map.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("seed corrupt file: %v", err)
	}

	if _, err := NewResolver(path); err != nil {
		t.Fatalf("NewResolver() error = %v, want graceful recovery from corrupt file", err)
	}
	if _, err := os.Stat(path + ".bak"); err != nil {
		t.Fatalf("expected backup file at %s.bak: %v", path, err)
	}
}

func TestForgetIdentityRemovesAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity_map.json")
	r, err := NewResolver(path)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}
	if err := r.RegisterIdentity("temp-3", "uuid-carol", "household"); err != nil {
		t.Fatalf("RegisterIdentity() error = %v", err)
	}

	removed, err := r.ForgetIdentity("uuid-carol")
	if err != nil {
		t.Fatalf("ForgetIdentity() error = %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	uuid, role := r.Resolve("temp-3", 0.95)
	if uuid != "" || role != "guest" {
		t.Fatalf("Resolve() after forget = (%q, %q), want (\"\", guest)", uuid, role)
	}
}

func TestResolverEnrollNewIdentityMintsUUIDAndResolves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identity_map.json")
	r, err := NewResolver(path)
	if err != nil {
		t.Fatalf("NewResolver() error = %v", err)
	}

	stableUUID, err := r.EnrollNewIdentity("temp-4", "household")
	if err != nil {
		t.Fatalf("EnrollNewIdentity() error = %v", err)
	}
	if stableUUID == "" {
		t.Fatal("EnrollNewIdentity() returned empty UUID")
	}

	resolvedUUID, role := r.Resolve("temp-4", 0.9)
	if resolvedUUID != stableUUID || role != "household" {
		t.Fatalf("Resolve() = (%q, %q), want (%q, household)", resolvedUUID, role, stableUUID)
	}
}
