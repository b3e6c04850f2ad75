package config

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("ICAP_PORT", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_PASSWORD", "")
	t.Setenv("DB_NAME", "")

	d := Load()
	if d.Port != "1344" || d.DBHost != "mysql" || d.DBUser != "pciproxy" || d.DBName != "pci_proxy" {
		t.Fatalf("got %+v, want teacher's defaults", d)
	}
	if d.MaxInitialLineLength != 8192 || d.MaxICAPHeaderSize != 65536 {
		t.Fatalf("got %+v, want size-budget defaults", d)
	}
}

func TestLoadHonorsOverrides(t *testing.T) {
	t.Setenv("ICAP_PORT", "9999")
	t.Setenv("ICAP_MAX_CHUNK_SIZE", "4096")

	d := Load()
	if d.Port != "9999" {
		t.Fatalf("got port %q, want 9999", d.Port)
	}
	if d.MaxChunkSize != 4096 {
		t.Fatalf("got max chunk size %d, want 4096", d.MaxChunkSize)
	}
}

func TestVerifyAdminSecretWithNoHashConfigured(t *testing.T) {
	d := Daemon{}
	if !d.VerifyAdminSecret("anything") {
		t.Fatalf("expected startup to be unauthenticated when no hash is configured")
	}
}

func TestVerifyAdminSecretMatchesHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-secret"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d := Daemon{AdminSecretHash: string(hash)}

	if !d.VerifyAdminSecret("correct-secret") {
		t.Fatalf("expected the matching secret to verify")
	}
	if d.VerifyAdminSecret("wrong-secret") {
		t.Fatalf("expected a mismatched secret to fail")
	}
}
