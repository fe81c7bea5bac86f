package progression_test

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/p-n-ai/skillforge/internal/curriculum"
	"github.com/p-n-ai/skillforge/internal/progression"
)

func TestNewCredentialID(t *testing.T) {
	pattern := regexp.MustCompile(`^SF-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}-[0-9A-F]{4}$`)
	seen := make(map[string]bool)
	for range 100 {
		id := progression.NewCredentialID()
		if !pattern.MatchString(id) {
			t.Fatalf("NewCredentialID() = %q, does not match %s", id, pattern)
		}
		if seen[id] {
			t.Fatalf("duplicate credential ID %q", id)
		}
		seen[id] = true
	}
}

func TestCourseName(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"go concurrency", "Go Concurrency"},
		{"  machine   learning ", "Machine Learning"},
		{"KUBERNETES", "Kubernetes"},
	}
	for _, tt := range tests {
		if got := progression.CourseName(tt.topic); got != tt.want {
			t.Errorf("CourseName(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	c := progression.Credential{
		ID:              "SF-AAAA-BBBB-CCCC-DDDD",
		HolderName:      "Aisyah Rahman",
		CourseName:      "Go Concurrency",
		Difficulty:      curriculum.Intermediate,
		IssueDate:       time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC),
		IssuerSignature: progression.DefaultIssuer,
	}
	key := []byte("secret")

	fp := progression.Fingerprint(c, key)
	if len(fp) != 64 {
		t.Fatalf("fingerprint length = %d, want 64 hex chars", len(fp))
	}
	if fp != progression.Fingerprint(c, key) {
		t.Error("fingerprint should be deterministic")
	}
	if !progression.VerifyCredential(c, fp, key) {
		t.Error("VerifyCredential() should accept its own fingerprint")
	}
	if !progression.VerifyCredential(c, strings.ToUpper(fp), key) {
		t.Error("VerifyCredential() should ignore hex case")
	}

	tampered := c
	tampered.HolderName = "Someone Else"
	if progression.VerifyCredential(tampered, fp, key) {
		t.Error("VerifyCredential() should reject a changed holder name")
	}
	if progression.VerifyCredential(c, fp, []byte("other")) {
		t.Error("VerifyCredential() should reject a different key")
	}
	if progression.VerifyCredential(c, "", key) {
		t.Error("VerifyCredential() should reject an empty fingerprint")
	}
}
