package security

import (
	"testing"

	actordomain "apflow/internal/actor/domain"
)

func testProfile() *actordomain.Profile {
	return &actordomain.Profile{
		ID:           "actor-1",
		Role:         actordomain.RoleManager,
		DepartmentID: "dept-1",
	}
}

func TestIssueAndValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	token, expiresAt, err := p.IssueAccess(testProfile())
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if token == "" || expiresAt.IsZero() {
		t.Fatal("empty token or expiry")
	}

	actorID, role, departmentID, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if actorID != "actor-1" || role != "manager" || departmentID != "dept-1" {
		t.Fatalf("claims = %q %q %q", actorID, role, departmentID)
	}
}

func TestIssueAndValidateRefresh(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	token, _, err := p.IssueRefresh("actor-1")
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	actorID, err := p.ValidateRefresh(token)
	if err != nil {
		t.Fatalf("ValidateRefresh: %v", err)
	}
	if actorID != "actor-1" {
		t.Fatalf("actorID = %q", actorID)
	}
}

func TestValidateAccessRejectsGarbage(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	if _, _, _, err := p.ValidateAccess("not.a.token"); err == nil {
		t.Fatal("expected error for malformed token")
	}
	// A refresh token is not an access token, but both parse; the claims
	// still validate since iss/aud match, so role comes back empty.
	refresh, _, err := p.IssueRefresh("actor-1")
	if err != nil {
		t.Fatal(err)
	}
	if _, role, _, err := p.ValidateAccess(refresh); err == nil && role != "" {
		t.Fatalf("refresh token validated as access with role %q", role)
	}
}

func TestValidateAccessWrongIssuer(t *testing.T) {
	issuerA, err := NewTestTokenProvider()
	if err != nil {
		t.Fatal(err)
	}
	token, _, err := issuerA.IssueAccess(testProfile())
	if err != nil {
		t.Fatal(err)
	}

	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatal(err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatal(err)
	}
	issuerB := NewTokenProvider(signer, pub, "other-issuer", "test-audience", issuerA.accessTTL, issuerA.refreshTTL)
	if _, _, _, err := issuerB.ValidateAccess(token); err == nil {
		t.Fatal("expected issuer mismatch to fail validation")
	}
}
