package security

import (
	"testing"
	"time"
)

func TestTokenProvider_IssueAndValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	userID, orgID, role := "42", "18", "admin"

	access, jti, exp, err := p.IssueAccess(userID, orgID, role)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if access == "" || jti == "" {
		t.Fatal("access token or jti empty")
	}
	if exp.Before(time.Now()) {
		t.Fatal("expires at in the past")
	}

	uid, oid, r, err := p.ValidateAccess(access)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if uid != userID || oid != orgID || r != role {
		t.Errorf("ValidateAccess: got userID=%q orgID=%q role=%q", uid, oid, r)
	}
}

func TestTokenProvider_ValidateAccessInvalid(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	_, _, _, err = p.ValidateAccess("invalid-token")
	if err != ErrInvalidToken {
		t.Errorf("ValidateAccess invalid token: want ErrInvalidToken, got %v", err)
	}
}

func TestTokenProvider_WrongIssuerRejected(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	issuerA := NewTokenProvider(signer, pub, "issuer-a", "aud", time.Minute)
	issuerB := NewTokenProvider(signer, pub, "issuer-b", "aud", time.Minute)

	access, _, _, err := issuerA.IssueAccess("1", "1", "user")
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, _, _, err := issuerB.ValidateAccess(access); err != ErrInvalidToken {
		t.Errorf("cross-issuer token: want ErrInvalidToken, got %v", err)
	}
}
