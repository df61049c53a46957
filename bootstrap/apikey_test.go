package bootstrap

import (
	"testing"
	"time"
)

func TestAPIKeyIssueAndValidateRoundTrip(t *testing.T) {
	v := NewAPIKeyValidator([]byte("test-secret"))

	token, err := v.Issue("tenant-42", "read", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := v.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if claims.Subject != "tenant-42" {
		t.Errorf("Subject = %q, want tenant-42", claims.Subject)
	}
	if claims.Scope != "read" {
		t.Errorf("Scope = %q, want read", claims.Scope)
	}
}

func TestAPIKeyValidateRejectsExpired(t *testing.T) {
	v := NewAPIKeyValidator([]byte("test-secret"))

	token, err := v.Issue("tenant-42", "read", -time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := v.Validate(token); err == nil {
		t.Error("expected expired token to fail validation")
	}
}

func TestAPIKeyValidateRejectsWrongSecret(t *testing.T) {
	v := NewAPIKeyValidator([]byte("secret-a"))
	token, err := v.Issue("tenant-42", "read", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	other := NewAPIKeyValidator([]byte("secret-b"))
	if _, err := other.Validate(token); err == nil {
		t.Error("expected validation to fail with mismatched secret")
	}
}
