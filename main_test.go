package main

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/foldset/gateway-core/bootstrap"
)

func TestAuthorizeAPIKeyAcceptsValidBearerToken(t *testing.T) {
	v := bootstrap.NewAPIKeyValidator([]byte("secret"))
	token, err := v.Issue("tenant-1", "read", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest("GET", "https://example.com/api/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	if !authorizeAPIKey(v, req) {
		t.Error("expected a valid bearer token to authorize")
	}
}

func TestAuthorizeAPIKeyRejectsMissingHeader(t *testing.T) {
	v := bootstrap.NewAPIKeyValidator([]byte("secret"))
	req := httptest.NewRequest("GET", "https://example.com/api/x", nil)

	if authorizeAPIKey(v, req) {
		t.Error("expected a missing Authorization header to be rejected")
	}
}

func TestAuthorizeAPIKeyRejectsWrongSecret(t *testing.T) {
	issuer := bootstrap.NewAPIKeyValidator([]byte("secret-a"))
	token, err := issuer.Issue("tenant-1", "read", time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	req := httptest.NewRequest("GET", "https://example.com/api/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	verifier := bootstrap.NewAPIKeyValidator([]byte("secret-b"))
	if authorizeAPIKey(verifier, req) {
		t.Error("expected a token signed with a different secret to be rejected")
	}
}

func TestAuthorizeAPIKeyRejectsMalformedScheme(t *testing.T) {
	v := bootstrap.NewAPIKeyValidator([]byte("secret"))
	req := httptest.NewRequest("GET", "https://example.com/api/x", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")

	if authorizeAPIKey(v, req) {
		t.Error("expected a non-Bearer Authorization scheme to be rejected")
	}
}
