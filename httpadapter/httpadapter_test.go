package httpadapter

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdapterReadsBodyOnce(t *testing.T) {
	req := httptest.NewRequest("POST", "https://example.com/widgets?id=5", strings.NewReader(`{"a":1}`))
	req.Header.Set("User-Agent", "test-agent")

	a, err := New(req)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.Method() != "POST" {
		t.Errorf("Method = %q, want POST", a.Method())
	}
	if a.Path() != "/widgets" {
		t.Errorf("Path = %q, want /widgets", a.Path())
	}
	if a.UserAgent() != "test-agent" {
		t.Errorf("UserAgent = %q, want test-agent", a.UserAgent())
	}

	body, err := a.Body(req.Context())
	if err != nil {
		t.Fatalf("Body: %v", err)
	}
	raw, ok := body.([]byte)
	if !ok {
		t.Fatalf("Body returned %T, want []byte", body)
	}
	if string(raw) != `{"a":1}` {
		t.Errorf("Body = %q", raw)
	}

	// Reading again returns the same buffered bytes.
	body2, err := a.Body(req.Context())
	if err != nil {
		t.Fatalf("Body (second read): %v", err)
	}
	if string(body2.([]byte)) != `{"a":1}` {
		t.Errorf("second Body read = %q", body2)
	}
}

func TestAdapterIPAddressPrefersForwardedFor(t *testing.T) {
	req := httptest.NewRequest("GET", "https://example.com/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")

	a, err := New(req)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.IPAddress() != "203.0.113.5" {
		t.Errorf("IPAddress = %q, want 203.0.113.5", a.IPAddress())
	}
}

func TestAdapterIPAddressFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "https://example.com/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	a, err := New(req)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if a.IPAddress() != "10.0.0.1:1234" {
		t.Errorf("IPAddress = %q, want 10.0.0.1:1234", a.IPAddress())
	}
}
