package telemetry

import (
	"context"
	"testing"
)

type stubAdapter struct{}

func (stubAdapter) Method() string                   { return "GET" }
func (stubAdapter) Path() string                     { return "/widgets" }
func (stubAdapter) URL() string                      { return "https://shop.example.com/widgets?id=5" }
func (stubAdapter) Host() string                     { return "shop.example.com" }
func (stubAdapter) Header(name string) string        { return map[string]string{"Referer": "https://ref.example.com"}[name] }
func (stubAdapter) UserAgent() string                { return "curl/8.0" }
func (stubAdapter) IPAddress() string                { return "203.0.113.5" }
func (stubAdapter) QueryParams() map[string][]string { return nil }
func (stubAdapter) Body(context.Context) (any, error) { return nil, nil }

func TestBuildEventPayloadParsesURL(t *testing.T) {
	payload := BuildEventPayload(stubAdapter{}, 402, "req-1", "")

	if payload.Hostname != "shop.example.com" {
		t.Errorf("Hostname = %q", payload.Hostname)
	}
	if payload.Pathname != "/widgets" {
		t.Errorf("Pathname = %q", payload.Pathname)
	}
	if payload.Search != "id=5" {
		t.Errorf("Search = %q", payload.Search)
	}
	if payload.StatusCode != 402 {
		t.Errorf("StatusCode = %d", payload.StatusCode)
	}
	if payload.Referer != "https://ref.example.com" {
		t.Errorf("Referer = %q", payload.Referer)
	}
}

func TestNewDefaultsBaseURL(t *testing.T) {
	c := New("", "key")
	if c.baseURL != APIBaseURL {
		t.Errorf("baseURL = %q, want default", c.baseURL)
	}
}
