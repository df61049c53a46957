package kvstore

import (
	"context"
	"testing"
)

type recordingStore struct {
	lastKey string
	value   string
	ok      bool
}

func (r *recordingStore) Get(ctx context.Context, key string) (string, bool, error) {
	r.lastKey = key
	return r.value, r.ok, nil
}

func TestTenantStorePrefixesKey(t *testing.T) {
	inner := &recordingStore{value: "v", ok: true}
	store := NewTenantStore(inner, "tenant-123")

	v, ok, err := store.Get(context.Background(), "host-config")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != "v" {
		t.Errorf("Get = (%q, %v), want (v, true)", v, ok)
	}
	if inner.lastKey != "tenant-123:host-config" {
		t.Errorf("inner key = %q, want tenant-123:host-config", inner.lastKey)
	}
}
