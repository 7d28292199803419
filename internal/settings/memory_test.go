package settings

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.Get(ctx, ModelKey("gemini")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for absent key, got %v", err)
	}

	if err := s.Set(ctx, ModelKey("gemini"), "gemini-2.5-pro"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(ctx, ModelKey("gemini"))
	if err != nil || got != "gemini-2.5-pro" {
		t.Errorf("Get = (%q, %v), want (gemini-2.5-pro, nil)", got, err)
	}

	if err := s.Delete(ctx, ModelKey("gemini")); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(ctx, ModelKey("gemini")); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	// Deleting an absent key is fine.
	if err := s.Delete(ctx, "settings:never-set"); err != nil {
		t.Errorf("Delete of absent key = %v, want nil", err)
	}
}

func TestKeyNamespacing(t *testing.T) {
	if ModelKey("openai") == APIKeyKey("openai") {
		t.Error("model and api key namespaces must not collide")
	}
	if ModelKey("openai") == ModelKey("gemini") {
		t.Error("per-provider keys must not collide")
	}
}
