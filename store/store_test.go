package store

import (
	"context"
	"testing"
)

func TestStoreRoutesBySessionKey(t *testing.T) {
	t.Parallel()
	s := NewStore[int](NewMemoryCache[int](), "viewer:test")

	ctxA := WithSessionKey(context.Background(), "form-a")
	ctxB := WithSessionKey(context.Background(), "form-b")

	if err := s.Set(ctxA, 1); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctxB, 2); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok, err := s.Get(ctxA)
	if err != nil || !ok || got != 1 {
		t.Errorf("Get(form-a) = %d, %v, %v; want 1, true, nil", got, ok, err)
	}
	got, ok, err = s.Get(ctxB)
	if err != nil || !ok || got != 2 {
		t.Errorf("Get(form-b) = %d, %v, %v; want 2, true, nil", got, ok, err)
	}
}

func TestStoreDefaultKey(t *testing.T) {
	t.Parallel()
	s := NewStore[string](NewMemoryCache[string](), "viewer:test")
	ctx := context.Background()

	if _, ok, _ := s.Get(ctx); ok {
		t.Fatal("Get on empty store returned ok")
	}
	if err := s.Set(ctx, "hello"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := s.Get(ctx)
	if err != nil || !ok || got != "hello" {
		t.Errorf("Get = %q, %v, %v; want hello, true, nil", got, ok, err)
	}
	if err := s.Del(ctx); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if _, ok, _ := s.Get(ctx); ok {
		t.Error("Get after Del returned ok")
	}
}

func TestNamespacesDoNotCollide(t *testing.T) {
	t.Parallel()
	core := NewMemoryCache[int]()
	a := NewStore[int](core, "a")
	b := NewStore[int](core, "b")
	ctx := context.Background()

	if err := a.Set(ctx, 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := b.Get(ctx); ok {
		t.Error("namespace b sees namespace a's value")
	}
}
