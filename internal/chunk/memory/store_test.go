package memory

import (
	"context"
	"testing"

	"nasstore/internal/chunk"
)

func TestStorePutGetDedup(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.Put(ctx, []byte("abc"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !a.Created {
		t.Fatal("expected created")
	}
	b, err := s.Put(ctx, []byte("abc"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if b.Created {
		t.Fatal("expected dedup on identical content")
	}

	got, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("unexpected content: %q", got)
	}
}

func TestStoreClosedRejectsPut(t *testing.T) {
	s := New()
	s.Close()
	if _, err := s.Put(context.Background(), []byte("x")); err != chunk.ErrClosed {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestStoreDeleteThenGet(t *testing.T) {
	s := New()
	ctx := context.Background()
	res, _ := s.Put(ctx, []byte("gone soon"))
	if err := s.Delete(ctx, res.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, res.ID); err != chunk.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewFactory(t *testing.T) {
	factory := NewFactory()
	store, err := factory(nil)
	if err != nil {
		t.Fatalf("factory: %v", err)
	}
	defer store.Close()
	if _, err := store.Put(context.Background(), []byte("x")); err != nil {
		t.Fatalf("Put via factory store: %v", err)
	}
}
