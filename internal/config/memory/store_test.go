package memory

import (
	"context"
	"testing"

	"nasstore/internal/config"
)

func TestLoadEmptyReturnsNil(t *testing.T) {
	s := NewStore()
	cfg, err := s.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg != nil {
		t.Fatalf("expected nil config, got %+v", cfg)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	want := &config.Config{Dedup: config.DedupConfig{Enabled: true}}
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.Dedup.Enabled {
		t.Fatal("expected Dedup.Enabled to round trip")
	}
}

func TestSaveReturnsIndependentCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	cfg := &config.Config{Dedup: config.DedupConfig{Enabled: true}}
	s.Save(ctx, cfg)
	cfg.Dedup.Enabled = false

	got, _ := s.Load(ctx)
	if !got.Dedup.Enabled {
		t.Fatal("expected stored config to be unaffected by later mutation of the original")
	}
}
