package azurestore

import (
	"strings"
	"testing"

	"nasstore/internal/chunk"
)

func TestBlobNameUsesFanOutPath(t *testing.T) {
	s := New(nil, "")
	id := chunk.SumChunkID([]byte("hello"))
	got := s.blobName(id)
	if got != id.RelPath() {
		t.Fatalf("expected bare fan-out path, got %q", got)
	}
}

func TestBlobNameWithPrefix(t *testing.T) {
	s := New(nil, "cold")
	id := chunk.SumChunkID([]byte("hello"))
	got := s.blobName(id)
	if !strings.HasPrefix(got, "cold/") {
		t.Fatalf("expected prefix, got %q", got)
	}
}

func TestMetaCodecDefaultsToZstd(t *testing.T) {
	codecStr := "1"
	if got := metaCodec(nil); got != chunk.CodecZstd {
		t.Fatalf("expected default zstd, got %v", got)
	}
	if got := metaCodec(map[string]*string{metaCodecKey: &codecStr}); got != chunk.CodecLZ4 {
		t.Fatalf("expected lz4, got %v", got)
	}
}

func TestMetaTierDefaultsToCold(t *testing.T) {
	hot := "hot"
	if got := metaTier(nil); got != chunk.TierCold {
		t.Fatalf("expected default cold, got %v", got)
	}
	if got := metaTier(map[string]*string{metaTierKey: &hot}); got != chunk.TierHot {
		t.Fatalf("expected hot, got %v", got)
	}
}
