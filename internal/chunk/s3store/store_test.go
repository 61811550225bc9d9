package s3store

import (
	"strings"
	"testing"

	"nasstore/internal/chunk"
)

func TestKeyUsesFanOutPath(t *testing.T) {
	s := New(nil, "bucket", "")
	id := chunk.SumChunkID([]byte("hello"))
	got := s.key(id)
	if got != id.RelPath() {
		t.Fatalf("expected bare fan-out path, got %q", got)
	}
}

func TestKeyWithPrefix(t *testing.T) {
	s := New(nil, "bucket", "cold")
	id := chunk.SumChunkID([]byte("hello"))
	got := s.key(id)
	if !strings.HasPrefix(got, "cold/") {
		t.Fatalf("expected prefix, got %q", got)
	}
	if !strings.HasSuffix(got, id.String()) {
		t.Fatalf("expected key to end with chunk id, got %q", got)
	}
}

func TestMetaCodecDefaultsToZstd(t *testing.T) {
	if got := metaCodec(nil); got != chunk.CodecZstd {
		t.Fatalf("expected default zstd, got %v", got)
	}
	if got := metaCodec(map[string]string{metaCodecKey: "1"}); got != chunk.CodecLZ4 {
		t.Fatalf("expected lz4, got %v", got)
	}
}

func TestMetaTierDefaultsToCold(t *testing.T) {
	if got := metaTier(nil); got != chunk.TierCold {
		t.Fatalf("expected default cold, got %v", got)
	}
	if got := metaTier(map[string]string{metaTierKey: "hot"}); got != chunk.TierHot {
		t.Fatalf("expected hot, got %v", got)
	}
}
