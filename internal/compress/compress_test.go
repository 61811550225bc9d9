package compress

import (
	"bytes"
	"testing"

	"nasstore/internal/chunk"
)

func TestCodecRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 200)
	for _, id := range []chunk.Codec{chunk.CodecNone, chunk.CodecLZ4, chunk.CodecZstd} {
		t.Run(id.String(), func(t *testing.T) {
			codec, err := ByID(id)
			if err != nil {
				t.Fatalf("ByID: %v", err)
			}
			stored, err := codec.Encode(data)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := codec.Decode(stored)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Fatalf("round trip mismatch for codec %v", id)
			}
		})
	}
}

func TestByIDUnknown(t *testing.T) {
	if _, err := ByID(chunk.Codec(99)); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}

func TestZstdCompressesRepetitiveData(t *testing.T) {
	data := bytes.Repeat([]byte{0x41}, 1<<20)
	codec, _ := ByID(chunk.CodecZstd)
	stored, err := codec.Encode(data)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if len(stored) >= len(data) {
		t.Fatalf("expected compression to shrink highly repetitive data: %d >= %d", len(stored), len(data))
	}
}
