package chunkindex

import (
	"testing"

	"nasstore/internal/chunk"
)

func mkID(seed byte) chunk.ChunkID {
	return chunk.SumChunkID([]byte{seed, seed, seed})
}

func TestFilterNoFalseNegatives(t *testing.T) {
	f := NewFilter(1000, 0.01)
	ids := make([]chunk.ChunkID, 500)
	for i := range ids {
		ids[i] = mkID(byte(i))
		f.Add(ids[i])
	}
	for _, id := range ids {
		if !f.MayContain(id) {
			t.Fatalf("false negative for %v", id)
		}
	}
}

func TestFilterLowFalsePositiveRate(t *testing.T) {
	f := NewFilter(1000, 0.01)
	for i := 0; i < 1000; i++ {
		f.Add(mkID(byte(i)))
	}
	falsePositives := 0
	trials := 2000
	for i := 0; i < trials; i++ {
		probe := chunk.SumChunkID([]byte{byte(i), byte(i >> 8), 0xaa, 0xbb})
		if f.MayContain(probe) {
			falsePositives++
		}
	}
	rate := float64(falsePositives) / float64(trials)
	if rate > 0.1 {
		t.Fatalf("false positive rate too high: %.4f", rate)
	}
}

func TestFilterEncodeDecodeRoundTrip(t *testing.T) {
	f := NewFilter(100, 0.01)
	ids := []chunk.ChunkID{mkID(1), mkID(2), mkID(3)}
	for _, id := range ids {
		f.Add(id)
	}
	blob := f.Encode()
	decoded, err := DecodeFilter(blob)
	if err != nil {
		t.Fatalf("DecodeFilter: %v", err)
	}
	for _, id := range ids {
		if !decoded.MayContain(id) {
			t.Fatalf("decoded filter lost membership for %v", id)
		}
	}
}
