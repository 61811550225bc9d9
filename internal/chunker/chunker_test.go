package chunker

import (
	"bytes"
	"math/rand"
	"testing"
)

func randomData(t *testing.T, n int, seed int64) []byte {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]byte, n)
	if _, err := rng.Read(data); err != nil {
		t.Fatalf("rng.Read: %v", err)
	}
	return data
}

func TestSplitReassemblesExactly(t *testing.T) {
	data := randomData(t, 5*DefaultAvgSize, 1)
	chunks, err := Split(bytes.NewReader(data), DefaultConfig())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	var got []byte
	for _, c := range chunks {
		got = append(got, c.Data...)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("reassembled data does not match original")
	}
}

func TestSplitRespectsMinMax(t *testing.T) {
	data := randomData(t, 20*DefaultAvgSize, 2)
	chunks, err := Split(bytes.NewReader(data), DefaultConfig())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	for i, c := range chunks {
		if int64(len(c.Data)) > DefaultMaxSize {
			t.Fatalf("chunk %d exceeds max: %d > %d", i, len(c.Data), DefaultMaxSize)
		}
		// Every chunk except possibly the last must reach at least Min.
		if i != len(chunks)-1 && int64(len(c.Data)) < DefaultMinSize {
			t.Fatalf("non-final chunk %d below min: %d < %d", i, len(c.Data), DefaultMinSize)
		}
	}
}

func TestSplitDeterministic(t *testing.T) {
	data := randomData(t, 10*DefaultAvgSize, 3)
	a, err := Split(bytes.NewReader(data), DefaultConfig())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	b, err := Split(bytes.NewReader(data), DefaultConfig())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("expected same chunk count, got %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i].Data, b[i].Data) {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestInsertionShiftsOnlyLocalChunks(t *testing.T) {
	original := randomData(t, 20*DefaultAvgSize, 4)
	before, err := Split(bytes.NewReader(original), DefaultConfig())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	insertAt := 10 * DefaultAvgSize
	insertion := randomData(t, 37, 5)
	modified := append(append(append([]byte{}, original[:insertAt]...), insertion...), original[insertAt:]...)
	after, err := Split(bytes.NewReader(modified), DefaultConfig())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}

	beforeSet := make(map[string]struct{}, len(before))
	for _, c := range before {
		beforeSet[string(c.Data)] = struct{}{}
	}
	unchanged := 0
	for _, c := range after {
		if _, ok := beforeSet[string(c.Data)]; ok {
			unchanged++
		}
	}
	if unchanged == 0 {
		t.Fatal("expected at least some chunks to survive a local insertion unchanged")
	}
}

func TestEmptyInput(t *testing.T) {
	chunks, err := Split(bytes.NewReader(nil), DefaultConfig())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(chunks))
	}
}

func TestShortInputYieldsOneChunk(t *testing.T) {
	data := []byte("short")
	chunks, err := Split(bytes.NewReader(data), DefaultConfig())
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(chunks) != 1 || !bytes.Equal(chunks[0].Data, data) {
		t.Fatalf("expected single chunk with the input data, got %v", chunks)
	}
}

func TestInvalidConfig(t *testing.T) {
	cases := []Config{
		{Min: 10, Avg: 5, Max: 20, Poly: 7},
		{Min: 10, Avg: 20, Max: 15, Poly: 7},
		{Min: 10, Avg: 20, Max: 30, Poly: 0},
	}
	for _, cfg := range cases {
		if _, err := New(bytes.NewReader(nil), cfg); err == nil {
			t.Fatalf("expected error for invalid config %+v", cfg)
		}
	}
}
