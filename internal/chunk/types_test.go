package chunk

import "testing"

func TestSumChunkIDDeterministic(t *testing.T) {
	data := []byte("hello world")
	a := SumChunkID(data)
	b := SumChunkID(data)
	if a != b {
		t.Fatal("expected identical digests for identical content")
	}
}

func TestSumChunkIDDistinct(t *testing.T) {
	a := SumChunkID([]byte("hello"))
	b := SumChunkID([]byte("world"))
	if a == b {
		t.Fatal("expected distinct digests for distinct content")
	}
}

func TestChunkIDStringRoundTrip(t *testing.T) {
	id := SumChunkID([]byte("round trip me"))
	s := id.String()
	parsed, err := ParseChunkID(s)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != id {
		t.Fatalf("expected %s, got %s", id, parsed)
	}
}

func TestChunkIDStringLength(t *testing.T) {
	id := SumChunkID([]byte("x"))
	s := id.String()
	if len(s) != 64 {
		t.Fatalf("expected 64-char hex string, got %d: %q", len(s), s)
	}
}

func TestParseChunkIDInvalid(t *testing.T) {
	cases := []string{
		"",
		"short",
		"zz" + string(make([]byte, 62)), // 64 chars but not hex
	}
	for _, input := range cases {
		_, err := ParseChunkID(input)
		if err == nil {
			t.Fatalf("expected error for %q, got nil", input)
		}
	}
}

func TestChunkIDZero(t *testing.T) {
	var zero ChunkID
	if !zero.IsZero() {
		t.Fatal("expected zero value to report IsZero")
	}
	nonZero := SumChunkID([]byte("not zero"))
	if nonZero.IsZero() {
		t.Fatal("did not expect non-zero digest to report IsZero")
	}
}

func TestChunkIDRelPath(t *testing.T) {
	id := SumChunkID([]byte("fan out"))
	s := id.String()
	want := s[0:2] + "/" + s[2:4] + "/" + s
	if got := id.RelPath(); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestCodecString(t *testing.T) {
	cases := map[Codec]string{CodecNone: "none", CodecLZ4: "lz4", CodecZstd: "zstd"}
	for codec, want := range cases {
		if got := codec.String(); got != want {
			t.Fatalf("codec %d: expected %q, got %q", codec, want, got)
		}
	}
}

func TestTierString(t *testing.T) {
	if TierHot.String() != "hot" || TierCold.String() != "cold" {
		t.Fatal("unexpected tier string")
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StatePending:   "pending",
		StateDurable:   "durable",
		StateCommitted: "committed",
		StateGCPending: "gc_pending",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("state %d: expected %q, got %q", state, want, got)
		}
	}
}
