package chunkindex

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/cespare/xxhash/v2"

	"nasstore/internal/chunk"
	"nasstore/internal/format"
)

// Filter is a hand-rolled Bloom filter used as a negative oracle in front of
// the authoritative chunk map: a MayContain() == false answer means the
// chunk is definitely absent and the caller can skip the bbolt lookup
// entirely. A true answer still requires the authoritative check, since
// Bloom filters admit false positives by construction.
//
// Bit positions are derived by double hashing (Kirsch-Mitzenmacher): two
// independent xxhash digests of the chunk ID are combined as
// h1 + i*h2 for i in [0, k) instead of computing k independent hashes.
type Filter struct {
	mu   sync.RWMutex // guards bits for Add/MayContain
	bits []uint64
	m    uint64 // number of bits
	k    int    // number of hash functions
}

// NewFilter sizes a filter for n expected elements at false-positive rate p.
func NewFilter(n int, p float64) *Filter {
	if n <= 0 {
		n = 1
	}
	if p <= 0 || p >= 1 {
		p = 0.01
	}
	m := optimalBits(n, p)
	k := optimalHashes(n, m)
	words := (m + 63) / 64
	return &Filter{bits: make([]uint64, words), m: m, k: k}
}

func optimalBits(n int, p float64) uint64 {
	m := -1.0 * float64(n) * math.Log(p) / (math.Ln2 * math.Ln2)
	return uint64(math.Ceil(m))
}

func optimalHashes(n int, m uint64) int {
	k := int(math.Round(float64(m) / float64(n) * math.Ln2))
	if k < 1 {
		k = 1
	}
	return k
}

func (f *Filter) positions(id chunk.ChunkID) (uint64, uint64) {
	h1 := xxhash.Sum64(id[:])
	h2 := xxhash.Sum64(append(id[:], 0xff))
	return h1, h2
}

func (f *Filter) setBit(pos uint64) {
	idx := pos / 64
	bit := pos % 64
	f.bits[idx] |= 1 << bit
}

func (f *Filter) getBit(pos uint64) bool {
	idx := pos / 64
	bit := pos % 64
	return f.bits[idx]&(1<<bit) != 0
}

// Add inserts id into the filter.
func (f *Filter) Add(id chunk.ChunkID) {
	h1, h2 := f.positions(id)
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < f.k; i++ {
		pos := (h1 + uint64(i)*h2) % f.m
		f.setBit(pos)
	}
}

// MayContain reports whether id might be present. false is authoritative;
// true requires confirmation against the chunk map.
func (f *Filter) MayContain(id chunk.ChunkID) bool {
	h1, h2 := f.positions(id)
	f.mu.RLock()
	defer f.mu.RUnlock()
	for i := 0; i < f.k; i++ {
		pos := (h1 + uint64(i)*h2) % f.m
		if !f.getBit(pos) {
			return false
		}
	}
	return true
}

const bloomFileVersion = 1

// Encode serializes the filter to a header-framed binary blob suitable for
// writing to the store's bloom snapshot file.
func (f *Filter) Encode() []byte {
	h := format.Header{Type: format.TypeBloomFilter, Version: bloomFileVersion}
	hdr := h.Encode()
	buf := make([]byte, format.HeaderSize+8+8+len(f.bits)*8)
	copy(buf, hdr[:])
	off := format.HeaderSize
	binary.LittleEndian.PutUint64(buf[off:], f.m)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], uint64(f.k))
	off += 8
	for _, w := range f.bits {
		binary.LittleEndian.PutUint64(buf[off:], w)
		off += 8
	}
	return buf
}

// DecodeFilter parses a blob produced by Encode.
func DecodeFilter(buf []byte) (*Filter, error) {
	if len(buf) < format.HeaderSize+16 {
		return nil, format.ErrHeaderTooSmall
	}
	if _, err := format.DecodeAndValidate(buf[:format.HeaderSize], format.TypeBloomFilter, bloomFileVersion); err != nil {
		return nil, err
	}
	off := format.HeaderSize
	m := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	k := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	words := (len(buf) - off) / 8
	bits := make([]uint64, words)
	for i := range bits {
		bits[i] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	return &Filter{bits: bits, m: m, k: int(k)}, nil
}
