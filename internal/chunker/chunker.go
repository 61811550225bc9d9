// Package chunker implements content-defined chunking (CDC): splitting a
// byte stream into variable-length chunks whose boundaries are determined
// by the content itself (via a rolling polynomial hash over a fixed-size
// window), not by fixed offsets. Because boundaries depend only on local
// content, inserting or deleting bytes in one place shifts at most the
// chunks immediately around the edit -- everything else in the stream still
// cuts at the same boundaries, which is what makes deduplication across
// versions of a file effective.
//
// The chunker is grounded on the classic rolling-hash CDC shape (a
// precomputed byte-contribution table removes the oldest window byte in
// O(1) while the new byte is folded in), configured with the specific
// min/avg/max band and boundary rule this store uses.
package chunker

import (
	"bufio"
	"errors"
	"io"
)

const (
	// DefaultMinSize is the minimum chunk size in bytes.
	DefaultMinSize = 4 * 1024
	// DefaultAvgSize is the target average chunk size in bytes.
	DefaultAvgSize = 8 * 1024
	// DefaultMaxSize is the maximum chunk size in bytes; a chunk is always
	// cut here even if no content-defined boundary was found first.
	DefaultMaxSize = 16 * 1024

	// WindowSize is the number of trailing bytes the rolling hash is
	// computed over.
	WindowSize = 48

	// DefaultPoly is the multiplicative base used to roll the hash forward.
	// It need not be prime; it only needs to mix bytes well enough that the
	// low bits of the rolling hash behave like a uniform boundary oracle.
	DefaultPoly uint64 = 0x3b9aca07
)

var (
	ErrInvalidBand = errors.New("chunker: min must be < avg < max")
	ErrZeroPoly    = errors.New("chunker: polynomial must be non-zero")
)

// Config parameterizes a Chunker's min/avg/max band and rolling polynomial.
type Config struct {
	Min  int64
	Avg  int64
	Max  int64
	Poly uint64
}

// DefaultConfig returns the store's default chunking band.
func DefaultConfig() Config {
	return Config{Min: DefaultMinSize, Avg: DefaultAvgSize, Max: DefaultMaxSize, Poly: DefaultPoly}
}

func (c Config) validate() error {
	if c.Min <= 0 || c.Avg <= 0 || c.Max <= 0 || !(c.Min < c.Avg && c.Avg < c.Max) {
		return ErrInvalidBand
	}
	if c.Poly == 0 {
		return ErrZeroPoly
	}
	return nil
}

// table holds the precomputed per-byte contribution used to remove the
// byte falling out of the trailing window in O(1) as the window slides.
type table struct {
	out [256]uint64
}

func newTable(poly uint64) *table {
	t := &table{}
	// base^(WindowSize-1) mod 2^64, the weight of the byte about to leave
	// the window.
	var weight uint64 = 1
	for i := 0; i < WindowSize-1; i++ {
		weight *= poly
	}
	for b := 0; b < 256; b++ {
		t.out[b] = uint64(b) * weight
	}
	return t
}

// Chunk describes one content-defined chunk of the input stream.
type Chunk struct {
	Data   []byte
	Offset int64
}

// Chunker splits a stream into content-defined chunks per its Config.
type Chunker struct {
	cfg   Config
	table *table
	r     *bufio.Reader

	window [WindowSize]byte
	wpos   int
	hash   uint64

	offset int64
}

// New returns a Chunker reading from r using cfg. A zero Config uses
// DefaultConfig.
func New(r io.Reader, cfg Config) (*Chunker, error) {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Chunker{
		cfg:   cfg,
		table: newTable(cfg.Poly),
		r:     bufio.NewReaderSize(r, 256*1024),
	}, nil
}

// Next reads and returns the next chunk, or io.EOF once the stream is
// exhausted. The final chunk may be shorter than Min if the stream ends
// before a boundary is found.
func (c *Chunker) Next() (Chunk, error) {
	start := c.offset
	buf := make([]byte, 0, c.cfg.Avg)

	for {
		b, err := c.r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if len(buf) == 0 {
					return Chunk{}, io.EOF
				}
				return Chunk{Data: buf, Offset: start}, nil
			}
			return Chunk{}, err
		}
		buf = append(buf, b)
		c.offset++

		out := c.window[c.wpos]
		c.window[c.wpos] = b
		c.wpos = (c.wpos + 1) % WindowSize

		c.hash -= c.table.out[out]
		c.hash = c.hash*c.cfg.Poly + uint64(b)

		chunkLen := int64(len(buf))
		if chunkLen < c.cfg.Min {
			continue
		}
		if chunkLen >= c.cfg.Max {
			return Chunk{Data: buf, Offset: start}, nil
		}
		if int64(c.hash)%c.cfg.Avg == 0 {
			return Chunk{Data: buf, Offset: start}, nil
		}
	}
}

// Split reads all of r and returns every chunk in order. Intended for
// smaller inputs and tests; large files should use Next directly to avoid
// buffering the whole chunk list.
func Split(r io.Reader, cfg Config) ([]Chunk, error) {
	c, err := New(r, cfg)
	if err != nil {
		return nil, err
	}
	var chunks []Chunk
	for {
		chunk, err := c.Next()
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
}
