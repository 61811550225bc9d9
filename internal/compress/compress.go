// Package compress implements the chunk body codecs. Codec selection is
// carried on the chunk itself (internal/chunk.Codec) so a store can hold a
// mix of compressed and uncompressed chunks side by side.
package compress

import (
	"bytes"
	"fmt"
	"io"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go/pkg"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"nasstore/internal/chunk"
)

// SeekableFrameSize is a frame size for seekable zstd containers.
// NewSeekableWriter does not apply it, and nothing else references it.
const SeekableFrameSize = 256 * 1024

// Codec compresses and decompresses chunk bodies for one chunk.Codec value.
type Codec interface {
	Encode(plaintext []byte) ([]byte, error)
	Decode(stored []byte) ([]byte, error)
}

// ByID returns the Codec implementation for id.
func ByID(id chunk.Codec) (Codec, error) {
	switch id {
	case chunk.CodecNone:
		return noneCodec{}, nil
	case chunk.CodecLZ4:
		return lz4Codec{}, nil
	case chunk.CodecZstd:
		return zstdCodec{}, nil
	default:
		return nil, fmt.Errorf("compress: unknown codec %v", id)
	}
}

type noneCodec struct{}

func (noneCodec) Encode(p []byte) ([]byte, error) { return p, nil }
func (noneCodec) Decode(s []byte) ([]byte, error) { return s, nil }

type lz4Codec struct{}

func (lz4Codec) Encode(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(p); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decode(s []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(s))
	return io.ReadAll(r)
}

type zstdCodec struct{}

func (zstdCodec) Encode(p []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()
	return enc.EncodeAll(p, nil), nil
}

func (zstdCodec) Decode(s []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()
	return dec.DecodeAll(s, nil)
}

// NewSeekableWriter wraps w in a seekable-zstd frame writer, so a reader can
// later decompress only the frames that overlap a byte range. No chunk store
// or tier path uses it; cold chunks are stored with the plain zstd codec.
func NewSeekableWriter(w io.Writer) (io.WriteCloser, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	sw, err := seekable.NewWriter(w, enc)
	if err != nil {
		return nil, err
	}
	return sw, nil
}

// OpenSeekableReader wraps r (a ReaderAt over a fully written seekable-zstd
// container) for random access reads.
func OpenSeekableReader(r io.ReaderAt) (io.ReadSeeker, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	sr, err := seekable.NewReader(r, dec)
	if err != nil {
		return nil, err
	}
	return sr, nil
}
