// Package typedetect classifies file content from its leading magic bytes
// and file name. The delta engine and the chunk stores do not consult it:
// every save is chunked the same way and each store applies its own codec.
package typedetect

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Class is a coarse content classification.
type Class byte

const (
	ClassBinary Class = iota
	ClassText
	ClassSourceCode
	ClassDocument
	ClassImage
	ClassAlreadyCompressed
)

func (c Class) String() string {
	switch c {
	case ClassText:
		return "text"
	case ClassSourceCode:
		return "source_code"
	case ClassDocument:
		return "document"
	case ClassImage:
		return "image"
	case ClassAlreadyCompressed:
		return "already_compressed"
	default:
		return "binary"
	}
}

// ShouldCompress reports whether chunks of this class are worth passing
// through a general-purpose compressor at all.
func (c Class) ShouldCompress() bool {
	return c != ClassAlreadyCompressed && c != ClassImage
}

var sourceExtensions = map[string]struct{}{
	".go": {}, ".py": {}, ".js": {}, ".ts": {}, ".java": {}, ".c": {}, ".h": {},
	".cpp": {}, ".hpp": {}, ".rs": {}, ".rb": {}, ".sh": {}, ".sql": {}, ".yaml": {},
	".yml": {}, ".json": {}, ".toml": {}, ".html": {}, ".css": {},
}

var documentExtensions = map[string]struct{}{
	".md": {}, ".txt": {}, ".rst": {}, ".csv": {}, ".doc": {}, ".docx": {}, ".pdf": {},
}

var imageExtensions = map[string]struct{}{
	".png": {}, ".bmp": {}, ".tif": {}, ".tiff": {}, ".svg": {},
}

// already-compressed magic numbers: these containers rarely benefit from a
// second pass of general-purpose compression.
var magicSignatures = []struct {
	prefix []byte
	class  Class
}{
	{[]byte{0x89, 'P', 'N', 'G'}, ClassAlreadyCompressed},
	{[]byte{0xFF, 0xD8, 0xFF}, ClassAlreadyCompressed}, // JPEG
	{[]byte("GIF8"), ClassAlreadyCompressed},
	{[]byte("PK\x03\x04"), ClassAlreadyCompressed}, // zip-family (docx, jar, apk...)
	{[]byte{0x1F, 0x8B}, ClassAlreadyCompressed},   // gzip
	{[]byte("\x28\xB5\x2F\xFD"), ClassAlreadyCompressed}, // zstd frame
	{[]byte("%PDF"), ClassDocument},
}

// Detector classifies files by extension, content magic numbers, and
// operator-supplied glob overrides (checked first, so an operator can force
// a classification for paths the heuristics get wrong).
type Detector struct {
	overrides []override
}

type override struct {
	pattern string
	class   Class
}

// New returns a Detector with no overrides.
func New() *Detector {
	return &Detector{}
}

// AddOverride registers a doublestar glob pattern that forces files whose
// path matches it to classify as class, checked in registration order
// before any heuristic.
func (d *Detector) AddOverride(pattern string, class Class) {
	d.overrides = append(d.overrides, override{pattern: pattern, class: class})
}

// Classify determines the Class of a file given its path and a sample of
// its leading bytes (a few hundred bytes is enough for magic-number
// sniffing; the full content is not required).
func (d *Detector) Classify(path string, sample []byte) Class {
	for _, o := range d.overrides {
		if ok, _ := doublestar.Match(o.pattern, path); ok {
			return o.class
		}
	}
	for _, sig := range magicSignatures {
		if bytes.HasPrefix(sample, sig.prefix) {
			return sig.class
		}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if _, ok := sourceExtensions[ext]; ok {
		return ClassSourceCode
	}
	if _, ok := documentExtensions[ext]; ok {
		return ClassDocument
	}
	if _, ok := imageExtensions[ext]; ok {
		return ClassImage
	}

	if isLikelyText(sample) {
		return ClassText
	}
	return ClassBinary
}

// isLikelyText applies a simple heuristic: a sample with no NUL bytes and a
// low proportion of non-printable bytes is treated as text.
func isLikelyText(sample []byte) bool {
	if len(sample) == 0 {
		return true
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return false
	}
	nonPrintable := 0
	for _, b := range sample {
		if b < 0x09 || (b > 0x0D && b < 0x20) {
			nonPrintable++
		}
	}
	return float64(nonPrintable)/float64(len(sample)) < 0.05
}
