package typedetect

import "testing"

func TestClassifyByExtension(t *testing.T) {
	d := New()
	if got := d.Classify("main.go", []byte("package main\n")); got != ClassSourceCode {
		t.Fatalf("expected ClassSourceCode, got %v", got)
	}
	if got := d.Classify("notes.md", []byte("# hi")); got != ClassDocument {
		t.Fatalf("expected ClassDocument, got %v", got)
	}
}

func TestClassifyByMagicNumber(t *testing.T) {
	d := New()
	png := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A}
	if got := d.Classify("photo.dat", png); got != ClassAlreadyCompressed {
		t.Fatalf("expected ClassAlreadyCompressed, got %v", got)
	}
}

func TestClassifyTextFallback(t *testing.T) {
	d := New()
	if got := d.Classify("unknownfile", []byte("plain ascii content here")); got != ClassText {
		t.Fatalf("expected ClassText, got %v", got)
	}
}

func TestClassifyBinaryFallback(t *testing.T) {
	d := New()
	data := []byte{0x00, 0x01, 0x02, 0x03, 0xFE, 0xFF}
	if got := d.Classify("unknownfile", data); got != ClassBinary {
		t.Fatalf("expected ClassBinary, got %v", got)
	}
}

func TestOverrideWins(t *testing.T) {
	d := New()
	d.AddOverride("**/*.go", ClassText)
	if got := d.Classify("pkg/main.go", []byte("package main")); got != ClassText {
		t.Fatalf("expected override to force ClassText, got %v", got)
	}
}

func TestShouldCompress(t *testing.T) {
	if !ClassText.ShouldCompress() {
		t.Fatal("expected text to be compressible")
	}
	if ClassAlreadyCompressed.ShouldCompress() {
		t.Fatal("expected already-compressed to skip compression")
	}
	if ClassImage.ShouldCompress() {
		t.Fatal("expected image to skip compression")
	}
}
