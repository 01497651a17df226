package resource

import (
	"bytes"
	"testing"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want Kind
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0}, JPEG},
		{"png", append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, 0, 0), PNG},
		{"gif", []byte("GIF89a"), GIF},
		{"font", []byte("FONTxxxxxxxxxxxxxxxxxxxx"), Font},
		{"audio", []byte("AUDIxxxxxxxx"), Audio},
		{"video", []byte("VIDExxxxxxxx"), Video},
		{"unknown", []byte("whatever"), Unknown},
	}
	for _, c := range cases {
		if got := Classify(c.data); got != c.want {
			t.Errorf("%s: Classify() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestAudioWrapperRoundTrip(t *testing.T) {
	payload := []byte("some audio bytes")
	wrapped, err := AddWrapper(Audio, payload)
	if err != nil {
		t.Fatalf("AddWrapper() failed: %v", err)
	}
	if Classify(wrapped) != Audio {
		t.Fatalf("Classify() = %v, want Audio", Classify(wrapped))
	}
	got, err := StripWrapper(wrapped)
	if err != nil {
		t.Fatalf("StripWrapper() failed: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Errorf("StripWrapper() = %q, want %q", got, payload)
	}
}

func TestFontEncodeDecodeRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("glyph data "), 200)
	record, err := EncodeFont(data)
	if err != nil {
		t.Fatalf("EncodeFont() failed: %v", err)
	}
	if Classify(record) != Font {
		t.Fatalf("Classify() = %v, want Font", Classify(record))
	}
	got, err := DecodeFont(record)
	if err != nil {
		t.Fatalf("DecodeFont() failed: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Error("DecodeFont() did not round-trip EncodeFont()'s output")
	}
}

func TestFontRejectsSizeMismatch(t *testing.T) {
	record, err := EncodeFont([]byte("short"))
	if err != nil {
		t.Fatalf("EncodeFont() failed: %v", err)
	}
	// Corrupt the declared decoded size.
	record[7] = 0xFF
	if _, err := DecodeFont(record); err == nil {
		t.Fatal("DecodeFont() should reject a decoded-size mismatch")
	}
}

func TestIsBoundaryAndEOF(t *testing.T) {
	if !IsBoundary([]byte("BOUNDARY")) {
		t.Error("IsBoundary() = false for a real boundary record")
	}
	if !IsEOF(EOFMagic) {
		t.Error("IsEOF() = false for the EOF magic")
	}
	if IsBoundary([]byte("something else")) || IsEOF([]byte("something else")) {
		t.Error("IsBoundary()/IsEOF() matched a non-marker record")
	}
}
