package mobi

import (
	"bytes"
	"testing"
	"time"

	"github.com/htol/gomobi/record0"
	"github.com/htol/gomobi/resource"
)

func TestWriteReadMOBI6RoundTrip(t *testing.T) {
	m := &Mobi{
		MOBI6: &MobiData{
			Version: 6,
			Flow:    [][]byte{[]byte("<html><body>hello world</body></html>")},
		},
		Title:          "A Test Book",
		Author:         "Sarah White",
		Publisher:      "Asciidoctor",
		Description:    "a short test description",
		Subjects:       []string{"fiction", "testing"},
		PublishingDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Copyright:      "All rights reserved",
	}

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if got.MOBI6 == nil {
		t.Fatal("Read() did not produce a MOBI6 unit")
	}
	if !bytes.Equal(got.MOBI6.Flow[0], m.MOBI6.Flow[0]) {
		t.Errorf("MOBI6.Flow[0] = %q, want %q", got.MOBI6.Flow[0], m.MOBI6.Flow[0])
	}
	if got.Title != m.Title {
		t.Errorf("Title = %q, want %q", got.Title, m.Title)
	}
	if got.Author != m.Author || got.Publisher != m.Publisher || got.Description != m.Description {
		t.Errorf("metadata mismatch: %+v", got)
	}
	if len(got.Subjects) != 2 || got.Subjects[0] != "fiction" || got.Subjects[1] != "testing" {
		t.Errorf("Subjects = %v", got.Subjects)
	}
	if !got.PublishingDate.Equal(m.PublishingDate) {
		t.Errorf("PublishingDate = %v, want %v", got.PublishingDate, m.PublishingDate)
	}
	if got.Copyright != m.Copyright {
		t.Errorf("Copyright = %q, want %q", got.Copyright, m.Copyright)
	}
}

func TestWriteReadWithResources(t *testing.T) {
	jpeg := append([]byte{0xFF, 0xD8, 0xFF, 0xE0}, bytes.Repeat([]byte{0}, 16)...)
	fontData := bytes.Repeat([]byte("glyph"), 100)
	audio := []byte("raw audio samples")

	m := &Mobi{
		MOBI6: &MobiData{
			Version: 6,
			Flow:    [][]byte{[]byte("text body")},
		},
		Title: "Resource Book",
		Resources: []MobiResource{
			{Kind: resource.JPEG, Data: jpeg},
			{Kind: resource.Font, Data: fontData},
			{Kind: resource.Audio, Data: audio},
		},
	}

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if len(got.Resources) != 3 {
		t.Fatalf("got %d resources, want 3", len(got.Resources))
	}
	if got.Resources[0].Kind != resource.JPEG || !bytes.Equal(got.Resources[0].Data, jpeg) {
		t.Errorf("resource 0 = %+v", got.Resources[0])
	}
	if got.Resources[1].Kind != resource.Font || !bytes.Equal(got.Resources[1].Data, fontData) {
		t.Errorf("resource 1 did not round-trip the font payload")
	}
	if got.Resources[2].Kind != resource.Audio || !bytes.Equal(got.Resources[2].Data, audio) {
		t.Errorf("resource 2 did not round-trip the audio payload")
	}
}

func TestWriteReadHybridRoundTrip(t *testing.T) {
	m := &Mobi{
		MOBI6: &MobiData{
			Version: 6,
			Flow:    [][]byte{[]byte("legacy fallback text")},
		},
		KF8: &MobiData{
			Version: 8,
			Parts:   [][]byte{[]byte("<p>part one</p>"), []byte("<p>part two</p>")},
		},
		Title:  "Hybrid Book",
		Author: "Someone",
	}

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if got.MOBI6 == nil || got.KF8 == nil {
		t.Fatal("Read() should produce both units for a hybrid file")
	}
	if !bytes.Equal(got.MOBI6.Flow[0], m.MOBI6.Flow[0]) {
		t.Errorf("MOBI6.Flow[0] = %q, want %q", got.MOBI6.Flow[0], m.MOBI6.Flow[0])
	}
	if len(got.KF8.Parts) != 2 {
		t.Fatalf("got %d KF8 parts, want 2", len(got.KF8.Parts))
	}
	for i, want := range m.KF8.Parts {
		if !bytes.Equal(got.KF8.Parts[i], want) {
			t.Errorf("KF8 part %d = %q, want %q", i, got.KF8.Parts[i], want)
		}
	}
	if got.Title != m.Title || got.Author != m.Author {
		t.Errorf("hybrid metadata mismatch: title=%q author=%q", got.Title, got.Author)
	}
}

func TestWriteReadDefaultMobi(t *testing.T) {
	m := &Mobi{}
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("Write() of a default-constructed Mobi failed: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if got.MOBI6 == nil {
		t.Fatal("a default-constructed Mobi should write and read back a MOBI6 unit")
	}
	if got.KF8 != nil {
		t.Errorf("a default-constructed Mobi should have no KF8 unit, got %+v", got.KF8)
	}
	if got.Title != "" || got.Author != "" || got.Publisher != "" || got.Description != "" {
		t.Errorf("default-constructed Mobi should round-trip with empty metadata, got %+v", got)
	}
	if len(got.Subjects) != 0 {
		t.Errorf("Subjects = %v, want empty", got.Subjects)
	}
	if len(got.Resources) != 0 {
		t.Errorf("Resources = %v, want empty", got.Resources)
	}
}

func TestWriteReadPreservesUnknownEXTH(t *testing.T) {
	m := &Mobi{
		MOBI6: &MobiData{
			Version: 6,
			Flow:    [][]byte{[]byte("body")},
		},
		Title:       "Unknown Tag Book",
		unknownEXTH: []record0.ExthRecord{{Tag: 150, Data: []byte("some-other-tool")}},
	}

	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		t.Fatalf("Write() failed: %v", err)
	}
	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read() failed: %v", err)
	}
	if len(got.unknownEXTH) != 1 || got.unknownEXTH[0].Tag != 150 || string(got.unknownEXTH[0].Data) != "some-other-tool" {
		t.Errorf("unknown EXTH record did not round-trip, got %+v", got.unknownEXTH)
	}
}
