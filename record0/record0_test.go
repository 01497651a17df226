package record0

import (
	"bytes"
	"testing"

	"github.com/htol/gomobi/varint"
)

func TestPreambleRoundTrip(t *testing.T) {
	p := Preamble{
		Compression:     NoCompression,
		TextLength:      1234,
		TextRecordCount: 3,
		TextRecordSize:  4096,
		Encryption:      NoEncryption,
	}
	var buf bytes.Buffer
	if err := p.Encode(&buf); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	got, err := DecodePreamble(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodePreamble() failed: %v", err)
	}
	if got != p {
		t.Errorf("got %+v, want %+v", got, p)
	}
}

func TestPreambleRejectsCompression(t *testing.T) {
	p := Preamble{Compression: 2, Encryption: NoEncryption}
	var buf bytes.Buffer
	p.Encode(&buf)
	if _, err := DecodePreamble(buf.Bytes()); err == nil {
		t.Fatal("DecodePreamble() should reject compression != 1")
	}
}

func TestPreambleRejectsEncryption(t *testing.T) {
	p := Preamble{Compression: NoCompression, Encryption: 2}
	var buf bytes.Buffer
	p.Encode(&buf)
	if _, err := DecodePreamble(buf.Bytes()); err == nil {
		t.Fatal("DecodePreamble() should reject encryption != 0")
	}
}

func TestHeaderEncodeSize(t *testing.T) {
	h := &Header{MobiType: TypeBook, TextEncoding: UTF8Encoding, Version: MOBI6Version}
	data := h.Encode()
	if len(data) != HeaderSize {
		t.Fatalf("Encode() produced %d bytes, want %d", len(data), HeaderSize)
	}
	if string(data[0:4]) != "MOBI" {
		t.Errorf("magic = %q, want MOBI", data[0:4])
	}
}

func TestHeaderRoundTripMOBI6(t *testing.T) {
	fcis := uint32(10)
	h := &Header{
		MobiType:       TypeBook,
		TextEncoding:   UTF8Encoding,
		UID:            42,
		Version:        MOBI6Version,
		FullNameOffset: 300,
		FullNameLength: 9,
		MinVersion:     MOBI6Version,
		EXTHFlags:      0x40,
		FDSTSectionCount: 0,
		FCISIndex:      &fcis,
		FCISCount:      1,
		FirstContentRec: 1,
		LastContentRec:  5,
	}
	data := h.Encode()
	got, err := DecodeHeader(data)
	if err != nil {
		t.Fatalf("DecodeHeader() failed: %v", err)
	}
	if got.MobiType != h.MobiType || got.UID != h.UID || got.Version != h.Version {
		t.Errorf("got %+v, want %+v", got, h)
	}
	if got.FullNameOffset != h.FullNameOffset || got.FullNameLength != h.FullNameLength {
		t.Errorf("full name offset/length mismatch: got %d/%d, want %d/%d",
			got.FullNameOffset, got.FullNameLength, h.FullNameOffset, h.FullNameLength)
	}
	if got.FCISIndex == nil || *got.FCISIndex != fcis {
		t.Errorf("FCISIndex = %v, want %d", got.FCISIndex, fcis)
	}
	if !got.HasEXTH() {
		t.Error("HasEXTH() = false, want true")
	}
	if got.FragIndex != nil || got.SkelIndex != nil {
		t.Errorf("MOBI6 header should never carry frag/skel indices, got %v/%v", got.FragIndex, got.SkelIndex)
	}
}

func TestHeaderRoundTripKF8(t *testing.T) {
	frag := uint32(7)
	skel := uint32(6)
	fdst := uint32(4)
	h := &Header{
		MobiType:         TypeBook,
		TextEncoding:     UTF8Encoding,
		Version:          KF8Version,
		FDSTIndex:        &fdst,
		FDSTSectionCount: 6,
		FragIndex:        &frag,
		SkelIndex:        &skel,
	}
	data := h.Encode()
	got, err := DecodeHeader(data)
	if err != nil {
		t.Fatalf("DecodeHeader() failed: %v", err)
	}
	if got.FDSTIndex == nil || *got.FDSTIndex != fdst {
		t.Errorf("FDSTIndex = %v, want %d", got.FDSTIndex, fdst)
	}
	if got.FragIndex == nil || *got.FragIndex != frag {
		t.Errorf("FragIndex = %v, want %d", got.FragIndex, frag)
	}
	if got.SkelIndex == nil || *got.SkelIndex != skel {
		t.Errorf("SkelIndex = %v, want %d", got.SkelIndex, skel)
	}
}

func TestHeaderUnsetIndexIsNil(t *testing.T) {
	h := &Header{MobiType: TypeBook, TextEncoding: UTF8Encoding, Version: MOBI6Version}
	data := h.Encode()
	got, err := DecodeHeader(data)
	if err != nil {
		t.Fatalf("DecodeHeader() failed: %v", err)
	}
	if got.ImageIndex != nil || got.CoverIndex != nil || got.ThumbnailIndex != nil {
		t.Errorf("unset indices should decode to nil, got image=%v cover=%v thumb=%v",
			got.ImageIndex, got.CoverIndex, got.ThumbnailIndex)
	}
}

func TestHeaderRejectsBadMagic(t *testing.T) {
	data := make([]byte, HeaderSize)
	copy(data, "XXXX")
	if _, err := DecodeHeader(data); err == nil {
		t.Fatal("DecodeHeader() should reject a bad magic")
	}
}

func TestHeaderRejectsNonUTF8Encoding(t *testing.T) {
	h := &Header{MobiType: TypeBook, TextEncoding: 1252, Version: MOBI6Version}
	data := h.Encode()
	if _, err := DecodeHeader(data); err == nil {
		t.Fatal("DecodeHeader() should reject a non-UTF-8 text_encoding")
	}
}

func TestExthRoundTrip(t *testing.T) {
	e := &Exth{}
	e.SetString(EXTHAuthor, "Sarah White")
	e.SetString(EXTHPublisher, "Asciidoctor")
	e.AddRepeatable(EXTHSubject, []byte("AsciiDoc"))
	e.AddRepeatable(EXTHSubject, []byte("Asciidoctor"))

	var buf bytes.Buffer
	n, err := e.Encode(&buf)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if n != buf.Len() {
		t.Errorf("Encode() returned %d, wrote %d bytes", n, buf.Len())
	}

	got, consumed, err := DecodeExth(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeExth() failed: %v", err)
	}
	if consumed != n {
		t.Errorf("consumed %d bytes, want %d", consumed, n)
	}
	author, ok := got.Get(EXTHAuthor)
	if !ok || string(author) != "Sarah White" {
		t.Errorf("author = %q, ok=%v", author, ok)
	}
	subjects := got.GetAll(EXTHSubject)
	if len(subjects) != 2 || string(subjects[0]) != "AsciiDoc" || string(subjects[1]) != "Asciidoctor" {
		t.Errorf("subjects = %v", subjects)
	}
}

func TestExthSetReplacesExisting(t *testing.T) {
	e := &Exth{}
	e.SetString(EXTHKF8Boundary, "placeholder")
	e.Set(EXTHKF8Boundary, []byte{0, 0, 0, 5})
	all := e.GetAll(EXTHKF8Boundary)
	if len(all) != 1 {
		t.Fatalf("Set() should replace, got %d records", len(all))
	}
}

func TestExthRemove(t *testing.T) {
	e := &Exth{}
	e.SetString(EXTHRights, "All rights reserved")
	e.Remove(EXTHRights)
	if _, ok := e.Get(EXTHRights); ok {
		t.Error("Remove() did not remove the record")
	}
}

func TestStripTrailingEntriesNoFlags(t *testing.T) {
	data := []byte("hello world")
	got := StripTrailingEntries(data, 0)
	if !bytes.Equal(got, data) {
		t.Errorf("StripTrailingEntries() with no flags = %q, want unchanged %q", got, data)
	}
}

func TestStripTrailingEntriesMultibyte(t *testing.T) {
	text := []byte("hello")
	// The low two bits of the last byte plus one is the steal count; here
	// the trailing byte 0x01 means steal 2 bytes.
	data := append(append([]byte{}, text...), 0x01)
	got := StripTrailingEntries(data, 1)
	if !bytes.Equal(got, text[:len(text)-1]) {
		t.Errorf("StripTrailingEntries() = %q, want %q", got, text[:len(text)-1])
	}
}

func TestStripTrailingEntriesBackwardVarint(t *testing.T) {
	text := []byte("some text body")
	entry := []byte("xx") // two-byte trailing entry
	// The size field's value covers the entry plus its own encoded bytes.
	size := varint.EncodeBackward(uint32(len(entry) + 1))
	data := append(append(append([]byte{}, text...), entry...), size...)

	got := StripTrailingEntries(data, 1<<1)
	if !bytes.Equal(got, text) {
		t.Errorf("StripTrailingEntries() = %q, want %q", got, text)
	}
}

func TestFdstSplitJoinRoundTrip(t *testing.T) {
	flows := [][]byte{[]byte("raw html"), []byte("body{}"), []byte("<svg/>")}
	text, fdst := Join(flows)

	got, err := fdst.Split(text)
	if err != nil {
		t.Fatalf("Split() failed: %v", err)
	}
	if len(got) != len(flows) {
		t.Fatalf("got %d flows, want %d", len(got), len(flows))
	}
	for i := range flows {
		if !bytes.Equal(got[i], flows[i]) {
			t.Errorf("flow %d = %q, want %q", i, got[i], flows[i])
		}
	}
}

func TestFdstEncodeDecode(t *testing.T) {
	_, fdst := Join([][]byte{[]byte("aaa"), []byte("bb")})
	data := fdst.Encode()
	got, err := DecodeFdst(data)
	if err != nil {
		t.Fatalf("DecodeFdst() failed: %v", err)
	}
	if len(got.Sections) != 2 || got.Sections[1].Start != 3 || got.Sections[1].End != 5 {
		t.Errorf("got sections %+v", got.Sections)
	}
}

func TestFdstSingleSectionIsWholeText(t *testing.T) {
	f := &Fdst{Sections: []FdstSection{{Start: 0, End: 5}}}
	flows, err := f.Split([]byte("hello"))
	if err != nil {
		t.Fatalf("Split() failed: %v", err)
	}
	if len(flows) != 1 || string(flows[0]) != "hello" {
		t.Errorf("got %v", flows)
	}
}
