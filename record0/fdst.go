package record0

import (
	"encoding/binary"
	"fmt"

	"github.com/htol/gomobi/mobierr"
)

const fdstHeaderSize = 12

// Fdst is the decoded Flow Demarcation Segment Table: a list of byte
// ranges within the concatenated text that carve it into named flows
// (the raw HTML, then CSS/SVG/etc. auxiliary streams).
type Fdst struct {
	DataOffset uint32
	Sections   []FdstSection
}

// FdstSection is one (start, end) byte range within the concatenated text.
type FdstSection struct {
	Start uint32
	End   uint32
}

// DecodeFdst parses an FDST record, which must begin with the "FDST" magic.
func DecodeFdst(data []byte) (*Fdst, error) {
	if len(data) < fdstHeaderSize || string(data[0:4]) != "FDST" {
		return nil, mobierr.New(mobierr.UnsupportedMagic, "expected \"FDST\" magic")
	}
	f := &Fdst{
		DataOffset: binary.BigEndian.Uint32(data[4:8]),
	}
	count := binary.BigEndian.Uint32(data[8:12])
	need := fdstHeaderSize + int(count)*8
	if need > len(data) {
		return nil, mobierr.New(mobierr.MalformedContainer, "FDST section table extends past record")
	}
	f.Sections = make([]FdstSection, count)
	for i := range f.Sections {
		off := fdstHeaderSize + i*8
		f.Sections[i] = FdstSection{
			Start: binary.BigEndian.Uint32(data[off:]),
			End:   binary.BigEndian.Uint32(data[off+4:]),
		}
	}
	return f, nil
}

// Encode serializes the FDST record.
func (f *Fdst) Encode() []byte {
	buf := make([]byte, fdstHeaderSize+len(f.Sections)*8)
	copy(buf[0:4], "FDST")
	binary.BigEndian.PutUint32(buf[4:8], f.DataOffset)
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(f.Sections)))
	for i, s := range f.Sections {
		off := fdstHeaderSize + i*8
		binary.BigEndian.PutUint32(buf[off:], s.Start)
		binary.BigEndian.PutUint32(buf[off+4:], s.End)
	}
	return buf
}

// Split divides text into flows per this table's sections. Sections must be
// monotonically non-decreasing and cover [0, len(text)] contiguously.
func (f *Fdst) Split(text []byte) ([][]byte, error) {
	if len(f.Sections) <= 1 {
		if len(text) == 0 {
			return [][]byte{}, nil
		}
		return [][]byte{text}, nil
	}
	flows := make([][]byte, len(f.Sections))
	prevEnd := uint32(0)
	for i, s := range f.Sections {
		if s.Start < prevEnd || s.End < s.Start {
			return nil, mobierr.New(mobierr.MalformedContainer, fmt.Sprintf("FDST section %d is out of order", i))
		}
		if s.End > uint32(len(text)) {
			return nil, mobierr.New(mobierr.MalformedContainer, fmt.Sprintf("FDST section %d extends past text", i))
		}
		flows[i] = text[s.Start:s.End]
		prevEnd = s.End
	}
	if prevEnd != uint32(len(text)) {
		return nil, mobierr.New(mobierr.MalformedContainer, "FDST sections do not cover the whole text")
	}
	return flows, nil
}

// Join is the inverse of Split: it concatenates flows and builds the FDST
// table describing their boundaries.
func Join(flows [][]byte) ([]byte, *Fdst) {
	var text []byte
	f := &Fdst{Sections: make([]FdstSection, len(flows))}
	offset := uint32(0)
	for i, flow := range flows {
		text = append(text, flow...)
		end := offset + uint32(len(flow))
		f.Sections[i] = FdstSection{Start: offset, End: end}
		offset = end
	}
	return text, f
}
