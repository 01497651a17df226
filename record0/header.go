package record0

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/htol/gomobi/mobierr"
)

// HeaderSize is the fixed size, in bytes, of the MOBI header payload this
// library writes (including the "MOBI" magic and the header_length field
// itself). Readers accept shorter payloads, extracting only the fields
// that fit.
const HeaderSize = 264

// Unset is the sentinel value MOBI uses for an index-typed field that has
// no value. Never surfaced past this package — callers see Header's
// pointer-typed fields as nil instead.
const Unset = 0xFFFFFFFF

// MOBI type and version constants.
const (
	TypeBook     = 2
	UTF8Encoding = 65001
	MOBI6Version = 6
	KF8Version   = 8
)

// field offsets within the MOBI header payload, measured from the start of
// the "MOBI" magic (i.e. immediately after the 16-byte preamble).
const (
	offMagic            = 0
	offHeaderLength     = 4
	offMobiType         = 8
	offTextEncoding     = 12
	offUID              = 16
	offVersion          = 20
	offFullNameOffset   = 68
	offFullNameLength   = 72
	offImageIndex       = 76
	offMinVersion       = 88
	offEXTHFlags        = 112
	offDRMOffset        = 148
	offDRMCount         = 152
	offDRMSize          = 156
	offDRMFlags         = 160
	offFirstContentRec  = 172
	offLastContentRec   = 174
	offFCISIndex        = 180
	offFCISCount        = 184
	offFLISIndex        = 188
	offFLISCount        = 192
	offFDSTIndex        = 204
	offFDSTSectionCount = 208
	offCoverIndex       = 216
	offThumbnailIndex   = 220
	offExtraFlags       = 226
	offFragIndex        = 230
	offSkelIndex        = 234
)

// exthFlagHasEXTH is the bit in EXTHFlags that marks an EXTH block as present.
const exthFlagHasEXTH = 0x40

// Header holds the MOBI header fields this library reads and writes.
// Index-typed fields that carry the Unset sentinel on the wire are nil here.
type Header struct {
	MobiType     uint32
	TextEncoding uint32
	UID          uint32
	Version      uint32

	FullNameOffset uint32
	FullNameLength uint32
	MinVersion     uint32
	ImageIndex     *uint32

	EXTHFlags uint32

	FDSTIndex        *uint32
	FDSTSectionCount uint32

	ExtraFlags uint16

	// FragIndex and SkelIndex are only meaningful for Version >= KF8Version.
	FragIndex *uint32
	SkelIndex *uint32

	CoverIndex     *uint32
	ThumbnailIndex *uint32

	FCISIndex *uint32
	FCISCount uint32
	FLISIndex *uint32
	FLISCount uint32

	FirstContentRec uint16
	LastContentRec  uint16
}

// HasEXTH reports whether the EXTHFlags bit for EXTH presence is set.
func (h *Header) HasEXTH() bool {
	return h.EXTHFlags&exthFlagHasEXTH != 0
}

func u32At(buf []byte, off int) (uint32, bool) {
	if off+4 > len(buf) {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[off:]), true
}

func u16At(buf []byte, off int) (uint16, bool) {
	if off+2 > len(buf) {
		return 0, false
	}
	return binary.BigEndian.Uint16(buf[off:]), true
}

func optionalIndex(buf []byte, off int) *uint32 {
	v, ok := u32At(buf, off)
	if !ok || v == Unset {
		return nil
	}
	return &v
}

// DecodeHeader parses the MOBI header payload, which must begin with the
// "MOBI" magic and end where the header's own header_length field says it
// does. payload may be shorter than HeaderSize for legacy files, in which
// case fields past the end of payload are treated as absent.
func DecodeHeader(payload []byte) (*Header, error) {
	if len(payload) < 4 || string(payload[0:4]) != "MOBI" {
		return nil, mobierr.New(mobierr.UnsupportedMagic, "expected \"MOBI\" magic at record 0 header")
	}

	h := &Header{}

	get32 := func(off int) uint32 {
		v, _ := u32At(payload, off)
		return v
	}
	get16 := func(off int) uint16 {
		v, _ := u16At(payload, off)
		return v
	}

	h.MobiType = get32(offMobiType)
	h.TextEncoding = get32(offTextEncoding)
	if h.TextEncoding != UTF8Encoding {
		return nil, mobierr.New(mobierr.UnsupportedTextEncoding, fmt.Sprintf("text_encoding %d is not UTF-8", h.TextEncoding))
	}
	h.UID = get32(offUID)
	h.Version = get32(offVersion)

	h.FullNameOffset = get32(offFullNameOffset)
	h.FullNameLength = get32(offFullNameLength)
	h.MinVersion = get32(offMinVersion)
	h.ImageIndex = optionalIndex(payload, offImageIndex)

	h.EXTHFlags = get32(offEXTHFlags)

	h.ExtraFlags = get16(offExtraFlags)

	if h.Version < KF8Version {
		// The fdst_index slot is reinterpreted as two u16 halves; the
		// second half is the "last text index" / FDST index dual-use field.
		lo := get16(offFDSTIndex + 2)
		if uint32(lo) != uint32(0xFFFF) {
			v := uint32(lo)
			h.FDSTIndex = &v
		}
	} else {
		h.FDSTIndex = optionalIndex(payload, offFDSTIndex)
	}
	h.FDSTSectionCount = get32(offFDSTSectionCount)

	h.CoverIndex = optionalIndex(payload, offCoverIndex)
	h.ThumbnailIndex = optionalIndex(payload, offThumbnailIndex)

	h.FCISIndex = optionalIndex(payload, offFCISIndex)
	h.FCISCount = get32(offFCISCount)
	h.FLISIndex = optionalIndex(payload, offFLISIndex)
	h.FLISCount = get32(offFLISCount)

	h.FirstContentRec = get16(offFirstContentRec)
	h.LastContentRec = get16(offLastContentRec)

	if h.Version >= KF8Version {
		h.FragIndex = optionalIndex(payload, offFragIndex)
		h.SkelIndex = optionalIndex(payload, offSkelIndex)
	}

	return h, nil
}

func putOptional(buf []byte, off int, v *uint32) {
	if v == nil {
		binary.BigEndian.PutUint32(buf[off:], Unset)
		return
	}
	binary.BigEndian.PutUint32(buf[off:], *v)
}

// Encode writes a fixed HeaderSize-byte MOBI header payload, including the
// leading "MOBI" magic and header_length field.
func (h *Header) Encode() []byte {
	buf := make([]byte, HeaderSize)
	for i := range buf {
		buf[i] = 0 // Reserved/unknown regions are zero-filled, matching the writer's conservative default.
	}

	copy(buf[offMagic:], "MOBI")
	binary.BigEndian.PutUint32(buf[offHeaderLength:], HeaderSize)
	binary.BigEndian.PutUint32(buf[offMobiType:], h.MobiType)
	binary.BigEndian.PutUint32(buf[offTextEncoding:], h.TextEncoding)
	binary.BigEndian.PutUint32(buf[offUID:], h.UID)
	binary.BigEndian.PutUint32(buf[offVersion:], h.Version)

	binary.BigEndian.PutUint32(buf[offFullNameOffset:], h.FullNameOffset)
	binary.BigEndian.PutUint32(buf[offFullNameLength:], h.FullNameLength)
	binary.BigEndian.PutUint32(buf[offMinVersion:], h.MinVersion)
	putOptional(buf, offImageIndex, h.ImageIndex)

	binary.BigEndian.PutUint32(buf[offEXTHFlags:], h.EXTHFlags)

	binary.BigEndian.PutUint32(buf[offDRMOffset:], Unset)
	binary.BigEndian.PutUint32(buf[offDRMCount:], Unset)
	binary.BigEndian.PutUint32(buf[offDRMSize:], 0)
	binary.BigEndian.PutUint32(buf[offDRMFlags:], 0)

	binary.BigEndian.PutUint16(buf[offFirstContentRec:], h.FirstContentRec)
	binary.BigEndian.PutUint16(buf[offLastContentRec:], h.LastContentRec)

	putOptional(buf, offFCISIndex, h.FCISIndex)
	binary.BigEndian.PutUint32(buf[offFCISCount:], h.FCISCount)
	putOptional(buf, offFLISIndex, h.FLISIndex)
	binary.BigEndian.PutUint32(buf[offFLISCount:], h.FLISCount)

	if h.Version < KF8Version {
		binary.BigEndian.PutUint16(buf[offFDSTIndex:], 0xFFFF)
		if h.FDSTIndex != nil {
			binary.BigEndian.PutUint16(buf[offFDSTIndex+2:], uint16(*h.FDSTIndex))
		} else {
			binary.BigEndian.PutUint16(buf[offFDSTIndex+2:], 0xFFFF)
		}
	} else {
		putOptional(buf, offFDSTIndex, h.FDSTIndex)
	}
	binary.BigEndian.PutUint32(buf[offFDSTSectionCount:], h.FDSTSectionCount)

	putOptional(buf, offCoverIndex, h.CoverIndex)
	putOptional(buf, offThumbnailIndex, h.ThumbnailIndex)

	binary.BigEndian.PutUint16(buf[offExtraFlags:], h.ExtraFlags)

	if h.Version >= KF8Version {
		putOptional(buf, offFragIndex, h.FragIndex)
		putOptional(buf, offSkelIndex, h.SkelIndex)
	}

	return buf
}

// WriteEncoded writes an already-encoded header payload to w.
func WriteEncoded(w io.Writer, payload []byte) error {
	if _, err := w.Write(payload); err != nil {
		return mobierr.Wrap(mobierr.IoError, "failed to write MOBI header", err)
	}
	return nil
}

// ReadFullName extracts the book's full name from record-0 bytes given the
// header's FullNameOffset/FullNameLength.
func ReadFullName(record0 []byte, h *Header) (string, error) {
	start := int(h.FullNameOffset)
	end := start + int(h.FullNameLength)
	if start < 0 || end > len(record0) || end < start {
		return "", mobierr.New(mobierr.MalformedContainer, "full_name offset/length out of range")
	}
	return string(record0[start:end]), nil
}
