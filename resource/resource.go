// Package resource classifies and codes the appended resource records that
// follow a MOBI file's text records: images, fonts, audio/video, and the
// terminating boundary/EOF markers.
package resource

import (
	"bytes"
	"encoding/binary"

	"github.com/htol/gomobi/mobierr"
)

// Kind identifies a resource record's payload type.
type Kind int

const (
	Unknown Kind = iota
	JPEG
	PNG
	GIF
	BMP
	Font
	Audio
	Video
)

func (k Kind) String() string {
	switch k {
	case JPEG:
		return "jpeg"
	case PNG:
		return "png"
	case GIF:
		return "gif"
	case BMP:
		return "bmp"
	case Font:
		return "font"
	case Audio:
		return "audio"
	case Video:
		return "video"
	default:
		return "unknown"
	}
}

// Boundary marks the end of the resource block.
const Boundary = "BOUNDARY"

// EOFMagic is the record that terminates a MOBI file.
var EOFMagic = []byte{0xE9, 0x8E, '\r', '\n'}

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	gifMagic  = []byte{'G', 'I', 'F', '8'}
	bmpMagic  = []byte{'B', 'M'}
)

// IsBoundary reports whether record marks the end of the resource block.
func IsBoundary(record []byte) bool {
	return string(record) == Boundary
}

// IsEOF reports whether record is the EOF-magic terminator record.
func IsEOF(record []byte) bool {
	return bytes.Equal(record, EOFMagic)
}

// Classify identifies a resource record's Kind by its magic prefix.
func Classify(record []byte) Kind {
	switch {
	case bytes.HasPrefix(record, jpegMagic):
		return JPEG
	case bytes.HasPrefix(record, pngMagic):
		return PNG
	case bytes.HasPrefix(record, gifMagic):
		return GIF
	case len(record) >= 2 && bytes.HasPrefix(record, bmpMagic) && declaredBMPSize(record) == len(record):
		return BMP
	case bytes.HasPrefix(record, []byte("FONT")):
		return Font
	case bytes.HasPrefix(record, []byte("AUDI")):
		return Audio
	case bytes.HasPrefix(record, []byte("VIDE")):
		return Video
	default:
		return Unknown
	}
}

func declaredBMPSize(record []byte) int {
	if len(record) < 6 {
		return -1
	}
	return int(binary.LittleEndian.Uint32(record[2:6]))
}

// StripWrapper removes an AUDI/VIDE header of the length declared at
// bytes 4..8 of the record, returning the wrapped media payload.
func StripWrapper(record []byte) ([]byte, error) {
	if len(record) < 8 {
		return nil, mobierr.New(mobierr.MalformedContainer, "audio/video record shorter than its own header")
	}
	headerEnd := binary.BigEndian.Uint32(record[4:8])
	if int(headerEnd) > len(record) {
		return nil, mobierr.New(mobierr.MalformedContainer, "audio/video header-end offset extends past the record")
	}
	return record[headerEnd:], nil
}

// AddWrapper prefixes payload with the fixed 8-byte AUDI/VIDE header this
// library's writer always emits: magic, then a header-end offset of 8
// (i.e. the payload starts immediately after the header).
func AddWrapper(kind Kind, payload []byte) ([]byte, error) {
	var magic string
	switch kind {
	case Audio:
		magic = "AUDI"
	case Video:
		magic = "VIDE"
	default:
		return nil, mobierr.New(mobierr.MalformedContainer, "AddWrapper only supports audio/video records")
	}
	out := make([]byte, 8+len(payload))
	copy(out[0:4], magic)
	binary.BigEndian.PutUint32(out[4:8], 8)
	copy(out[8:], payload)
	return out, nil
}
