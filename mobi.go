// Package mobi reads and writes Mobipocket/KF8 e-book container files: an
// outer PalmDB record container wrapping one or two MOBI header units
// (legacy MOBI6 and/or modern KF8), their metadata, text, and appended
// image/font/audio/video resources.
package mobi

import (
	"time"

	"github.com/htol/gomobi/record0"
	"github.com/htol/gomobi/resource"
)

// textRecordSize is the chunk size this library splits concatenated flow
// text into when writing PalmDB text records.
const textRecordSize = 4096

// MobiData is one MOBI6 or KF8 unit: its header fields plus the two
// semantic text containers the format exposes.
type MobiData struct {
	Compression  uint16
	Encryption   uint16
	MobiType     uint32
	TextEncoding uint32
	Version      uint32

	// Flow holds the raw byte streams FDST demarcates: Flow[0] is the raw
	// ML, any further elements are auxiliary streams (CSS, SVG, ...).
	Flow [][]byte

	// Parts is the ordered list of HTML parts SKEL+FRAG carve out of
	// Flow[0]. Populated on read; joined with "\n" to rebuild Flow[0] on
	// write.
	Parts [][]byte
}

// MobiResource is one appended image/font/audio/video resource record,
// already unwrapped of its AUDI/VIDE/FONT framing.
type MobiResource struct {
	Kind resource.Kind
	Data []byte
}

// Mobi is a complete parsed (or to-be-written) container: one or both of
// a MOBI6 and KF8 unit, the appended resources, and the flat metadata
// surface EXTH/full_name expose.
type Mobi struct {
	MOBI6 *MobiData
	KF8   *MobiData

	Resources []MobiResource

	Title          string
	Author         string
	Publisher      string
	Description    string
	Subjects       []string
	PublishingDate time.Time
	Copyright      string

	// unknownEXTH holds EXTH records read from the source file that this
	// library doesn't surface as a named field (e.g. a third-party
	// creator-software tag other than its own, or any tag this library
	// doesn't otherwise interpret). Write re-emits them unchanged so a
	// read/write round-trip doesn't silently drop them.
	unknownEXTH []record0.ExthRecord
}
