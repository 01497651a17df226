// Package record0 decodes and encodes the MOBI "record 0" family: the
// PalmDOC-style preamble, the MOBI header payload, the EXTH metadata block,
// trailing-entry stripping, and the FDST flow table.
package record0

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/htol/gomobi/mobierr"
)

// PreambleSize is the fixed size of the PalmDOC-style preamble at the front
// of every record 0.
const PreambleSize = 16

// NoCompression and NoEncryption are the only values this library accepts
// for Preamble.Compression and Preamble.Encryption.
const (
	NoCompression = 1
	NoEncryption  = 0
)

// Preamble is the 16-byte PalmDOC-style header every record 0 begins with.
type Preamble struct {
	Compression     uint16
	Zero            uint16
	TextLength      uint32
	TextRecordCount uint16
	TextRecordSize  uint16
	Encryption      uint16
	Unknown         uint16
}

// DecodePreamble reads and validates a Preamble from the front of data.
func DecodePreamble(data []byte) (Preamble, error) {
	var p Preamble
	if len(data) < PreambleSize {
		return p, mobierr.New(mobierr.MalformedContainer, "record 0 shorter than the PalmDOC preamble")
	}
	if err := binary.Read(bytes.NewReader(data[:PreambleSize]), binary.BigEndian, &p); err != nil {
		return p, mobierr.Wrap(mobierr.MalformedContainer, "failed to read PalmDOC preamble", err)
	}
	if p.Compression != NoCompression {
		return p, mobierr.New(mobierr.UnsupportedCompression, fmt.Sprintf("compression type %d is not supported", p.Compression))
	}
	if p.Encryption != NoEncryption {
		return p, mobierr.New(mobierr.UnsupportedEncryption, fmt.Sprintf("encryption type %d is not supported", p.Encryption))
	}
	return p, nil
}

// Encode writes the preamble's 16 bytes.
func (p Preamble) Encode(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, p); err != nil {
		return mobierr.Wrap(mobierr.IoError, "failed to write PalmDOC preamble", err)
	}
	return nil
}
