// Package palmdb implements the outer Palm Database (PDB) container that
// every MOBI file is wrapped in: a fixed header, a directory of record
// offsets, and the concatenated record bodies themselves.
package palmdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/htol/gomobi/mobierr"
)

// HeaderSize is the fixed on-disk size of a PalmDB header.
const HeaderSize = 78

// recordEntrySize is the fixed on-disk size of one record directory entry.
const recordEntrySize = 8

// Type and Creator are the fixed four-byte tags every MOBI PalmDB carries.
const (
	Type    = "BOOK"
	Creator = "MOBI"
)

// Header is the 78-byte PalmDB header.
type Header struct {
	Name             [32]byte
	Attributes       uint16
	Version          uint16
	CreationDate     uint32
	ModificationDate uint32
	LastBackupDate   uint32
	ModificationNum  uint32
	AppInfoOffset    uint32
	SortInfoOffset   uint32
	Type             [4]byte
	Creator          [4]byte
	UID              uint32
	NextRecordListID uint32
	RecordCount      uint16
}

// Record is one PalmDB record: an opaque byte blob with an attribute byte
// and a 24-bit unique ID. Offsets are never stored on the value — they are
// always derived at encode time.
type Record struct {
	Attributes uint8
	UID        uint32 // only the low 24 bits are meaningful
	Data       []byte
}

// PalmDB is the decoded container: header plus ordered records.
type PalmDB struct {
	Header  Header
	Records []Record
}

// recordDirEntry is the on-disk shape of one directory slot, split exactly
// as the format documents it: a 24-bit UID stored as an 8-bit high byte and
// a 16-bit low half.
type recordDirEntry struct {
	Offset     uint32
	Attributes uint8
	UIDHigh    uint8
	UIDLow     uint16
}

func (e recordDirEntry) uid() uint32 {
	return uint32(e.UIDHigh)<<16 | uint32(e.UIDLow)
}

func splitUID(uid uint32) (hi uint8, lo uint16) {
	return uint8((uid >> 16) & 0xFF), uint16(uid & 0xFFFF)
}

// SetName sets the database name, truncating to 31 bytes and NUL-terminating.
func (h *Header) SetName(name string) {
	for i := range h.Name {
		h.Name[i] = 0
	}
	n := len(name)
	if n > 31 {
		n = 31
	}
	copy(h.Name[:n], name[:n])
}

// GetName returns the database name as a Go string, stopping at the first NUL.
func (h *Header) GetName() string {
	n := bytes.IndexByte(h.Name[:], 0)
	if n < 0 {
		n = len(h.Name)
	}
	return string(h.Name[:n])
}

// Decode parses a complete PalmDB container from a byte slice.
func Decode(data []byte) (*PalmDB, error) {
	if len(data) < HeaderSize {
		return nil, mobierr.New(mobierr.MalformedContainer, "short read of PalmDB header")
	}

	db := &PalmDB{}
	r := bytes.NewReader(data)
	if err := binary.Read(r, binary.BigEndian, &db.Header); err != nil {
		return nil, mobierr.Wrap(mobierr.MalformedContainer, "failed to read PalmDB header", err)
	}

	count := int(db.Header.RecordCount)
	dirBytes := count * recordEntrySize
	if HeaderSize+dirBytes > len(data) {
		return nil, mobierr.New(mobierr.MalformedContainer, "record directory extends past end of file")
	}

	entries := make([]recordDirEntry, count)
	if err := binary.Read(r, binary.BigEndian, &entries); err != nil {
		return nil, mobierr.Wrap(mobierr.MalformedContainer, "failed to read record directory", err)
	}

	db.Records = make([]Record, count)
	for i, e := range entries {
		start := int(e.Offset)
		if start < 0 || start > len(data) {
			return nil, mobierr.New(mobierr.MalformedContainer, fmt.Sprintf("record %d offset %d out of range", i, start))
		}
		end := len(data)
		if i+1 < count {
			end = int(entries[i+1].Offset)
		}
		if end < start || end > len(data) {
			return nil, mobierr.New(mobierr.MalformedContainer, fmt.Sprintf("record %d has negative or out-of-range length", i))
		}
		db.Records[i] = Record{
			Attributes: e.Attributes,
			UID:        e.uid(),
			Data:       data[start:end],
		}
	}

	return db, nil
}

// Read decodes a PalmDB container from r, which must expose the whole file.
func Read(r io.Reader) (*PalmDB, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, mobierr.Wrap(mobierr.IoError, "failed to read PalmDB stream", err)
	}
	return Decode(data)
}

// Encode lays out header, record directory, and record bodies in order,
// recomputing every directory offset from the current record list.
func (db *PalmDB) Encode() ([]byte, error) {
	db.Header.RecordCount = uint16(len(db.Records))
	copy(db.Header.Type[:], Type)
	copy(db.Header.Creator[:], Creator)

	dirEnd := HeaderSize + len(db.Records)*recordEntrySize
	entries := make([]recordDirEntry, len(db.Records))
	offset := dirEnd
	for i, rec := range db.Records {
		hi, lo := splitUID(rec.UID)
		entries[i] = recordDirEntry{
			Offset:     uint32(offset),
			Attributes: rec.Attributes,
			UIDHigh:    hi,
			UIDLow:     lo,
		}
		offset += len(rec.Data)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, db.Header); err != nil {
		return nil, mobierr.Wrap(mobierr.IoError, "failed to write PalmDB header", err)
	}
	if err := binary.Write(&buf, binary.BigEndian, entries); err != nil {
		return nil, mobierr.Wrap(mobierr.IoError, "failed to write record directory", err)
	}
	for _, rec := range db.Records {
		buf.Write(rec.Data)
	}

	return buf.Bytes(), nil
}

// Write encodes the container and writes it to w.
func (db *PalmDB) Write(w io.Writer) error {
	data, err := db.Encode()
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return mobierr.Wrap(mobierr.IoError, "failed to write PalmDB stream", err)
	}
	return nil
}
