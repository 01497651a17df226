package record0

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/htol/gomobi/mobierr"
)

// EXTH record tags this library understands by name. Unrecognized tags
// round-trip unchanged as opaque (Tag, Data) pairs.
const (
	EXTHAuthor          = 100
	EXTHPublisher       = 101
	EXTHDescription     = 103
	EXTHSubject         = 105
	EXTHPublishedDate   = 106
	EXTHRights          = 109
	EXTHKF8Boundary     = 121
	EXTHCreatorSoftware = 204
)

const exthHeaderSize = 12

// ExthRecord is one tagged EXTH metadata entry.
type ExthRecord struct {
	Tag  uint32
	Data []byte
}

// Exth is the decoded EXTH block: an ordered, possibly-repeating list of
// tagged records.
type Exth struct {
	Records []ExthRecord
}

// DecodeExth parses an EXTH block from the front of data, which must begin
// with the "EXTH" magic. Returns the decoded block and the number of bytes
// consumed.
func DecodeExth(data []byte) (*Exth, int, error) {
	if len(data) < exthHeaderSize || string(data[0:4]) != "EXTH" {
		return nil, 0, mobierr.New(mobierr.UnsupportedMagic, "expected \"EXTH\" magic")
	}
	length := binary.BigEndian.Uint32(data[4:8])
	count := binary.BigEndian.Uint32(data[8:12])
	if int(length) > len(data) {
		return nil, 0, mobierr.New(mobierr.MalformedContainer, "EXTH length extends past record 0")
	}

	e := &Exth{Records: make([]ExthRecord, 0, count)}
	pos := exthHeaderSize
	for i := uint32(0); i < count; i++ {
		if pos+8 > len(data) {
			return nil, 0, mobierr.New(mobierr.MalformedContainer, "EXTH record truncated")
		}
		tag := binary.BigEndian.Uint32(data[pos:])
		total := binary.BigEndian.Uint32(data[pos+4:])
		if total < 8 || pos+int(total) > len(data) {
			return nil, 0, mobierr.New(mobierr.MalformedContainer, "EXTH record length out of range")
		}
		recData := make([]byte, total-8)
		copy(recData, data[pos+8:pos+int(total)])
		e.Records = append(e.Records, ExthRecord{Tag: tag, Data: recData})
		pos += int(total)
	}

	return e, int(length), nil
}

// Get returns the data of the first record with the given tag, if any.
func (e *Exth) Get(tag uint32) ([]byte, bool) {
	for _, r := range e.Records {
		if r.Tag == tag {
			return r.Data, true
		}
	}
	return nil, false
}

// GetAll returns the data of every record with the given tag, in order.
func (e *Exth) GetAll(tag uint32) [][]byte {
	var out [][]byte
	for _, r := range e.Records {
		if r.Tag == tag {
			out = append(out, r.Data)
		}
	}
	return out
}

// Set replaces every existing record with the given tag with a single new
// one, or appends a new one if none existed.
func (e *Exth) Set(tag uint32, data []byte) {
	for i := range e.Records {
		if e.Records[i].Tag == tag {
			e.Records[i].Data = data
			e.removeFrom(i + 1, tag)
			return
		}
	}
	e.Records = append(e.Records, ExthRecord{Tag: tag, Data: data})
}

// SetString is a convenience wrapper around Set for string-valued records.
func (e *Exth) SetString(tag uint32, value string) {
	e.Set(tag, []byte(value))
}

// AddRepeatable appends another record with the given tag without removing
// existing ones (used for repeatable tags like subject, 105).
func (e *Exth) AddRepeatable(tag uint32, data []byte) {
	e.Records = append(e.Records, ExthRecord{Tag: tag, Data: data})
}

// Remove deletes every record with the given tag.
func (e *Exth) Remove(tag uint32) {
	e.removeFrom(0, tag)
}

func (e *Exth) removeFrom(start int, tag uint32) {
	out := e.Records[:start]
	for _, r := range e.Records[start:] {
		if r.Tag != tag {
			out = append(out, r)
		}
	}
	e.Records = out
}

// Encode writes the EXTH header and records, padding the whole block to a
// multiple of 4 bytes as the format requires, and returns the number of
// bytes written.
func (e *Exth) Encode(w io.Writer) (int, error) {
	total := exthHeaderSize
	for _, r := range e.Records {
		total += 8 + len(r.Data)
	}
	padding := (4 - total%4) % 4
	padded := total + padding

	var buf bytes.Buffer
	buf.WriteString("EXTH")
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(padded))
	buf.Write(lenBuf[:])
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(e.Records)))
	buf.Write(lenBuf[:])

	for _, r := range e.Records {
		var hdr [8]byte
		binary.BigEndian.PutUint32(hdr[0:], r.Tag)
		binary.BigEndian.PutUint32(hdr[4:], uint32(8+len(r.Data)))
		buf.Write(hdr[:])
		buf.Write(r.Data)
	}
	for i := 0; i < padding; i++ {
		buf.WriteByte(0)
	}

	if _, err := w.Write(buf.Bytes()); err != nil {
		return 0, mobierr.Wrap(mobierr.IoError, "failed to write EXTH block", err)
	}
	return padded, nil
}

// Len reports the encoded size in bytes without writing anything.
func (e *Exth) Len() int {
	total := exthHeaderSize
	for _, r := range e.Records {
		total += 8 + len(r.Data)
	}
	return total + (4-total%4)%4
}
