package index

import (
	"bytes"
	"sort"

	"github.com/htol/gomobi/mobierr"
	"github.com/htol/gomobi/varint"
)

// Entry is one decoded INDX row: a label (typically a decimal offset or
// name) and a set of tagged value lists.
type Entry struct {
	Label []byte
	Tags  map[uint8][]uint32
}

// sortedTagIDs returns e's tag ids in ascending order.
func (e *Entry) sortedTagIDs() []uint8 {
	ids := make([]uint8, 0, len(e.Tags))
	for id := range e.Tags {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// decodeEntry parses one entry's raw bytes against tagx, tolerating more
// than one control byte on read even though the writer only ever emits one.
func decodeEntry(data []byte, tagx *Tagx) (*Entry, error) {
	if len(data) == 0 {
		return nil, mobierr.New(mobierr.CorruptIndex, "empty index entry")
	}
	labelLen := int(data[0])
	if 1+labelLen > len(data) {
		return nil, mobierr.New(mobierr.CorruptIndex, "index entry label overruns entry")
	}
	e := &Entry{
		Label: append([]byte{}, data[1:1+labelLen]...),
		Tags:  map[uint8][]uint32{},
	}
	pos := 1 + labelLen
	if pos+int(tagx.ControlByteCount) > len(data) {
		return nil, mobierr.New(mobierr.CorruptIndex, "index entry control bytes overrun entry")
	}
	controlBytes := data[pos : pos+int(tagx.ControlByteCount)]
	pos += int(tagx.ControlByteCount)

	valPos := pos
	tailEnd := len(data)
	cbIndex := 0

	for _, row := range tagx.Rows {
		if row.ControlByteFlag != 0 {
			cbIndex++
			continue
		}
		if cbIndex >= len(controlBytes) {
			return nil, mobierr.New(mobierr.CorruptIndex, "index entry references missing control byte")
		}
		widthMask := row.width()
		if widthMask == 0 {
			continue
		}
		v := (controlBytes[cbIndex] & row.Bitmask) >> row.Shift()

		if v == widthMask && popcount8(widthMask) > 1 {
			length, n, err := varint.DecodeBackward(data[:tailEnd])
			if err != nil || int(length) > tailEnd-valPos {
				return nil, mobierr.New(mobierr.CorruptIndex, "index entry has a malformed variable-length tag block")
			}
			tailEnd -= n
			end := valPos + int(length)
			var vals []uint32
			for valPos < end {
				val, consumed, err := varint.DecodeForward(data[valPos:end])
				if err != nil {
					return nil, mobierr.Wrap(mobierr.CorruptIndex, "index entry tag value decode failed", err)
				}
				vals = append(vals, val)
				valPos += consumed
			}
			e.Tags[row.TagID] = vals
			continue
		}

		if v == 0 {
			continue
		}
		total := int(v) * int(row.ValuesCount)
		vals := make([]uint32, 0, total)
		for i := 0; i < total; i++ {
			if valPos >= tailEnd {
				return nil, mobierr.New(mobierr.CorruptIndex, "index entry truncated while reading tag values")
			}
			val, consumed, err := varint.DecodeForward(data[valPos:tailEnd])
			if err != nil {
				return nil, mobierr.Wrap(mobierr.CorruptIndex, "index entry tag value decode failed", err)
			}
			vals = append(vals, val)
			valPos += consumed
		}
		e.Tags[row.TagID] = vals
	}

	return e, nil
}

// encodeEntry writes one entry against the single-control-byte schema the
// writer always produces.
func encodeEntry(e *Entry, tagx *Tagx) ([]byte, error) {
	if tagx.ControlByteCount != 1 {
		return nil, mobierr.New(mobierr.CorruptIndex, "writer only supports a single control byte")
	}
	var buf bytes.Buffer
	buf.WriteByte(byte(len(e.Label)))
	buf.Write(e.Label)

	var controlByte byte
	for _, row := range tagx.Rows {
		if _, ok := e.Tags[row.TagID]; ok {
			controlByte |= byte(1) << row.Shift()
		}
	}
	buf.WriteByte(controlByte)

	for _, row := range tagx.Rows {
		vals, ok := e.Tags[row.TagID]
		if !ok {
			continue
		}
		if len(vals) != int(row.ValuesCount) {
			return nil, mobierr.New(mobierr.CorruptIndex, "entry tag value count does not match its schema row")
		}
		for _, v := range vals {
			buf.Write(varint.EncodeForward(v))
		}
	}

	return buf.Bytes(), nil
}
