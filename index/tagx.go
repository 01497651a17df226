// Package index implements the INDX/TAGX/IDXT metadata-index codec used by
// both the SKEL and FRAG part tables and by MOBI6 navigation indices.
package index

import (
	"encoding/binary"

	"github.com/htol/gomobi/mobierr"
)

const tagxHeaderSize = 12
const tagxRowSize = 4

// TagxRow is one schema row: a control byte carries the presence/count of
// one tag's values, identified by the bits under bitmask.
type TagxRow struct {
	TagID           uint8
	ValuesCount     uint8
	Bitmask         uint8
	ControlByteFlag uint8
}

// Shift returns the position, within a control byte, of this row's field.
func (r TagxRow) Shift() uint8 {
	return trailingZeros8(r.Bitmask)
}

// width returns the unshifted value-space of this row's bitmask.
func (r TagxRow) width() uint8 {
	return r.Bitmask >> r.Shift()
}

func trailingZeros8(x uint8) uint8 {
	if x == 0 {
		return 0
	}
	var n uint8
	for x&1 == 0 {
		x >>= 1
		n++
	}
	return n
}

func popcount8(x uint8) int {
	n := 0
	for x != 0 {
		n += int(x & 1)
		x >>= 1
	}
	return n
}

func ceilLog2(n uint32) uint8 {
	var bits uint8
	for (uint32(1) << bits) < n {
		bits++
	}
	return bits
}

// Tagx is the decoded TAGX schema block.
type Tagx struct {
	ControlByteCount uint32
	Rows             []TagxRow
}

// DecodeTagx parses a TAGX block, which must begin with the "TAGX" magic.
// Returns the decoded schema and the number of bytes consumed.
func DecodeTagx(data []byte) (*Tagx, int, error) {
	if len(data) < tagxHeaderSize || string(data[0:4]) != "TAGX" {
		return nil, 0, mobierr.New(mobierr.UnsupportedMagic, "expected \"TAGX\" magic")
	}
	length := binary.BigEndian.Uint32(data[4:8])
	if int(length) < tagxHeaderSize || int(length) > len(data) {
		return nil, 0, mobierr.New(mobierr.CorruptIndex, "TAGX length out of range")
	}
	t := &Tagx{ControlByteCount: binary.BigEndian.Uint32(data[8:12])}
	rowCount := (int(length) - tagxHeaderSize) / tagxRowSize
	t.Rows = make([]TagxRow, rowCount)
	for i := 0; i < rowCount; i++ {
		off := tagxHeaderSize + i*tagxRowSize
		t.Rows[i] = TagxRow{
			TagID:           data[off],
			ValuesCount:     data[off+1],
			Bitmask:         data[off+2],
			ControlByteFlag: data[off+3],
		}
	}
	return t, int(length), nil
}

// Encode serializes the TAGX block.
func (t *Tagx) Encode() []byte {
	length := tagxHeaderSize + len(t.Rows)*tagxRowSize
	buf := make([]byte, length)
	copy(buf[0:4], "TAGX")
	binary.BigEndian.PutUint32(buf[4:8], uint32(length))
	binary.BigEndian.PutUint32(buf[8:12], t.ControlByteCount)
	for i, row := range t.Rows {
		off := tagxHeaderSize + i*tagxRowSize
		buf[off] = row.TagID
		buf[off+1] = row.ValuesCount
		buf[off+2] = row.Bitmask
		buf[off+3] = row.ControlByteFlag
	}
	return buf
}

// buildTagx derives a single-control-byte TAGX schema from an entry's tag
// shape: tags sorted by id, each assigned consecutive bits in the one
// control byte wide enough to hold a count up to its values_count.
func buildTagx(tagIDs []uint8, valuesCount map[uint8]int) (*Tagx, error) {
	t := &Tagx{ControlByteCount: 1}
	var shift uint8
	for _, id := range tagIDs {
		vc := valuesCount[id]
		width := ceilLog2(uint32(vc) + 1)
		if width == 0 {
			width = 1
		}
		if int(shift)+int(width) > 8 {
			return nil, mobierr.New(mobierr.CorruptIndex, "entry tag shape needs more than one control byte")
		}
		widthMask := uint8((uint32(1) << width) - 1)
		row := TagxRow{
			TagID:       id,
			ValuesCount: uint8(vc),
			Bitmask:     widthMask << shift,
		}
		t.Rows = append(t.Rows, row)
		shift += width
	}
	return t, nil
}
