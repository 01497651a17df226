package record0

import "github.com/htol/gomobi/varint"

// StripTrailingEntries removes trailing per-record metadata from a text
// record's raw bytes, as described by the record-0 header's extra_flags
// bitmask, returning the logical text slice.
//
// For every bit set above bit 0, a backward varint at the tail of the
// (shrinking) record gives the byte length of one more trailing entry to
// discard. Bit 0, if set, additionally strips (last_byte & 0x3) + 1 bytes
// — the multibyte-character continuation count.
func StripTrailingEntries(record []byte, extraFlags uint16) []byte {
	c := record
	for bit := uint(15); bit > 0; bit-- {
		if extraFlags&(1<<bit) == 0 {
			continue
		}
		if len(c) == 0 {
			break
		}
		v, _, err := varint.DecodeBackward(c)
		if err != nil || int(v) > len(c) {
			break
		}
		c = c[:len(c)-int(v)]
	}
	if extraFlags&1 != 0 && len(c) > 0 {
		n := int(c[len(c)-1]&0x3) + 1
		if n > len(c) {
			n = len(c)
		}
		c = c[:len(c)-n]
	}
	return c
}
