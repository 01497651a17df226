// Package varint implements the base-128 variable-width integer codec MOBI
// metadata indices use: 7 value bits per byte, with one bit reserved as a
// group terminator. The underlying magnitude is always written most
// significant 7-bit group first; forward and backward groups differ only
// in which end of that sequence carries the terminator bit, so a reader
// can walk a stream of them from either direction.
package varint

import "errors"

var (
	ErrOverflow  = errors.New("varint: value overflow")
	ErrUnderflow = errors.New("varint: data underflow")
)

// maxReadBytes bounds how many bytes a decoder will scan before giving up
// on finding a terminator. At 7 value bits per byte this caps a decoded
// value at 2^28-1, which every well-formed MOBI index value stays under.
const maxReadBytes = 4

// Size reports how many bytes EncodeForward/EncodeBackward need for value.
func Size(value uint32) int {
	n := 1
	for value > 0x7F {
		value >>= 7
		n++
	}
	return n
}

// magnitude writes value as big-endian 7-bit groups with no terminator bit
// set; EncodeForward and EncodeBackward differ only in where they set one.
func magnitude(value uint32) []byte {
	buf := make([]byte, Size(value))
	for i := len(buf) - 1; i >= 0; i-- {
		buf[i] = byte(value & 0x7F)
		value >>= 7
	}
	return buf
}

// EncodeForward writes value as a forward varint, terminator bit on the
// trailing byte. Example: 0x11111 -> {0x04, 0x22, 0x91}.
func EncodeForward(value uint32) []byte {
	buf := magnitude(value)
	buf[len(buf)-1] |= 0x80
	return buf
}

// EncodeBackward writes value as a backward varint, terminator bit on the
// leading byte. Example: 0x11111 -> {0x84, 0x22, 0x11}.
func EncodeBackward(value uint32) []byte {
	buf := magnitude(value)
	buf[0] |= 0x80
	return buf
}

// DecodeForward reads a forward varint from the front of data, folding
// 7-bit groups left to right until it consumes a byte with its terminator
// bit set (or maxReadBytes bytes, whichever comes first). Returns the
// decoded value and the number of bytes consumed.
func DecodeForward(data []byte) (uint32, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrUnderflow
	}
	var value uint32
	count := 0
	for count < len(data) && count < maxReadBytes {
		b := data[count]
		value = (value << 7) | uint32(b&0x7F)
		count++
		if b&0x80 != 0 {
			break
		}
	}
	return value, count, nil
}

// DecodeBackward reads a backward varint ending at the tail of data: it
// walks backward from the last byte until one with its terminator bit set
// is found (or maxReadBytes bytes, or the start of data, whichever comes
// first), then folds that span left to right the same way DecodeForward
// does. Returns the decoded value and the number of bytes consumed,
// counted from the end of data.
func DecodeBackward(data []byte) (uint32, int, error) {
	if len(data) == 0 {
		return 0, 0, ErrUnderflow
	}

	end := len(data)
	start := end - 1
	for start > 0 && end-start < maxReadBytes && data[start]&0x80 == 0 {
		start--
	}

	var value uint32
	for _, b := range data[start:end] {
		value = (value << 7) | uint32(b&0x7F)
	}
	return value, end - start, nil
}
