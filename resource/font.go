package resource

import (
	"bytes"
	"compress/flate"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/htol/gomobi/mobierr"
)

const fontHeaderSize = 24

const (
	fontFlagDeflate = 0b1
	fontFlagXOR     = 0b10
)

const xorObfuscatedLimit = 1040

// DecodeFont decodes a FONT record's payload, reversing XOR obfuscation and
// DEFLATE compression as its flags declare, and verifying the decoded size.
func DecodeFont(record []byte) ([]byte, error) {
	if len(record) < fontHeaderSize || string(record[0:4]) != "FONT" {
		return nil, mobierr.New(mobierr.UnsupportedMagic, "expected \"FONT\" magic")
	}
	decodedSize := binary.BigEndian.Uint32(record[4:8])
	flags := binary.BigEndian.Uint32(record[8:12])
	dataOffset := binary.BigEndian.Uint32(record[12:16])
	keyLen := binary.BigEndian.Uint32(record[16:20])
	keyOffset := binary.BigEndian.Uint32(record[20:24])

	if int(dataOffset) > len(record) {
		return nil, mobierr.New(mobierr.CorruptFont, "FONT data_offset extends past the record")
	}
	data := append([]byte{}, record[dataOffset:]...)

	if flags&fontFlagXOR != 0 {
		if int(keyOffset)+int(keyLen) > len(record) || keyLen == 0 {
			return nil, mobierr.New(mobierr.CorruptFont, "FONT xor key offset/length out of range")
		}
		key := record[keyOffset : keyOffset+keyLen]
		n := len(data)
		if n > xorObfuscatedLimit {
			n = xorObfuscatedLimit
		}
		for i := 0; i < n; i++ {
			data[i] ^= key[i%len(key)]
		}
	}

	if flags&fontFlagDeflate != 0 {
		out, err := inflate(data)
		if err != nil {
			return nil, mobierr.Wrap(mobierr.CorruptFont, "FONT deflate stream is invalid", err)
		}
		data = out
	}

	if uint32(len(data)) != decodedSize {
		return nil, mobierr.New(mobierr.CorruptFont, fmt.Sprintf("FONT decoded to %d bytes, header declares %d", len(data), decodedSize))
	}
	return data, nil
}

// EncodeFont produces a FONT record payload: DEFLATE-compressed, with no
// XOR key, matching this library's writer requirements exactly.
func EncodeFont(data []byte) ([]byte, error) {
	compressed, err := deflate(data)
	if err != nil {
		return nil, mobierr.Wrap(mobierr.IoError, "failed to deflate FONT data", err)
	}
	out := make([]byte, fontHeaderSize+len(compressed))
	copy(out[0:4], "FONT")
	binary.BigEndian.PutUint32(out[4:8], uint32(len(data)))
	binary.BigEndian.PutUint32(out[8:12], fontFlagDeflate)
	binary.BigEndian.PutUint32(out[12:16], fontHeaderSize)
	binary.BigEndian.PutUint32(out[16:20], 0)
	binary.BigEndian.PutUint32(out[20:24], fontHeaderSize)
	copy(out[fontHeaderSize:], compressed)
	return out, nil
}

func deflate(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func inflate(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return io.ReadAll(r)
}
