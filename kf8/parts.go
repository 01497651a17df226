// Package kf8 reconstructs the ordered HTML "parts" that KF8's flat raw
// text stream is carved into, using the SKEL and FRAG metadata indices, and
// rebuilds that stream (with a trivial re-derived index pair) on write.
package kf8

import (
	"fmt"
	"strconv"

	"github.com/htol/gomobi/index"
	"github.com/htol/gomobi/mobierr"
)

const (
	tagFragmentCount  = 1
	tagPositionLength = 6
)

func tagU32(e *index.Entry, tag uint8, idx int) (uint32, error) {
	vals, ok := e.Tags[tag]
	if !ok || idx >= len(vals) {
		return 0, mobierr.New(mobierr.CorruptIndex, fmt.Sprintf("index entry is missing tag %d value %d", tag, idx))
	}
	return vals[idx], nil
}

// Reconstruct splits raw (flow[0]) into ordered HTML parts using the SKEL
// and FRAG indices: each SKEL entry names a skeleton slice of raw, and the
// fragments assigned to it are spliced into that slice at their declared
// insertion points, consuming their own bytes sequentially from raw
// immediately after the skeleton's own bytes.
func Reconstruct(raw []byte, skel, frag *index.Index) ([][]byte, error) {
	parts := make([][]byte, 0, len(skel.Entries))
	fragCursor := 0
	insertOffset := 0

	for _, s := range skel.Entries {
		pos, err := tagU32(&s, tagPositionLength, 0)
		if err != nil {
			return nil, err
		}
		length, err := tagU32(&s, tagPositionLength, 1)
		if err != nil {
			return nil, err
		}
		count, err := tagU32(&s, tagFragmentCount, 0)
		if err != nil {
			return nil, err
		}
		if int(pos)+int(length) > len(raw) {
			return nil, mobierr.New(mobierr.MalformedContainer, "SKEL entry extends past the raw stream")
		}
		part := append([]byte{}, raw[pos:pos+length]...)
		rawCursor := int(pos) + int(length)

		for i := 0; i < int(count); i++ {
			if fragCursor+i >= len(frag.Entries) {
				return nil, mobierr.New(mobierr.CorruptIndex, "SKEL entry references more fragments than FRAG provides")
			}
			f := &frag.Entries[fragCursor+i]
			label, err := strconv.Atoi(string(f.Label))
			if err != nil {
				return nil, mobierr.Wrap(mobierr.CorruptIndex, "FRAG entry has a non-numeric label", err)
			}
			insertPos := label - insertOffset
			flen, err := tagU32(f, tagPositionLength, 1)
			if err != nil {
				return nil, err
			}
			if insertPos < 0 || insertPos > len(part) {
				return nil, mobierr.New(mobierr.MalformedContainer, "FRAG insertion point falls outside its skeleton part")
			}
			if rawCursor+int(flen) > len(raw) {
				return nil, mobierr.New(mobierr.MalformedContainer, "FRAG entry extends past the raw stream")
			}
			body := raw[rawCursor : rawCursor+int(flen)]
			rawCursor += int(flen)

			spliced := make([]byte, 0, len(part)+len(body))
			spliced = append(spliced, part[:insertPos]...)
			spliced = append(spliced, body...)
			spliced = append(spliced, part[insertPos:]...)
			part = spliced
		}

		fragCursor += int(count)
		insertOffset += len(part)
		parts = append(parts, part)
	}

	return parts, nil
}

// Flatten is the inverse of Reconstruct for this library's own writer: it
// joins parts with "\n" into a raw stream (the same separator Join uses)
// and derives a SKEL index with one fragment-free entry per part, each
// pointing at that part's own bytes and skipping the separators between
// them. The FRAG index it returns is always empty, since this library
// never needs to reproduce another writer's original fragment granularity
// to round-trip the parts it itself read.
func Flatten(parts [][]byte) (raw []byte, skel, frag *index.Index) {
	skel = &index.Index{}
	frag = &index.Index{}
	raw = Join(parts)
	offset := uint32(0)
	for i, part := range parts {
		skel.Entries = append(skel.Entries, index.Entry{
			Label: []byte(fmt.Sprintf("SKEL%010d", i)),
			Tags: map[uint8][]uint32{
				tagFragmentCount:  {0},
				tagPositionLength: {offset, uint32(len(part))},
			},
		})
		offset += uint32(len(part)) + 1 // skip the "\n" Join inserts after this part
	}
	return raw, skel, frag
}

// Join concatenates parts with a newline separator, the representation
// this library exposes to callers for the book's overall text content.
func Join(parts [][]byte) []byte {
	var out []byte
	for i, p := range parts {
		if i > 0 {
			out = append(out, '\n')
		}
		out = append(out, p...)
	}
	return out
}
