package index

import (
	"encoding/binary"

	"github.com/htol/gomobi/mobierr"
)

const indxHeaderSize = 28

// Index is a decoded INDX structure: a uniformly-shaped list of entries
// spread across a head record (carrying the TAGX schema) and zero or more
// data records (carrying the entries themselves).
type Index struct {
	Type    uint32
	Entries []Entry
}

// HeadEntriesCount reads the entries_count field from an INDX head record,
// letting a caller decide how many subsequent PalmDB records to gather
// before calling Decode (this library's own writer emits exactly one data
// record when entries_count > 0, and none when it is 0).
func HeadEntriesCount(head []byte) (uint32, error) {
	_, _, _, count, err := decodeIndxHeader(head)
	return count, err
}

func decodeIndxHeader(data []byte) (headerLength, typ, idxtOffset, entriesCount uint32, err error) {
	if len(data) < indxHeaderSize || string(data[0:4]) != "INDX" {
		return 0, 0, 0, 0, mobierr.New(mobierr.UnsupportedMagic, "expected \"INDX\" magic")
	}
	headerLength = binary.BigEndian.Uint32(data[4:8])
	typ = binary.BigEndian.Uint32(data[12:16])
	idxtOffset = binary.BigEndian.Uint32(data[20:24])
	entriesCount = binary.BigEndian.Uint32(data[24:28])
	return headerLength, typ, idxtOffset, entriesCount, nil
}

func encodeIndxHeader(typ, idxtOffset, entriesCount uint32) []byte {
	buf := make([]byte, indxHeaderSize)
	copy(buf[0:4], "INDX")
	binary.BigEndian.PutUint32(buf[4:8], indxHeaderSize)
	binary.BigEndian.PutUint32(buf[12:16], typ)
	binary.BigEndian.PutUint32(buf[20:24], idxtOffset)
	binary.BigEndian.PutUint32(buf[24:28], entriesCount)
	return buf
}

// decodeIdxt parses the "IDXT" offset table, which must sit at idxtOffset
// within record. Offsets are relative to the start of record.
func decodeIdxt(record []byte, idxtOffset uint32, count uint32) ([]uint32, error) {
	off := int(idxtOffset)
	if off+4 > len(record) || string(record[off:off+4]) != "IDXT" {
		return nil, mobierr.New(mobierr.UnsupportedMagic, "expected \"IDXT\" magic")
	}
	off += 4
	offsets := make([]uint32, count)
	for i := uint32(0); i < count; i++ {
		if off+2 > len(record) {
			return nil, mobierr.New(mobierr.CorruptIndex, "IDXT offset table truncated")
		}
		offsets[i] = uint32(binary.BigEndian.Uint16(record[off:]))
		off += 2
	}
	return offsets, nil
}

// Decode parses a full index from its PalmDB record bodies: records[0] is
// the head record (INDX header + TAGX), records[1:] are data records.
func Decode(records [][]byte) (*Index, error) {
	if len(records) == 0 {
		return &Index{}, nil
	}
	head := records[0]
	_, typ, _, totalCount, err := decodeIndxHeader(head)
	if err != nil {
		return nil, err
	}
	if len(head) < indxHeaderSize {
		return nil, mobierr.New(mobierr.CorruptIndex, "INDX head record too short")
	}
	tagx, _, err := DecodeTagx(head[indxHeaderSize:])
	if err != nil {
		return nil, err
	}

	idx := &Index{Type: typ}
	for _, rec := range records[1:] {
		_, _, idxtOffset, count, err := decodeIndxHeader(rec)
		if err != nil {
			return nil, err
		}
		offsets, err := decodeIdxt(rec, idxtOffset, count)
		if err != nil {
			return nil, err
		}
		for i, start := range offsets {
			end := int(idxtOffset)
			if i+1 < len(offsets) {
				end = int(offsets[i+1])
			}
			if int(start) > end || end > len(rec) {
				return nil, mobierr.New(mobierr.CorruptIndex, "IDXT entry offset out of range")
			}
			e, err := decodeEntry(rec[start:end], tagx)
			if err != nil {
				return nil, err
			}
			idx.Entries = append(idx.Entries, *e)
		}
	}

	if uint32(len(idx.Entries)) != totalCount {
		return nil, mobierr.New(mobierr.CorruptIndex, "INDX entries_count does not match the number of decoded entries")
	}
	return idx, nil
}

// Encode serializes idx into a list of PalmDB record bodies: a single head
// record, followed by a single data record holding every entry (or no data
// record at all when idx has no entries). The TAGX schema is derived from
// the first entry; every entry must share its tag shape exactly.
func (idx *Index) Encode() ([][]byte, error) {
	head := encodeIndxHeader(idx.Type, 0, uint32(len(idx.Entries)))
	if len(idx.Entries) == 0 {
		head = append(head, (&Tagx{ControlByteCount: 1}).Encode()...)
		return [][]byte{head}, nil
	}

	first := idx.Entries[0]
	tagIDs := first.sortedTagIDs()
	valuesCount := make(map[uint8]int, len(tagIDs))
	for _, id := range tagIDs {
		valuesCount[id] = len(first.Tags[id])
	}
	tagx, err := buildTagx(tagIDs, valuesCount)
	if err != nil {
		return nil, err
	}
	head = append(head, tagx.Encode()...)

	var entryBytes [][]byte
	for i := range idx.Entries {
		e := &idx.Entries[i]
		if !sameShape(e, first) {
			return nil, mobierr.New(mobierr.CorruptIndex, "all index entries must share the same tag shape")
		}
		eb, err := encodeEntry(e, tagx)
		if err != nil {
			return nil, err
		}
		entryBytes = append(entryBytes, eb)
	}

	dataHeaderAndEntries := indxHeaderSize
	offsets := make([]uint32, len(entryBytes))
	for i, eb := range entryBytes {
		offsets[i] = uint32(dataHeaderAndEntries)
		dataHeaderAndEntries += len(eb)
	}
	idxtOffset := uint32(dataHeaderAndEntries)

	data := encodeIndxHeader(idx.Type, idxtOffset, uint32(len(entryBytes)))
	for _, eb := range entryBytes {
		data = append(data, eb...)
	}
	data = append(data, "IDXT"...)
	for _, off := range offsets {
		var b [2]byte
		binary.BigEndian.PutUint16(b[:], uint16(off))
		data = append(data, b[:]...)
	}

	return [][]byte{head, data}, nil
}

func sameShape(a *Entry, b Entry) bool {
	if len(a.Tags) != len(b.Tags) {
		return false
	}
	for id, vals := range a.Tags {
		bv, ok := b.Tags[id]
		if !ok || len(vals) != len(bv) {
			return false
		}
	}
	return true
}
