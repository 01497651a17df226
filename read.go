package mobi

import (
	"encoding/binary"
	"io"

	"github.com/htol/gomobi/index"
	"github.com/htol/gomobi/kf8"
	"github.com/htol/gomobi/mobierr"
	"github.com/htol/gomobi/palmdb"
	"github.com/htol/gomobi/record0"
	"github.com/htol/gomobi/resource"
)

type decodedRecord0 struct {
	header   *record0.Header
	exth     *record0.Exth
	fullName string
}

func decodeUnitHeader(rec []byte) (*decodedRecord0, error) {
	if _, err := record0.DecodePreamble(rec); err != nil {
		return nil, err
	}
	payload := rec[record0.PreambleSize:]
	if len(payload) >= 8 {
		// Only the header_length bytes of the header itself carry fields;
		// what follows them is EXTH and full_name data.
		if hl := int(binary.BigEndian.Uint32(payload[4:8])); hl < len(payload) {
			payload = payload[:hl]
		}
	}
	header, err := record0.DecodeHeader(payload)
	if err != nil {
		return nil, err
	}

	d := &decodedRecord0{header: header, exth: &record0.Exth{}}
	if header.HasEXTH() {
		if len(payload) < 8 {
			return nil, mobierr.New(mobierr.MalformedContainer, "MOBI header payload too short to carry header_length")
		}
		headerLength := binary.BigEndian.Uint32(payload[4:8])
		exthStart := record0.PreambleSize + int(headerLength)
		if exthStart > len(rec) {
			return nil, mobierr.New(mobierr.MalformedContainer, "EXTH offset extends past record 0")
		}
		exth, _, err := record0.DecodeExth(rec[exthStart:])
		if err != nil {
			return nil, err
		}
		d.exth = exth
	}

	fullName, err := record0.ReadFullName(rec, header)
	if err != nil {
		return nil, err
	}
	d.fullName = fullName
	return d, nil
}

func decodeIndexAt(records [][]byte, abs int) (*index.Index, error) {
	if abs < 0 || abs >= len(records) {
		return nil, mobierr.New(mobierr.CorruptIndex, "index pointer is out of range")
	}
	count, err := index.HeadEntriesCount(records[abs])
	if err != nil {
		return nil, err
	}
	recs := [][]byte{records[abs]}
	if count > 0 {
		if abs+1 >= len(records) {
			return nil, mobierr.New(mobierr.CorruptIndex, "index is missing its data record")
		}
		recs = append(recs, records[abs+1])
	}
	return index.Decode(recs)
}

// parseUnitBody decodes the text flow and, for a KF8 unit, the reconstructed
// HTML parts, for the unit whose record 0 sits at boundary.
func parseUnitBody(records [][]byte, boundary int, d *decodedRecord0) (*MobiData, error) {
	h := d.header
	first := boundary + int(h.FirstContentRec)
	last := boundary + int(h.LastContentRec)
	if first < 0 || last >= len(records) || last < first {
		return nil, mobierr.New(mobierr.MalformedContainer, "content record range out of bounds")
	}

	var raw []byte
	for i := first; i <= last; i++ {
		raw = append(raw, record0.StripTrailingEntries(records[i], h.ExtraFlags)...)
	}

	var flow [][]byte
	if h.FDSTIndex != nil {
		fdstRec := records[boundary+int(*h.FDSTIndex)]
		fdst, err := record0.DecodeFdst(fdstRec)
		if err != nil {
			return nil, err
		}
		flow, err = fdst.Split(raw)
		if err != nil {
			return nil, err
		}
	} else {
		flow = [][]byte{raw}
	}

	data := &MobiData{
		Compression:  record0.NoCompression,
		Encryption:   record0.NoEncryption,
		MobiType:     h.MobiType,
		TextEncoding: h.TextEncoding,
		Version:      h.Version,
		Flow:         flow,
	}

	if h.SkelIndex != nil {
		skelIdx, err := decodeIndexAt(records, boundary+int(*h.SkelIndex))
		if err != nil {
			return nil, err
		}
		fragIdx := &index.Index{}
		if h.FragIndex != nil {
			fragIdx, err = decodeIndexAt(records, boundary+int(*h.FragIndex))
			if err != nil {
				return nil, err
			}
		}
		parts, err := kf8.Reconstruct(flow[0], skelIdx, fragIdx)
		if err != nil {
			return nil, err
		}
		data.Parts = parts
	}

	return data, nil
}

// resourcesStartAfter returns the first record index following every
// structural record this library's own writer places for a unit at
// boundary: text, optional FDST, optional SKEL, then FCIS/FLIS.
func resourcesStartAfter(boundary int, h *record0.Header) int {
	if h.FLISIndex != nil {
		return boundary + int(*h.FLISIndex) + 1
	}
	return boundary + int(h.LastContentRec) + 1
}

// parseResources scans records[start:] for image/font/audio/video resource
// records, stopping at the BOUNDARY or EOF-magic terminator.
func parseResources(records [][]byte, start int) ([]MobiResource, error) {
	var out []MobiResource
	for i := start; i < len(records); i++ {
		rec := records[i]
		if resource.IsBoundary(rec) || resource.IsEOF(rec) {
			break
		}
		kind := resource.Classify(rec)
		payload := rec
		var err error
		switch kind {
		case resource.Font:
			payload, err = resource.DecodeFont(rec)
		case resource.Audio, resource.Video:
			payload, err = resource.StripWrapper(rec)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, MobiResource{Kind: kind, Data: payload})
	}
	return out, nil
}

// Read parses a complete PalmDB-framed MOBI/KF8 file from r.
func Read(r io.Reader) (*Mobi, error) {
	db, err := palmdb.Read(r)
	if err != nil {
		return nil, err
	}
	records := make([][]byte, len(db.Records))
	for i, rec := range db.Records {
		records[i] = rec.Data
	}
	if len(records) == 0 {
		return nil, mobierr.New(mobierr.MalformedContainer, "PalmDB container has no records")
	}

	root, err := decodeUnitHeader(records[0])
	if err != nil {
		return nil, err
	}

	m := &Mobi{}

	if root.header.Version >= record0.KF8Version {
		kf8Data, err := parseUnitBody(records, 0, root)
		if err != nil {
			return nil, err
		}
		resources, err := parseResources(records, resourcesStartAfter(0, root.header))
		if err != nil {
			return nil, err
		}
		m.KF8 = kf8Data
		m.Resources = resources
		m.Title = root.fullName
		m.readMetadata(root.exth)
		return m, nil
	}

	mobi6Data, err := parseUnitBody(records, 0, root)
	if err != nil {
		return nil, err
	}
	m.MOBI6 = mobi6Data
	m.Title = root.fullName

	resourceStart := resourcesStartAfter(0, root.header)
	exthForMetadata := root.exth

	if boundaryData, ok := root.exth.Get(record0.EXTHKF8Boundary); ok && len(boundaryData) == 4 {
		boundary := int(binary.BigEndian.Uint32(boundaryData))
		kf8Root, err := decodeUnitHeader(records[boundary])
		if err != nil {
			return nil, err
		}
		kf8Data, err := parseUnitBody(records, boundary, kf8Root)
		if err != nil {
			return nil, err
		}
		m.KF8 = kf8Data
		m.Title = kf8Root.fullName
		exthForMetadata = kf8Root.exth
		resources, err := parseResources(records, resourceStart)
		if err != nil {
			return nil, err
		}
		m.Resources = resources
	} else {
		resources, err := parseResources(records, resourceStart)
		if err != nil {
			return nil, err
		}
		m.Resources = resources
	}

	m.readMetadata(exthForMetadata)
	return m, nil
}
