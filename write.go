package mobi

import (
	"encoding/binary"
	"io"

	"github.com/htol/gomobi/index"
	"github.com/htol/gomobi/kf8"
	"github.com/htol/gomobi/palmdb"
	"github.com/htol/gomobi/record0"
	"github.com/htol/gomobi/resource"
)

// preparedUnit holds everything about a MobiData that can be computed
// before its header_length-dependent full_name_offset is known.
type preparedUnit struct {
	textRecords [][]byte
	fdstRecord  []byte
	fdstCount   uint32
	skelRecords [][]byte
	firstRec    uint16
	lastRec     uint16
	fdstRel     *uint32
	skelRel     *uint32
	fcisRel     uint32
	flisRel     uint32
}

func splitIntoRecords(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return [][]byte{{}}
	}
	var out [][]byte
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

func prepareUnit(data *MobiData, isKF8 bool) (*preparedUnit, error) {
	var flow0 []byte
	var skel, frag *index.Index
	if isKF8 && len(data.Parts) > 0 {
		flow0, skel, frag = kf8.Flatten(data.Parts)
	} else if len(data.Flow) > 0 {
		flow0 = data.Flow[0]
	}

	allFlows := [][]byte{flow0}
	if len(data.Flow) > 1 {
		allFlows = append(allFlows, data.Flow[1:]...)
	}

	p := &preparedUnit{}
	var text []byte
	if len(allFlows) > 1 {
		var fdst *record0.Fdst
		text, fdst = record0.Join(allFlows)
		p.fdstRecord = fdst.Encode()
		p.fdstCount = uint32(len(allFlows))
	} else {
		text = flow0
	}
	p.textRecords = splitIntoRecords(text, textRecordSize)
	p.firstRec = 1
	p.lastRec = uint16(len(p.textRecords))

	rel := p.firstRec + p.lastRec
	if p.fdstRecord != nil {
		v := uint32(rel)
		p.fdstRel = &v
		rel++
	}
	if skel != nil && len(skel.Entries) > 0 {
		recs, err := skel.Encode()
		if err != nil {
			return nil, err
		}
		p.skelRecords = recs
		v := uint32(rel)
		p.skelRel = &v
		rel += uint16(len(recs))
	}
	_ = frag // the writer never produces a non-empty FRAG index; see kf8.Flatten.
	p.fcisRel = uint32(rel)
	p.flisRel = uint32(rel) + 1
	return p, nil
}

func fcisTemplate(textLen uint32) []byte {
	buf := make([]byte, 36)
	copy(buf[0:4], "FCIS")
	binary.BigEndian.PutUint32(buf[4:8], 20)
	binary.BigEndian.PutUint32(buf[8:12], textLen)
	binary.BigEndian.PutUint32(buf[12:16], 0)
	binary.BigEndian.PutUint32(buf[16:20], 0xFFFFFFFF)
	binary.BigEndian.PutUint32(buf[20:24], 0)
	binary.BigEndian.PutUint32(buf[24:28], 1)
	return buf
}

func flisTemplate() []byte {
	buf := make([]byte, 36)
	copy(buf[0:4], "FLIS")
	binary.BigEndian.PutUint32(buf[4:8], 8)
	binary.BigEndian.PutUint32(buf[8:12], 0x41)
	binary.BigEndian.PutUint32(buf[28:32], 0xFFFFFFFF)
	buf[32] = 1
	return buf
}

// finalizeUnit encodes the record-0 payload once header, exth and fullName
// are settled, and returns record0's bytes plus every record that follows
// it for this unit, in write order.
func finalizeUnit(p *preparedUnit, header *record0.Header, exth *record0.Exth, fullName string) ([]byte, [][]byte) {
	header.FullNameOffset = uint32(record0.PreambleSize + record0.HeaderSize + exth.Len())
	header.FullNameLength = uint32(len(fullName))

	var textLen uint32
	for _, t := range p.textRecords {
		textLen += uint32(len(t))
	}

	preamble := record0.Preamble{
		Compression:     record0.NoCompression,
		TextLength:      textLen,
		TextRecordCount: uint16(len(p.textRecords)),
		TextRecordSize:  textRecordSize,
		Encryption:      record0.NoEncryption,
	}

	var buf []byte
	pw := newByteWriter(&buf)
	_ = preamble.Encode(pw)
	buf = append(buf, header.Encode()...)
	ew := newByteWriter(&buf)
	_, _ = exth.Encode(ew)
	buf = append(buf, []byte(fullName)...)
	buf = append(buf, 0)

	rest := append([][]byte{}, p.textRecords...)
	if p.fdstRecord != nil {
		rest = append(rest, p.fdstRecord)
	}
	rest = append(rest, p.skelRecords...)
	rest = append(rest, fcisTemplate(textLen), flisTemplate())
	return buf, rest
}

// byteWriter adapts a growable []byte to io.Writer without pulling in
// bytes.Buffer for this one call site.
type byteWriter struct{ buf *[]byte }

func newByteWriter(buf *[]byte) *byteWriter { return &byteWriter{buf: buf} }

func (w *byteWriter) Write(p []byte) (int, error) {
	*w.buf = append(*w.buf, p...)
	return len(p), nil
}

func encodeResource(r MobiResource) ([]byte, error) {
	switch r.Kind {
	case resource.Font:
		return resource.EncodeFont(r.Data)
	case resource.Audio:
		return resource.AddWrapper(resource.Audio, r.Data)
	case resource.Video:
		return resource.AddWrapper(resource.Video, r.Data)
	default:
		return r.Data, nil
	}
}

// Write serializes m as a PalmDB-framed MOBI/KF8 file. A default-constructed
// Mobi (neither unit set) writes out as an empty MOBI6 book, the same way a
// zero-value struct in any other teacher package degrades to its emptiest
// valid wire representation rather than erroring.
func (m *Mobi) Write(w io.Writer) error {
	if m.MOBI6 == nil && m.KF8 == nil {
		m.MOBI6 = &MobiData{}
	}

	var resourceRecords [][]byte
	for _, r := range m.Resources {
		enc, err := encodeResource(r)
		if err != nil {
			return err
		}
		resourceRecords = append(resourceRecords, enc)
	}

	var records [][]byte

	firstData, firstIsKF8 := m.MOBI6, false
	if firstData == nil {
		firstData, firstIsKF8 = m.KF8, true
	}
	firstPrepared, err := prepareUnit(firstData, firstIsKF8)
	if err != nil {
		return err
	}

	firstHeader := &record0.Header{
		MobiType:         record0.TypeBook,
		TextEncoding:     record0.UTF8Encoding,
		Version:          versionFor(firstData, firstIsKF8),
		MinVersion:       versionFor(firstData, firstIsKF8),
		EXTHFlags:        0x40,
		FirstContentRec:  firstPrepared.firstRec,
		LastContentRec:   firstPrepared.lastRec,
		FDSTIndex:        firstPrepared.fdstRel,
		FDSTSectionCount: firstPrepared.fdstCount,
		FCISIndex:        &firstPrepared.fcisRel,
		FCISCount:        1,
		FLISIndex:        &firstPrepared.flisRel,
		FLISCount:        1,
	}
	if firstIsKF8 {
		firstHeader.SkelIndex = firstPrepared.skelRel
	}

	firstExth := &record0.Exth{}
	hybrid := m.MOBI6 != nil && m.KF8 != nil
	if !hybrid || firstIsKF8 {
		m.applyMetadata(firstExth)
	}

	if hybrid {
		kf8Boundary := 1 + len(firstPrepared.textRecords)
		if firstPrepared.fdstRecord != nil {
			kf8Boundary++
		}
		kf8Boundary += len(firstPrepared.skelRecords)
		kf8Boundary += 2 // FCIS, FLIS
		kf8Boundary += len(resourceRecords) + 1 // resources + BOUNDARY
		var boundary [4]byte
		binary.BigEndian.PutUint32(boundary[:], uint32(kf8Boundary))
		firstExth.Set(record0.EXTHKF8Boundary, boundary[:])
	}

	record0Bytes, firstRest := finalizeUnit(firstPrepared, firstHeader, firstExth, m.Title)
	records = append(records, record0Bytes)
	records = append(records, firstRest...)
	records = append(records, resourceRecords...)
	records = append(records, []byte(resource.Boundary))

	if hybrid {
		secondPrepared, err := prepareUnit(m.KF8, true)
		if err != nil {
			return err
		}
		secondHeader := &record0.Header{
			MobiType:         record0.TypeBook,
			TextEncoding:     record0.UTF8Encoding,
			Version:          versionFor(m.KF8, true),
			MinVersion:       versionFor(m.KF8, true),
			EXTHFlags:        0x40,
			FirstContentRec:  secondPrepared.firstRec,
			LastContentRec:   secondPrepared.lastRec,
			FDSTIndex:        secondPrepared.fdstRel,
			FDSTSectionCount: secondPrepared.fdstCount,
			SkelIndex:        secondPrepared.skelRel,
			FCISIndex:        &secondPrepared.fcisRel,
			FCISCount:        1,
			FLISIndex:        &secondPrepared.flisRel,
			FLISCount:        1,
		}
		secondExth := &record0.Exth{}
		m.applyMetadata(secondExth)
		secondBytes, secondRest := finalizeUnit(secondPrepared, secondHeader, secondExth, m.Title)
		records = append(records, secondBytes)
		records = append(records, secondRest...)
	}
	records = append(records, resource.EOFMagic)

	db := &palmdb.PalmDB{}
	db.Header.SetName(m.Title)
	db.Records = make([]palmdb.Record, len(records))
	for i, r := range records {
		db.Records[i] = palmdb.Record{Data: r}
	}

	return db.Write(w)
}

func versionFor(data *MobiData, isKF8 bool) uint32 {
	if data.Version != 0 {
		return data.Version
	}
	if isKF8 {
		return record0.KF8Version
	}
	return record0.MOBI6Version
}
