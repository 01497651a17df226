package mobi

import (
	"time"

	"github.com/htol/gomobi/record0"
)

// creatorSoftware is the value this library stamps into every EXTH block
// it writes, identifying itself the way the teacher's converter always
// identifies itself to readers.
const creatorSoftware = "gomobi"

// knownEXTHTags are the tags applyMetadata/readMetadata interpret into a
// named field on Mobi. Anything else round-trips through unknownEXTH
// instead.
var knownEXTHTags = map[uint32]bool{
	record0.EXTHAuthor:          true,
	record0.EXTHPublisher:       true,
	record0.EXTHDescription:     true,
	record0.EXTHSubject:         true,
	record0.EXTHPublishedDate:   true,
	record0.EXTHRights:          true,
	record0.EXTHKF8Boundary:     true,
	record0.EXTHCreatorSoftware: true,
}

// applyMetadata copies m's flat metadata fields into exth, the EXTH block
// belonging to whichever unit is about to become the book's primary unit.
func (m *Mobi) applyMetadata(exth *record0.Exth) {
	exth.Records = append(exth.Records, m.unknownEXTH...)
	exth.SetString(record0.EXTHCreatorSoftware, creatorSoftware)
	if m.Author != "" {
		exth.SetString(record0.EXTHAuthor, m.Author)
	}
	if m.Publisher != "" {
		exth.SetString(record0.EXTHPublisher, m.Publisher)
	}
	if m.Description != "" {
		exth.SetString(record0.EXTHDescription, m.Description)
	}
	for _, subject := range m.Subjects {
		exth.AddRepeatable(record0.EXTHSubject, []byte(subject))
	}
	if !m.PublishingDate.IsZero() {
		exth.SetString(record0.EXTHPublishedDate, m.PublishingDate.UTC().Format(time.RFC3339))
	}
	if m.Copyright != "" {
		exth.SetString(record0.EXTHRights, m.Copyright)
	}
}

// readMetadata populates m's flat metadata fields from exth. A published
// date that doesn't parse under any recognized layout falls back to the
// current time rather than failing the whole read (spec.md explicitly
// excludes fuzzy date-parsing heuristics from scope; this is a plain
// best-effort layout chain, not a natural-language date parser).
func (m *Mobi) readMetadata(exth *record0.Exth) {
	if v, ok := exth.Get(record0.EXTHAuthor); ok {
		m.Author = string(v)
	}
	if v, ok := exth.Get(record0.EXTHPublisher); ok {
		m.Publisher = string(v)
	}
	if v, ok := exth.Get(record0.EXTHDescription); ok {
		m.Description = string(v)
	}
	for _, v := range exth.GetAll(record0.EXTHSubject) {
		m.Subjects = append(m.Subjects, string(v))
	}
	if v, ok := exth.Get(record0.EXTHPublishedDate); ok {
		m.PublishingDate = parsePublishedDate(string(v))
	}
	if v, ok := exth.Get(record0.EXTHRights); ok {
		m.Copyright = string(v)
	}
	for _, r := range exth.Records {
		if !knownEXTHTags[r.Tag] {
			m.unknownEXTH = append(m.unknownEXTH, r)
		}
	}
}

// parsePublishedDate tries, in order, a full RFC3339 timestamp, a bare
// date, and a bare year, falling back to the current time when none match.
func parsePublishedDate(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t
	}
	if t, err := time.Parse("2006", s); err == nil {
		return t
	}
	return time.Now()
}
