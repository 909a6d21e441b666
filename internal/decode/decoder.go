// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package decode assembles normalized records from the event subsequence of
// one PubmedArticle subtree. It is a depth-tracked state machine over
// streaming tokens; the call stack never grows with input nesting.
package decode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/pdiddy/pmcollect/internal/xmlstream"
	"github.com/pdiddy/pmcollect/pkg/types"
)

// RecordError is fatal for a single record only: a required field is
// missing or the subtree could not be assembled. The stream remains usable;
// ingestion continues at the next record boundary.
type RecordError struct {
	// RecordID is the partial id, when one was decoded before the failure.
	RecordID string
	// Offset is the byte offset of the record's start element.
	Offset int64
	Reason string
}

func (e *RecordError) Error() string {
	if e.RecordID != "" {
		return fmt.Sprintf("record %s at byte %d: %s", e.RecordID, e.Offset, e.Reason)
	}
	return fmt.Sprintf("record at byte %d: %s", e.Offset, e.Reason)
}

// Decoder turns record subtrees into Records. One Decoder may decode any
// number of records sequentially.
type Decoder struct {
	warn func(types.Warning)
}

// New returns a Decoder. warn receives recoverable decode problems; it may
// be nil.
func New(warn func(types.Warning)) *Decoder {
	return &Decoder{warn: warn}
}

// builder is the field-assembly context for one record.
type builder struct {
	rec    types.Record
	author *types.AuthorRef

	// raw date parts, coerced when the PubDate element closes
	dateYear, dateMonth, dateDay, medlineDate string

	seen   map[string]bool // scalar paths already assigned
	digest *xxhash.Digest
	warn   func(types.Warning)
	offset int64
}

// frame is one open element within the record subtree.
type frame struct {
	name    string
	path    string
	attrs   []xmlstream.Attr
	capture *strings.Builder // non-nil when path has a field rule
	offset  int64
}

// Decode consumes the subtree opened by start (the record's start event,
// already read from r) and returns the assembled Record. A missing PMID
// yields a *RecordError; coercion failures degrade to warnings on the
// builder's warn callback. Errors from the reader (truncation, stream
// corruption) pass through unchanged.
func (d *Decoder) Decode(start xmlstream.Event, r *xmlstream.Reader) (types.Record, error) {
	if start.Kind != xmlstream.KindStart || start.Name != RecordElement {
		return types.Record{}, &RecordError{Offset: start.Offset, Reason: fmt.Sprintf("expected <%s> start, got <%s>", RecordElement, start.Name)}
	}

	b := &builder{
		seen:   make(map[string]bool),
		digest: xxhash.New(),
		warn:   d.warn,
		offset: start.Offset,
	}
	b.hashStart(start)

	var stack []frame
	for {
		ev, err := r.Next()
		if err != nil {
			return types.Record{}, err
		}

		switch ev.Kind {
		case xmlstream.KindStart:
			b.hashStart(ev)
			path := childPath(stack, ev.Name)
			f := frame{name: ev.Name, path: path, attrs: ev.Attr, offset: ev.Offset}
			if _, ok := fieldRules[path]; ok {
				f.capture = &strings.Builder{}
			}
			if g, ok := groupRules[path]; ok && g.enter != nil {
				g.enter(b)
			}
			stack = append(stack, f)

		case xmlstream.KindText:
			b.hashText(ev.Text)
			// Text flows to the nearest capturing ancestor, so markup
			// nested inside a mapped element (<i>, <sup>) does not lose
			// its content.
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].capture != nil {
					stack[i].capture.WriteString(ev.Text)
					stack[i].capture.WriteByte(' ')
					break
				}
			}

		case xmlstream.KindEnd:
			b.hashEnd(ev)
			if len(stack) == 0 {
				// The record element itself closed.
				if ev.Depth != start.Depth {
					return types.Record{}, &RecordError{RecordID: b.rec.ID, Offset: start.Offset, Reason: "unbalanced record subtree"}
				}
				return b.finish(start.Offset)
			}
			// The reader emits balanced events, so this end closes the
			// top frame.
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if f.capture != nil {
				b.assign(f)
			}
			if g, ok := groupRules[f.path]; ok && g.exit != nil {
				g.exit(b, f.offset)
			}
		}
	}
}

// childPath joins the open element names with the new segment, relative to
// the record element.
func childPath(stack []frame, name string) string {
	if len(stack) == 0 {
		return name
	}
	return stack[len(stack)-1].path + "/" + name
}

// assign applies the field rule for a closed capturing frame.
func (b *builder) assign(f frame) {
	text := collapseSpace(f.capture.String())
	if text == "" {
		return
	}
	rule := fieldRules[f.path]
	if rule.mode == modeScalar {
		if b.seen[f.path] {
			b.warnf(types.Warning{
				Code:     types.WarnDuplicateField,
				Message:  fmt.Sprintf("duplicate <%s>: keeping last occurrence", f.name),
				RecordID: b.rec.ID,
				Offset:   f.offset,
			})
		}
		b.seen[f.path] = true
	}
	rule.apply(b, text, f.attrs)
}

// finish validates required fields and returns the completed record.
func (b *builder) finish(offset int64) (types.Record, error) {
	if b.rec.ID == "" {
		return types.Record{}, &RecordError{Offset: offset, Reason: "missing required PMID"}
	}
	// Title is optional, but its absence is unusual enough in real dumps
	// to be worth flagging.
	if b.rec.Title == "" {
		b.warnf(types.Warning{
			Code:     types.WarnMissingField,
			Message:  "record has no title",
			RecordID: b.rec.ID,
			Offset:   offset,
		})
	}
	b.rec.FragmentHash = b.digest.Sum64()
	return b.rec, nil
}

// finishPubDate coerces the collected date parts. Coercion fails soft: an
// unparsable date leaves PubDate absent and records a warning.
func (b *builder) finishPubDate(offset int64) {
	defer func() { b.dateYear, b.dateMonth, b.dateDay, b.medlineDate = "", "", "", "" }()

	if b.dateYear == "" && b.medlineDate != "" {
		if y, ok := yearFromMedlineDate(b.medlineDate); ok {
			b.rec.PubDate = types.PubDate{Year: y}
			return
		}
		b.badDate(offset, b.medlineDate)
		return
	}
	if b.dateYear == "" {
		return // no date present at all; not a warning
	}

	year, err := strconv.Atoi(b.dateYear)
	if err != nil || year <= 0 {
		b.badDate(offset, b.dateYear)
		return
	}
	d := types.PubDate{Year: year}

	if b.dateMonth != "" {
		m, ok := parseMonth(b.dateMonth)
		if !ok {
			b.badDate(offset, b.dateMonth)
			b.rec.PubDate = d // keep the year
			return
		}
		d.Month = m
	}
	if b.dateDay != "" && d.Month != 0 {
		day, err := strconv.Atoi(b.dateDay)
		if err != nil || day < 1 {
			b.badDate(offset, b.dateDay)
		} else {
			if max := daysIn(d.Month); day > max {
				b.warnf(types.Warning{
					Code:     types.WarnBadDate,
					Message:  fmt.Sprintf("day %d clamped to %d for month %d", day, max, d.Month),
					RecordID: b.rec.ID,
					Offset:   offset,
				})
				day = max
			}
			d.Day = day
		}
	}
	b.rec.PubDate = d
}

func (b *builder) badDate(offset int64, value string) {
	b.warnf(types.Warning{
		Code:     types.WarnBadDate,
		Message:  fmt.Sprintf("unparsable date part %q", value),
		RecordID: b.rec.ID,
		Offset:   offset,
	})
}

// addMeshTerm appends a descriptor, keeping the set free of duplicates
// while preserving document order.
func (b *builder) addMeshTerm(term string) {
	for _, t := range b.rec.MeshTerms {
		if t == term {
			return
		}
	}
	b.rec.MeshTerms = append(b.rec.MeshTerms, term)
}

func (b *builder) warnf(w types.Warning) {
	if b.warn != nil {
		b.warn(w)
	}
}

// Fragment hashing: the digest is fed the normalized token stream rather
// than raw bytes, so re-indented or re-encoded dumps of identical content
// hash identically and re-ingestion stays a no-op.

func (b *builder) hashStart(ev xmlstream.Event) {
	b.digest.WriteString("<" + ev.Name)
	for _, a := range ev.Attr {
		b.digest.WriteString("\x00" + a.Name + "\x01" + a.Value)
	}
	b.digest.WriteString("\x02")
}

func (b *builder) hashEnd(ev xmlstream.Event) {
	b.digest.WriteString(">" + ev.Name + "\x02")
}

func (b *builder) hashText(text string) {
	b.digest.WriteString("~" + collapseSpace(text) + "\x02")
}

// collapseSpace trims and collapses internal whitespace runs to single
// spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
