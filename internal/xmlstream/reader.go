// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package xmlstream turns a raw PubMed XML byte stream into a flat sequence
// of structural events. It never materializes the document: memory scales
// with nesting depth and the current text node, not with dump size.
package xmlstream

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"

	"github.com/pdiddy/pmcollect/pkg/types"
)

// DefaultRoot is the container element wrapping repeated record elements in
// PubMed export files.
const DefaultRoot = "PubmedArticleSet"

// Kind discriminates the event variants.
type Kind int

const (
	// KindStart is an element open tag.
	KindStart Kind = iota + 1
	// KindEnd is an element close tag.
	KindEnd
	// KindText is non-whitespace character data inside an element.
	KindText
)

// Attr is one attribute of a start element, in document order.
type Attr struct {
	Name  string
	Value string
}

// Event is one structural event from the stream. Events are transient:
// they are produced and consumed within one record's decode pass.
type Event struct {
	Kind Kind
	// Name is the element local name for start/end events.
	Name string
	// Attr holds the attributes of a start element.
	Attr []Attr
	// Text holds normalized character data for text events.
	Text string
	// Offset is the byte offset of the token in the source stream.
	Offset int64
	// Depth is the number of open ancestor elements. The root start
	// element has depth 0, a record element directly under it depth 1.
	Depth int
}

// StreamError is a fatal, unrecoverable per-source failure: malformed
// container structure, an unreadable encoding, or an I/O error. It is
// distinct from the per-element warnings delivered through the Warn
// callback, which never stop the stream.
type StreamError struct {
	// Offset is the byte offset at which the stream became unreadable.
	Offset int64
	// Truncated reports that the failure was an unexpected end of input
	// inside an open element, i.e. a cut-off dump file.
	Truncated bool
	Err       error
}

func (e *StreamError) Error() string {
	if e.Truncated {
		return fmt.Sprintf("stream truncated at byte %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("stream error at byte %d: %v", e.Offset, e.Err)
}

func (e *StreamError) Unwrap() error { return e.Err }

// Options configures a Reader.
type Options struct {
	// Root is the required container element name. Empty means
	// DefaultRoot. A stream whose root element differs is rejected with
	// a StreamError before any record is produced.
	Root string

	// Warn receives recoverable per-element problems (e.g. text repaired
	// to valid UTF-8, a mismatched close tag healed in place). May be nil.
	Warn func(types.Warning)
}

// Reader is a streaming tokenizer over one XML byte stream. It is stateful
// and sequential: restart only from the beginning of the stream.
//
// Tag matching is done here rather than by the underlying decoder, so that
// a mismatched close tag aborts only the innermost open element's subtree
// instead of unwinding the whole document. The event stream Next produces
// is always balanced: every KindStart is matched by a KindEnd of the same
// name, synthesized if the input never closed the element properly.
type Reader struct {
	dec      *xml.Decoder
	opts     Options
	stack    []string // open element names, outermost first
	rootSeen bool
	err      error

	// pendingEnd is a close tag matching an ancestor (not the innermost
	// element); intervening opens are drained as synthesized ends first.
	pendingEnd    string
	pendingEndOff int64
}

// NewReader wraps r. The decoder honors the character encoding declared in
// the XML prolog (UTF-8 if absent) and runs in non-strict mode so common
// dump malformities (unescaped ampersands, stray entities) do not kill the
// stream.
func NewReader(r io.Reader, opts Options) *Reader {
	dec := xml.NewDecoder(r)
	dec.Strict = false
	dec.CharsetReader = charset.NewReaderLabel
	if opts.Root == "" {
		opts.Root = DefaultRoot
	}
	return &Reader{dec: dec, opts: opts}
}

// InputOffset returns the byte offset the reader has consumed up to.
func (r *Reader) InputOffset() int64 { return r.dec.InputOffset() }

// Next returns the next structural event. It returns io.EOF at the clean
// end of the stream and a *StreamError for fatal failures. Comments,
// processing instructions, directives, and whitespace-only text are
// skipped.
func (r *Reader) Next() (Event, error) {
	if r.err != nil {
		return Event{}, r.err
	}
	if r.pendingEnd != "" {
		return r.drainPending(), nil
	}
	for {
		off := r.dec.InputOffset()
		tok, err := r.dec.RawToken()
		if err != nil {
			if err == io.EOF && len(r.stack) == 0 && r.rootSeen {
				r.err = io.EOF
				return Event{}, io.EOF
			}
			r.err = r.fatal(off, err)
			return Event{}, r.err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if !r.rootSeen {
				if t.Name.Local != r.opts.Root {
					r.err = r.fatal(off, fmt.Errorf("root element is <%s>, want <%s>", t.Name.Local, r.opts.Root))
					return Event{}, r.err
				}
				r.rootSeen = true
			} else if len(r.stack) == 0 {
				r.err = r.fatal(off, fmt.Errorf("second top-level element <%s> after the root closed", t.Name.Local))
				return Event{}, r.err
			}
			ev := Event{Kind: KindStart, Name: t.Name.Local, Offset: off, Depth: len(r.stack)}
			if len(t.Attr) > 0 {
				ev.Attr = make([]Attr, len(t.Attr))
				for i, a := range t.Attr {
					ev.Attr[i] = Attr{Name: a.Name.Local, Value: a.Value}
				}
			}
			r.stack = append(r.stack, t.Name.Local)
			return ev, nil

		case xml.EndElement:
			name := t.Name.Local
			if len(r.stack) == 0 {
				r.warn(types.Warning{
					Code:    types.WarnUnclosedTag,
					Message: fmt.Sprintf("stray close tag </%s> outside any element", name),
					Offset:  off,
				})
				continue
			}
			top := r.stack[len(r.stack)-1]
			if name == top {
				r.stack = r.stack[:len(r.stack)-1]
				return Event{Kind: KindEnd, Name: name, Offset: off, Depth: len(r.stack)}, nil
			}
			if r.onStack(name) {
				// Closes an ancestor: the elements opened since it were
				// never closed. Synthesize their ends one per call.
				r.pendingEnd = name
				r.pendingEndOff = off
				return r.drainPending(), nil
			}
			// Matches nothing open: the innermost element's subtree is
			// unrecoverable. Close it and move on.
			r.warn(types.Warning{
				Code:    types.WarnUnclosedTag,
				Message: fmt.Sprintf("close tag </%s> does not match open <%s>", name, top),
				Offset:  off,
			})
			r.stack = r.stack[:len(r.stack)-1]
			return Event{Kind: KindEnd, Name: top, Offset: off, Depth: len(r.stack)}, nil

		case xml.CharData:
			if len(r.stack) == 0 {
				continue // stray text outside the root
			}
			text := string(t)
			if strings.TrimSpace(text) == "" {
				continue
			}
			if !utf8.ValidString(text) {
				text = strings.ToValidUTF8(text, "�")
				r.warn(types.Warning{
					Code:    types.WarnMalformedText,
					Message: "invalid bytes in text content replaced with U+FFFD",
					Offset:  off,
				})
			}
			return Event{Kind: KindText, Text: text, Offset: off, Depth: len(r.stack)}, nil

		default:
			// Comments, directives, and processing instructions carry no
			// record data.
		}
	}
}

// drainPending emits one close event while a pending ancestor close tag is
// outstanding: a synthesized end for each unclosed inner element, then the
// pending end itself.
func (r *Reader) drainPending() Event {
	top := r.stack[len(r.stack)-1]
	r.stack = r.stack[:len(r.stack)-1]
	if top == r.pendingEnd {
		r.pendingEnd = ""
		return Event{Kind: KindEnd, Name: top, Offset: r.pendingEndOff, Depth: len(r.stack)}
	}
	r.warn(types.Warning{
		Code:    types.WarnUnclosedTag,
		Message: fmt.Sprintf("element <%s> implicitly closed by </%s>", top, r.pendingEnd),
		Offset:  r.pendingEndOff,
	})
	return Event{Kind: KindEnd, Name: top, Offset: r.pendingEndOff, Depth: len(r.stack)}
}

// onStack reports whether name is an open ancestor element.
func (r *Reader) onStack(name string) bool {
	for _, s := range r.stack {
		if s == name {
			return true
		}
	}
	return false
}

// fatal classifies err as a StreamError, marking truncation when the input
// ended inside an open element.
func (r *Reader) fatal(off int64, err error) *StreamError {
	se := &StreamError{Offset: off, Err: err}
	if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
		se.Truncated = len(r.stack) > 0
		return se
	}
	var syn *xml.SyntaxError
	if errors.As(err, &syn) && strings.Contains(syn.Msg, "unexpected EOF") {
		se.Truncated = true
	}
	return se
}

func (r *Reader) warn(w types.Warning) {
	if r.opts.Warn != nil {
		r.opts.Warn(w)
	}
}
