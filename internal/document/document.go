// Package document defines the structural events the preprocessor consumes
// and the substitution pass that writes rendered blocks back into the source.
//
// The preprocessor never parses markdown itself. Any parser can drive it by
// implementing EventSource over the document text.
package document

import (
	"fmt"

	enverrors "github.com/conneroisu/mdbook-env/internal/errors"
)

// EventKind identifies a structural event.
type EventKind int

const (
	// EventHeading is the start of a heading. Level is 1 for the top level.
	EventHeading EventKind = iota
	// EventCodeBlock is the start of a fenced code block. Info holds the
	// info string and the span covers the block from the opening fence to
	// the end of the closing fence marker.
	EventCodeBlock
)

// String returns the string representation of the EventKind
func (k EventKind) String() string {
	switch k {
	case EventHeading:
		return "heading"
	case EventCodeBlock:
		return "code_block"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range [Start, End) of the document text.
type Span struct {
	Start int
	End   int
}

// Len returns the length of the span in bytes.
func (s Span) Len() int {
	return s.End - s.Start
}

// Event is one structural event with its byte span.
type Event struct {
	Kind  EventKind
	Level int
	Info  string
	Span  Span
}

// EventSource yields the events of one document in document order. It is
// finite and cannot be restarted: Next returns false once exhausted.
type EventSource interface {
	Next() (Event, bool)
}

// SliceSource is an EventSource over a fixed list of events.
type SliceSource struct {
	events []Event
	pos    int
}

// NewSliceSource returns an EventSource yielding events in order.
func NewSliceSource(events ...Event) *SliceSource {
	return &SliceSource{events: events}
}

// Next implements EventSource.
func (s *SliceSource) Next() (Event, bool) {
	if s.pos >= len(s.events) {
		return Event{}, false
	}
	e := s.events[s.pos]
	s.pos++
	return e, true
}

// Collect drains src into a slice.
func Collect(src EventSource) []Event {
	var events []Event
	for {
		e, ok := src.Next()
		if !ok {
			return events
		}
		events = append(events, e)
	}
}

// Substitution replaces the bytes of Span with "\n" + Text.
type Substitution struct {
	Span Span
	Text string
}

// Splice applies subs, given in document order, to content. Substitutions
// are applied from the last to the first so that the offsets of earlier
// spans stay valid while later ones are replaced. Text outside the spans is
// preserved byte for byte.
func Splice(content string, subs []Substitution) (string, error) {
	prevEnd := len(content)
	for i := len(subs) - 1; i >= 0; i-- {
		s := subs[i].Span
		if s.Start < 0 || s.End < s.Start || s.End > prevEnd {
			return "", enverrors.NewInternalError(
				enverrors.ErrCodeInvalidSpan,
				fmt.Sprintf("span [%d, %d) is out of order or out of range", s.Start, s.End),
				nil,
			).WithOffset(s.Start)
		}
		prevEnd = s.Start
	}

	for i := len(subs) - 1; i >= 0; i-- {
		s := subs[i]
		content = content[:s.Span.Start] + "\n" + s.Text + content[s.Span.End:]
	}
	return content, nil
}
