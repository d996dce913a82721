package model

import (
	"math"
	"time"
)

// OpType is the kind of edit an Operation carries.
type OpType string

const (
	OpInsert    OpType = "insert"
	OpDelete    OpType = "delete"
	OpFormat    OpType = "format"
	OpCursor    OpType = "cursor"
	OpSelection OpType = "selection"
)

// Valid reports whether t is a known operation type.
func (t OpType) Valid() bool {
	switch t {
	case OpInsert, OpDelete, OpFormat, OpCursor, OpSelection:
		return true
	}
	return false
}

// Mutating reports whether operations of this type take part in the total
// order of a content object. Cursor and selection operations are presence
// signals only.
func (t OpType) Mutating() bool {
	return t == OpInsert || t == OpDelete || t == OpFormat
}

// Span is a half-open range [Position, Position+Length) of runes.
type Span struct {
	Position int `json:"position"`
	Length   int `json:"length"`
}

// End returns the exclusive end offset of the span, saturating at
// math.MaxInt.
func (s Span) End() int {
	if s.Length > math.MaxInt-s.Position {
		return math.MaxInt
	}
	return s.Position + s.Length
}

// Operation is one edit event on a content object.
//
// Version is the content version the operation is expressed against when it
// is submitted, and the version it produced once committed. Presence
// operations keep the version current at the time they were recorded.
//
// A committed delete whose range was split by a concurrent insert carries
// the surviving pieces in Spans, ordered by position; Position and Length
// then describe the first piece and the total removed length.
type Operation struct {
	ID        string    `db:"id" json:"id"`
	ContentID string    `db:"content_id" json:"content_id"`
	ActorID   string    `db:"actor_id" json:"actor_id"`
	Type      OpType    `db:"type" json:"type"`
	Position  int       `db:"position" json:"position"`
	Length    int       `db:"length" json:"length"`
	Text      string    `db:"text" json:"text,omitempty"`
	Version   int64     `db:"version" json:"version"`
	Spans     Spans     `db:"spans" json:"spans,omitempty"`
	Meta      Meta      `db:"meta" json:"meta,omitempty"`
	Seq       int64     `db:"seq" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Actor *User `db:"-" json:"actor,omitempty"`
}

// Ranges returns the spans the operation covers. Single-range operations
// report their Position and Length as one span.
func (o *Operation) Ranges() []Span {
	if len(o.Spans) > 0 {
		return o.Spans
	}
	return []Span{{Position: o.Position, Length: o.Length}}
}

// SetRanges stores spans on the operation, collapsing to the single-range
// form when only one span remains.
func (o *Operation) SetRanges(spans []Span) {
	switch len(spans) {
	case 0:
		o.Length = 0
		o.Spans = nil
	case 1:
		o.Position = spans[0].Position
		o.Length = spans[0].Length
		o.Spans = nil
	default:
		total := 0
		for _, s := range spans {
			total += s.Length
		}
		o.Position = spans[0].Position
		o.Length = total
		o.Spans = spans
	}
}

// IsNoop reports whether a committed mutating operation has no effect on
// the content data.
func (o *Operation) IsNoop() bool {
	switch o.Type {
	case OpInsert:
		return o.Text == ""
	case OpDelete, OpFormat:
		return o.Length == 0
	}
	return true
}

// Clone returns a deep copy of the operation.
func (o *Operation) Clone() *Operation {
	c := *o
	if o.Spans != nil {
		c.Spans = append(Spans(nil), o.Spans...)
	}
	if o.Meta != nil {
		c.Meta = o.Meta.Clone()
	}
	return &c
}
