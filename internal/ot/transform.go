package ot

import (
	"unicode/utf8"

	"collab-go/internal/model"
)

// Transform rewrites a so that it can be applied after b, where a and b were
// both produced against the same state. b must be a mutating operation that
// is already ordered before a. The result is a new operation; a is unchanged.
func Transform(a, b *model.Operation) *model.Operation {
	out := a.Clone()
	if !b.Type.Mutating() {
		return out
	}

	switch b.Type {
	case model.OpInsert:
		afterInsert(out, a, b)
	case model.OpDelete:
		// Pieces of a split delete are removed right to left, so each piece is
		// valid against the state left by the pieces after it.
		ranges := b.Ranges()
		for i := len(ranges) - 1; i >= 0; i-- {
			afterDelete(out, ranges[i])
		}
	case model.OpFormat:
		// Formatting never moves text.
	}
	return out
}

// TransformAll transforms a against each committed operation in order.
func TransformAll(a *model.Operation, committed []*model.Operation) *model.Operation {
	out := a.Clone()
	for _, b := range committed {
		out = Transform(out, b)
	}
	return out
}

// HasPriority reports whether a is placed before b when both insert at the
// same offset. The order is fixed by actor id, then operation id, then text,
// so every replica breaks the tie the same way.
func HasPriority(a, b *model.Operation) bool {
	if a.ActorID != b.ActorID {
		return a.ActorID < b.ActorID
	}
	if a.ID != b.ID {
		return a.ID < b.ID
	}
	return a.Text < b.Text
}

func afterInsert(out, a, b *model.Operation) {
	q := b.Position
	n := utf8.RuneCountInString(b.Text)
	if n == 0 {
		return
	}

	switch out.Type {
	case model.OpInsert:
		if q < out.Position || (q == out.Position && !HasPriority(a, b)) {
			out.Position += n
		}
	case model.OpCursor:
		if q <= out.Position {
			out.Position += n
		}
	case model.OpDelete:
		var spans []model.Span
		for _, s := range out.Ranges() {
			switch {
			case q <= s.Position:
				spans = append(spans, model.Span{Position: s.Position + n, Length: s.Length})
			case q < s.End():
				spans = append(spans,
					model.Span{Position: s.Position, Length: q - s.Position},
					model.Span{Position: q + n, Length: s.End() - q},
				)
			default:
				spans = append(spans, s)
			}
		}
		out.SetRanges(spans)
	case model.OpFormat, model.OpSelection:
		switch {
		case q <= out.Position:
			out.Position += n
		case q < out.Position+out.Length:
			out.Length += n
		}
	}
}

func afterDelete(out *model.Operation, d model.Span) {
	switch out.Type {
	case model.OpInsert, model.OpCursor:
		if d.Position < out.Position {
			out.Position -= min(d.Length, out.Position-d.Position)
		}
	case model.OpDelete:
		ranges := out.Ranges()
		first := shrink(ranges[0], d)
		var spans []model.Span
		for _, s := range ranges {
			s = shrink(s, d)
			if s.Length == 0 {
				continue
			}
			if last := len(spans) - 1; last >= 0 && spans[last].End() == s.Position {
				spans[last].Length += s.Length
				continue
			}
			spans = append(spans, s)
		}
		if len(spans) == 0 {
			// Fully covered: keep the operation as a positioned no-op.
			out.Position = first.Position
		}
		out.SetRanges(spans)
	case model.OpFormat, model.OpSelection:
		s := shrink(model.Span{Position: out.Position, Length: out.Length}, d)
		out.Position, out.Length = s.Position, s.Length
	}
}

// shrink maps span s onto the state after d has been removed.
func shrink(s, d model.Span) model.Span {
	switch {
	case s.End() <= d.Position:
		return s
	case s.Position >= d.End():
		return model.Span{Position: s.Position - d.Length, Length: s.Length}
	default:
		overlap := min(s.End(), d.End()) - max(s.Position, d.Position)
		return model.Span{Position: min(s.Position, d.Position), Length: s.Length - overlap}
	}
}
