package ot

import "collab-go/internal/model"

// Apply returns data with op applied. It never fails: positions and lengths
// outside the document are clamped to its bounds. Operations that do not
// change text (format, cursor, selection) return data unchanged.
func Apply(data string, op *model.Operation) string {
	switch op.Type {
	case model.OpInsert:
		if op.Text == "" {
			return data
		}
		r := []rune(data)
		p := clamp(op.Position, 0, len(r))
		out := make([]rune, 0, len(r)+len(op.Text))
		out = append(out, r[:p]...)
		out = append(out, []rune(op.Text)...)
		return string(append(out, r[p:]...))
	case model.OpDelete:
		r := []rune(data)
		ranges := op.Ranges()
		for i := len(ranges) - 1; i >= 0; i-- {
			p := clamp(ranges[i].Position, 0, len(r))
			e := p + clamp(ranges[i].Length, 0, len(r)-p)
			if e == p {
				continue
			}
			r = append(r[:p:p], r[e:]...)
		}
		return string(r)
	default:
		return data
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
