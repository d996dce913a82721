package collab

import (
	"context"
	"fmt"
	"time"

	"collab-go/internal/model"
)

// CursorInput is a presence update. Length is the selection width and is
// only meaningful for selections.
type CursorInput struct {
	Type     model.OpType `json:"type"`
	Position int          `json:"position"`
	Length   int          `json:"length"`
	Color    string       `json:"color"`
	Meta     model.Meta   `json:"meta"`
}

// UpdateCursor records the actor's cursor or selection at the current
// content version. It takes no content lock and never changes the content.
func (s *Service) UpdateCursor(ctx context.Context, ref model.Ref, actorID string, in CursorInput) (*model.Operation, error) {
	if in.Type == "" {
		in.Type = model.OpCursor
		if in.Length > 0 {
			in.Type = model.OpSelection
		}
	}
	if in.Type != model.OpCursor && in.Type != model.OpSelection {
		return nil, validationErr("presence type must be cursor or selection")
	}
	if in.Position < 0 || in.Length < 0 {
		return nil, validationErr("position and length must not be negative")
	}

	content, _, err := s.requireView(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}

	meta := in.Meta.Clone()
	if meta == nil {
		meta = model.Meta{}
	}
	if in.Color != "" {
		meta["color"] = in.Color
	}
	if in.Type == model.OpSelection {
		meta["selection"] = model.Span{Position: in.Position, Length: in.Length}
	}

	op := &model.Operation{
		ID:        s.idgen.New(),
		ContentID: content.ID,
		ActorID:   actorID,
		Type:      in.Type,
		Position:  in.Position,
		Length:    in.Length,
		Version:   content.Version,
		Meta:      meta,
		CreatedAt: s.clock.Now(),
	}
	if op.Type == model.OpCursor {
		op.Length = 0
	}

	if err := s.database.CreateOperation(ctx, op); err != nil {
		return nil, wrapErr("recording cursor", err)
	}

	op.Actor = s.decorate(ctx, actorID, map[string]*model.User{})
	s.Announce(ctx, ref, actorID, EventCursorUpdated, op.Version, op)
	return op, nil
}

// ActiveQuery narrows ListActive. A zero Window uses the configured
// presence window.
type ActiveQuery struct {
	Window      time.Duration
	IncludeSelf bool
}

// ListActive returns the latest presence signal of every actor seen within
// the window, decorated with identity. The caller is left out unless
// IncludeSelf is set.
func (s *Service) ListActive(ctx context.Context, ref model.Ref, actorID string, q ActiveQuery) ([]*model.Operation, error) {
	if q.Window < 0 {
		return nil, validationErr("window must not be negative")
	}
	content, _, err := s.requireView(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}

	window := q.Window
	if window == 0 {
		window = s.opts.PresenceWindow
	}
	exclude := actorID
	if q.IncludeSelf {
		exclude = ""
	}

	since := s.clock.Now().Add(-window)
	ops, err := s.database.FindActivePresence(ctx, content.ID, since, exclude)
	if err != nil {
		return nil, wrapErr(fmt.Sprintf("listing presence on %s", content.ID), err)
	}

	users := make(map[string]*model.User)
	for _, op := range ops {
		op.Actor = s.decorate(ctx, op.ActorID, users)
	}
	return ops, nil
}
