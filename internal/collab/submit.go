package collab

import (
	"context"
	"fmt"
	"math"
	"unicode/utf8"

	"collab-go/internal/model"
	"collab-go/internal/ot"
)

// OperationInput is an edit as submitted by a client. Version is the last
// content version the client had applied.
type OperationInput struct {
	Type     model.OpType `json:"type"`
	Position int          `json:"position"`
	Length   int          `json:"length"`
	Text     string       `json:"text"`
	Version  int64        `json:"version"`
	Meta     model.Meta   `json:"meta"`
}

func (in OperationInput) validate() error {
	if !in.Type.Valid() {
		return validationErr("unknown operation type %q", in.Type)
	}
	if in.Position < 0 {
		return validationErr("position must not be negative")
	}
	if in.Length < 0 {
		return validationErr("length must not be negative")
	}
	if in.Type == model.OpInsert && in.Text == "" {
		return validationErr("insert requires text")
	}
	if in.Type.Mutating() && in.Version < 1 {
		return validationErr("version must be at least 1")
	}
	return nil
}

// Submit reconciles a client operation against everything committed since
// the version it was produced against, applies it, and returns the committed
// operation carrying the version it produced.
//
// Cursor and selection operations are recorded as presence signals and never
// touch the content data or version.
func (s *Service) Submit(ctx context.Context, ref model.Ref, actorID string, in OperationInput) (*model.Operation, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	if !in.Type.Mutating() {
		return s.UpdateCursor(ctx, ref, actorID, CursorInput{
			Type:     in.Type,
			Position: in.Position,
			Length:   in.Length,
			Meta:     in.Meta,
		})
	}

	content, _, err := s.requireEdit(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}
	if !isText(content.ContentType) {
		return nil, validationErr("content type %s does not accept operations", content.ContentType)
	}

	op := &model.Operation{
		ID:        s.idgen.New(),
		ContentID: content.ID,
		ActorID:   actorID,
		Type:      in.Type,
		Position:  in.Position,
		Length:    in.Length,
		Text:      in.Text,
		Version:   in.Version,
		Meta:      in.Meta,
	}
	if op.Type == model.OpInsert {
		op.Length = 0
	} else {
		op.Text = ""
	}

	unlock, err := s.lockContent(ctx, content.ID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var committed *model.Operation
	err = s.database.UpdateContent(ctx, content.ID, func(tx ContentTx) error {
		current := tx.Content()
		if op.Version > current.Version {
			return fmt.Errorf("client at version %d, server at %d: %w", op.Version, current.Version, ErrVersionConflict)
		}

		pending, err := tx.MutatingOperationsSince(op.Version)
		if err != nil {
			return fmt.Errorf("loading pending operations: %w", err)
		}
		// Whole-blob updates and restores bump the version without an
		// operation; such a window cannot be reconciled.
		if int64(len(pending)) != current.Version-op.Version {
			return fmt.Errorf("history since version %d is not reconcilable: %w", op.Version, ErrVersionConflict)
		}

		if op.Type != model.OpInsert {
			op.Length = min(op.Length, max(baseLength(current.Data, pending)-op.Position, 0))
		}
		result := ot.TransformAll(op, pending)
		current.Data = ot.Apply(current.Data, result)
		current.Version++
		current.UpdatedAt = s.clock.Now()

		result.Version = current.Version
		result.CreatedAt = current.UpdatedAt
		if err := tx.CreateOperation(result); err != nil {
			return fmt.Errorf("storing operation: %w", err)
		}
		if err := tx.SaveContent(current); err != nil {
			return fmt.Errorf("saving content: %w", err)
		}
		committed = result
		return nil
	})
	if err != nil {
		return nil, wrapErr("submitting operation", err)
	}

	s.logger.Debug("operation committed",
		"content", content.ID,
		"op", committed.ID,
		"type", string(committed.Type),
		"from", in.Version,
		"version", committed.Version,
		"noop", committed.IsNoop(),
	)
	s.Announce(ctx, ref, actorID, EventOperationCommitted, committed.Version, committed)
	return committed, nil
}

// baseLength bounds the rune length of the state the pending operations
// were applied to: the current length plus every pending deletion.
func baseLength(data string, pending []*model.Operation) int {
	n := utf8.RuneCountInString(data)
	for _, p := range pending {
		if p.Type != model.OpDelete {
			continue
		}
		for _, s := range p.Ranges() {
			if s.Length > math.MaxInt-n {
				return math.MaxInt
			}
			n += s.Length
		}
	}
	return n
}

// ListOperations returns committed mutating operations after sinceVersion so
// a client can catch up without reloading the whole content. Creation, whole
// updates and restores bump the version without an operation; a window that
// spans one of them cannot be replayed and fails with ErrVersionConflict.
func (s *Service) ListOperations(ctx context.Context, ref model.Ref, actorID string, sinceVersion int64, limit int) ([]*model.Operation, error) {
	content, _, err := s.requireView(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}
	if sinceVersion < 0 {
		return nil, validationErr("since must not be negative")
	}
	if sinceVersion > content.Version {
		return nil, fmt.Errorf("client at version %d, server at %d: %w", sinceVersion, content.Version, ErrVersionConflict)
	}

	ops, err := s.database.FindOperationsSince(ctx, ref.ContentID, sinceVersion, limit)
	if err != nil {
		return nil, wrapErr("listing operations", err)
	}

	want := content.Version - sinceVersion
	if limit > 0 {
		want = min(want, int64(limit))
	}
	if int64(len(ops)) < want || !contiguous(ops, sinceVersion) {
		return nil, fmt.Errorf("history since version %d is not replayable: %w", sinceVersion, ErrVersionConflict)
	}
	return ops, nil
}

// contiguous reports whether ops carry the versions after since with no gap.
func contiguous(ops []*model.Operation, since int64) bool {
	for i, op := range ops {
		if op.Version != since+int64(i)+1 {
			return false
		}
	}
	return true
}
