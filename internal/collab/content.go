package collab

import (
	"context"
	"fmt"

	"collab-go/internal/model"
)

// ContentView is a content object together with what the caller may do
// with it.
type ContentView struct {
	*model.Content
	Permissions model.Capabilities `json:"permissions"`
}

// WholeUpdate replaces the content blob outside of the transform path.
type WholeUpdate struct {
	Data           string     `json:"content_data"`
	Metadata       model.Meta `json:"metadata"`
	CreateSnapshot bool       `json:"create_snapshot"`
	Label          string     `json:"label"`
}

// GetContent returns a content object the actor may view.
func (s *Service) GetContent(ctx context.Context, ref model.Ref, actorID string) (*ContentView, error) {
	content, role, err := s.requireView(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}
	return &ContentView{Content: content, Permissions: model.CapabilitiesOf(role)}, nil
}

// UpdateWhole overwrites the content blob and bumps the version by one.
// With CreateSnapshot the state before the update is archived first.
func (s *Service) UpdateWhole(ctx context.Context, ref model.Ref, actorID string, in WholeUpdate) (*model.Content, error) {
	if _, _, err := s.requireEdit(ctx, ref, actorID); err != nil {
		return nil, err
	}

	unlock, err := s.lockContent(ctx, ref.ContentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var b blob
	if in.CreateSnapshot {
		if b, err = s.archiveCurrent(ctx, ref.ContentID); err != nil {
			return nil, err
		}
	}

	var updated *model.Content
	err = s.database.UpdateContent(ctx, ref.ContentID, func(tx ContentTx) error {
		content := tx.Content()
		if in.CreateSnapshot {
			if _, err := s.recordVersion(tx, content, b, actorID, in.Label); err != nil {
				return err
			}
		}

		content.Data = in.Data
		if in.Metadata != nil {
			content.Metadata = in.Metadata
		}
		content.Version++
		content.UpdatedAt = s.clock.Now()
		if err := tx.SaveContent(content); err != nil {
			return fmt.Errorf("saving content: %w", err)
		}
		updated = content
		return nil
	})
	if err != nil {
		return nil, wrapErr("updating content", err)
	}

	s.logger.Info("content replaced", "content", updated.ID, "version", updated.Version, "actor", actorID, "snapshot", in.CreateSnapshot)
	s.Announce(ctx, ref, actorID, EventContentUpdated, updated.Version, updated)
	return updated, nil
}

// DeleteContent removes a content object with its operations, versions,
// permissions and comments. Only the owner or a space admin may delete.
func (s *Service) DeleteContent(ctx context.Context, ref model.Ref, actorID string) error {
	content, role, err := s.access(ctx, ref, actorID)
	if err != nil {
		return err
	}
	if role != model.RoleOwner {
		admin, err := s.isAdmin(ctx, ref.SpaceID, actorID)
		if err != nil {
			return err
		}
		if !admin {
			return fmt.Errorf("deleting content: %w", ErrPermissionDenied)
		}
	}

	unlock, err := s.lockContent(ctx, content.ID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.database.DeleteContent(ctx, content.ID); err != nil {
		return wrapErr("deleting content", err)
	}

	s.logger.Info("content deleted", "content", content.ID, "actor", actorID)
	s.Announce(ctx, ref, actorID, EventContentDeleted, content.Version, nil)
	return nil
}
