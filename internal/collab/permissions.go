package collab

import (
	"context"
	"fmt"

	"collab-go/internal/model"
)

// Grant is one entry of a bulk permission update. An empty UserID is the
// default grant for every space member.
type Grant struct {
	UserID string     `json:"user_id"`
	Role   model.Role `json:"role"`
}

// Resolve returns the role of userID on a content object. An explicit grant
// wins over the default grant; no grant at all is the empty role.
func (s *Service) Resolve(ctx context.Context, contentID, userID string) (model.Role, error) {
	if userID != "" {
		p, err := s.database.FindPermission(ctx, contentID, userID)
		if err != nil {
			return "", wrapErr("resolving permission", err)
		}
		if p != nil {
			return p.Role, nil
		}
	}

	p, err := s.database.FindPermission(ctx, contentID, "")
	if err != nil {
		return "", wrapErr("resolving default permission", err)
	}
	if p != nil {
		return p.Role, nil
	}
	return "", nil
}

// ListPermissions returns every grant on a content object.
func (s *Service) ListPermissions(ctx context.Context, ref model.Ref, actorID string) ([]*model.Permission, error) {
	if _, _, err := s.requireView(ctx, ref, actorID); err != nil {
		return nil, err
	}
	perms, err := s.database.FindPermissionsForContent(ctx, ref.ContentID)
	if err != nil {
		return nil, wrapErr("listing permissions", err)
	}
	return perms, nil
}

// UpdatePermissions replaces every non-owner grant on a content object.
// The actor must own the content or administer the space. Owner entries in
// grants are ignored and existing owner grants are kept.
func (s *Service) UpdatePermissions(ctx context.Context, ref model.Ref, actorID string, grants []Grant) ([]*model.Permission, error) {
	content, role, err := s.access(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}
	if role != model.RoleOwner {
		admin, err := s.isAdmin(ctx, ref.SpaceID, actorID)
		if err != nil {
			return nil, err
		}
		if !admin {
			return nil, fmt.Errorf("updating permissions: %w", ErrPermissionDenied)
		}
	}

	now := s.clock.Now()
	seen := make(map[string]bool, len(grants))
	rows := make([]*model.Permission, 0, len(grants))
	for _, g := range grants {
		if !g.Role.Valid() {
			return nil, validationErr("unknown role %q", g.Role)
		}
		if g.Role == model.RoleOwner {
			s.logger.Warn("ignoring owner grant in bulk update", "content", content.ID, "user", g.UserID, "actor", actorID)
			continue
		}
		if seen[g.UserID] {
			return nil, validationErr("duplicate grant for user %q", g.UserID)
		}
		seen[g.UserID] = true
		rows = append(rows, &model.Permission{
			ContentID: content.ID,
			UserID:    g.UserID,
			Role:      g.Role,
			GrantedBy: actorID,
			CreatedAt: now,
		})
	}

	if err := s.database.ReplacePermissions(ctx, content.ID, rows); err != nil {
		return nil, wrapErr("replacing permissions", err)
	}

	perms, err := s.database.FindPermissionsForContent(ctx, content.ID)
	if err != nil {
		return nil, wrapErr("listing permissions", err)
	}

	s.logger.Info("permissions updated", "content", content.ID, "actor", actorID, "grants", len(rows))
	s.Announce(ctx, ref, actorID, EventPermissionsUpdated, content.Version, perms)
	return perms, nil
}
