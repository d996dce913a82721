package collab

import (
	"context"
	"fmt"

	"collab-go/internal/model"
)

// SpaceInput describes a new collaborative space.
type SpaceInput struct {
	ChannelID   string          `json:"channel_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Kind        model.SpaceKind `json:"kind"`
	Settings    model.Meta      `json:"settings"`
}

// ContentInput describes a new content object. Empty fields are seeded from
// the space kind.
type ContentInput struct {
	ContentType string     `json:"content_type"`
	Data        *string    `json:"content_data"`
	Metadata    model.Meta `json:"metadata"`
	DefaultRole model.Role `json:"default_role"`
}

// CreateSpace creates a space together with its initial content object.
// The creator becomes an admin member of the space and owner of the content.
func (s *Service) CreateSpace(ctx context.Context, actorID string, in SpaceInput) (*model.Space, *model.Content, error) {
	if actorID == "" {
		return nil, nil, ErrNotAuthenticated
	}
	if in.Title == "" {
		return nil, nil, validationErr("title is required")
	}
	if !in.Kind.Valid() {
		return nil, nil, validationErr("unknown space kind %q", in.Kind)
	}

	now := s.clock.Now()
	space := &model.Space{
		ID:          s.idgen.New(),
		ChannelID:   in.ChannelID,
		Title:       in.Title,
		Description: in.Description,
		Kind:        in.Kind,
		Settings:    in.Settings,
		CreatorID:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if space.Settings == nil {
		space.Settings = model.Meta{}
	}

	contentType, data, metadata := initialContent(in.Kind, in.Title, in.Settings)
	content := &model.Content{
		ID:          s.idgen.New(),
		SpaceID:     space.ID,
		ContentType: contentType,
		Data:        data,
		Metadata:    metadata,
		Version:     1,
		CreatorID:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.database.CreateSpace(ctx, space, content, s.initialGrants(content, s.opts.DefaultRole)); err != nil {
		return nil, nil, wrapErr("creating space", err)
	}

	s.logger.Info("space created", "space", space.ID, "kind", string(space.Kind), "content", content.ID)
	return space, content, nil
}

// AddMember adds userID to a space. Only space admins may add members.
func (s *Service) AddMember(ctx context.Context, spaceID, actorID, userID string, admin bool) error {
	if _, err := s.requireMember(ctx, spaceID, actorID); err != nil {
		return err
	}
	isAdmin, err := s.isAdmin(ctx, spaceID, actorID)
	if err != nil {
		return err
	}
	if !isAdmin {
		return fmt.Errorf("adding member: %w", ErrPermissionDenied)
	}
	if userID == "" {
		return validationErr("user is required")
	}

	member := &model.SpaceMember{SpaceID: spaceID, UserID: userID, IsAdmin: admin, CreatedAt: s.clock.Now()}
	if err := s.database.AddSpaceMember(ctx, member); err != nil {
		return wrapErr("adding member", err)
	}
	return nil
}

// CreateContent adds a content object to a space. The creator receives the
// owner grant.
func (s *Service) CreateContent(ctx context.Context, spaceID, actorID string, in ContentInput) (*model.Content, error) {
	space, err := s.requireMember(ctx, spaceID, actorID)
	if err != nil {
		return nil, err
	}

	defaultRole := s.opts.DefaultRole
	if in.DefaultRole != "" {
		if !in.DefaultRole.Valid() || in.DefaultRole == model.RoleOwner {
			return nil, validationErr("invalid default role %q", in.DefaultRole)
		}
		defaultRole = in.DefaultRole
	}

	contentType, data, metadata := initialContent(space.Kind, space.Title, space.Settings)
	if in.ContentType != "" {
		contentType = in.ContentType
	}
	if in.Data != nil {
		data = *in.Data
	}
	if in.Metadata != nil {
		metadata = in.Metadata
	}

	now := s.clock.Now()
	content := &model.Content{
		ID:          s.idgen.New(),
		SpaceID:     space.ID,
		ContentType: contentType,
		Data:        data,
		Metadata:    metadata,
		Version:     1,
		CreatorID:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.database.CreateContent(ctx, content, s.initialGrants(content, defaultRole)); err != nil {
		return nil, wrapErr("creating content", err)
	}

	s.logger.Info("content created", "space", space.ID, "content", content.ID)
	return content, nil
}

// ListContents returns the content objects of a space the actor may view.
func (s *Service) ListContents(ctx context.Context, spaceID, actorID string) ([]*model.Content, error) {
	if _, err := s.requireMember(ctx, spaceID, actorID); err != nil {
		return nil, err
	}

	contents, err := s.database.FindContentsForSpace(ctx, spaceID)
	if err != nil {
		return nil, wrapErr("listing contents", err)
	}

	visible := make([]*model.Content, 0, len(contents))
	for _, c := range contents {
		role, err := s.Resolve(ctx, c.ID, actorID)
		if err != nil {
			return nil, err
		}
		if role.CanView() {
			visible = append(visible, c)
		}
	}
	return visible, nil
}

func (s *Service) initialGrants(content *model.Content, defaultRole model.Role) []*model.Permission {
	grants := []*model.Permission{{
		ContentID: content.ID,
		UserID:    content.CreatorID,
		Role:      model.RoleOwner,
		GrantedBy: content.CreatorID,
		CreatedAt: content.CreatedAt,
	}}
	if defaultRole != "" {
		grants = append(grants, &model.Permission{
			ContentID: content.ID,
			Role:      defaultRole,
			GrantedBy: content.CreatorID,
			CreatedAt: content.CreatedAt,
		})
	}
	return grants
}
