package collab

import (
	"context"
	"fmt"
	"strings"

	"collab-go/internal/model"
)

// CommentInput is a new comment. Position is an optional anchor, ParentID
// makes the comment a reply.
type CommentInput struct {
	Text     string     `json:"text"`
	Position model.Meta `json:"position"`
	ParentID *string    `json:"parent_id"`
}

// AddComment adds a comment to a content object. A reply must point at a
// comment on the same content.
func (s *Service) AddComment(ctx context.Context, ref model.Ref, actorID string, in CommentInput) (*model.Comment, error) {
	content, role, err := s.access(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}
	if !role.CanComment() {
		return nil, fmt.Errorf("commenting: %w", ErrPermissionDenied)
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, validationErr("comment text is required")
	}

	var parentID *string
	if in.ParentID != nil && *in.ParentID != "" {
		parent, err := s.database.FindComment(ctx, *in.ParentID)
		if err != nil {
			return nil, wrapErr("finding parent comment", err)
		}
		if parent == nil || parent.ContentID != content.ID {
			return nil, validationErr("parent comment %s does not belong to this content", *in.ParentID)
		}
		parentID = &parent.ID
	}

	now := s.clock.Now()
	comment := &model.Comment{
		ID:        s.idgen.New(),
		ContentID: content.ID,
		AuthorID:  actorID,
		Text:      text,
		Position:  in.Position,
		ParentID:  parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.database.CreateComment(ctx, comment); err != nil {
		return nil, wrapErr("creating comment", err)
	}

	comment.Author = s.decorate(ctx, actorID, map[string]*model.User{})
	s.Announce(ctx, ref, actorID, EventCommentCreated, content.Version, comment)
	return comment, nil
}

// UpdateComment changes the text of a comment. Only its author may edit it.
func (s *Service) UpdateComment(ctx context.Context, ref model.Ref, actorID, commentID, text string) (*model.Comment, error) {
	content, role, err := s.access(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}
	comment, err := s.findComment(ctx, content, commentID)
	if err != nil {
		return nil, err
	}
	if comment.AuthorID != actorID || !role.CanComment() {
		return nil, fmt.Errorf("editing comment: %w", ErrPermissionDenied)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, validationErr("comment text is required")
	}

	comment.Text = text
	comment.UpdatedAt = s.clock.Now()
	if err := s.database.UpdateComment(ctx, comment); err != nil {
		return nil, wrapErr("updating comment", err)
	}

	s.Announce(ctx, ref, actorID, EventCommentUpdated, content.Version, comment)
	return comment, nil
}

// ResolveComment marks a comment resolved or reopens it. Editors, the
// author and space admins may do this.
func (s *Service) ResolveComment(ctx context.Context, ref model.Ref, actorID, commentID string, resolved bool) (*model.Comment, error) {
	content, role, err := s.access(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}
	comment, err := s.findComment(ctx, content, commentID)
	if err != nil {
		return nil, err
	}

	allowed := role.CanEdit() || comment.AuthorID == actorID
	if !allowed {
		if allowed, err = s.isAdmin(ctx, ref.SpaceID, actorID); err != nil {
			return nil, err
		}
	}
	if !allowed {
		return nil, fmt.Errorf("resolving comment: %w", ErrPermissionDenied)
	}

	comment.Resolved = resolved
	comment.UpdatedAt = s.clock.Now()
	if err := s.database.UpdateComment(ctx, comment); err != nil {
		return nil, wrapErr("resolving comment", err)
	}

	s.Announce(ctx, ref, actorID, EventCommentResolved, content.Version, comment)
	return comment, nil
}

// DeleteComment removes a comment and its replies. The author, the content
// creator and space admins may delete.
func (s *Service) DeleteComment(ctx context.Context, ref model.Ref, actorID, commentID string) error {
	content, _, err := s.access(ctx, ref, actorID)
	if err != nil {
		return err
	}
	comment, err := s.findComment(ctx, content, commentID)
	if err != nil {
		return err
	}

	allowed := comment.AuthorID == actorID || content.CreatorID == actorID
	if !allowed {
		if allowed, err = s.isAdmin(ctx, ref.SpaceID, actorID); err != nil {
			return err
		}
	}
	if !allowed {
		return fmt.Errorf("deleting comment: %w", ErrPermissionDenied)
	}

	if err := s.database.DeleteComment(ctx, comment.ID); err != nil {
		return wrapErr("deleting comment", err)
	}

	s.Announce(ctx, ref, actorID, EventCommentDeleted, content.Version, map[string]string{"id": comment.ID})
	return nil
}

// ListComments returns the comment threads of a content object. Top-level
// comments come oldest first with their replies nested.
func (s *Service) ListComments(ctx context.Context, ref model.Ref, actorID string) ([]*model.Comment, error) {
	content, _, err := s.requireView(ctx, ref, actorID)
	if err != nil {
		return nil, err
	}

	comments, err := s.database.FindCommentsForContent(ctx, content.ID)
	if err != nil {
		return nil, wrapErr("listing comments", err)
	}

	users := make(map[string]*model.User)
	byID := make(map[string]*model.Comment, len(comments))
	for _, c := range comments {
		c.Author = s.decorate(ctx, c.AuthorID, users)
		byID[c.ID] = c
	}

	threads := make([]*model.Comment, 0)
	for _, c := range comments {
		if c.ParentID != nil {
			if parent, ok := byID[*c.ParentID]; ok {
				parent.Replies = append(parent.Replies, c)
				continue
			}
		}
		threads = append(threads, c)
	}
	return threads, nil
}

func (s *Service) findComment(ctx context.Context, content *model.Content, commentID string) (*model.Comment, error) {
	comment, err := s.database.FindComment(ctx, commentID)
	if err != nil {
		return nil, wrapErr("finding comment", err)
	}
	if comment == nil || comment.ContentID != content.ID {
		return nil, fmt.Errorf("comment %s: %w", commentID, ErrNotFound)
	}
	return comment, nil
}
