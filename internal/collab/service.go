package collab

import (
	"context"
	"fmt"
	"time"

	"collab-go/internal/model"
)

// Options tunes the service. Zero values fall back to DefaultOptions.
type Options struct {
	// LockTimeout bounds how long a mutation waits for the per-content lock.
	LockTimeout time.Duration

	// PresenceWindow is how far back ListActive looks for cursors.
	PresenceWindow time.Duration

	// DefaultRole is granted to every space member on new content.
	// An empty role means members get no access until granted.
	DefaultRole model.Role
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{
		LockTimeout:    5 * time.Second,
		PresenceWindow: 300 * time.Second,
		DefaultRole:    model.RoleEditor,
	}
}

// Service is the orchestration layer for collaborative content: it gates
// actors, serialises mutations per content object, runs the transform
// engine, keeps the version archive, and announces every change.
type Service struct {
	database   Database
	archive    Archive
	membership Membership
	identity   Identity
	dispatcher Dispatcher
	logger     Logger
	clock      Clock
	idgen      IDGenerator
	opts       Options
	locks      *keyedMutex
}

// NewService creates a new Service with the provided dependencies.
func NewService(database Database, archive Archive, membership Membership, identity Identity, dispatcher Dispatcher, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Service {
	defaults := DefaultOptions()
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaults.LockTimeout
	}
	if opts.PresenceWindow <= 0 {
		opts.PresenceWindow = defaults.PresenceWindow
	}
	return &Service{
		database:   database,
		archive:    archive,
		membership: membership,
		identity:   identity,
		dispatcher: dispatcher,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		opts:       opts,
		locks:      newKeyedMutex(),
	}
}

// TouchUser records the display data of an authenticated actor.
func (s *Service) TouchUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		return ErrNotAuthenticated
	}
	user.UpdatedAt = s.clock.Now()
	if err := s.database.UpsertUser(ctx, user); err != nil {
		return wrapErr("recording user", err)
	}
	return nil
}

// requireMember checks the space-level gate.
func (s *Service) requireMember(ctx context.Context, spaceID, actorID string) (*model.Space, error) {
	if actorID == "" {
		return nil, ErrNotAuthenticated
	}

	space, err := s.database.FindSpace(ctx, spaceID)
	if err != nil {
		return nil, wrapErr("finding space", err)
	}
	if space == nil {
		return nil, fmt.Errorf("space %s: %w", spaceID, ErrNotFound)
	}

	member, err := s.membership.IsMember(ctx, spaceID, actorID)
	if err != nil {
		return nil, wrapErr("checking membership", err)
	}
	if !member {
		return nil, fmt.Errorf("space %s: %w", spaceID, ErrNotAMember)
	}
	return space, nil
}

// access loads a content object through both gates and resolves the
// actor's role on it.
func (s *Service) access(ctx context.Context, ref model.Ref, actorID string) (*model.Content, model.Role, error) {
	if _, err := s.requireMember(ctx, ref.SpaceID, actorID); err != nil {
		return nil, "", err
	}

	content, err := s.database.FindContent(ctx, ref.ContentID)
	if err != nil {
		return nil, "", wrapErr("finding content", err)
	}
	if content == nil || content.SpaceID != ref.SpaceID {
		return nil, "", fmt.Errorf("content %s: %w", ref.ContentID, ErrNotFound)
	}

	role, err := s.Resolve(ctx, content.ID, actorID)
	if err != nil {
		return nil, "", err
	}
	return content, role, nil
}

func (s *Service) requireView(ctx context.Context, ref model.Ref, actorID string) (*model.Content, model.Role, error) {
	content, role, err := s.access(ctx, ref, actorID)
	if err != nil {
		return nil, "", err
	}
	if !role.CanView() {
		return nil, "", fmt.Errorf("viewing content: %w", ErrPermissionDenied)
	}
	return content, role, nil
}

func (s *Service) requireEdit(ctx context.Context, ref model.Ref, actorID string) (*model.Content, model.Role, error) {
	content, role, err := s.access(ctx, ref, actorID)
	if err != nil {
		return nil, "", err
	}
	if !role.CanEdit() {
		return nil, "", fmt.Errorf("editing content: %w", ErrPermissionDenied)
	}
	return content, role, nil
}

func (s *Service) isAdmin(ctx context.Context, spaceID, actorID string) (bool, error) {
	admin, err := s.membership.IsAdmin(ctx, spaceID, actorID)
	if err != nil {
		return false, wrapErr("checking space admin", err)
	}
	return admin, nil
}

// lockContent acquires the per-content mutation lock. A timeout is reported
// as a retryable version conflict.
func (s *Service) lockContent(ctx context.Context, contentID string) (func(), error) {
	lockCtx, cancel := context.WithTimeout(ctx, s.opts.LockTimeout)
	defer cancel()

	unlock, err := s.locks.Lock(lockCtx, contentID)
	if err != nil {
		return nil, fmt.Errorf("waiting for content lock: %w: %w", ErrVersionConflict, err)
	}
	return unlock, nil
}

// Announce publishes an event for a content object. Failures are logged and
// swallowed: the change it describes has already been committed.
func (s *Service) Announce(ctx context.Context, ref model.Ref, actorID string, eventType EventType, version int64, payload any) {
	event := &Event{
		Type:      eventType,
		SpaceID:   ref.SpaceID,
		ContentID: ref.ContentID,
		ActorID:   actorID,
		Version:   version,
		Payload:   payload,
		At:        s.clock.Now(),
	}
	if err := s.dispatcher.Publish(context.WithoutCancel(ctx), Topic(ref), event); err != nil {
		s.logger.Warn("broadcast failed", "topic", Topic(ref), "event", string(eventType), "error", err)
	}
}

// decorate attaches identity data to an actor ID. Unknown users keep only
// their ID.
func (s *Service) decorate(ctx context.Context, userID string, cache map[string]*model.User) *model.User {
	if u, ok := cache[userID]; ok {
		return u
	}
	u, err := s.identity.LookupUser(ctx, userID)
	if err != nil {
		s.logger.Warn("identity lookup failed", "user", userID, "error", err)
	}
	if u == nil {
		u = &model.User{ID: userID}
	}
	cache[userID] = u
	return u
}
