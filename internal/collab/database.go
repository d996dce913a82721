package collab

import (
	"context"
	"time"

	"collab-go/internal/model"
)

// Database provides an interface for metadata storage operations.
// Lookups return (nil, nil) when the row does not exist. Compound writes run
// in a single transaction.
type Database interface {
	// User operations

	// UpsertUser records display data for an identity.
	UpsertUser(ctx context.Context, user *model.User) error

	// Space operations

	// CreateSpace stores a space, makes its creator an admin member, and
	// stores the initial content with its grants.
	CreateSpace(ctx context.Context, space *model.Space, content *model.Content, grants []*model.Permission) error

	// FindSpace returns a space by ID.
	FindSpace(ctx context.Context, id string) (*model.Space, error)

	// AddSpaceMember adds or updates a membership row.
	AddSpaceMember(ctx context.Context, member *model.SpaceMember) error

	// Content operations

	// CreateContent stores a content object together with its grants.
	CreateContent(ctx context.Context, content *model.Content, grants []*model.Permission) error

	// FindContent returns a content object by ID.
	FindContent(ctx context.Context, id string) (*model.Content, error)

	// FindContentsForSpace returns every content object in a space, oldest first.
	FindContentsForSpace(ctx context.Context, spaceID string) ([]*model.Content, error)

	// DeleteContent removes a content object and everything that belongs to it.
	DeleteContent(ctx context.Context, id string) error

	// UpdateContent runs fn inside a transaction that has loaded the content
	// row. If fn returns an error nothing is written. A missing content object
	// fails with ErrNotFound.
	UpdateContent(ctx context.Context, id string, fn func(tx ContentTx) error) error

	// Operation operations

	// CreateOperation stores an operation outside of any content
	// transaction. Used for presence signals.
	CreateOperation(ctx context.Context, op *model.Operation) error

	// FindOperationsSince returns mutating operations with a version greater
	// than version, ordered by version then arrival. limit <= 0 means no limit.
	FindOperationsSince(ctx context.Context, contentID string, version int64, limit int) ([]*model.Operation, error)

	// FindActivePresence returns the latest cursor or selection operation of
	// each actor recorded at or after since, skipping excludeActorID.
	FindActivePresence(ctx context.Context, contentID string, since time.Time, excludeActorID string) ([]*model.Operation, error)

	// Version operations

	// FindVersionsForContent returns snapshots of a content object, newest first.
	FindVersionsForContent(ctx context.Context, contentID string) ([]*model.ContentVersion, error)

	// FindVersion returns a snapshot by ID.
	FindVersion(ctx context.Context, id string) (*model.ContentVersion, error)

	// Permission operations

	// FindPermission returns the grant for (content, user). An empty userID
	// selects the default grant.
	FindPermission(ctx context.Context, contentID, userID string) (*model.Permission, error)

	// FindPermissionsForContent returns every grant on a content object.
	FindPermissionsForContent(ctx context.Context, contentID string) ([]*model.Permission, error)

	// ReplacePermissions atomically swaps every non-owner grant for grants.
	// Existing owner grants are kept and win over any incoming grant for the
	// same user.
	ReplacePermissions(ctx context.Context, contentID string, grants []*model.Permission) error

	// Comment operations

	CreateComment(ctx context.Context, comment *model.Comment) error
	FindComment(ctx context.Context, id string) (*model.Comment, error)
	FindCommentsForContent(ctx context.Context, contentID string) ([]*model.Comment, error)
	UpdateComment(ctx context.Context, comment *model.Comment) error

	// DeleteComment removes a comment and its replies.
	DeleteComment(ctx context.Context, id string) error

	// CheckMigrations verifies the schema is up to date.
	CheckMigrations() error

	// Close closes the database connection.
	Close() error
}

// ContentTx is the view of one content object inside an UpdateContent
// transaction.
type ContentTx interface {
	// Content returns the row loaded at the start of the transaction.
	// Changes are written with SaveContent.
	Content() *model.Content

	// MutatingOperationsSince returns committed insert/delete/format
	// operations with a version greater than version, in commit order.
	MutatingOperationsSince(version int64) ([]*model.Operation, error)

	CreateOperation(op *model.Operation) error
	SaveContent(content *model.Content) error
	CreateVersion(version *model.ContentVersion) error
}
