package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"collab-go/internal/collab"
	"collab-go/internal/database/migrations"
	"collab-go/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

const memoryPath = ":memory:"

// SQLiteDatabase implements collab.Database on SQLite. It also answers the
// membership and identity questions for single-node deployments.
type SQLiteDatabase struct {
	db      *sqlx.DB
	queries *Queries
	path    string
}

// NewSQLiteDatabase opens a database at path, or an in-memory one for
// ":memory:". The schema is not migrated.
func NewSQLiteDatabase(path string) (*SQLiteDatabase, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	return &SQLiteDatabase{
		db:      db,
		queries: New(db),
		path:    path,
	}, nil
}

// OpenConnection opens and configures a SQLite connection. Foreign keys are
// enforced, writers wait for the lock instead of failing, and transactions
// take the write lock when they begin.
func OpenConnection(path string) (*sqlx.DB, error) {
	dsn := path + "?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate"
	if path != memoryPath {
		dsn += "&_journal_mode=WAL"
	}

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if path == memoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// Migrate brings the schema up to date.
func (s *SQLiteDatabase) Migrate() error {
	return migrations.MigrateUp(s.db.DB)
}

// MigrationStatus reports the applied and latest schema versions.
func (s *SQLiteDatabase) MigrationStatus() (migrations.Status, error) {
	return migrations.ReadStatus(s.db.DB)
}

// inTx runs fn in a transaction and commits when it returns nil.
func (s *SQLiteDatabase) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// User operations

func (s *SQLiteDatabase) UpsertUser(ctx context.Context, user *model.User) error {
	if err := s.queries.UpsertUser(ctx, user); err != nil {
		return fmt.Errorf("upserting user: %w", err)
	}
	return nil
}

// LookupUser implements collab.Identity.
func (s *SQLiteDatabase) LookupUser(ctx context.Context, userID string) (*model.User, error) {
	u, err := s.queries.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	return u, nil
}

// Space operations

func (s *SQLiteDatabase) CreateSpace(ctx context.Context, space *model.Space, content *model.Content, grants []*model.Permission) error {
	return s.inTx(ctx, func(q *Queries) error {
		if err := q.InsertSpace(ctx, space); err != nil {
			return fmt.Errorf("creating space: %w", err)
		}
		creator := &model.SpaceMember{
			SpaceID:   space.ID,
			UserID:    space.CreatorID,
			IsAdmin:   true,
			CreatedAt: space.CreatedAt,
		}
		if err := q.UpsertSpaceMember(ctx, creator); err != nil {
			return fmt.Errorf("adding space creator: %w", err)
		}
		return insertContent(ctx, q, content, grants)
	})
}

func (s *SQLiteDatabase) FindSpace(ctx context.Context, id string) (*model.Space, error) {
	space, err := s.queries.GetSpace(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding space: %w", err)
	}
	return space, nil
}

func (s *SQLiteDatabase) AddSpaceMember(ctx context.Context, member *model.SpaceMember) error {
	if err := s.queries.UpsertSpaceMember(ctx, member); err != nil {
		return fmt.Errorf("adding space member: %w", err)
	}
	return nil
}

// IsMember implements collab.Membership.
func (s *SQLiteDatabase) IsMember(ctx context.Context, spaceID, userID string) (bool, error) {
	m, err := s.queries.GetSpaceMember(ctx, spaceID, userID)
	if err != nil {
		return false, fmt.Errorf("finding space member: %w", err)
	}
	return m != nil, nil
}

// IsAdmin implements collab.Membership. The space creator is always an
// admin.
func (s *SQLiteDatabase) IsAdmin(ctx context.Context, spaceID, userID string) (bool, error) {
	space, err := s.queries.GetSpace(ctx, spaceID)
	if err != nil {
		return false, fmt.Errorf("finding space: %w", err)
	}
	if space != nil && space.CreatorID == userID {
		return true, nil
	}

	m, err := s.queries.GetSpaceMember(ctx, spaceID, userID)
	if err != nil {
		return false, fmt.Errorf("finding space member: %w", err)
	}
	return m != nil && m.IsAdmin, nil
}

// Content operations

func (s *SQLiteDatabase) CreateContent(ctx context.Context, content *model.Content, grants []*model.Permission) error {
	return s.inTx(ctx, func(q *Queries) error {
		return insertContent(ctx, q, content, grants)
	})
}

func insertContent(ctx context.Context, q *Queries, content *model.Content, grants []*model.Permission) error {
	if err := q.InsertContent(ctx, content); err != nil {
		return fmt.Errorf("creating content: %w", err)
	}
	for _, g := range grants {
		if err := q.InsertPermission(ctx, g); err != nil {
			return fmt.Errorf("granting %s to %q: %w", g.Role, g.UserID, err)
		}
	}
	return nil
}

func (s *SQLiteDatabase) FindContent(ctx context.Context, id string) (*model.Content, error) {
	content, err := s.queries.GetContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding content: %w", err)
	}
	return content, nil
}

func (s *SQLiteDatabase) FindContentsForSpace(ctx context.Context, spaceID string) ([]*model.Content, error) {
	contents, err := s.queries.ListContentsBySpace(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("listing contents: %w", err)
	}
	return contents, nil
}

func (s *SQLiteDatabase) DeleteContent(ctx context.Context, id string) error {
	if err := s.queries.DeleteContent(ctx, id); err != nil {
		return fmt.Errorf("deleting content: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) UpdateContent(ctx context.Context, id string, fn func(tx collab.ContentTx) error) error {
	return s.inTx(ctx, func(q *Queries) error {
		content, err := q.GetContent(ctx, id)
		if err != nil {
			return fmt.Errorf("loading content: %w", err)
		}
		if content == nil {
			return fmt.Errorf("content %s: %w", id, collab.ErrNotFound)
		}
		return fn(&contentTx{ctx: ctx, q: q, content: content})
	})
}

// contentTx is the collab.ContentTx handed to UpdateContent callbacks.
type contentTx struct {
	ctx     context.Context
	q       *Queries
	content *model.Content
}

func (t *contentTx) Content() *model.Content {
	return t.content
}

func (t *contentTx) MutatingOperationsSince(version int64) ([]*model.Operation, error) {
	return t.q.ListMutatingOperationsSince(t.ctx, t.content.ID, version, 0)
}

func (t *contentTx) CreateOperation(op *model.Operation) error {
	seq, err := t.q.InsertOperation(t.ctx, op)
	if err != nil {
		return err
	}
	op.Seq = seq
	return nil
}

func (t *contentTx) SaveContent(content *model.Content) error {
	return t.q.UpdateContentState(t.ctx, content)
}

func (t *contentTx) CreateVersion(version *model.ContentVersion) error {
	return t.q.InsertVersion(t.ctx, version)
}

// Operation operations

func (s *SQLiteDatabase) CreateOperation(ctx context.Context, op *model.Operation) error {
	seq, err := s.queries.InsertOperation(ctx, op)
	if err != nil {
		return fmt.Errorf("creating operation: %w", err)
	}
	op.Seq = seq
	return nil
}

func (s *SQLiteDatabase) FindOperationsSince(ctx context.Context, contentID string, version int64, limit int) ([]*model.Operation, error) {
	ops, err := s.queries.ListMutatingOperationsSince(ctx, contentID, version, limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}

func (s *SQLiteDatabase) FindActivePresence(ctx context.Context, contentID string, since time.Time, excludeActorID string) ([]*model.Operation, error) {
	ops, err := s.queries.ListLatestPresence(ctx, contentID, since.UTC(), excludeActorID)
	if err != nil {
		return nil, fmt.Errorf("listing presence: %w", err)
	}
	return ops, nil
}

// Version operations

func (s *SQLiteDatabase) FindVersionsForContent(ctx context.Context, contentID string) ([]*model.ContentVersion, error) {
	versions, err := s.queries.ListVersions(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	return versions, nil
}

func (s *SQLiteDatabase) FindVersion(ctx context.Context, id string) (*model.ContentVersion, error) {
	version, err := s.queries.GetVersion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding version: %w", err)
	}
	return version, nil
}

// Permission operations

func (s *SQLiteDatabase) FindPermission(ctx context.Context, contentID, userID string) (*model.Permission, error) {
	p, err := s.queries.GetPermission(ctx, contentID, userID)
	if err != nil {
		return nil, fmt.Errorf("finding permission: %w", err)
	}
	return p, nil
}

func (s *SQLiteDatabase) FindPermissionsForContent(ctx context.Context, contentID string) ([]*model.Permission, error) {
	perms, err := s.queries.ListPermissions(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("listing permissions: %w", err)
	}
	return perms, nil
}

func (s *SQLiteDatabase) ReplacePermissions(ctx context.Context, contentID string, grants []*model.Permission) error {
	return s.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteNonOwnerPermissions(ctx, contentID); err != nil {
			return fmt.Errorf("clearing permissions: %w", err)
		}
		for _, g := range grants {
			// Owner rows survived the delete and keep precedence.
			if err := q.InsertPermission(ctx, g); err != nil {
				return fmt.Errorf("granting %s to %q: %w", g.Role, g.UserID, err)
			}
		}
		return nil
	})
}

// Comment operations

func (s *SQLiteDatabase) CreateComment(ctx context.Context, comment *model.Comment) error {
	if err := s.queries.InsertComment(ctx, comment); err != nil {
		return fmt.Errorf("creating comment: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindComment(ctx context.Context, id string) (*model.Comment, error) {
	c, err := s.queries.GetComment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("finding comment: %w", err)
	}
	return c, nil
}

func (s *SQLiteDatabase) FindCommentsForContent(ctx context.Context, contentID string) ([]*model.Comment, error) {
	comments, err := s.queries.ListComments(ctx, contentID)
	if err != nil {
		return nil, fmt.Errorf("listing comments: %w", err)
	}
	return comments, nil
}

func (s *SQLiteDatabase) UpdateComment(ctx context.Context, comment *model.Comment) error {
	if err := s.queries.UpdateComment(ctx, comment); err != nil {
		return fmt.Errorf("updating comment: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) DeleteComment(ctx context.Context, id string) error {
	if err := s.queries.DeleteComment(ctx, id); err != nil {
		return fmt.Errorf("deleting comment: %w", err)
	}
	return nil
}

// Path returns the database file path (or ":memory:" for in-memory databases).
func (s *SQLiteDatabase) Path() string {
	return s.path
}

// CheckMigrations verifies the database schema is up-to-date.
func (s *SQLiteDatabase) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(s.db.DB)
}

// BackupTo writes a consistent copy of the database to destPath.
func (s *SQLiteDatabase) BackupTo(destPath string) error {
	if _, err := s.db.Exec("VACUUM INTO ?", destPath); err != nil {
		return fmt.Errorf("backing up database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteDatabase) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

var (
	_ collab.Database   = (*SQLiteDatabase)(nil)
	_ collab.Membership = (*SQLiteDatabase)(nil)
	_ collab.Identity   = (*SQLiteDatabase)(nil)
)
