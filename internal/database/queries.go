package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"collab-go/internal/model"
)

// DBTX is satisfied by both *sqlx.DB and *sqlx.Tx.
type DBTX interface {
	sqlx.ExtContext
}

// Queries holds every statement the store runs. It is bound to either the
// connection pool or a transaction.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy of q that runs inside tx.
func (q *Queries) WithTx(tx *sqlx.Tx) *Queries {
	return &Queries{db: tx}
}

// get scans one row into dest. It reports false when there is no row.
func (q *Queries) get(ctx context.Context, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, q.db, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// Users

func (q *Queries) UpsertUser(ctx context.Context, u *model.User) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO users (id, display_name, avatar_url, updated_at)
		VALUES (:id, :display_name, :avatar_url, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			display_name = excluded.display_name,
			avatar_url = excluded.avatar_url,
			updated_at = excluded.updated_at`, u)
	return err
}

func (q *Queries) GetUser(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	ok, err := q.get(ctx, &u, `SELECT * FROM users WHERE id = ?`, id)
	if !ok {
		return nil, err
	}
	return &u, nil
}

// Spaces

func (q *Queries) InsertSpace(ctx context.Context, s *model.Space) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO spaces (id, channel_id, title, description, kind, settings, creator_id, created_at, updated_at)
		VALUES (:id, :channel_id, :title, :description, :kind, :settings, :creator_id, :created_at, :updated_at)`, s)
	return err
}

func (q *Queries) GetSpace(ctx context.Context, id string) (*model.Space, error) {
	var s model.Space
	ok, err := q.get(ctx, &s, `SELECT * FROM spaces WHERE id = ?`, id)
	if !ok {
		return nil, err
	}
	return &s, nil
}

func (q *Queries) UpsertSpaceMember(ctx context.Context, m *model.SpaceMember) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO space_members (space_id, user_id, is_admin, created_at)
		VALUES (:space_id, :user_id, :is_admin, :created_at)
		ON CONFLICT (space_id, user_id) DO UPDATE SET is_admin = excluded.is_admin`, m)
	return err
}

func (q *Queries) GetSpaceMember(ctx context.Context, spaceID, userID string) (*model.SpaceMember, error) {
	var m model.SpaceMember
	ok, err := q.get(ctx, &m, `SELECT * FROM space_members WHERE space_id = ? AND user_id = ?`, spaceID, userID)
	if !ok {
		return nil, err
	}
	return &m, nil
}

// Contents

func (q *Queries) InsertContent(ctx context.Context, c *model.Content) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO contents (id, space_id, content_type, content_data, metadata, version, creator_id, created_at, updated_at)
		VALUES (:id, :space_id, :content_type, :content_data, :metadata, :version, :creator_id, :created_at, :updated_at)`, c)
	return err
}

func (q *Queries) GetContent(ctx context.Context, id string) (*model.Content, error) {
	var c model.Content
	ok, err := q.get(ctx, &c, `SELECT * FROM contents WHERE id = ?`, id)
	if !ok {
		return nil, err
	}
	return &c, nil
}

func (q *Queries) ListContentsBySpace(ctx context.Context, spaceID string) ([]*model.Content, error) {
	var out []*model.Content
	err := sqlx.SelectContext(ctx, q.db, &out,
		`SELECT * FROM contents WHERE space_id = ? ORDER BY created_at, id`, spaceID)
	return out, err
}

// UpdateContentState writes the mutable part of a content row.
func (q *Queries) UpdateContentState(ctx context.Context, c *model.Content) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		UPDATE contents
		SET content_data = :content_data, metadata = :metadata, version = :version, updated_at = :updated_at
		WHERE id = :id`, c)
	return err
}

func (q *Queries) DeleteContent(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM contents WHERE id = ?`, id)
	return err
}

// Operations

func (q *Queries) InsertOperation(ctx context.Context, op *model.Operation) (int64, error) {
	res, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO operations (id, content_id, actor_id, type, position, length, text, version, spans, meta, created_at)
		VALUES (:id, :content_id, :actor_id, :type, :position, :length, :text, :version, :spans, :meta, :created_at)`, op)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListMutatingOperationsSince returns insert, delete and format operations
// with version > since in commit order. limit <= 0 means no limit.
func (q *Queries) ListMutatingOperationsSince(ctx context.Context, contentID string, since int64, limit int) ([]*model.Operation, error) {
	if limit <= 0 {
		limit = -1
	}
	var out []*model.Operation
	err := sqlx.SelectContext(ctx, q.db, &out, `
		SELECT * FROM operations
		WHERE content_id = ? AND version > ? AND type IN ('insert', 'delete', 'format')
		ORDER BY version, seq
		LIMIT ?`, contentID, since, limit)
	return out, err
}

// ListLatestPresence returns the newest cursor or selection operation of
// each actor recorded at or after since.
func (q *Queries) ListLatestPresence(ctx context.Context, contentID string, since time.Time, excludeActorID string) ([]*model.Operation, error) {
	var out []*model.Operation
	err := sqlx.SelectContext(ctx, q.db, &out, `
		SELECT o.* FROM operations o
		JOIN (
			SELECT MAX(seq) AS seq FROM operations
			WHERE content_id = ? AND type IN ('cursor', 'selection') AND created_at >= ? AND actor_id <> ?
			GROUP BY actor_id
		) latest ON latest.seq = o.seq
		ORDER BY o.seq DESC`, contentID, since, excludeActorID)
	return out, err
}

// Versions

func (q *Queries) InsertVersion(ctx context.Context, v *model.ContentVersion) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO content_versions (id, content_id, version_number, checksum, size, label, creator_id, metadata, created_at)
		VALUES (:id, :content_id, :version_number, :checksum, :size, :label, :creator_id, :metadata, :created_at)`, v)
	return err
}

func (q *Queries) GetVersion(ctx context.Context, id string) (*model.ContentVersion, error) {
	var v model.ContentVersion
	ok, err := q.get(ctx, &v, `SELECT * FROM content_versions WHERE id = ?`, id)
	if !ok {
		return nil, err
	}
	return &v, nil
}

func (q *Queries) ListVersions(ctx context.Context, contentID string) ([]*model.ContentVersion, error) {
	var out []*model.ContentVersion
	err := sqlx.SelectContext(ctx, q.db, &out, `
		SELECT * FROM content_versions WHERE content_id = ?
		ORDER BY created_at DESC, rowid DESC`, contentID)
	return out, err
}

// Permissions

// InsertPermission stores a grant unless one already exists for the same
// (content, user).
func (q *Queries) InsertPermission(ctx context.Context, p *model.Permission) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO content_permissions (content_id, user_id, role, granted_by, created_at)
		VALUES (:content_id, :user_id, :role, :granted_by, :created_at)
		ON CONFLICT (content_id, user_id) DO NOTHING`, p)
	return err
}

func (q *Queries) GetPermission(ctx context.Context, contentID, userID string) (*model.Permission, error) {
	var p model.Permission
	ok, err := q.get(ctx, &p, `SELECT * FROM content_permissions WHERE content_id = ? AND user_id = ?`, contentID, userID)
	if !ok {
		return nil, err
	}
	return &p, nil
}

func (q *Queries) ListPermissions(ctx context.Context, contentID string) ([]*model.Permission, error) {
	var out []*model.Permission
	err := sqlx.SelectContext(ctx, q.db, &out, `
		SELECT * FROM content_permissions WHERE content_id = ?
		ORDER BY user_id`, contentID)
	return out, err
}

func (q *Queries) DeleteNonOwnerPermissions(ctx context.Context, contentID string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM content_permissions WHERE content_id = ? AND role <> 'owner'`, contentID)
	return err
}

// Comments

func (q *Queries) InsertComment(ctx context.Context, c *model.Comment) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		INSERT INTO content_comments (id, content_id, author_id, text, position, parent_id, resolved, created_at, updated_at)
		VALUES (:id, :content_id, :author_id, :text, :position, :parent_id, :resolved, :created_at, :updated_at)`, c)
	return err
}

func (q *Queries) GetComment(ctx context.Context, id string) (*model.Comment, error) {
	var c model.Comment
	ok, err := q.get(ctx, &c, `SELECT * FROM content_comments WHERE id = ?`, id)
	if !ok {
		return nil, err
	}
	return &c, nil
}

func (q *Queries) ListComments(ctx context.Context, contentID string) ([]*model.Comment, error) {
	var out []*model.Comment
	err := sqlx.SelectContext(ctx, q.db, &out, `
		SELECT * FROM content_comments WHERE content_id = ?
		ORDER BY created_at, rowid`, contentID)
	return out, err
}

func (q *Queries) UpdateComment(ctx context.Context, c *model.Comment) error {
	_, err := sqlx.NamedExecContext(ctx, q.db, `
		UPDATE content_comments
		SET text = :text, resolved = :resolved, updated_at = :updated_at
		WHERE id = :id`, c)
	return err
}

func (q *Queries) DeleteComment(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM content_comments WHERE id = ?`, id)
	return err
}
