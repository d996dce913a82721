package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"collab-go/internal/collab"
	"collab-go/internal/model"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(memoryPath)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return db
}

// seedSpace creates a document space owned by "alice" with one content
// object holding data.
func seedSpace(t *testing.T, db *SQLiteDatabase, data string) *model.Content {
	t.Helper()

	space := &model.Space{
		ID: "space-1", Title: "Notes", Kind: model.KindDocument,
		CreatorID: "alice", CreatedAt: t0, UpdatedAt: t0,
	}
	content := &model.Content{
		ID: "content-1", SpaceID: space.ID, ContentType: "text/markdown", Data: data,
		Version: 1, CreatorID: "alice", CreatedAt: t0, UpdatedAt: t0,
	}
	grants := []*model.Permission{
		{ContentID: content.ID, UserID: "alice", Role: model.RoleOwner, GrantedBy: "alice", CreatedAt: t0},
		{ContentID: content.ID, Role: model.RoleViewer, GrantedBy: "alice", CreatedAt: t0},
	}
	if err := db.CreateSpace(context.Background(), space, content, grants); err != nil {
		t.Fatalf("CreateSpace() error = %v", err)
	}
	return content
}

func TestSQLiteDatabase_CreateSpace(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedSpace(t, db, "hello")

	t.Run("creator is an admin member", func(t *testing.T) {
		member, err := db.IsMember(ctx, "space-1", "alice")
		if err != nil || !member {
			t.Fatalf("IsMember(alice) = %v, %v; want true", member, err)
		}
		admin, err := db.IsAdmin(ctx, "space-1", "alice")
		if err != nil || !admin {
			t.Fatalf("IsAdmin(alice) = %v, %v; want true", admin, err)
		}
	})

	t.Run("content and grants are stored", func(t *testing.T) {
		c, err := db.FindContent(ctx, "content-1")
		if err != nil {
			t.Fatalf("FindContent() error = %v", err)
		}
		if c == nil || c.Data != "hello" || c.Version != 1 {
			t.Fatalf("FindContent() = %+v", c)
		}
		if !c.CreatedAt.Equal(t0) {
			t.Errorf("CreatedAt = %v, want %v", c.CreatedAt, t0)
		}

		def, err := db.FindPermission(ctx, "content-1", "")
		if err != nil || def == nil || def.Role != model.RoleViewer {
			t.Errorf("default grant = %+v, %v; want viewer", def, err)
		}
	})

	t.Run("missing rows return nil", func(t *testing.T) {
		space, err := db.FindSpace(ctx, "nope")
		if err != nil || space != nil {
			t.Errorf("FindSpace(nope) = %v, %v; want nil, nil", space, err)
		}
		member, err := db.IsMember(ctx, "space-1", "bob")
		if err != nil || member {
			t.Errorf("IsMember(bob) = %v, %v; want false", member, err)
		}
	})
}

func TestSQLiteDatabase_AddSpaceMember(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedSpace(t, db, "")

	if err := db.AddSpaceMember(ctx, &model.SpaceMember{SpaceID: "space-1", UserID: "bob", CreatedAt: t0}); err != nil {
		t.Fatalf("AddSpaceMember() error = %v", err)
	}
	if admin, _ := db.IsAdmin(ctx, "space-1", "bob"); admin {
		t.Error("bob should not be admin")
	}

	if err := db.AddSpaceMember(ctx, &model.SpaceMember{SpaceID: "space-1", UserID: "bob", IsAdmin: true, CreatedAt: t0}); err != nil {
		t.Fatalf("AddSpaceMember() promote error = %v", err)
	}
	if admin, _ := db.IsAdmin(ctx, "space-1", "bob"); !admin {
		t.Error("bob should be admin after promotion")
	}
}

func TestSQLiteDatabase_UpdateContent(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		db := newTestDB(t)
		seedSpace(t, db, "abc")

		err := db.UpdateContent(ctx, "content-1", func(tx collab.ContentTx) error {
			c := tx.Content()
			c.Data = "abcd"
			c.Version++
			op := &model.Operation{
				ID: "op-1", ContentID: c.ID, ActorID: "alice", Type: model.OpInsert,
				Position: 3, Text: "d", Version: c.Version, CreatedAt: t0,
			}
			if err := tx.CreateOperation(op); err != nil {
				return err
			}
			if op.Seq == 0 {
				t.Error("CreateOperation() did not set Seq")
			}
			return tx.SaveContent(c)
		})
		if err != nil {
			t.Fatalf("UpdateContent() error = %v", err)
		}

		c, _ := db.FindContent(ctx, "content-1")
		if c.Data != "abcd" || c.Version != 2 {
			t.Errorf("content = %q v%d, want abcd v2", c.Data, c.Version)
		}
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		db := newTestDB(t)
		seedSpace(t, db, "abc")
		boom := errors.New("boom")

		err := db.UpdateContent(ctx, "content-1", func(tx collab.ContentTx) error {
			c := tx.Content()
			c.Data = "changed"
			c.Version++
			if err := tx.SaveContent(c); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("UpdateContent() error = %v, want boom", err)
		}

		c, _ := db.FindContent(ctx, "content-1")
		if c.Data != "abc" || c.Version != 1 {
			t.Errorf("content = %q v%d, want unchanged", c.Data, c.Version)
		}
	})

	t.Run("missing content", func(t *testing.T) {
		db := newTestDB(t)
		err := db.UpdateContent(ctx, "nope", func(collab.ContentTx) error { return nil })
		if !errors.Is(err, collab.ErrNotFound) {
			t.Errorf("UpdateContent() error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteDatabase_FindOperationsSince(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedSpace(t, db, "")

	ops := []*model.Operation{
		{ID: "a", Type: model.OpInsert, Text: "x", Version: 2},
		{ID: "cur", Type: model.OpCursor, Position: 1, Version: 2},
		{ID: "b", Type: model.OpDelete, Length: 1, Version: 3},
		{ID: "c", Type: model.OpFormat, Length: 1, Version: 4, Spans: model.Spans{{Position: 0, Length: 1}, {Position: 3, Length: 1}}},
	}
	for _, op := range ops {
		op.ContentID, op.ActorID, op.CreatedAt = "content-1", "alice", t0
		if err := db.CreateOperation(ctx, op); err != nil {
			t.Fatalf("CreateOperation(%s) error = %v", op.ID, err)
		}
	}

	got, err := db.FindOperationsSince(ctx, "content-1", 2, 0)
	if err != nil {
		t.Fatalf("FindOperationsSince() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("FindOperationsSince(2) = %v, want [b c]", opIDs(got))
	}
	if len(got[1].Spans) != 2 || got[1].Spans[1].Position != 3 {
		t.Errorf("Spans = %+v, want two spans", got[1].Spans)
	}

	limited, err := db.FindOperationsSince(ctx, "content-1", 0, 1)
	if err != nil {
		t.Fatalf("FindOperationsSince() error = %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "a" {
		t.Errorf("FindOperationsSince(0, limit 1) = %v, want [a]", opIDs(limited))
	}
}

func TestSQLiteDatabase_FindActivePresence(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedSpace(t, db, "")

	record := func(id, actor string, typ model.OpType, at time.Time) {
		t.Helper()
		op := &model.Operation{ID: id, ContentID: "content-1", ActorID: actor, Type: typ, Version: 1, CreatedAt: at}
		if err := db.CreateOperation(ctx, op); err != nil {
			t.Fatalf("CreateOperation(%s) error = %v", id, err)
		}
	}
	record("bob-old", "bob", model.OpCursor, t0.Add(-10*time.Minute))
	record("bob-1", "bob", model.OpCursor, t0.Add(-2*time.Minute))
	record("bob-2", "bob", model.OpSelection, t0.Add(-1*time.Minute))
	record("carol-stale", "carol", model.OpCursor, t0.Add(-6*time.Minute))
	record("alice-1", "alice", model.OpCursor, t0)

	got, err := db.FindActivePresence(ctx, "content-1", t0.Add(-5*time.Minute), "alice")
	if err != nil {
		t.Fatalf("FindActivePresence() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "bob-2" {
		t.Errorf("FindActivePresence() = %v, want [bob-2]", opIDs(got))
	}
}

func TestSQLiteDatabase_ReplacePermissions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedSpace(t, db, "")

	grants := []*model.Permission{
		{ContentID: "content-1", UserID: "bob", Role: model.RoleEditor, GrantedBy: "alice", CreatedAt: t0},
		{ContentID: "content-1", UserID: "alice", Role: model.RoleViewer, GrantedBy: "alice", CreatedAt: t0},
	}
	if err := db.ReplacePermissions(ctx, "content-1", grants); err != nil {
		t.Fatalf("ReplacePermissions() error = %v", err)
	}

	perms, err := db.FindPermissionsForContent(ctx, "content-1")
	if err != nil {
		t.Fatalf("FindPermissionsForContent() error = %v", err)
	}
	roles := map[string]model.Role{}
	for _, p := range perms {
		roles[p.UserID] = p.Role
	}
	want := map[string]model.Role{"alice": model.RoleOwner, "bob": model.RoleEditor}
	if len(roles) != len(want) {
		t.Fatalf("permissions = %v, want %v", roles, want)
	}
	for user, role := range want {
		if roles[user] != role {
			t.Errorf("role[%q] = %q, want %q", user, roles[user], role)
		}
	}
}

func TestSQLiteDatabase_Versions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedSpace(t, db, "")

	err := db.UpdateContent(ctx, "content-1", func(tx collab.ContentTx) error {
		for i, id := range []string{"v1", "v2"} {
			v := &model.ContentVersion{
				ID: id, ContentID: "content-1", VersionNumber: int64(i + 1), Checksum: "sum-" + id,
				CreatorID: "alice", Metadata: model.Meta{"content_type": "text/markdown"},
				CreatedAt: t0.Add(time.Duration(i) * time.Minute),
			}
			if err := tx.CreateVersion(v); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}

	versions, err := db.FindVersionsForContent(ctx, "content-1")
	if err != nil {
		t.Fatalf("FindVersionsForContent() error = %v", err)
	}
	if len(versions) != 2 || versions[0].ID != "v2" {
		t.Fatalf("FindVersionsForContent() order wrong: %+v", versions)
	}

	v, err := db.FindVersion(ctx, "v1")
	if err != nil || v == nil {
		t.Fatalf("FindVersion(v1) = %v, %v", v, err)
	}
	if v.Metadata["content_type"] != "text/markdown" {
		t.Errorf("Metadata = %v", v.Metadata)
	}
}

func TestSQLiteDatabase_Comments(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedSpace(t, db, "")

	parentID := "c1"
	for _, c := range []*model.Comment{
		{ID: "c1", Text: "top", Position: model.Meta{"offset": float64(3)}, CreatedAt: t0},
		{ID: "c2", Text: "reply", ParentID: &parentID, CreatedAt: t0.Add(time.Second)},
		{ID: "c3", Text: "other", CreatedAt: t0.Add(2 * time.Second)},
	} {
		c.ContentID, c.AuthorID, c.UpdatedAt = "content-1", "alice", c.CreatedAt
		if err := db.CreateComment(ctx, c); err != nil {
			t.Fatalf("CreateComment(%s) error = %v", c.ID, err)
		}
	}

	c, err := db.FindComment(ctx, "c2")
	if err != nil || c == nil || c.ParentID == nil || *c.ParentID != "c1" {
		t.Fatalf("FindComment(c2) = %+v, %v", c, err)
	}

	c.Resolved = true
	if err := db.UpdateComment(ctx, c); err != nil {
		t.Fatalf("UpdateComment() error = %v", err)
	}

	if err := db.DeleteComment(ctx, "c1"); err != nil {
		t.Fatalf("DeleteComment() error = %v", err)
	}
	left, err := db.FindCommentsForContent(ctx, "content-1")
	if err != nil {
		t.Fatalf("FindCommentsForContent() error = %v", err)
	}
	if len(left) != 1 || left[0].ID != "c3" {
		t.Errorf("comments after delete = %d, want only c3", len(left))
	}
}

func TestSQLiteDatabase_DeleteContentCascades(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	seedSpace(t, db, "")

	op := &model.Operation{ID: "op", ContentID: "content-1", ActorID: "alice", Type: model.OpInsert, Text: "x", Version: 2, CreatedAt: t0}
	if err := db.CreateOperation(ctx, op); err != nil {
		t.Fatalf("CreateOperation() error = %v", err)
	}

	if err := db.DeleteContent(ctx, "content-1"); err != nil {
		t.Fatalf("DeleteContent() error = %v", err)
	}

	if c, _ := db.FindContent(ctx, "content-1"); c != nil {
		t.Error("content still present")
	}
	if ops, _ := db.FindOperationsSince(ctx, "content-1", 0, 0); len(ops) != 0 {
		t.Errorf("operations left = %d", len(ops))
	}
	if perms, _ := db.FindPermissionsForContent(ctx, "content-1"); len(perms) != 0 {
		t.Errorf("permissions left = %d", len(perms))
	}
}

func TestSQLiteDatabase_Users(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	if err := db.UpsertUser(ctx, &model.User{ID: "bob", DisplayName: "Bob", UpdatedAt: t0}); err != nil {
		t.Fatalf("UpsertUser() error = %v", err)
	}
	if err := db.UpsertUser(ctx, &model.User{ID: "bob", DisplayName: "Robert", AvatarURL: "https://x/b.png", UpdatedAt: t0}); err != nil {
		t.Fatalf("UpsertUser() update error = %v", err)
	}

	u, err := db.LookupUser(ctx, "bob")
	if err != nil || u == nil {
		t.Fatalf("LookupUser() = %v, %v", u, err)
	}
	if u.DisplayName != "Robert" || u.AvatarURL != "https://x/b.png" {
		t.Errorf("LookupUser() = %+v", u)
	}

	missing, err := db.LookupUser(ctx, "nobody")
	if err != nil || missing != nil {
		t.Errorf("LookupUser(nobody) = %v, %v; want nil, nil", missing, err)
	}
}

func TestSQLiteDatabase_BackupTo(t *testing.T) {
	db := newTestDB(t)
	seedSpace(t, db, "backed up")

	dest := filepath.Join(t.TempDir(), "backup.db")
	if err := db.BackupTo(dest); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := NewSQLiteDatabase(dest)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()

	c, err := restored.FindContent(context.Background(), "content-1")
	if err != nil || c == nil || c.Data != "backed up" {
		t.Errorf("backup content = %+v, %v", c, err)
	}
}

func opIDs(ops []*model.Operation) []string {
	ids := make([]string, len(ops))
	for i, op := range ops {
		ids[i] = op.ID
	}
	return ids
}
