package collab_test

import (
	"testing"

	"collab-go/internal/collab"
	"collab-go/internal/model"
	"collab-go/internal/testutil"
)

func rolesByUser(perms []*model.Permission) map[string]model.Role {
	out := make(map[string]model.Role, len(perms))
	for _, p := range perms {
		out[p.UserID] = p.Role
	}
	return out
}

func TestUpdatePermissions_CommenterIsRejected(t *testing.T) {
	fx := testutil.NewFixture(t)
	ref := fx.TextContent(t, fx.DocumentSpace(t, "alice", "bob"), "alice", "text")
	grant(t, fx, ref, "alice",
		collab.Grant{Role: model.RoleViewer},
		collab.Grant{UserID: "bob", Role: model.RoleCommenter},
	)
	before, err := fx.Service.ListPermissions(ctx, ref, "alice")
	if err != nil {
		t.Fatalf("ListPermissions() error = %v", err)
	}

	_, err = fx.Service.UpdatePermissions(ctx, ref, "bob", []collab.Grant{{UserID: "bob", Role: model.RoleEditor}})
	wantErr(t, err, collab.ErrPermissionDenied)

	after, err := fx.Service.ListPermissions(ctx, ref, "alice")
	if err != nil {
		t.Fatalf("ListPermissions() error = %v", err)
	}
	b, a := rolesByUser(before), rolesByUser(after)
	if len(a) != len(b) {
		t.Fatalf("permissions changed: %v -> %v", b, a)
	}
	for user, role := range b {
		if a[user] != role {
			t.Errorf("%q: %s -> %s", user, role, a[user])
		}
	}
}

func TestUpdatePermissions_KeepsOwner(t *testing.T) {
	fx := testutil.NewFixture(t)
	ref := fx.TextContent(t, fx.DocumentSpace(t, "alice", "bob"), "alice", "text")

	perms, err := fx.Service.UpdatePermissions(ctx, ref, "alice", []collab.Grant{
		{UserID: "bob", Role: model.RoleOwner},
		{UserID: "", Role: model.RoleViewer},
	})
	if err != nil {
		t.Fatalf("UpdatePermissions() error = %v", err)
	}

	roles := rolesByUser(perms)
	if roles["alice"] != model.RoleOwner {
		t.Errorf("alice = %q, want owner", roles["alice"])
	}
	if _, ok := roles["bob"]; ok {
		t.Errorf("owner grant for bob was not ignored: %v", roles)
	}
	if roles[""] != model.RoleViewer {
		t.Errorf("default = %q, want viewer", roles[""])
	}

	t.Run("empty replace leaves only the owner", func(t *testing.T) {
		perms, err := fx.Service.UpdatePermissions(ctx, ref, "alice", nil)
		if err != nil {
			t.Fatalf("UpdatePermissions() error = %v", err)
		}
		if len(perms) != 1 || perms[0].UserID != "alice" || perms[0].Role != model.RoleOwner {
			t.Errorf("perms = %v", rolesByUser(perms))
		}
	})
}

func TestUpdatePermissions_SpaceAdmin(t *testing.T) {
	fx := testutil.NewFixture(t)
	ref := fx.DocumentSpace(t, "alice", "bob")
	if err := fx.Service.AddMember(ctx, ref.SpaceID, "alice", "carol", true); err != nil {
		t.Fatalf("AddMember() error = %v", err)
	}
	content := fx.TextContent(t, ref, "bob", "bob's notes")
	fx.Dispatcher.Reset()

	perms, err := fx.Service.UpdatePermissions(ctx, content, "carol", []collab.Grant{{UserID: "alice", Role: model.RoleViewer}})
	if err != nil {
		t.Fatalf("UpdatePermissions() by admin error = %v", err)
	}
	roles := rolesByUser(perms)
	if roles["bob"] != model.RoleOwner || roles["alice"] != model.RoleViewer {
		t.Errorf("roles = %v", roles)
	}
	if types := fx.Dispatcher.Types(); len(types) != 1 || types[0] != collab.EventPermissionsUpdated {
		t.Errorf("events = %v", types)
	}
}

func TestUpdatePermissions_Validation(t *testing.T) {
	fx := testutil.NewFixture(t)
	ref := fx.TextContent(t, fx.DocumentSpace(t, "alice"), "alice", "text")

	t.Run("unknown role", func(t *testing.T) {
		_, err := fx.Service.UpdatePermissions(ctx, ref, "alice", []collab.Grant{{UserID: "bob", Role: "superuser"}})
		wantErr(t, err, collab.ErrValidation)
	})

	t.Run("duplicate user", func(t *testing.T) {
		_, err := fx.Service.UpdatePermissions(ctx, ref, "alice", []collab.Grant{
			{UserID: "bob", Role: model.RoleViewer},
			{UserID: "bob", Role: model.RoleEditor},
		})
		wantErr(t, err, collab.ErrValidation)
	})
}

func TestResolve(t *testing.T) {
	fx := testutil.NewFixture(t)
	ref := fx.TextContent(t, fx.DocumentSpace(t, "alice", "bob", "carol"), "alice", "text")
	grant(t, fx, ref, "alice",
		collab.Grant{Role: model.RoleCommenter},
		collab.Grant{UserID: "bob", Role: model.RoleViewer},
	)

	tests := []struct {
		user string
		want model.Role
	}{
		{"alice", model.RoleOwner},
		{"bob", model.RoleViewer},
		{"carol", model.RoleCommenter},
	}
	for _, tt := range tests {
		t.Run(tt.user, func(t *testing.T) {
			got, err := fx.Service.Resolve(ctx, ref.ContentID, tt.user)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}

	t.Run("no default grant", func(t *testing.T) {
		grant(t, fx, ref, "alice")
		got, err := fx.Service.Resolve(ctx, ref.ContentID, "carol")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if got != "" {
			t.Errorf("Resolve() = %q, want no role", got)
		}
		_, err = fx.Service.GetContent(ctx, ref, "carol")
		wantErr(t, err, collab.ErrPermissionDenied)
	})
}

func TestGetContent_Capabilities(t *testing.T) {
	fx := testutil.NewFixture(t)
	ref := fx.TextContent(t, fx.DocumentSpace(t, "alice", "bob"), "alice", "text")
	grant(t, fx, ref, "alice", collab.Grant{UserID: "bob", Role: model.RoleCommenter})

	view, err := fx.Service.GetContent(ctx, ref, "bob")
	if err != nil {
		t.Fatalf("GetContent() error = %v", err)
	}
	want := model.Capabilities{Role: model.RoleCommenter, CanView: true, CanComment: true}
	if view.Permissions != want {
		t.Errorf("Permissions = %+v, want %+v", view.Permissions, want)
	}
	if view.Data != "text" {
		t.Errorf("Data = %q", view.Data)
	}
}
