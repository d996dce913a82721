package collab_test

import (
	"context"
	"errors"
	"testing"

	"collab-go/internal/collab"
	"collab-go/internal/model"
	"collab-go/internal/testutil"
)

var ctx = context.Background()

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("error = %v, want %v", err, target)
	}
}

// bumpTo commits format operations until the content reaches version.
func bumpTo(t *testing.T, fx *testutil.Fixture, ref model.Ref, actor string, version int64) {
	t.Helper()
	for v := fx.Content(t, ref).Version; v < version; v++ {
		_, err := fx.Service.Submit(ctx, ref, actor, collab.OperationInput{
			Type:     model.OpFormat,
			Position: 0,
			Length:   1,
			Version:  v,
			Meta:     model.Meta{"attributes": map[string]any{"bold": true}},
		})
		if err != nil {
			t.Fatalf("format at version %d: %v", v, err)
		}
	}
}

func grant(t *testing.T, fx *testutil.Fixture, ref model.Ref, owner string, grants ...collab.Grant) {
	t.Helper()
	if _, err := fx.Service.UpdatePermissions(ctx, ref, owner, grants); err != nil {
		t.Fatalf("UpdatePermissions() error = %v", err)
	}
}
