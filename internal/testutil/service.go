package testutil

import (
	"context"
	"testing"

	"collab-go/internal/archive"
	"collab-go/internal/collab"
	"collab-go/internal/database"
	"collab-go/internal/model"
)

// Fixture is a Service wired to in-memory collaborators.
type Fixture struct {
	Service    *collab.Service
	DB         *database.SQLiteDatabase
	Archive    *archive.MemoryArchive
	Dispatcher *RecordingDispatcher
	Clock      *StubClock
	IDs        *StubIDGenerator
}

// NewFixture creates a Service with default options over a fresh database.
func NewFixture(t *testing.T) *Fixture {
	return NewFixtureWithOptions(t, collab.DefaultOptions())
}

// NewFixtureWithOptions creates a Service with opts over a fresh database.
func NewFixtureWithOptions(t *testing.T, opts collab.Options) *Fixture {
	t.Helper()
	fx := &Fixture{
		DB:         NewTestDatabase(t),
		Archive:    archive.NewMemoryArchive(),
		Dispatcher: NewRecordingDispatcher(),
		Clock:      FixedClock(),
		IDs:        NewStubIDGenerator(),
	}
	fx.Service = collab.NewService(fx.DB, fx.Archive, fx.DB, fx.DB, fx.Dispatcher,
		collab.NewNopLogger(), fx.Clock, fx.IDs, opts)
	return fx
}

// DocumentSpace creates a document space owned by owner and adds members as
// regular members. It returns the ref of the space's initial content.
func (fx *Fixture) DocumentSpace(t *testing.T, owner string, members ...string) model.Ref {
	t.Helper()
	ctx := context.Background()

	space, content, err := fx.Service.CreateSpace(ctx, owner, collab.SpaceInput{
		Title: "Notes",
		Kind:  model.KindDocument,
	})
	if err != nil {
		t.Fatalf("CreateSpace() error = %v", err)
	}
	for _, m := range members {
		if err := fx.Service.AddMember(ctx, space.ID, owner, m, false); err != nil {
			t.Fatalf("AddMember(%s) error = %v", m, err)
		}
	}
	return model.Ref{SpaceID: space.ID, ContentID: content.ID}
}

// TextContent creates a text/plain content object holding data in the space
// of ref, owned by owner, and returns its ref.
func (fx *Fixture) TextContent(t *testing.T, ref model.Ref, owner, data string) model.Ref {
	t.Helper()
	content, err := fx.Service.CreateContent(context.Background(), ref.SpaceID, owner, collab.ContentInput{
		ContentType: "text/plain",
		Data:        &data,
	})
	if err != nil {
		t.Fatalf("CreateContent() error = %v", err)
	}
	return model.Ref{SpaceID: ref.SpaceID, ContentID: content.ID}
}

// Content reads the stored content object behind ref.
func (fx *Fixture) Content(t *testing.T, ref model.Ref) *model.Content {
	t.Helper()
	c, err := fx.DB.FindContent(context.Background(), ref.ContentID)
	if err != nil {
		t.Fatalf("FindContent() error = %v", err)
	}
	if c == nil {
		t.Fatalf("content %s not found", ref.ContentID)
	}
	return c
}
