package collab

import (
	"context"
	"fmt"
	"time"

	"collab-go/internal/model"
)

// Dispatcher fans out events to every subscriber of a topic. Delivery is
// best-effort; an error never undoes the change that produced the event.
type Dispatcher interface {
	Publish(ctx context.Context, topic string, event *Event) error
}

// EventType names what happened to a content object.
type EventType string

const (
	EventOperationCommitted EventType = "operation.committed"
	EventContentUpdated     EventType = "content.updated"
	EventContentRestored    EventType = "content.restored"
	EventContentDeleted     EventType = "content.deleted"
	EventVersionSaved       EventType = "version.saved"
	EventCursorUpdated      EventType = "cursor.updated"
	EventCommentCreated     EventType = "comment.created"
	EventCommentUpdated     EventType = "comment.updated"
	EventCommentResolved    EventType = "comment.resolved"
	EventCommentDeleted     EventType = "comment.deleted"
	EventPermissionsUpdated EventType = "permissions.updated"
)

// RevokesAccess reports whether subscribers must pass the access check again
// after an event of this type.
func (t EventType) RevokesAccess() bool {
	return t == EventPermissionsUpdated || t == EventContentDeleted
}

// Event is the payload published for a content object.
type Event struct {
	Type      EventType `json:"type"`
	SpaceID   string    `json:"space_id"`
	ContentID string    `json:"content_id"`
	ActorID   string    `json:"actor_id"`
	Version   int64     `json:"version"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Topic returns the broadcast topic for a content object.
func Topic(ref model.Ref) string {
	return fmt.Sprintf("space:%s:content:%s", ref.SpaceID, ref.ContentID)
}

// NopDispatcher drops every event.
type NopDispatcher struct{}

func (NopDispatcher) Publish(context.Context, string, *Event) error { return nil }
