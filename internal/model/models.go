package model

import "time"

// SpaceKind determines the initial content format of a space. It never changes
// after the space is created.
type SpaceKind string

const (
	KindDocument   SpaceKind = "document"
	KindWhiteboard SpaceKind = "whiteboard"
	KindCode       SpaceKind = "code"
	KindVideo      SpaceKind = "video"
)

// Valid reports whether k is one of the known space kinds.
func (k SpaceKind) Valid() bool {
	switch k {
	case KindDocument, KindWhiteboard, KindCode, KindVideo:
		return true
	}
	return false
}

// User is the identity of an actor as seen by the engine. Issued elsewhere;
// the engine only caches display data for decorating payloads.
type User struct {
	ID          string    `db:"id" json:"id"`
	DisplayName string    `db:"display_name" json:"display_name"`
	AvatarURL   string    `db:"avatar_url" json:"avatar_url,omitempty"`
	UpdatedAt   time.Time `db:"updated_at" json:"-"`
}

// Space is a named container of content objects scoped to a parent channel.
type Space struct {
	ID          string    `db:"id" json:"id"`
	ChannelID   string    `db:"channel_id" json:"channel_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Kind        SpaceKind `db:"kind" json:"kind"`
	Settings    Meta      `db:"settings" json:"settings"`
	CreatorID   string    `db:"creator_id" json:"creator_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// SpaceMember records membership of a user in a space.
type SpaceMember struct {
	SpaceID   string    `db:"space_id" json:"space_id"`
	UserID    string    `db:"user_id" json:"user_id"`
	IsAdmin   bool      `db:"is_admin" json:"is_admin"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Content is one editable object inside a space. Version starts at 1 and
// grows by exactly one per accepted mutation; Data is always the state after
// every mutation up to Version.
type Content struct {
	ID          string    `db:"id" json:"id"`
	SpaceID     string    `db:"space_id" json:"space_id"`
	ContentType string    `db:"content_type" json:"content_type"`
	Data        string    `db:"content_data" json:"content_data"`
	Metadata    Meta      `db:"metadata" json:"metadata"`
	Version     int64     `db:"version" json:"version"`
	CreatorID   string    `db:"creator_id" json:"creator_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Ref identifies a content object together with its enclosing space.
type Ref struct {
	SpaceID   string
	ContentID string
}

// ContentVersion is an immutable snapshot of a content object. The snapshot
// blob is stored in the archive under Checksum.
type ContentVersion struct {
	ID            string    `db:"id" json:"id"`
	ContentID     string    `db:"content_id" json:"content_id"`
	VersionNumber int64     `db:"version_number" json:"version_number"`
	Checksum      string    `db:"checksum" json:"checksum"`
	Size          int64     `db:"size" json:"size"`
	Label         string    `db:"label" json:"label,omitempty"`
	CreatorID     string    `db:"creator_id" json:"creator_id"`
	Metadata      Meta      `db:"metadata" json:"metadata"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Permission grants a role on a content object. An empty UserID is the
// default grant for every member of the enclosing space.
type Permission struct {
	ContentID string    `db:"content_id" json:"content_id"`
	UserID    string    `db:"user_id" json:"user_id,omitempty"`
	Role      Role      `db:"role" json:"role"`
	GrantedBy string    `db:"granted_by" json:"granted_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsDefault reports whether the grant applies to every space member.
func (p *Permission) IsDefault() bool {
	return p.UserID == ""
}

// Comment is a threaded annotation on a content object.
type Comment struct {
	ID        string    `db:"id" json:"id"`
	ContentID string    `db:"content_id" json:"content_id"`
	AuthorID  string    `db:"author_id" json:"author_id"`
	Text      string    `db:"text" json:"text"`
	Position  Meta      `db:"position" json:"position,omitempty"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	Resolved  bool      `db:"resolved" json:"resolved"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	Author  *User      `db:"-" json:"author,omitempty"`
	Replies []*Comment `db:"-" json:"replies,omitempty"`
}
