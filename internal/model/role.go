package model

// Role is a capability level on a content object.
type Role string

const (
	RoleOwner     Role = "owner"
	RoleEditor    Role = "editor"
	RoleCommenter Role = "commenter"
	RoleViewer    Role = "viewer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleEditor, RoleCommenter, RoleViewer:
		return true
	}
	return false
}

// CanView reports whether the role may read the content. The empty role
// means no access.
func (r Role) CanView() bool {
	return r.Valid()
}

// CanComment reports whether the role may add comments.
func (r Role) CanComment() bool {
	return r == RoleCommenter || r == RoleEditor || r == RoleOwner
}

// CanEdit reports whether the role may mutate content.
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleOwner
}

// Capabilities summarises what a caller may do with a content object.
type Capabilities struct {
	Role       Role `json:"role,omitempty"`
	CanView    bool `json:"can_view"`
	CanComment bool `json:"can_comment"`
	CanEdit    bool `json:"can_edit"`
}

// CapabilitiesOf expands a role into its derived predicates.
func CapabilitiesOf(r Role) Capabilities {
	return Capabilities{
		Role:       r,
		CanView:    r.CanView(),
		CanComment: r.CanComment(),
		CanEdit:    r.CanEdit(),
	}
}
