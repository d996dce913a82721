package collab

import (
	"context"

	"collab-go/internal/model"
)

// Membership answers space-level access questions. It is owned by the
// channel/membership service; the engine only consumes it.
type Membership interface {
	IsMember(ctx context.Context, spaceID, userID string) (bool, error)
	IsAdmin(ctx context.Context, spaceID, userID string) (bool, error)
}

// Identity resolves display data for a user ID. LookupUser returns
// (nil, nil) for unknown users.
type Identity interface {
	LookupUser(ctx context.Context, userID string) (*model.User, error)
}
