package tag

import (
	"context"

	"github.com/ignite/mailroom/internal/domain"
)

// Repository defines the data access contract for tags and their
// subscriber memberships. Every method is workspace-scoped; membership
// writes must silently skip subscriber ids that belong to another
// workspace rather than cross the isolation boundary.
type Repository interface {
	// Find returns a single tag. Returns ErrNotFound if absent.
	Find(ctx context.Context, workspaceID, id int64) (*domain.Tag, error)

	// Attach adds the given subscribers to the tag, skipping ids already
	// attached.
	Attach(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) error

	// Replace makes the tag's membership exactly the given subscriber set.
	Replace(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) error

	// Detach removes the given subscribers from the tag.
	Detach(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) error

	// Members returns the tag's subscribers ordered by id.
	Members(ctx context.Context, workspaceID, tagID int64) ([]domain.Subscriber, error)

	// ReplaceForSubscriber makes the subscriber's tag set exactly the given
	// tag ids. Used by replace-mode bulk syncs.
	ReplaceForSubscriber(ctx context.Context, workspaceID, subscriberID int64, tagIDs []int64) error
}
