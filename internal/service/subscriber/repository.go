package subscriber

import (
	"context"

	"github.com/ignite/mailroom/internal/domain"
)

// PendingInsert is a classified new subscriber awaiting its insert round.
// Hash is generated at classification time and never changes afterwards.
type PendingInsert struct {
	Email     string
	FirstName string
	LastName  string
	Meta      string
	Hash      string
}

// PendingUpdate is a classified existing subscriber awaiting its update
// round. It carries no hash: updates must never touch the stored one.
// Empty FirstName/LastName persist as SQL NULL, unlike the insert path's
// empty string; that asymmetry is load-bearing for downstream queries.
type PendingUpdate struct {
	ID        int64
	Email     string
	FirstName string
	LastName  string
	Meta      string
}

// Repository defines the data access contract for subscribers.
// Every method is scoped by workspaceID; implementations must never read or
// write rows belonging to another workspace. Implementations must be safe
// for concurrent use: the sync engine may apply chunks from multiple
// goroutines.
type Repository interface {
	// Paginate returns a page of subscribers ordered by the given column.
	Paginate(ctx context.Context, workspaceID int64, orderBy string, limit, offset int) ([]domain.Subscriber, int, error)

	// Find returns a single subscriber. Returns ErrNotFound if absent.
	Find(ctx context.Context, workspaceID, id int64) (*domain.Subscriber, error)

	// FindByEmail returns the subscriber with the given email.
	// Returns ErrNotFound if absent.
	FindByEmail(ctx context.Context, workspaceID int64, email string) (*domain.Subscriber, error)

	// LookupByEmails resolves which of the given emails already exist,
	// returning an email -> id index. Emails absent from the map do not
	// exist for the workspace. Exactly one query regardless of len(emails).
	LookupByEmails(ctx context.Context, workspaceID int64, emails []string) (map[string]int64, error)

	// ApplyChunk writes one chunk atomically: at most one multi-row insert
	// for inserts and one multi-row conditional update for updates, in a
	// single transaction. A uniqueness race on insert surfaces as a
	// *DuplicateEmailError.
	ApplyChunk(ctx context.Context, workspaceID int64, inserts []PendingInsert, updates []PendingUpdate) error

	// FetchByEmails re-reads all rows for the given emails, ordered by id
	// ascending. This is the authoritative post-write state.
	FetchByEmails(ctx context.Context, workspaceID int64, emails []string) ([]domain.Subscriber, error)

	// Delete removes a subscriber and its tag memberships.
	Delete(ctx context.Context, workspaceID, id int64) error
}
