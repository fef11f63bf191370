// Package memory provides in-memory repository implementations for tests.
// Behavior mirrors the postgres package, including the NULL-on-update /
// empty-string-on-insert name semantics and workspace scoping.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/subscriber"
)

// AppliedChunk records one ApplyChunk call, for asserting write-round
// behavior in tests.
type AppliedChunk struct {
	WorkspaceID int64
	Inserts     int
	Updates     int
}

// SubscriberRepo is a mutex-guarded in-memory subscriber.Repository.
type SubscriberRepo struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*domain.Subscriber

	// InsertConflicts simulates a concurrent writer: inserting any email in
	// the set fails the chunk with a DuplicateEmailError.
	InsertConflicts map[string]bool

	applied []AppliedChunk
}

// NewSubscriberRepo creates an empty in-memory repository.
func NewSubscriberRepo() *SubscriberRepo {
	return &SubscriberRepo{rows: make(map[int64]*domain.Subscriber)}
}

// Seed inserts a row directly, bypassing the chunk writer. Returns the
// assigned id.
func (r *SubscriberRepo) Seed(workspaceID int64, email, firstName, lastName, hash string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now()
	r.rows[r.nextID] = &domain.Subscriber{
		ID:          r.nextID,
		WorkspaceID: workspaceID,
		Email:       email,
		FirstName:   &firstName,
		LastName:    &lastName,
		Hash:        hash,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return r.nextID
}

// Applied returns a copy of the recorded chunk writes.
func (r *SubscriberRepo) Applied() []AppliedChunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]AppliedChunk, len(r.applied))
	copy(out, r.applied)
	return out
}

// Get returns a copy of a row by id, or nil.
func (r *SubscriberRepo) Get(id int64) *domain.Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[id]; ok {
		cp := *s
		return &cp
	}
	return nil
}

// Count returns the number of rows in the workspace.
func (r *SubscriberRepo) Count(workspaceID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.rows {
		if s.WorkspaceID == workspaceID {
			n++
		}
	}
	return n
}

func (r *SubscriberRepo) Paginate(ctx context.Context, workspaceID int64, orderBy string, limit, offset int) ([]domain.Subscriber, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []domain.Subscriber
	for _, s := range r.rows {
		if s.WorkspaceID == workspaceID {
			all = append(all, *s)
		}
	}
	sort.Slice(all, func(a, b int) bool {
		switch orderBy {
		case "email":
			return all[a].Email < all[b].Email
		case "last_name":
			return deref(all[a].LastName) < deref(all[b].LastName)
		default:
			return all[a].ID < all[b].ID
		}
	})

	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *SubscriberRepo) Find(ctx context.Context, workspaceID, id int64) (*domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[id]; ok && s.WorkspaceID == workspaceID {
		cp := *s
		return &cp, nil
	}
	return nil, subscriber.ErrNotFound
}

func (r *SubscriberRepo) FindByEmail(ctx context.Context, workspaceID int64, email string) (*domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.rows {
		if s.WorkspaceID == workspaceID && s.Email == email {
			cp := *s
			return &cp, nil
		}
	}
	return nil, subscriber.ErrNotFound
}

func (r *SubscriberRepo) LookupByEmails(ctx context.Context, workspaceID int64, emails []string) (map[string]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[e] = true
	}

	index := make(map[string]int64)
	for _, s := range r.rows {
		if s.WorkspaceID == workspaceID && want[s.Email] {
			index[s.Email] = s.ID
		}
	}
	return index, nil
}

func (r *SubscriberRepo) ApplyChunk(ctx context.Context, workspaceID int64, inserts []subscriber.PendingInsert, updates []subscriber.PendingUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, in := range inserts {
		if r.InsertConflicts[in.Email] {
			return &subscriber.DuplicateEmailError{Email: in.Email}
		}
	}

	now := time.Now()
	for _, in := range inserts {
		r.nextID++
		first, last := in.FirstName, in.LastName
		r.rows[r.nextID] = &domain.Subscriber{
			ID:          r.nextID,
			WorkspaceID: workspaceID,
			Email:       in.Email,
			FirstName:   &first,
			LastName:    &last,
			Meta:        in.Meta,
			Hash:        in.Hash,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
	}

	for _, up := range updates {
		s, ok := r.rows[up.ID]
		if !ok || s.WorkspaceID != workspaceID {
			continue
		}
		s.Email = up.Email
		s.FirstName = nilIfEmpty(up.FirstName)
		s.LastName = nilIfEmpty(up.LastName)
		s.Meta = up.Meta
		s.UpdatedAt = now
	}

	r.applied = append(r.applied, AppliedChunk{
		WorkspaceID: workspaceID,
		Inserts:     len(inserts),
		Updates:     len(updates),
	})
	return nil
}

func (r *SubscriberRepo) FetchByEmails(ctx context.Context, workspaceID int64, emails []string) ([]domain.Subscriber, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[string]bool, len(emails))
	for _, e := range emails {
		want[e] = true
	}

	var out []domain.Subscriber
	for _, s := range r.rows {
		if s.WorkspaceID == workspaceID && want[s.Email] {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

func (r *SubscriberRepo) Delete(ctx context.Context, workspaceID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.rows[id]; ok && s.WorkspaceID == workspaceID {
		delete(r.rows, id)
		return nil
	}
	return subscriber.ErrNotFound
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func nilIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
