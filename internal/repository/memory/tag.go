package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/tag"
)

// TagRepo is a mutex-guarded in-memory tag.Repository. It shares a
// SubscriberRepo so membership writes respect workspace scoping the same
// way the postgres join does.
type TagRepo struct {
	mu          sync.Mutex
	nextID      int64
	tags        map[int64]*domain.Tag
	pivot       map[int64]map[int64]bool // tag id -> subscriber ids
	subscribers *SubscriberRepo
}

// NewTagRepo creates an empty in-memory tag repository over the given
// subscriber repository.
func NewTagRepo(subs *SubscriberRepo) *TagRepo {
	return &TagRepo{
		tags:        make(map[int64]*domain.Tag),
		pivot:       make(map[int64]map[int64]bool),
		subscribers: subs,
	}
}

// SeedTag inserts a tag directly and returns its id.
func (r *TagRepo) SeedTag(workspaceID int64, name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	now := time.Now()
	r.tags[r.nextID] = &domain.Tag{
		ID:          r.nextID,
		WorkspaceID: workspaceID,
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	r.pivot[r.nextID] = make(map[int64]bool)
	return r.nextID
}

func (r *TagRepo) Find(ctx context.Context, workspaceID, id int64) (*domain.Tag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tags[id]; ok && t.WorkspaceID == workspaceID {
		cp := *t
		return &cp, nil
	}
	return nil, tag.ErrNotFound
}

func (r *TagRepo) Attach(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range r.inWorkspace(workspaceID, subscriberIDs) {
		r.pivot[tagID][id] = true
	}
	return nil
}

func (r *TagRepo) Replace(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[int64]bool)
	for _, id := range r.inWorkspace(workspaceID, subscriberIDs) {
		next[id] = true
	}
	r.pivot[tagID] = next
	return nil
}

func (r *TagRepo) Detach(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range subscriberIDs {
		delete(r.pivot[tagID], id)
	}
	return nil
}

func (r *TagRepo) ReplaceForSubscriber(ctx context.Context, workspaceID, subscriberID int64, tagIDs []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := make(map[int64]bool, len(tagIDs))
	for _, id := range tagIDs {
		if t, ok := r.tags[id]; ok && t.WorkspaceID == workspaceID {
			want[id] = true
		}
	}
	for tagID, members := range r.pivot {
		if want[tagID] {
			members[subscriberID] = true
		} else {
			delete(members, subscriberID)
		}
	}
	return nil
}

func (r *TagRepo) Members(ctx context.Context, workspaceID, tagID int64) ([]domain.Subscriber, error) {
	r.mu.Lock()
	ids := make([]int64, 0, len(r.pivot[tagID]))
	for id := range r.pivot[tagID] {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var out []domain.Subscriber
	for _, id := range ids {
		if s := r.subscribers.Get(id); s != nil && s.WorkspaceID == workspaceID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out, nil
}

// inWorkspace filters subscriber ids to those existing in the workspace,
// mirroring the postgres INSERT ... SELECT join.
func (r *TagRepo) inWorkspace(workspaceID int64, ids []int64) []int64 {
	var out []int64
	for _, id := range ids {
		if s := r.subscribers.Get(id); s != nil && s.WorkspaceID == workspaceID {
			out = append(out, id)
		}
	}
	return out
}
