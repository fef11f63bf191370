package subscriber

import (
	"context"
	"fmt"

	"github.com/ignite/mailroom/internal/domain"
)

// SyncOptions tunes the reconciliation engine. The zero value is usable:
// DefaultChunkSize, a single worker, no progress reporting.
type SyncOptions struct {
	// ChunkSize bounds rows per write round trip.
	ChunkSize int
	// Workers is the number of chunks written concurrently. Chunks are
	// independent, so values > 1 are safe; ordering of the final result
	// comes from the compile step, not from chunk completion order.
	Workers int
	// Progress, when set, receives per-step pipeline progress.
	Progress ProgressReporter
}

// Service implements subscriber business logic: single-record CRUD plus the
// bulk sync engine. All public methods are safe for concurrent use if the
// underlying repository is concurrency-safe.
type Service struct {
	repo Repository
	opts SyncOptions
}

// NewService creates a subscriber service backed by the given repository.
func NewService(repo Repository, opts SyncOptions) *Service {
	return &Service{repo: repo, opts: opts}
}

// Paginate returns a page of the workspace's subscribers.
func (s *Service) Paginate(ctx context.Context, workspaceID int64, orderBy string, limit, offset int) ([]domain.Subscriber, int, error) {
	return s.repo.Paginate(ctx, workspaceID, orderBy, limit, offset)
}

// Find returns a single subscriber.
func (s *Service) Find(ctx context.Context, workspaceID, id int64) (*domain.Subscriber, error) {
	return s.repo.Find(ctx, workspaceID, id)
}

// StoreOrUpdate persists a single record keyed by email: an insert with a
// fresh hash when the email is new, an update preserving the hash when it
// exists. It reuses the engine's classification and chunk writer so single
// and bulk paths cannot drift apart.
func (s *Service) StoreOrUpdate(ctx context.Context, workspaceID int64, rec SyncRecord) (*domain.Subscriber, error) {
	if err := validateRecords([]SyncRecord{rec}); err != nil {
		return nil, err
	}

	existing, err := s.repo.LookupByEmails(ctx, workspaceID, []string{rec.Email})
	if err != nil {
		return nil, fmt.Errorf("lookup existing subscriber: %w", err)
	}

	inserts, updates, err := classify([]SyncRecord{rec}, existing)
	if err != nil {
		return nil, err
	}
	if err := s.repo.ApplyChunk(ctx, workspaceID, inserts, updates); err != nil {
		return nil, fmt.Errorf("store or update subscriber: %w", err)
	}

	return s.repo.FindByEmail(ctx, workspaceID, rec.Email)
}

// UpdateByID rewrites a subscriber addressed by id, preserving its hash.
// The update goes through the same chunk writer as the bulk path, so blank
// names persist as NULL here too.
func (s *Service) UpdateByID(ctx context.Context, workspaceID, id int64, rec SyncRecord) (*domain.Subscriber, error) {
	if err := validateRecords([]SyncRecord{rec}); err != nil {
		return nil, err
	}
	if _, err := s.repo.Find(ctx, workspaceID, id); err != nil {
		return nil, err
	}

	meta, err := serializeMeta(rec.Meta)
	if err != nil {
		return nil, fmt.Errorf("serialize meta: %w", err)
	}

	update := PendingUpdate{
		ID:        id,
		Email:     rec.Email,
		FirstName: rec.FirstName,
		LastName:  rec.LastName,
		Meta:      meta,
	}
	if err := s.repo.ApplyChunk(ctx, workspaceID, nil, []PendingUpdate{update}); err != nil {
		return nil, fmt.Errorf("update subscriber: %w", err)
	}
	return s.repo.Find(ctx, workspaceID, id)
}

// Delete removes a subscriber and its tag memberships.
func (s *Service) Delete(ctx context.Context, workspaceID, id int64) error {
	return s.repo.Delete(ctx, workspaceID, id)
}
