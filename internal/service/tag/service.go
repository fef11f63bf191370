package tag

import (
	"context"
	"fmt"

	"github.com/ignite/mailroom/internal/domain"
)

// Service implements tag membership business logic.
type Service struct {
	repo Repository
}

// NewService creates a tag service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Attach adds subscribers to a tag and returns the resulting membership.
func (s *Service) Attach(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) ([]domain.Subscriber, error) {
	if _, err := s.repo.Find(ctx, workspaceID, tagID); err != nil {
		return nil, err
	}
	if err := s.repo.Attach(ctx, workspaceID, tagID, subscriberIDs); err != nil {
		return nil, fmt.Errorf("attach subscribers to tag %d: %w", tagID, err)
	}
	return s.repo.Members(ctx, workspaceID, tagID)
}

// Sync replaces a tag's membership with exactly the given subscriber set.
func (s *Service) Sync(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) ([]domain.Subscriber, error) {
	if _, err := s.repo.Find(ctx, workspaceID, tagID); err != nil {
		return nil, err
	}
	if err := s.repo.Replace(ctx, workspaceID, tagID, subscriberIDs); err != nil {
		return nil, fmt.Errorf("sync subscribers on tag %d: %w", tagID, err)
	}
	return s.repo.Members(ctx, workspaceID, tagID)
}

// SyncSubscriber replaces one subscriber's tag memberships with exactly
// the given tag ids.
func (s *Service) SyncSubscriber(ctx context.Context, workspaceID, subscriberID int64, tagIDs []int64) error {
	if err := s.repo.ReplaceForSubscriber(ctx, workspaceID, subscriberID, tagIDs); err != nil {
		return fmt.Errorf("sync tags for subscriber %d: %w", subscriberID, err)
	}
	return nil
}

// Detach removes subscribers from a tag and returns the remaining
// membership.
func (s *Service) Detach(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) ([]domain.Subscriber, error) {
	if _, err := s.repo.Find(ctx, workspaceID, tagID); err != nil {
		return nil, err
	}
	if err := s.repo.Detach(ctx, workspaceID, tagID, subscriberIDs); err != nil {
		return nil, fmt.Errorf("detach subscribers from tag %d: %w", tagID, err)
	}
	return s.repo.Members(ctx, workspaceID, tagID)
}
