package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/tag"
)

// TagRepo implements tag.Repository against PostgreSQL.
type TagRepo struct{ db *sql.DB }

// NewTagRepo creates a Postgres-backed tag repository.
func NewTagRepo(db *sql.DB) *TagRepo { return &TagRepo{db: db} }

func (r *TagRepo) Find(ctx context.Context, workspaceID, id int64) (*domain.Tag, error) {
	t := &domain.Tag{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, name, created_at, updated_at
		FROM mailroom_tags
		WHERE workspace_id = $1 AND id = $2
	`, workspaceID, id).Scan(&t.ID, &t.WorkspaceID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, tag.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find tag: %w", err)
	}
	return t, nil
}

// Attach inserts pivot rows for the given subscribers. The SELECT join
// keeps membership writes inside the workspace: ids belonging to another
// workspace simply produce no rows.
func (r *TagRepo) Attach(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) error {
	if len(subscriberIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO mailroom_tag_subscriber (tag_id, subscriber_id)
		SELECT $1, s.id
		FROM mailroom_subscribers s
		WHERE s.workspace_id = $2 AND s.id = ANY($3)
		ON CONFLICT (tag_id, subscriber_id) DO NOTHING
	`, tagID, workspaceID, pq.Array(subscriberIDs))
	if err != nil {
		return fmt.Errorf("attach tag subscribers: %w", err)
	}
	return nil
}

// Replace makes the pivot match exactly the given subscriber set.
func (r *TagRepo) Replace(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tag sync tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM mailroom_tag_subscriber
		WHERE tag_id = $1 AND subscriber_id <> ALL($2)
	`, tagID, pq.Array(subscriberIDs))
	if err != nil {
		return fmt.Errorf("prune tag subscribers: %w", err)
	}

	if len(subscriberIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mailroom_tag_subscriber (tag_id, subscriber_id)
			SELECT $1, s.id
			FROM mailroom_subscribers s
			WHERE s.workspace_id = $2 AND s.id = ANY($3)
			ON CONFLICT (tag_id, subscriber_id) DO NOTHING
		`, tagID, workspaceID, pq.Array(subscriberIDs))
		if err != nil {
			return fmt.Errorf("attach tag subscribers: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tag sync: %w", err)
	}
	return nil
}

func (r *TagRepo) Detach(ctx context.Context, workspaceID, tagID int64, subscriberIDs []int64) error {
	if len(subscriberIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		DELETE FROM mailroom_tag_subscriber
		WHERE tag_id = $1 AND subscriber_id = ANY($2)
	`, tagID, pq.Array(subscriberIDs))
	if err != nil {
		return fmt.Errorf("detach tag subscribers: %w", err)
	}
	return nil
}

// ReplaceForSubscriber makes one subscriber's tag set exactly the given
// tag ids. Tags from other workspaces are filtered by the join.
func (r *TagRepo) ReplaceForSubscriber(ctx context.Context, workspaceID, subscriberID int64, tagIDs []int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin subscriber tag sync tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM mailroom_tag_subscriber
		WHERE subscriber_id = $1 AND tag_id <> ALL($2)
	`, subscriberID, pq.Array(tagIDs))
	if err != nil {
		return fmt.Errorf("prune subscriber tags: %w", err)
	}

	if len(tagIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mailroom_tag_subscriber (tag_id, subscriber_id)
			SELECT t.id, $1
			FROM mailroom_tags t
			WHERE t.workspace_id = $2 AND t.id = ANY($3)
			ON CONFLICT (tag_id, subscriber_id) DO NOTHING
		`, subscriberID, workspaceID, pq.Array(tagIDs))
		if err != nil {
			return fmt.Errorf("attach subscriber tags: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit subscriber tag sync: %w", err)
	}
	return nil
}

func (r *TagRepo) Members(ctx context.Context, workspaceID, tagID int64) ([]domain.Subscriber, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.workspace_id, s.email, s.first_name, s.last_name, s.meta,
		       s.hash, s.unsubscribed_at, s.created_at, s.updated_at
		FROM mailroom_subscribers s
		JOIN mailroom_tag_subscriber ts ON ts.subscriber_id = s.id
		WHERE ts.tag_id = $1 AND s.workspace_id = $2
		ORDER BY s.id
	`, tagID, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("list tag subscribers: %w", err)
	}
	defer rows.Close()

	return scanSubscribers(rows)
}
