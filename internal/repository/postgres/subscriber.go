package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lib/pq"

	"github.com/ignite/mailroom/internal/domain"
	"github.com/ignite/mailroom/internal/service/subscriber"
)

// SubscriberRepo implements subscriber.Repository against PostgreSQL.
//
// The bulk paths never interpolate caller-controlled values into SQL text:
// query strings are built from placeholders only and every email, name, and
// meta payload travels as a bind parameter.
type SubscriberRepo struct{ db *sql.DB }

// NewSubscriberRepo creates a Postgres-backed subscriber repository.
func NewSubscriberRepo(db *sql.DB) *SubscriberRepo { return &SubscriberRepo{db: db} }

var paginateColumns = map[string]bool{
	"id":         true,
	"email":      true,
	"first_name": true,
	"last_name":  true,
	"created_at": true,
}

func (r *SubscriberRepo) Paginate(ctx context.Context, workspaceID int64, orderBy string, limit, offset int) ([]domain.Subscriber, int, error) {
	if !paginateColumns[orderBy] {
		orderBy = "last_name"
	}
	if limit <= 0 {
		limit = 50
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM mailroom_subscribers WHERE workspace_id = $1`,
		workspaceID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}

	// orderBy is whitelisted above; it is the only non-parameter text.
	q := fmt.Sprintf(`
		SELECT id, workspace_id, email, first_name, last_name, meta, hash,
		       unsubscribed_at, created_at, updated_at
		FROM mailroom_subscribers
		WHERE workspace_id = $1
		ORDER BY %s
		LIMIT $2 OFFSET $3
	`, orderBy)

	rows, err := r.db.QueryContext(ctx, q, workspaceID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list subscribers: %w", err)
	}
	defer rows.Close()

	out, err := scanSubscribers(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *SubscriberRepo) Find(ctx context.Context, workspaceID, id int64) (*domain.Subscriber, error) {
	return r.findWhere(ctx, "id = $2", workspaceID, id)
}

func (r *SubscriberRepo) FindByEmail(ctx context.Context, workspaceID int64, email string) (*domain.Subscriber, error) {
	return r.findWhere(ctx, "email = $2", workspaceID, email)
}

func (r *SubscriberRepo) findWhere(ctx context.Context, cond string, workspaceID int64, arg any) (*domain.Subscriber, error) {
	s := &domain.Subscriber{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, workspace_id, email, first_name, last_name, meta, hash,
		       unsubscribed_at, created_at, updated_at
		FROM mailroom_subscribers
		WHERE workspace_id = $1 AND `+cond,
		workspaceID, arg,
	).Scan(
		&s.ID, &s.WorkspaceID, &s.Email, &s.FirstName, &s.LastName, &s.Meta,
		&s.Hash, &s.UnsubscribedAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, subscriber.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find subscriber: %w", err)
	}
	return s, nil
}

// LookupByEmails resolves existing emails to ids with a single query.
func (r *SubscriberRepo) LookupByEmails(ctx context.Context, workspaceID int64, emails []string) (map[string]int64, error) {
	index := make(map[string]int64, len(emails))
	if len(emails) == 0 {
		return index, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, email
		FROM mailroom_subscribers
		WHERE workspace_id = $1 AND email = ANY($2)
	`, workspaceID, pq.Array(emails))
	if err != nil {
		return nil, fmt.Errorf("lookup subscribers by email: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    int64
			email string
		)
		if err := rows.Scan(&id, &email); err != nil {
			return nil, fmt.Errorf("scan subscriber ref: %w", err)
		}
		index[email] = id
	}
	return index, rows.Err()
}

// ApplyChunk writes one chunk in a single transaction: at most one
// multi-row insert and one multi-row conditional update.
func (r *SubscriberRepo) ApplyChunk(ctx context.Context, workspaceID int64, inserts []subscriber.PendingInsert, updates []subscriber.PendingUpdate) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin chunk tx: %w", err)
	}
	defer tx.Rollback()

	if len(inserts) > 0 {
		if err := bulkInsert(ctx, tx, workspaceID, inserts); err != nil {
			return err
		}
	}
	if len(updates) > 0 {
		if err := bulkUpdate(ctx, tx, workspaceID, updates); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit chunk: %w", err)
	}
	return nil
}

// bulkInsert writes every pending insert with one multi-row statement.
// The insert path persists blank names as empty strings; only the update
// path maps them to NULL.
func bulkInsert(ctx context.Context, tx *sql.Tx, workspaceID int64, rows []subscriber.PendingInsert) error {
	const cols = 6

	values := make([]string, len(rows))
	args := make([]any, 0, len(rows)*cols)
	for i, row := range rows {
		base := i * cols
		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, NOW(), NOW())",
			base+1, base+2, base+3, base+4, base+5, base+6)
		args = append(args, workspaceID, row.Email, row.FirstName, row.LastName, row.Meta, row.Hash)
	}

	q := `
		INSERT INTO mailroom_subscribers
			(workspace_id, email, first_name, last_name, meta, hash, created_at, updated_at)
		VALUES ` + strings.Join(values, ", ")

	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		if dup := asDuplicateEmail(err, rows); dup != nil {
			return dup
		}
		return fmt.Errorf("bulk insert subscribers: %w", err)
	}
	return nil
}

// bulkUpdate rewrites every targeted row in one round trip using per-row
// CASE expressions keyed on id. The hash column is deliberately absent from
// the SET list. The workspace guard lives in WHERE, so a chunk can never
// touch another workspace's rows even if an id were guessed.
func bulkUpdate(ctx context.Context, tx *sql.Tx, workspaceID int64, rows []subscriber.PendingUpdate) error {
	const cols = 5

	var emailCase, firstCase, lastCase, metaCase strings.Builder
	args := make([]any, 0, len(rows)*cols+2)
	ids := make([]int64, len(rows))

	for i, row := range rows {
		base := i * cols
		ids[i] = row.ID
		args = append(args, row.ID, row.Email, nullIfEmpty(row.FirstName), nullIfEmpty(row.LastName), row.Meta)

		fmt.Fprintf(&emailCase, " WHEN $%d THEN $%d", base+1, base+2)
		fmt.Fprintf(&firstCase, " WHEN $%d THEN $%d", base+1, base+3)
		fmt.Fprintf(&lastCase, " WHEN $%d THEN $%d", base+1, base+4)
		fmt.Fprintf(&metaCase, " WHEN $%d THEN $%d", base+1, base+5)
	}

	wsArg := len(rows)*cols + 1
	idsArg := len(rows)*cols + 2
	args = append(args, workspaceID, pq.Array(ids))

	q := fmt.Sprintf(`
		UPDATE mailroom_subscribers SET
			email = CASE id%s END,
			first_name = CASE id%s END,
			last_name = CASE id%s END,
			meta = CASE id%s END,
			updated_at = NOW()
		WHERE workspace_id = $%d AND id = ANY($%d)
	`, emailCase.String(), firstCase.String(), lastCase.String(), metaCase.String(), wsArg, idsArg)

	if _, err := tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("bulk update subscribers: %w", err)
	}
	return nil
}

// FetchByEmails re-reads the affected rows in ascending id order.
func (r *SubscriberRepo) FetchByEmails(ctx context.Context, workspaceID int64, emails []string) ([]domain.Subscriber, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, workspace_id, email, first_name, last_name, meta, hash,
		       unsubscribed_at, created_at, updated_at
		FROM mailroom_subscribers
		WHERE workspace_id = $1 AND email = ANY($2)
		ORDER BY id
	`, workspaceID, pq.Array(emails))
	if err != nil {
		return nil, fmt.Errorf("fetch subscribers by email: %w", err)
	}
	defer rows.Close()

	return scanSubscribers(rows)
}

func (r *SubscriberRepo) Delete(ctx context.Context, workspaceID, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM mailroom_tag_subscriber
		WHERE subscriber_id IN (
			SELECT id FROM mailroom_subscribers WHERE workspace_id = $1 AND id = $2
		)
	`, workspaceID, id)
	if err != nil {
		return fmt.Errorf("detach subscriber tags: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`DELETE FROM mailroom_subscribers WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id,
	)
	if err != nil {
		return fmt.Errorf("delete subscriber: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return subscriber.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func scanSubscribers(rows *sql.Rows) ([]domain.Subscriber, error) {
	var out []domain.Subscriber
	for rows.Next() {
		var s domain.Subscriber
		if err := rows.Scan(
			&s.ID, &s.WorkspaceID, &s.Email, &s.FirstName, &s.LastName, &s.Meta,
			&s.Hash, &s.UnsubscribedAt, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// nullIfEmpty maps blank update values to SQL NULL, preserving the
// historical distinction from the insert path's empty string.
func nullIfEmpty(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// pqDetailKey matches the value tuple in a unique_violation detail line:
// `Key (workspace_id, email)=(7, a@x.com) already exists.`
var pqDetailKey = regexp.MustCompile(`\)=\((.+)\)`)

// asDuplicateEmail converts a unique_violation on the insert path into a
// *subscriber.DuplicateEmailError naming the colliding email when the
// driver detail allows it.
func asDuplicateEmail(err error, rows []subscriber.PendingInsert) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil
	}

	email := ""
	if m := pqDetailKey.FindStringSubmatch(pqErr.Detail); m != nil {
		parts := strings.Split(m[1], ", ")
		candidate := parts[len(parts)-1]
		for _, row := range rows {
			if row.Email == candidate {
				email = candidate
				break
			}
		}
	}
	return &subscriber.DuplicateEmailError{Email: email, Err: err}
}
