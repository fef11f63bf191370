package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailroom/internal/service/subscriber"
)

var sampleTime = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

func newMockRepo(t *testing.T) (*SubscriberRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSubscriberRepo(db), mock
}

func TestLookupByEmailsIsWorkspaceScoped(t *testing.T) {
	repo, mock := newMockRepo(t)
	emails := []string{"a@x.com", "b@x.com"}

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE workspace_id = $1 AND email = ANY($2)`)).
		WithArgs(int64(7), pq.Array(emails)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email"}).AddRow(int64(3), "a@x.com"))

	index, err := repo.LookupByEmails(context.Background(), 7, emails)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"a@x.com": 3}, index)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLookupByEmailsEmptyInputSkipsQuery(t *testing.T) {
	repo, mock := newMockRepo(t)

	index, err := repo.LookupByEmails(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.Empty(t, index)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyChunkSingleRoundTripPerOperation(t *testing.T) {
	repo, mock := newMockRepo(t)

	inserts := []subscriber.PendingInsert{
		{Email: "new1@x.com", FirstName: "N1", LastName: "", Meta: `""`, Hash: "hash-1"},
		{Email: "new2@x.com", FirstName: "N2", LastName: "L2", Meta: `{"a":1}`, Hash: "hash-2"},
	}
	updates := []subscriber.PendingUpdate{
		{ID: 11, Email: "up1@x.com", FirstName: "U1", LastName: "", Meta: `""`},
		{ID: 12, Email: "up2@x.com", FirstName: "", LastName: "L", Meta: `""`},
	}

	mock.ExpectBegin()

	// One multi-row insert; blank names travel as empty strings here.
	mock.ExpectExec(regexp.QuoteMeta(
		`($1, $2, $3, $4, $5, $6, NOW(), NOW()), ($7, $8, $9, $10, $11, $12, NOW(), NOW())`,
	)).WithArgs(
		int64(7), "new1@x.com", "N1", "", `""`, "hash-1",
		int64(7), "new2@x.com", "N2", "L2", `{"a":1}`, "hash-2",
	).WillReturnResult(sqlmock.NewResult(0, 2))

	// One conditional update; blank names become NULL, hash is untouched,
	// and the workspace guard closes the statement.
	mock.ExpectExec(regexp.QuoteMeta(`email = CASE id WHEN $1 THEN $2 WHEN $6 THEN $7 END`)).
		WithArgs(
			int64(11), "up1@x.com", "U1", nil, `""`,
			int64(12), "up2@x.com", nil, "L", `""`,
			int64(7), pq.Array([]int64{11, 12}),
		).WillReturnResult(sqlmock.NewResult(0, 2))

	mock.ExpectCommit()

	err := repo.ApplyChunk(context.Background(), 7, inserts, updates)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyChunkUpdateNeverSetsHash(t *testing.T) {
	repo, mock := newMockRepo(t)

	updates := []subscriber.PendingUpdate{{ID: 5, Email: "u@x.com", FirstName: "F", LastName: "L", Meta: `""`}}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE mailroom_subscribers SET\s+email = CASE id`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.ApplyChunk(context.Background(), 7, nil, updates))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyChunkDuplicateKeyNamesEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	inserts := []subscriber.PendingInsert{
		{Email: "a@x.com", Meta: `""`, Hash: "h1"},
		{Email: "b@x.com", Meta: `""`, Hash: "h2"},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mailroom_subscribers`).
		WillReturnError(&pq.Error{
			Code:   "23505",
			Detail: `Key (workspace_id, email)=(7, b@x.com) already exists.`,
		})
	mock.ExpectRollback()

	err := repo.ApplyChunk(context.Background(), 7, inserts, nil)

	var dup *subscriber.DuplicateEmailError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "b@x.com", dup.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyChunkRollsBackOnUpdateFailure(t *testing.T) {
	repo, mock := newMockRepo(t)

	inserts := []subscriber.PendingInsert{{Email: "a@x.com", Meta: `""`, Hash: "h"}}
	updates := []subscriber.PendingUpdate{{ID: 3, Email: "b@x.com", Meta: `""`}}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO mailroom_subscribers`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE mailroom_subscribers`).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.ApplyChunk(context.Background(), 7, inserts, updates)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bulk update subscribers")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFetchByEmailsOrdersByID(t *testing.T) {
	repo, mock := newMockRepo(t)
	emails := []string{"a@x.com", "b@x.com"}

	rows := sqlmock.NewRows([]string{
		"id", "workspace_id", "email", "first_name", "last_name", "meta",
		"hash", "unsubscribed_at", "created_at", "updated_at",
	}).
		AddRow(int64(1), int64(7), "a@x.com", "A", nil, `""`, "h1", nil, sampleTime, sampleTime).
		AddRow(int64(2), int64(7), "b@x.com", nil, nil, `""`, "h2", nil, sampleTime, sampleTime)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE workspace_id = $1 AND email = ANY($2)`) + `[\s]+ORDER BY id`).
		WithArgs(int64(7), pq.Array(emails)).
		WillReturnRows(rows)

	out, err := repo.FetchByEmails(context.Background(), 7, emails)
	require.NoError(t, err)
	require.Len(t, out, 2)

	assert.Equal(t, "A", *out[0].FirstName)
	assert.Nil(t, out[0].LastName, "NULL names must round-trip as nil")
	assert.Nil(t, out[1].FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteRemovesPivotRowsFirst(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM mailroom_tag_subscriber`).
		WithArgs(int64(7), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM mailroom_subscribers WHERE workspace_id = $1 AND id = $2`)).
		WithArgs(int64(7), int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), 7, 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM mailroom_tag_subscriber`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM mailroom_subscribers`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), 7, 42)
	assert.ErrorIs(t, err, subscriber.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
