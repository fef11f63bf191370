package subscriber_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailroom/internal/repository/memory"
	"github.com/ignite/mailroom/internal/service/subscriber"
)

func TestStoreOrUpdate(t *testing.T) {
	repo := memory.NewSubscriberRepo()
	svc := subscriber.NewService(repo, subscriber.SyncOptions{})
	ctx := context.Background()

	created, err := svc.StoreOrUpdate(ctx, 1, subscriber.SyncRecord{
		Email:     "jane@example.com",
		FirstName: "Jane",
		Meta:      map[string]any{"plan": "pro"},
	})
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", created.Email)
	assert.NotEmpty(t, created.Hash)
	assert.Equal(t, `{"plan":"pro"}`, created.Meta)

	updated, err := svc.StoreOrUpdate(ctx, 1, subscriber.SyncRecord{
		Email:     "jane@example.com",
		FirstName: "Janet",
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.Hash, updated.Hash)
	assert.Equal(t, "Janet", *updated.FirstName)
	assert.Equal(t, 1, repo.Count(1))
}

func TestStoreOrUpdateRejectsBadEmail(t *testing.T) {
	svc := subscriber.NewService(memory.NewSubscriberRepo(), subscriber.SyncOptions{})

	_, err := svc.StoreOrUpdate(context.Background(), 1, subscriber.SyncRecord{Email: "nope"})

	var vErr *subscriber.ValidationError
	require.ErrorAs(t, err, &vErr)
}

func TestUpdateByID(t *testing.T) {
	repo := memory.NewSubscriberRepo()
	svc := subscriber.NewService(repo, subscriber.SyncOptions{})
	ctx := context.Background()

	id := repo.Seed(1, "old@example.com", "Old", "Name", "hash-1")

	updated, err := svc.UpdateByID(ctx, 1, id, subscriber.SyncRecord{
		Email:    "new@example.com",
		LastName: "Renamed",
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Nil(t, updated.FirstName, "blank name must persist as NULL on the update path")
	assert.Equal(t, "Renamed", *updated.LastName)
	assert.Equal(t, "hash-1", updated.Hash)
}

func TestUpdateByIDWrongWorkspace(t *testing.T) {
	repo := memory.NewSubscriberRepo()
	svc := subscriber.NewService(repo, subscriber.SyncOptions{})

	id := repo.Seed(2, "someone@example.com", "", "", "hash-x")

	_, err := svc.UpdateByID(context.Background(), 1, id, subscriber.SyncRecord{Email: "hijack@example.com"})
	assert.ErrorIs(t, err, subscriber.ErrNotFound)
}

func TestDelete(t *testing.T) {
	repo := memory.NewSubscriberRepo()
	svc := subscriber.NewService(repo, subscriber.SyncOptions{})
	ctx := context.Background()

	id := repo.Seed(1, "bye@example.com", "", "", "hash-d")

	require.NoError(t, svc.Delete(ctx, 1, id))
	assert.ErrorIs(t, svc.Delete(ctx, 1, id), subscriber.ErrNotFound)
	assert.Equal(t, 0, repo.Count(1))
}
