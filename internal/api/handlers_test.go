package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/repository/memory"
	"github.com/ignite/mailroom/internal/service/subscriber"
	"github.com/ignite/mailroom/internal/service/tag"
)

type testEnv struct {
	subs   *memory.SubscriberRepo
	tags   *memory.TagRepo
	router http.Handler
}

func newTestEnv(t *testing.T, tagMode config.TagMode) *testEnv {
	t.Helper()
	subs := memory.NewSubscriberRepo()
	tags := memory.NewTagRepo(subs)
	h := NewHandlers(
		subscriber.NewService(subs, subscriber.SyncOptions{}),
		tag.NewService(tags),
		tagMode,
	)
	return &testEnv{subs: subs, tags: tags, router: SetupRoutes(h)}
}

func (e *testEnv) do(t *testing.T, method, path string, workspace string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if workspace != "" {
		req.Header.Set(WorkspaceHeader, workspace)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestSyncRequiresWorkspace(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)

	rec := env.do(t, http.MethodPost, "/api/v1/subscribers/sync", "", map[string]any{
		"subscribers": []map[string]any{{"email": "a@example.com"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/v1/subscribers/sync", "-3", map[string]any{
		"subscribers": []map[string]any{{"email": "a@example.com"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSyncHappyPath(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)
	env.subs.Seed(1, "existing@example.com", "Old", "Name", "hash-1")

	rec := env.do(t, http.MethodPost, "/api/v1/subscribers/sync", "1", map[string]any{
		"subscribers": []map[string]any{
			{"email": "existing@example.com", "first_name": "New"},
			{"email": "fresh@example.com", "first_name": "Fresh"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	data, ok := body["data"].([]any)
	require.True(t, ok)
	require.Len(t, data, 2)

	first := data[0].(map[string]any)
	second := data[1].(map[string]any)
	assert.Equal(t, "existing@example.com", first["email"])
	assert.Equal(t, "hash-1", first["hash"], "update must keep the original hash")
	assert.Equal(t, "fresh@example.com", second["email"])
	assert.Less(t, first["id"].(float64), second["id"].(float64))
}

func TestSyncEmptyBatch(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)

	rec := env.do(t, http.MethodPost, "/api/v1/subscribers/sync", "1", map[string]any{
		"subscribers": []map[string]any{},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSyncValidationDetails(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)

	rec := env.do(t, http.MethodPost, "/api/v1/subscribers/sync", "1", map[string]any{
		"subscribers": []map[string]any{
			{"email": "ok@example.com"},
			{"email": "broken"},
		},
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	body := decodeBody(t, rec)
	details, ok := body["details"].([]any)
	require.True(t, ok, "validation problems must be in the response body")
	require.Len(t, details, 1)
	problem := details[0].(map[string]any)
	assert.Equal(t, float64(1), problem["index"])
	assert.Equal(t, "broken", problem["email"])

	assert.Equal(t, 0, env.subs.Count(1), "nothing may be written on validation failure")
}

func TestSyncPartialFailureReturnsConflict(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)
	env.subs.InsertConflicts = map[string]bool{"user60@example.com": true}

	records := make([]map[string]any, 130)
	for i := range records {
		records[i] = map[string]any{"email": fmt.Sprintf("user%d@example.com", i)}
	}

	rec := env.do(t, http.MethodPost, "/api/v1/subscribers/sync", "1", map[string]any{
		"subscribers": records,
	})
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decodeBody(t, rec)
	details := body["details"].(map[string]any)
	failed := details["failed_emails"].([]any)
	assert.Contains(t, failed, "user60@example.com")

	persisted := details["subscribers"].([]any)
	assert.Len(t, persisted, 80, "committed chunks must still be reported")
}

func TestSyncReplaceModeAppliesTags(t *testing.T) {
	env := newTestEnv(t, config.TagModeReplace)
	tagID := env.tags.SeedTag(1, "imported")

	rec := env.do(t, http.MethodPost, "/api/v1/subscribers/sync", "1", map[string]any{
		"subscribers": []map[string]any{
			{"email": "tagged@example.com", "tags": []int64{tagID}},
			{"email": "untagged@example.com"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	members, err := env.tags.Members(context.Background(), 1, tagID)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "tagged@example.com", members[0].Email)
}

func TestSubscriberStore(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)

	rec := env.do(t, http.MethodPost, "/api/v1/subscribers/", "1", map[string]any{
		"email":      "new@example.com",
		"first_name": "New",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, "new@example.com", data["email"])
	assert.NotEmpty(t, data["hash"])
}

func TestSubscriberStoreBadEmail(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)

	rec := env.do(t, http.MethodPost, "/api/v1/subscribers/", "1", map[string]any{
		"email": "not-an-email",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSubscriberShowNotFound(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)
	id := env.subs.Seed(2, "hidden@example.com", "", "", "h")

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/subscribers/%d", id), "1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "row in another workspace must 404")
}

func TestSubscriberUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)
	id := env.subs.Seed(1, "old@example.com", "Old", "", "hash-1")
	path := fmt.Sprintf("/api/v1/subscribers/%d", id)

	rec := env.do(t, http.MethodPut, path, "1", map[string]any{
		"email":     "renamed@example.com",
		"last_name": "Renamed",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeBody(t, rec)["data"].(map[string]any)
	assert.Equal(t, "renamed@example.com", data["email"])
	assert.Nil(t, data["first_name"], "blank name must come back as null on update")
	assert.Equal(t, "hash-1", data["hash"])

	rec = env.do(t, http.MethodDelete, path, "1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodDelete, path, "1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubscribersListPagination(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)
	for i := 0; i < 7; i++ {
		env.subs.Seed(1, fmt.Sprintf("u%d@example.com", i), "F", fmt.Sprintf("L%d", i), "h")
	}
	env.subs.Seed(2, "other@example.com", "", "", "h")

	rec := env.do(t, http.MethodGet, "/api/v1/subscribers/?page=2&limit=5&order_by=id", "1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	data := body["data"].([]any)
	assert.Len(t, data, 2, "page two of seven rows at limit five")

	meta := body["pagination"].(map[string]any)
	assert.Equal(t, float64(7), meta["total"])
	assert.Equal(t, float64(2), meta["total_pages"])
	assert.Equal(t, false, meta["has_more"])
}

func TestTagMembershipEndpoints(t *testing.T) {
	env := newTestEnv(t, config.TagModePreserve)
	tagID := env.tags.SeedTag(1, "vip")
	a := env.subs.Seed(1, "a@example.com", "", "", "h1")
	b := env.subs.Seed(1, "b@example.com", "", "", "h2")
	path := fmt.Sprintf("/api/v1/tags/%d/subscribers/", tagID)

	rec := env.do(t, http.MethodPost, path, "1", map[string]any{"subscribers": []int64{a, b}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody(t, rec)["data"].([]any), 2)

	rec = env.do(t, http.MethodPut, path, "1", map[string]any{"subscribers": []int64{b}})
	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeBody(t, rec)["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "b@example.com", data[0].(map[string]any)["email"])

	rec = env.do(t, http.MethodDelete, path, "1", map[string]any{"subscribers": []int64{b}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeBody(t, rec)["data"])

	rec = env.do(t, http.MethodPost, "/api/v1/tags/999/subscribers/", "1", map[string]any{"subscribers": []int64{a}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
