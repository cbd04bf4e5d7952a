package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cftracker/internal/domain"
	"cftracker/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSyncer struct {
	singleResult domain.SyncResult
	batchResult  *domain.BatchResult
	batchErr     error
	catalogCount int
	catalogErr   error
	syncedIDs    []string
}

func (f *fakeSyncer) SyncSingleProfile(_ context.Context, studentID string) domain.SyncResult {
	f.syncedIDs = append(f.syncedIDs, studentID)
	return f.singleResult
}

func (f *fakeSyncer) SyncAllProfiles(_ context.Context, _ []string) (*domain.BatchResult, error) {
	return f.batchResult, f.batchErr
}

func (f *fakeSyncer) SyncProblemCatalog(_ context.Context) (int, error) {
	return f.catalogCount, f.catalogErr
}

type fakeScheduleManager struct {
	expr string
	err  error
	last string
}

func (f *fakeScheduleManager) UpdateSchedule(_ context.Context, input string) (string, error) {
	f.last = input
	return f.expr, f.err
}

type fakeRecLister struct {
	problems []domain.RecommendedProblem
}

func (f *fakeRecLister) ListForStudent(_ context.Context, _ string) ([]domain.RecommendedProblem, error) {
	return f.problems, nil
}

type fakeLister struct {
	ids []string
}

func (f *fakeLister) ListIDs(_ context.Context) ([]string, error) { return f.ids, nil }

type fakeScheduleStore struct {
	settings domain.Settings
}

func (f *fakeScheduleStore) Get(_ context.Context) (*domain.Settings, error) {
	clone := f.settings
	return &clone, nil
}

func (f *fakeScheduleStore) UpdateSchedule(_ context.Context, cronExpr, input string) error {
	f.settings.CronSchedule = cronExpr
	f.settings.ScheduleInput = input
	return nil
}

type handlerFixture struct {
	router    http.Handler
	syncer    *fakeSyncer
	scheduler *fakeScheduleManager
	recs      *fakeRecLister
	settings  *fakeScheduleStore
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		syncer:    &fakeSyncer{},
		scheduler: &fakeScheduleManager{},
		recs:      &fakeRecLister{},
		settings:  &fakeScheduleStore{},
	}
	h := NewHandler(f.syncer, f.scheduler, f.recs, &fakeLister{ids: []string{"s1", "s2"}}, f.settings, zerolog.Nop())
	f.router = New(h, zerolog.Nop())
	return f
}

func doRequest(t *testing.T, router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSyncStudentEndpoint(t *testing.T) {
	f := newHandlerFixture()
	f.syncer.singleResult = domain.SyncResult{Success: true}

	rec := doRequest(t, f.router, http.MethodPost, "/api/sync/students/s1", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"s1"}, f.syncer.syncedIDs)
}

func TestSyncStudentEndpointFailure(t *testing.T) {
	f := newHandlerFixture()
	f.syncer.singleResult = domain.SyncResult{Success: false, Reason: `handle "ghost" not found`}

	rec := doRequest(t, f.router, http.MethodPost, "/api/sync/students/s1", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var result domain.SyncResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Success)
	assert.Contains(t, result.Reason, "ghost")
}

func TestSyncAllEndpoint(t *testing.T) {
	f := newHandlerFixture()
	f.syncer.batchResult = &domain.BatchResult{Total: 2, Succeeded: 2}

	rec := doRequest(t, f.router, http.MethodPost, "/api/sync/all", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var result domain.BatchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Succeeded)
}

func TestSyncAllEndpointCooldown(t *testing.T) {
	f := newHandlerFixture()
	f.syncer.batchErr = service.ErrSyncTooSoon

	rec := doRequest(t, f.router, http.MethodPost, "/api/sync/all", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestSyncProblemsEndpoint(t *testing.T) {
	f := newHandlerFixture()
	f.syncer.catalogCount = 9001

	rec := doRequest(t, f.router, http.MethodPost, "/api/sync/problems", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"problemCount": 9001}`, rec.Body.String())
}

func TestGetScheduleEndpoint(t *testing.T) {
	f := newHandlerFixture()
	f.settings.settings = domain.Settings{
		CronSchedule:    "0 2 * * *",
		ScheduleInput:   "every day at 2am",
		AutoSyncEnabled: true,
		LastSyncTime:    time.Date(2024, 6, 1, 2, 0, 0, 0, time.UTC),
	}

	rec := doRequest(t, f.router, http.MethodGet, "/api/settings/schedule", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp scheduleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "0 2 * * *", resp.CronExpression)
	assert.Equal(t, "every day at 2am", resp.Schedule)
	assert.True(t, resp.AutoSyncEnabled)
	assert.Equal(t, "2024-06-01T02:00:00Z", resp.LastSyncTime)
}

func TestUpdateScheduleEndpoint(t *testing.T) {
	f := newHandlerFixture()
	f.scheduler.expr = "0 2 * * *"

	rec := doRequest(t, f.router, http.MethodPut, "/api/settings/schedule", `{"schedule": "every day at 2am"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "every day at 2am", f.scheduler.last)
}

func TestUpdateScheduleEndpointRejectsBadBody(t *testing.T) {
	f := newHandlerFixture()

	rec := doRequest(t, f.router, http.MethodPut, "/api/settings/schedule", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRecommendationsEndpointEmpty(t *testing.T) {
	f := newHandlerFixture()

	rec := doRequest(t, f.router, http.MethodGet, "/api/students/s1/recommendations", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
