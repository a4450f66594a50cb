package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesage/codesage/internal/adapter/store/sqlite"
	"github.com/codesage/codesage/internal/api"
	"github.com/codesage/codesage/internal/domain"
)

type fakeQueue struct {
	events []domain.AnalysisEvent
	err    error
}

func (f *fakeQueue) Enqueue(ev domain.AnalysisEvent) error {
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, ev)
	return nil
}

func setupServer(t *testing.T) (*api.Server, *fakeQueue, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	queue := &fakeQueue{}
	return api.NewServer(queue, store), queue, store
}

func doRequest(t *testing.T, server *api.Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	server.Echo().ServeHTTP(rec, req)
	return rec
}

func webhookRequest(eventKind, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/webhook/github", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventKind)
	return req
}

const pullRequestBody = `{
	"action": "opened",
	"pull_request": {
		"number": 42,
		"title": "Add rate limiting",
		"html_url": "https://github.com/acme/demo/pull/42",
		"user": {"login": "octocat"},
		"base": {"repo": {"name": "demo", "owner": {"login": "acme"}}}
	}
}`

func TestWebhook_QueuesPullRequest(t *testing.T) {
	server, queue, _ := setupServer(t)

	rec := doRequest(t, server, webhookRequest("pull_request", pullRequestBody))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, queue.events, 1)
	assert.Equal(t, "acme", queue.events[0].RepositoryOwner)
	assert.Equal(t, 42, queue.events[0].PRNumber)
}

func TestWebhook_IgnoresOtherEventKinds(t *testing.T) {
	server, queue, _ := setupServer(t)

	rec := doRequest(t, server, webhookRequest("push", `{"ref": "refs/heads/main"}`))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
	assert.Empty(t, queue.events)
}

func TestWebhook_IgnoresUnanalyzableAction(t *testing.T) {
	server, queue, _ := setupServer(t)

	body := strings.Replace(pullRequestBody, `"opened"`, `"closed"`, 1)
	rec := doRequest(t, server, webhookRequest("pull_request", body))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, queue.events)
}

func TestWebhook_MalformedPayload(t *testing.T) {
	server, queue, _ := setupServer(t)

	rec := doRequest(t, server, webhookRequest("pull_request", `{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, queue.events)
}

func TestWebhook_EnqueueFailure(t *testing.T) {
	server, queue, _ := setupServer(t)
	queue.err = errors.New("brokers unreachable")

	rec := doRequest(t, server, webhookRequest("pull_request", pullRequestBody))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func seedReview(t *testing.T, store *sqlite.Store, prNumber int, createdAt time.Time, complete bool) domain.Review {
	t.Helper()

	review := domain.Review{
		RepositoryOwner: "acme",
		RepositoryName:  "demo",
		PRNumber:        prNumber,
		PRTitle:         fmt.Sprintf("PR %d", prNumber),
		PRAuthor:        "octocat",
		Provider:        "pending",
		Model:           "pending",
		Status:          domain.StatusPending,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
	if complete {
		line := 10
		review.Complete(8.0, "ok", "Mock", "codesage-mock-v1", []domain.ReviewIssue{
			{
				Type:       domain.IssueBug,
				Severity:   domain.SeverityHigh,
				FilePath:   "main.go",
				LineNumber: &line,
				Title:      "Off by one",
			},
		}, createdAt)
	}

	require.NoError(t, store.Create(context.Background(), &review))
	return review
}

func TestListReviews_Pagination(t *testing.T) {
	server, _, store := setupServer(t)

	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 5; i++ {
		seedReview(t, store, i, base.Add(time.Duration(i)*time.Minute), false)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/reviews?page=1&size=2", nil)
	rec := doRequest(t, server, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Page    int `json:"page"`
		Size    int `json:"size"`
		Reviews []struct {
			PRNumber int `json:"prNumber"`
		} `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 1, resp.Page)
	require.Len(t, resp.Reviews, 2)
	assert.Equal(t, 3, resp.Reviews[0].PRNumber, "second page continues newest first")
	assert.Equal(t, 2, resp.Reviews[1].PRNumber)
}

func TestGetReview(t *testing.T) {
	server, _, store := setupServer(t)
	review := seedReview(t, store, 7, time.Now(), true)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/reviews/%d", review.ID), nil)
	rec := doRequest(t, server, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var dto struct {
		PRNumber int     `json:"prNumber"`
		Status   string  `json:"status"`
		Score    float64 `json:"qualityScore"`
		Issues   []struct {
			Severity   string `json:"severity"`
			LineNumber *int   `json:"lineNumber"`
		} `json:"issues"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &dto))

	assert.Equal(t, 7, dto.PRNumber)
	assert.Equal(t, "COMPLETED", dto.Status)
	assert.Equal(t, 8.0, dto.Score)
	require.Len(t, dto.Issues, 1)
	assert.Equal(t, "HIGH", dto.Issues[0].Severity)
	require.NotNil(t, dto.Issues[0].LineNumber)
	assert.Equal(t, 10, *dto.Issues[0].LineNumber)
}

func TestGetReview_NotFound(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/api/reviews/999", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, server, httptest.NewRequest(http.MethodGet, "/api/reviews/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRepositoryReviews(t *testing.T) {
	server, _, store := setupServer(t)

	seedReview(t, store, 1, time.Now(), false)
	seedReview(t, store, 2, time.Now().Add(time.Minute), false)

	other := domain.Review{
		RepositoryOwner: "acme",
		RepositoryName:  "widgets",
		PRNumber:        1,
		Provider:        "pending",
		Model:           "pending",
		Status:          domain.StatusPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), &other))

	req := httptest.NewRequest(http.MethodGet, "/api/reviews/repository/acme/demo", nil)
	rec := doRequest(t, server, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Repository string `json:"repository"`
		Reviews    []struct {
			PRNumber int `json:"prNumber"`
		} `json:"reviews"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "acme/demo", resp.Repository)
	assert.Len(t, resp.Reviews, 2)
}

func TestDashboardStats(t *testing.T) {
	server, _, store := setupServer(t)

	now := time.Now()
	seedReview(t, store, 1, now, true)
	seedReview(t, store, 2, now, true)
	seedReview(t, store, 3, now.Add(-30*24*time.Hour), false)

	failed := domain.Review{
		RepositoryOwner: "acme",
		RepositoryName:  "widgets",
		PRNumber:        9,
		Provider:        "pending",
		Model:           "pending",
		Status:          domain.StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	failed.Fail("diff unavailable", now)
	require.NoError(t, store.Create(context.Background(), &failed))

	rec := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/api/dashboard/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TotalReviews     int     `json:"totalReviews"`
		CompletedReviews int     `json:"completedReviews"`
		FailedReviews    int     `json:"failedReviews"`
		PendingReviews   int     `json:"pendingReviews"`
		AverageScore     float64 `json:"averageScore"`
		ReviewsLastWeek  int     `json:"reviewsLastWeek"`
		TopRepositories  []struct {
			Repository  string `json:"repository"`
			ReviewCount int    `json:"reviewCount"`
		} `json:"topRepositories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))

	assert.Equal(t, 4, stats.TotalReviews)
	assert.Equal(t, 2, stats.CompletedReviews)
	assert.Equal(t, 1, stats.FailedReviews)
	assert.Equal(t, 1, stats.PendingReviews)
	assert.InDelta(t, 8.0, stats.AverageScore, 0.001)
	assert.Equal(t, 3, stats.ReviewsLastWeek)

	require.NotEmpty(t, stats.TopRepositories)
	assert.Equal(t, "acme/demo", stats.TopRepositories[0].Repository)
	assert.Equal(t, 3, stats.TopRepositories[0].ReviewCount)
}

func TestHealth(t *testing.T) {
	server, _, _ := setupServer(t)

	rec := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}
