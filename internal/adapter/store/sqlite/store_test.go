package sqlite_test

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesage/codesage/internal/adapter/store/sqlite"
	"github.com/codesage/codesage/internal/domain"
)

func setupTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func testReview(owner, name string, prNumber int, createdAt time.Time) domain.Review {
	return domain.Review{
		RepositoryOwner: owner,
		RepositoryName:  name,
		PRNumber:        prNumber,
		PRTitle:         "Add feature",
		PRAuthor:        "octocat",
		PRURL:           "https://github.com/acme/demo/pull/1",
		Provider:        "pending",
		Model:           "pending",
		Status:          domain.StatusPending,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func TestStore_CreateAndFindByKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	line := 42
	review := testReview("acme", "demo", 7, time.Now())
	review.Status = domain.StatusCompleted
	review.QualityScore = 8.5
	review.Summary = "Looks solid"
	review.Provider = "OpenAI"
	review.Model = "gpt-4o"
	review.Issues = []domain.ReviewIssue{
		{
			Type:        domain.IssueSecurity,
			Severity:    domain.SeverityCritical,
			FilePath:    "db/query.go",
			LineNumber:  &line,
			Title:       "SQL injection",
			Description: "Input concatenated into query",
			Suggestion:  "Use parameterized queries",
		},
		{
			Type:        domain.IssueDocumentation,
			Severity:    domain.SeverityInfo,
			FilePath:    "README.md",
			Title:       "Missing docs",
			Description: "No usage section",
		},
	}

	require.NoError(t, store.Create(ctx, &review))
	assert.NotZero(t, review.ID, "create assigns the primary key")

	got, err := store.FindByKey(ctx, "acme", "demo", 7)
	require.NoError(t, err)

	assert.Equal(t, review.ID, got.ID)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 8.5, got.QualityScore)
	assert.Equal(t, "OpenAI", got.Provider)

	require.Len(t, got.Issues, 2)
	require.NotNil(t, got.Issues[0].LineNumber)
	assert.Equal(t, 42, *got.Issues[0].LineNumber)
	assert.Equal(t, domain.SeverityCritical, got.Issues[0].Severity)
	assert.Nil(t, got.Issues[1].LineNumber, "file-level issue keeps a nil line")
}

func TestStore_CreateDuplicate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	first := testReview("acme", "demo", 7, time.Now())
	require.NoError(t, store.Create(ctx, &first))

	second := testReview("acme", "demo", 7, time.Now())
	err := store.Create(ctx, &second)
	require.ErrorIs(t, err, sqlite.ErrDuplicateReview)

	// A different PR in the same repository is fine
	third := testReview("acme", "demo", 8, time.Now())
	require.NoError(t, store.Create(ctx, &third))
}

func TestStore_UpdateLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	review := testReview("acme", "demo", 7, time.Now())
	require.NoError(t, store.Create(ctx, &review))

	review.Complete(9.2, "Clean change", "Claude", "claude-3-5-sonnet-20241022", []domain.ReviewIssue{
		{
			Type:     domain.IssueCodeQuality,
			Severity: domain.SeverityLow,
			FilePath: "main.go",
			Title:    "Long function",
		},
	}, time.Now())
	require.NoError(t, store.Update(ctx, &review))

	got, err := store.FindByID(ctx, review.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.Equal(t, 9.2, got.QualityScore)
	assert.Equal(t, "Claude", got.Provider)
	assert.Empty(t, got.ErrorMessage)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "Long function", got.Issues[0].Title)
}

func TestStore_UpdateReplacesIssues(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	review := testReview("acme", "demo", 7, time.Now())
	review.Issues = []domain.ReviewIssue{
		{Type: domain.IssueBug, Severity: domain.SeverityHigh, FilePath: "a.go", Title: "old"},
	}
	require.NoError(t, store.Create(ctx, &review))

	review.Issues = []domain.ReviewIssue{
		{Type: domain.IssuePerformance, Severity: domain.SeverityMedium, FilePath: "b.go", Title: "new"},
	}
	require.NoError(t, store.Update(ctx, &review))

	got, err := store.FindByID(ctx, review.ID)
	require.NoError(t, err)
	require.Len(t, got.Issues, 1)
	assert.Equal(t, "new", got.Issues[0].Title)
}

func TestStore_UpdateMissingReview(t *testing.T) {
	store := setupTestStore(t)

	review := testReview("acme", "demo", 7, time.Now())
	review.ID = 999

	err := store.Update(context.Background(), &review)
	require.ErrorIs(t, err, sqlite.ErrReviewNotFound)
}

func TestStore_FindMisses(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	_, err := store.FindByKey(ctx, "acme", "demo", 404)
	assert.ErrorIs(t, err, sqlite.ErrReviewNotFound)

	_, err = store.FindByID(ctx, 404)
	assert.ErrorIs(t, err, sqlite.ErrReviewNotFound)
}

func TestStore_ListRecentPagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 1; i <= 5; i++ {
		review := testReview("acme", "demo", i, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.Create(ctx, &review))
	}

	page, err := store.ListRecent(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 5, page[0].PRNumber, "newest first")
	assert.Equal(t, 4, page[1].PRNumber)

	page, err = store.ListRecent(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 3, page[0].PRNumber)
	assert.Equal(t, 2, page[1].PRNumber)
}

func TestStore_ListByRepository(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now()
	a := testReview("acme", "demo", 1, now)
	b := testReview("acme", "demo", 2, now.Add(time.Minute))
	other := testReview("acme", "widgets", 1, now)
	require.NoError(t, store.Create(ctx, &a))
	require.NoError(t, store.Create(ctx, &b))
	require.NoError(t, store.Create(ctx, &other))

	got, err := store.ListByRepository(ctx, "acme", "demo")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].PRNumber)
	assert.Equal(t, 1, got[1].PRNumber)
}

func TestStore_DashboardAggregates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now()

	completed := testReview("acme", "demo", 1, now)
	completed.Complete(8.0, "ok", "OpenAI", "gpt-4o", nil, now)
	require.NoError(t, store.Create(ctx, &completed))

	alsoCompleted := testReview("acme", "demo", 2, now)
	alsoCompleted.Complete(6.0, "ok", "OpenAI", "gpt-4o", nil, now)
	require.NoError(t, store.Create(ctx, &alsoCompleted))

	failed := testReview("acme", "widgets", 1, now.Add(-48*time.Hour))
	failed.Fail("diff unavailable", now)
	require.NoError(t, store.Create(ctx, &failed))

	total, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	done, err := store.CountByStatus(ctx, domain.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 2, done)

	avg, err := store.AverageScore(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 7.0, avg, 0.001, "failed reviews do not dilute the average")

	recent, err := store.CountSince(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, recent)
}

func TestStore_AverageScoreEmpty(t *testing.T) {
	store := setupTestStore(t)

	avg, err := store.AverageScore(context.Background())
	require.NoError(t, err)
	assert.Zero(t, avg)
}

func TestStore_TopRepositories(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now()
	for i := 1; i <= 3; i++ {
		review := testReview("acme", "demo", i, now)
		review.Complete(9.0, "ok", "Mock", "codesage-mock-v1", nil, now)
		require.NoError(t, store.Create(ctx, &review))
	}
	single := testReview("acme", "widgets", 1, now)
	require.NoError(t, store.Create(ctx, &single))

	stats, err := store.TopRepositories(ctx, 10)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "demo", stats[0].Name)
	assert.Equal(t, 3, stats[0].ReviewCount)
	assert.InDelta(t, 9.0, stats[0].AverageScore, 0.001)

	assert.Equal(t, "widgets", stats[1].Name)
	assert.Zero(t, stats[1].AverageScore, "no completed reviews yet")
}

func TestStore_CascadeDeletesIssues(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	review := testReview("acme", "demo", 7, time.Now())
	review.Issues = []domain.ReviewIssue{
		{Type: domain.IssueBug, Severity: domain.SeverityHigh, FilePath: "a.go", Title: "bug"},
	}
	require.NoError(t, store.Create(ctx, &review))

	// Replacing with an empty set leaves no orphans
	review.Issues = nil
	require.NoError(t, store.Update(ctx, &review))

	got, err := store.FindByID(ctx, review.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Issues)
}

func TestStore_FileBackedConcurrentWrites(t *testing.T) {
	store, err := sqlite.NewStore(filepath.Join(t.TempDir(), "reviews.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	const writers = 10

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 1; i <= writers; i++ {
		wg.Add(1)
		go func(prNumber int) {
			defer wg.Done()
			review := testReview("acme", fmt.Sprintf("repo-%d", prNumber), prNumber, time.Now())
			errs <- store.Create(ctx, &review)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err, "writers never see a locked database")
	}

	count, err := store.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers, count)
}
