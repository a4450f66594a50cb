package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/codesage/codesage/internal/adapter/store/sqlite"
	"github.com/codesage/codesage/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// reviewDTO is the wire shape of a review.
type reviewDTO struct {
	ID              int64      `json:"id"`
	RepositoryOwner string     `json:"repositoryOwner"`
	RepositoryName  string     `json:"repositoryName"`
	PRNumber        int        `json:"prNumber"`
	PRTitle         string     `json:"prTitle"`
	PRAuthor        string     `json:"prAuthor"`
	PRURL           string     `json:"prUrl"`
	QualityScore    float64    `json:"qualityScore"`
	Summary         string     `json:"summary"`
	Provider        string     `json:"provider"`
	Model           string     `json:"model"`
	Status          string     `json:"status"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
	Issues          []issueDTO `json:"issues"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

type issueDTO struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	FilePath    string `json:"filePath"`
	LineNumber  *int   `json:"lineNumber"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
	CodeSnippet string `json:"codeSnippet,omitempty"`
}

// statsDTO is the dashboard aggregate payload.
type statsDTO struct {
	TotalReviews     int                 `json:"totalReviews"`
	CompletedReviews int                 `json:"completedReviews"`
	FailedReviews    int                 `json:"failedReviews"`
	PendingReviews   int                 `json:"pendingReviews"`
	AverageScore     float64             `json:"averageScore"`
	ReviewsLastWeek  int                 `json:"reviewsLastWeek"`
	TopRepositories  []repositoryStatDTO `json:"topRepositories"`
}

type repositoryStatDTO struct {
	Repository   string  `json:"repository"`
	ReviewCount  int     `json:"reviewCount"`
	AverageScore float64 `json:"averageScore"`
}

func toReviewDTO(review domain.Review) reviewDTO {
	issues := make([]issueDTO, 0, len(review.Issues))
	for _, issue := range review.Issues {
		issues = append(issues, issueDTO{
			ID:          issue.ID,
			Type:        string(issue.Type),
			Severity:    string(issue.Severity),
			FilePath:    issue.FilePath,
			LineNumber:  issue.LineNumber,
			Title:       issue.Title,
			Description: issue.Description,
			Suggestion:  issue.Suggestion,
			CodeSnippet: issue.CodeSnippet,
		})
	}

	return reviewDTO{
		ID:              review.ID,
		RepositoryOwner: review.RepositoryOwner,
		RepositoryName:  review.RepositoryName,
		PRNumber:        review.PRNumber,
		PRTitle:         review.PRTitle,
		PRAuthor:        review.PRAuthor,
		PRURL:           review.PRURL,
		QualityScore:    review.QualityScore,
		Summary:         review.Summary,
		Provider:        review.Provider,
		Model:           review.Model,
		Status:          string(review.Status),
		ErrorMessage:    review.ErrorMessage,
		Issues:          issues,
		CreatedAt:       review.CreatedAt,
		UpdatedAt:       review.UpdatedAt,
	}
}

func toReviewDTOs(reviews []domain.Review) []reviewDTO {
	dtos := make([]reviewDTO, 0, len(reviews))
	for _, review := range reviews {
		dtos = append(dtos, toReviewDTO(review))
	}
	return dtos
}

// ListReviewsHandler returns recent reviews, newest first, paginated via
// ?page and ?size.
func (s *Server) ListReviewsHandler(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 0 {
		page = 0
	}

	size, _ := strconv.Atoi(c.QueryParam("size"))
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	reviews, err := s.reviews.ListRecent(c.Request().Context(), size, page*size)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list reviews"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"page":    page,
		"size":    size,
		"reviews": toReviewDTOs(reviews),
	})
}

// GetReviewHandler returns a single review with its issues.
func (s *Server) GetReviewHandler(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid review id"})
	}

	review, err := s.reviews.FindByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, sqlite.ErrReviewNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "review not found"})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load review"})
	}

	return c.JSON(http.StatusOK, toReviewDTO(review))
}

// ListRepositoryReviewsHandler returns all reviews for one repository.
func (s *Server) ListRepositoryReviewsHandler(c echo.Context) error {
	owner := c.Param("owner")
	name := c.Param("name")

	reviews, err := s.reviews.ListByRepository(c.Request().Context(), owner, name)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list reviews"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"repository": owner + "/" + name,
		"reviews":    toReviewDTOs(reviews),
	})
}

// DashboardStatsHandler returns the aggregate counters for the dashboard.
func (s *Server) DashboardStatsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	total, err := s.reviews.CountAll(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
	}

	completed, err := s.reviews.CountByStatus(ctx, domain.StatusCompleted)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
	}

	failed, err := s.reviews.CountByStatus(ctx, domain.StatusFailed)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
	}

	pending, err := s.reviews.CountByStatus(ctx, domain.StatusPending)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
	}

	avg, err := s.reviews.AverageScore(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
	}

	lastWeek, err := s.reviews.CountSince(ctx, s.now().AddDate(0, 0, -7))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
	}

	top, err := s.reviews.TopRepositories(ctx, 5)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load stats"})
	}

	topDTOs := make([]repositoryStatDTO, 0, len(top))
	for _, rs := range top {
		topDTOs = append(topDTOs, repositoryStatDTO{
			Repository:   rs.Owner + "/" + rs.Name,
			ReviewCount:  rs.ReviewCount,
			AverageScore: rs.AverageScore,
		})
	}

	return c.JSON(http.StatusOK, statsDTO{
		TotalReviews:     total,
		CompletedReviews: completed,
		FailedReviews:    failed,
		PendingReviews:   pending,
		AverageScore:     avg,
		ReviewsLastWeek:  lastWeek,
		TopRepositories:  topDTOs,
	})
}

// HealthHandler is the liveness probe.
func (s *Server) HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
