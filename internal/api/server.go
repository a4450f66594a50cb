// Package api exposes the HTTP surface: the GitHub webhook ingress and the
// dashboard REST endpoints.
package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/codesage/codesage/internal/adapter/store/sqlite"
	"github.com/codesage/codesage/internal/domain"
)

// Enqueuer defines the outbound port to the analysis queue.
type Enqueuer interface {
	Enqueue(ev domain.AnalysisEvent) error
}

// ReviewReader defines the store queries backing the dashboard.
type ReviewReader interface {
	FindByID(ctx context.Context, id int64) (domain.Review, error)
	ListRecent(ctx context.Context, limit, offset int) ([]domain.Review, error)
	ListByRepository(ctx context.Context, owner, name string) ([]domain.Review, error)
	CountAll(ctx context.Context) (int, error)
	CountByStatus(ctx context.Context, status domain.ReviewStatus) (int, error)
	AverageScore(ctx context.Context) (float64, error)
	CountSince(ctx context.Context, cutoff time.Time) (int, error)
	TopRepositories(ctx context.Context, limit int) ([]sqlite.RepositoryStats, error)
}

// Server wires the echo router over the queue and the store.
type Server struct {
	echo    *echo.Echo
	queue   Enqueuer
	reviews ReviewReader
	now     func() time.Time
}

// NewServer builds the router with all routes registered.
func NewServer(queue Enqueuer, reviews ReviewReader) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		queue:   queue,
		reviews: reviews,
		now:     time.Now,
	}

	e.POST("/api/webhook/github", s.GitHubWebhookHandler)
	e.GET("/api/reviews", s.ListReviewsHandler)
	e.GET("/api/reviews/:id", s.GetReviewHandler)
	e.GET("/api/reviews/repository/:owner/:name", s.ListRepositoryReviewsHandler)
	e.GET("/api/dashboard/stats", s.DashboardStatsHandler)
	e.GET("/api/health", s.HealthHandler)

	return s
}

// Start blocks serving HTTP on the given address.
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}
