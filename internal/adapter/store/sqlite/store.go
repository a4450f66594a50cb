// Package sqlite persists reviews and their issues in SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/codesage/codesage/internal/domain"
)

// ErrDuplicateReview signals that a review for the same (owner, name, PR)
// triple already exists.
var ErrDuplicateReview = domain.ErrDuplicateReview

// ErrReviewNotFound signals a lookup miss.
var ErrReviewNotFound = domain.ErrReviewNotFound

// RepositoryStats is one row of the per-repository dashboard aggregate.
type RepositoryStats struct {
	Owner        string
	Name         string
	ReviewCount  int
	AverageScore float64
}

// Store implements review persistence on SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens the database at the given path and ensures the schema.
// Use ":memory:" for an in-memory database (useful for testing).
func NewStore(dbPath string) (*Store, error) {
	// The DSN parameter applies the pragma to every pooled connection; a
	// plain PRAGMA exec would only reach the connection it ran on.
	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite3", dbPath+sep+"_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps an in-memory database from splitting across the
	// pool and serializes writers, which SQLite requires anyway.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}

	if err := s.createSchema(); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return s, nil
}

// createSchema creates all tables and indexes if they don't exist.
func (s *Store) createSchema() error {
	schema := `
	-- One row per analyzed pull request
	CREATE TABLE IF NOT EXISTS reviews (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository_owner TEXT NOT NULL,
		repository_name TEXT NOT NULL,
		pr_number INTEGER NOT NULL,
		pr_title TEXT,
		pr_author TEXT,
		pr_url TEXT,
		quality_score REAL NOT NULL DEFAULT 0.0,
		summary TEXT,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT NOT NULL CHECK(status IN ('PENDING', 'COMPLETED', 'FAILED')),
		error_message TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(repository_owner, repository_name, pr_number)
	);

	-- Issues found by the analysis, owned by their review
	CREATE TABLE IF NOT EXISTS review_issues (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		review_id INTEGER NOT NULL,
		issue_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		file_path TEXT NOT NULL,
		line_number INTEGER,
		title TEXT NOT NULL,
		description TEXT,
		suggestion TEXT,
		code_snippet TEXT,
		FOREIGN KEY (review_id) REFERENCES reviews(id) ON DELETE CASCADE
	);

	-- Indexes for dashboard queries
	CREATE INDEX IF NOT EXISTS idx_reviews_repository ON reviews(repository_owner, repository_name);
	CREATE INDEX IF NOT EXISTS idx_reviews_status ON reviews(status);
	CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_review_issues_review ON review_issues(review_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create inserts a new review and its issues, assigning review.ID.
// Returns ErrDuplicateReview when the (owner, name, PR) triple is taken.
func (s *Store) Create(ctx context.Context, review *domain.Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		INSERT INTO reviews (repository_owner, repository_name, pr_number, pr_title, pr_author, pr_url,
			quality_score, summary, provider, model, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		review.RepositoryOwner,
		review.RepositoryName,
		review.PRNumber,
		review.PRTitle,
		review.PRAuthor,
		review.PRURL,
		review.QualityScore,
		review.Summary,
		review.Provider,
		review.Model,
		string(review.Status),
		review.ErrorMessage,
		review.CreatedAt.Unix(),
		review.UpdatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateReview
		}
		return fmt.Errorf("failed to create review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get review ID: %w", err)
	}
	review.ID = id

	if err := insertIssues(ctx, tx, id, review.Issues); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update rewrites the mutable columns of an existing review and replaces its
// issues.
func (s *Store) Update(ctx context.Context, review *domain.Review) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE reviews
		SET quality_score = ?, summary = ?, provider = ?, model = ?, status = ?, error_message = ?, updated_at = ?
		WHERE id = ?
	`,
		review.QualityScore,
		review.Summary,
		review.Provider,
		review.Model,
		string(review.Status),
		review.ErrorMessage,
		review.UpdatedAt.Unix(),
		review.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update review: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return ErrReviewNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM review_issues WHERE review_id = ?`, review.ID); err != nil {
		return fmt.Errorf("failed to clear review issues: %w", err)
	}

	if err := insertIssues(ctx, tx, review.ID, review.Issues); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// FindByKey retrieves a review by its (owner, name, PR) identity.
func (s *Store) FindByKey(ctx context.Context, owner, name string, prNumber int) (domain.Review, error) {
	return s.queryOne(ctx,
		selectReview+` WHERE repository_owner = ? AND repository_name = ? AND pr_number = ?`,
		owner, name, prNumber)
}

// FindByID retrieves a review by primary key.
func (s *Store) FindByID(ctx context.Context, id int64) (domain.Review, error) {
	return s.queryOne(ctx, selectReview+` WHERE id = ?`, id)
}

// ListRecent returns reviews ordered newest first, paginated.
func (s *Store) ListRecent(ctx context.Context, limit, offset int) ([]domain.Review, error) {
	return s.queryMany(ctx,
		selectReview+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset)
}

// ListByRepository returns all reviews for one repository, newest first.
func (s *Store) ListByRepository(ctx context.Context, owner, name string) ([]domain.Review, error) {
	return s.queryMany(ctx,
		selectReview+` WHERE repository_owner = ? AND repository_name = ? ORDER BY created_at DESC, id DESC`,
		owner, name)
}

// CountAll returns the total number of reviews.
func (s *Store) CountAll(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

// CountByStatus returns the number of reviews in the given status.
func (s *Store) CountByStatus(ctx context.Context, status domain.ReviewStatus) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reviews WHERE status = ?`, string(status)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews by status: %w", err)
	}
	return count, nil
}

// AverageScore returns the mean quality score across completed reviews, or
// zero when none exist.
func (s *Store) AverageScore(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT AVG(quality_score) FROM reviews WHERE status = 'COMPLETED'`).Scan(&avg)
	if err != nil {
		return 0, fmt.Errorf("failed to compute average score: %w", err)
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// CountSince returns the number of reviews created at or after the cutoff.
func (s *Store) CountSince(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE created_at >= ?`, cutoff.Unix()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent reviews: %w", err)
	}
	return count, nil
}

// TopRepositories returns the most-reviewed repositories with their average
// completed score.
func (s *Store) TopRepositories(ctx context.Context, limit int) ([]RepositoryStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT repository_owner, repository_name, COUNT(*),
			COALESCE(AVG(CASE WHEN status = 'COMPLETED' THEN quality_score END), 0)
		FROM reviews
		GROUP BY repository_owner, repository_name
		ORDER BY COUNT(*) DESC, repository_owner ASC, repository_name ASC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query repository stats: %w", err)
	}
	defer rows.Close()

	var stats []RepositoryStats
	for rows.Next() {
		var rs RepositoryStats
		if err := rows.Scan(&rs.Owner, &rs.Name, &rs.ReviewCount, &rs.AverageScore); err != nil {
			return nil, fmt.Errorf("failed to scan repository stats: %w", err)
		}
		stats = append(stats, rs)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repository stats: %w", err)
	}

	return stats, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

const selectReview = `
	SELECT id, repository_owner, repository_name, pr_number, pr_title, pr_author, pr_url,
		quality_score, summary, provider, model, status, error_message, created_at, updated_at
	FROM reviews`

func (s *Store) queryOne(ctx context.Context, query string, args ...any) (domain.Review, error) {
	var review domain.Review
	var createdAt, updatedAt int64
	var status string

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&review.ID,
		&review.RepositoryOwner,
		&review.RepositoryName,
		&review.PRNumber,
		&review.PRTitle,
		&review.PRAuthor,
		&review.PRURL,
		&review.QualityScore,
		&review.Summary,
		&review.Provider,
		&review.Model,
		&status,
		&review.ErrorMessage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Review{}, ErrReviewNotFound
		}
		return domain.Review{}, fmt.Errorf("failed to get review: %w", err)
	}

	review.Status = domain.ReviewStatus(status)
	review.CreatedAt = time.Unix(createdAt, 0)
	review.UpdatedAt = time.Unix(updatedAt, 0)

	issues, err := s.issuesForReview(ctx, review.ID)
	if err != nil {
		return domain.Review{}, err
	}
	review.Issues = issues

	return review, nil
}

func (s *Store) queryMany(ctx context.Context, query string, args ...any) ([]domain.Review, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []domain.Review
	for rows.Next() {
		var review domain.Review
		var createdAt, updatedAt int64
		var status string

		if err := rows.Scan(
			&review.ID,
			&review.RepositoryOwner,
			&review.RepositoryName,
			&review.PRNumber,
			&review.PRTitle,
			&review.PRAuthor,
			&review.PRURL,
			&review.QualityScore,
			&review.Summary,
			&review.Provider,
			&review.Model,
			&status,
			&review.ErrorMessage,
			&createdAt,
			&updatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		review.Status = domain.ReviewStatus(status)
		review.CreatedAt = time.Unix(createdAt, 0)
		review.UpdatedAt = time.Unix(updatedAt, 0)
		reviews = append(reviews, review)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reviews: %w", err)
	}

	for i := range reviews {
		issues, err := s.issuesForReview(ctx, reviews[i].ID)
		if err != nil {
			return nil, err
		}
		reviews[i].Issues = issues
	}

	return reviews, nil
}

func (s *Store) issuesForReview(ctx context.Context, reviewID int64) ([]domain.ReviewIssue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_type, severity, file_path, line_number, title, description, suggestion, code_snippet
		FROM review_issues
		WHERE review_id = ?
		ORDER BY id ASC
	`, reviewID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review issues: %w", err)
	}
	defer rows.Close()

	var issues []domain.ReviewIssue
	for rows.Next() {
		var issue domain.ReviewIssue
		var issueType, severity string
		var line sql.NullInt64

		if err := rows.Scan(
			&issue.ID,
			&issueType,
			&severity,
			&issue.FilePath,
			&line,
			&issue.Title,
			&issue.Description,
			&issue.Suggestion,
			&issue.CodeSnippet,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review issue: %w", err)
		}

		issue.Type = domain.IssueType(issueType)
		issue.Severity = domain.IssueSeverity(severity)
		if line.Valid {
			n := int(line.Int64)
			issue.LineNumber = &n
		}
		issues = append(issues, issue)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating review issues: %w", err)
	}

	return issues, nil
}

func insertIssues(ctx context.Context, tx *sql.Tx, reviewID int64, issues []domain.ReviewIssue) error {
	if len(issues) == 0 {
		return nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO review_issues (review_id, issue_type, severity, file_path, line_number, title, description, suggestion, code_snippet)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare issue insert: %w", err)
	}
	defer stmt.Close()

	for _, issue := range issues {
		var line any
		if issue.LineNumber != nil {
			line = *issue.LineNumber
		}

		if _, err := stmt.ExecContext(ctx,
			reviewID,
			string(issue.Type),
			string(issue.Severity),
			issue.FilePath,
			line,
			issue.Title,
			issue.Description,
			issue.Suggestion,
			issue.CodeSnippet,
		); err != nil {
			return fmt.Errorf("failed to insert review issue: %w", err)
		}
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
