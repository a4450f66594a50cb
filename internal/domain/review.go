package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReviewStatus tracks the lifecycle of a review record.
type ReviewStatus string

const (
	StatusPending   ReviewStatus = "PENDING"
	StatusCompleted ReviewStatus = "COMPLETED"
	StatusFailed    ReviewStatus = "FAILED"
)

// IssueType categorizes a review issue.
type IssueType string

const (
	IssueSecurity      IssueType = "SECURITY"
	IssuePerformance   IssueType = "PERFORMANCE"
	IssueBug           IssueType = "BUG"
	IssueCodeQuality   IssueType = "CODE_QUALITY"
	IssueDocumentation IssueType = "DOCUMENTATION"
	IssueBestPractice  IssueType = "BEST_PRACTICE"
)

// IssueSeverity ranks how urgent an issue is.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "CRITICAL"
	SeverityHigh     IssueSeverity = "HIGH"
	SeverityMedium   IssueSeverity = "MEDIUM"
	SeverityLow      IssueSeverity = "LOW"
	SeverityInfo     IssueSeverity = "INFO"
)

// ParseIssueType maps a raw string onto the closed IssueType set.
// Unrecognized values fall back to CODE_QUALITY rather than failing.
func ParseIssueType(s string) IssueType {
	switch IssueType(strings.ToUpper(strings.TrimSpace(s))) {
	case IssueSecurity, IssuePerformance, IssueBug, IssueCodeQuality, IssueDocumentation, IssueBestPractice:
		return IssueType(strings.ToUpper(strings.TrimSpace(s)))
	default:
		return IssueCodeQuality
	}
}

// ParseIssueSeverity maps a raw string onto the closed IssueSeverity set.
// Unrecognized values fall back to MEDIUM rather than failing.
func ParseIssueSeverity(s string) IssueSeverity {
	switch IssueSeverity(strings.ToUpper(strings.TrimSpace(s))) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return IssueSeverity(strings.ToUpper(strings.TrimSpace(s)))
	default:
		return SeverityMedium
	}
}

// ReviewIssue is a single problem found during a review. Issues are owned by
// exactly one Review and never outlive it.
type ReviewIssue struct {
	ID          int64
	Type        IssueType
	Severity    IssueSeverity
	FilePath    string
	LineNumber  *int // nil means file-level
	Title       string
	Description string
	Suggestion  string
	CodeSnippet string
}

// Review is the durable record of one PR analysis. Identity is the
// (owner, name, prNumber) triple, unique in the store.
type Review struct {
	ID              int64
	RepositoryOwner string
	RepositoryName  string
	PRNumber        int
	PRTitle         string
	PRAuthor        string
	PRURL           string
	QualityScore    float64
	Summary         string
	Provider        string
	Model           string
	Status          ReviewStatus
	ErrorMessage    string
	Issues          []ReviewIssue
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// FullRepositoryName returns "owner/name".
func (r Review) FullRepositoryName() string {
	return fmt.Sprintf("%s/%s", r.RepositoryOwner, r.RepositoryName)
}

// ClampScore bounds a quality score to [0.0, 10.0].
func ClampScore(score float64) float64 {
	if score < 0.0 {
		return 0.0
	}
	if score > 10.0 {
		return 10.0
	}
	return score
}

// NewPendingReview builds the placeholder record persisted before analysis
// starts. Timestamps are stamped here, not by the storage layer.
func NewPendingReview(ev AnalysisEvent, now time.Time) Review {
	return Review{
		RepositoryOwner: ev.RepositoryOwner,
		RepositoryName:  ev.RepositoryName,
		PRNumber:        ev.PRNumber,
		PRTitle:         ev.PRTitle,
		PRAuthor:        ev.PRAuthor,
		PRURL:           ev.PRURL,
		QualityScore:    0.0,
		Provider:        "pending",
		Model:           "pending",
		Status:          StatusPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Complete merges analysis results into the review and marks it COMPLETED.
func (r *Review) Complete(score float64, summary, provider, model string, issues []ReviewIssue, now time.Time) {
	r.QualityScore = ClampScore(score)
	r.Summary = summary
	r.Provider = provider
	r.Model = model
	r.Issues = issues
	r.Status = StatusCompleted
	r.ErrorMessage = ""
	r.UpdatedAt = now
}

// Fail marks the review FAILED with the underlying error message.
func (r *Review) Fail(message string, now time.Time) {
	r.Status = StatusFailed
	r.ErrorMessage = message
	r.UpdatedAt = now
}
