package github_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/codesage/codesage/internal/adapter/github"
	"github.com/codesage/codesage/internal/domain"
)

func TestFormatComment_FullReview(t *testing.T) {
	line := 12
	review := domain.Review{
		QualityScore: 8.5,
		Summary:      "Solid change with a couple of concerns",
		Provider:     "OpenAI",
		Model:        "gpt-4o",
		Issues: []domain.ReviewIssue{
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
				Type:        domain.IssueCodeQuality,
				Severity:    domain.SeverityLow,
				FilePath:    "main.go",
				Title:       "Long function",
				Description: "Function exceeds 100 lines",
			},
		},
	}

	comment := github.FormatComment(review)

	assert.Contains(t, comment, "## 🤖 CodeSage Review")
	assert.Contains(t, comment, "**Quality Score:** 8.5/10")
	assert.Contains(t, comment, "Solid change with a couple of concerns")
	assert.Contains(t, comment, "🚨 **CRITICAL** - SQL injection")
	assert.Contains(t, comment, "`db/query.go` (Line 12)")
	assert.Contains(t, comment, "ℹ️ **LOW** - Long function")
	assert.Contains(t, comment, "*Powered by OpenAI (gpt-4o)*")

	// Issues render in collection order
	critical := strings.Index(comment, "🚨")
	low := strings.Index(comment, "ℹ️")
	assert.Less(t, critical, low)
}

func TestFormatComment_NoIssues(t *testing.T) {
	review := domain.Review{
		QualityScore: 9.8,
		Summary:      "Clean change",
		Provider:     "Claude",
		Model:        "claude-3-5-sonnet-20241022",
	}

	comment := github.FormatComment(review)

	assert.NotContains(t, comment, "### Issues Found")
	assert.Contains(t, comment, "**Quality Score:** 9.8/10")
	assert.Contains(t, comment, "*Powered by Claude (claude-3-5-sonnet-20241022)*")
}

func TestFormatComment_FileLevelIssueOmitsLine(t *testing.T) {
	review := domain.Review{
		Summary:  "ok",
		Provider: "Mock",
		Model:    "codesage-mock-v1",
		Issues: []domain.ReviewIssue{
			{
				Type:        domain.IssueDocumentation,
				Severity:    domain.SeverityInfo,
				FilePath:    "README.md",
				Title:       "Missing docs",
				Description: "No usage section",
			},
		},
	}

	comment := github.FormatComment(review)

	assert.Contains(t, comment, "`README.md`\n")
	assert.NotContains(t, comment, "(Line")
}
