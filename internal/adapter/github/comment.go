package github

import (
	"fmt"
	"strings"

	"github.com/codesage/codesage/internal/domain"
)

// severityEmoji maps issue severities to their display glyphs.
var severityEmoji = map[domain.IssueSeverity]string{
	domain.SeverityCritical: "🚨",
	domain.SeverityHigh:     "⚠️",
	domain.SeverityMedium:   "💡",
	domain.SeverityLow:      "ℹ️",
	domain.SeverityInfo:     "📝",
}

// FormatComment renders a completed review as deterministic markdown for the
// PR conversation thread.
func FormatComment(review domain.Review) string {
	var b strings.Builder

	b.WriteString("## 🤖 CodeSage Review\n\n")
	fmt.Fprintf(&b, "**Quality Score:** %.1f/10\n\n", review.QualityScore)
	fmt.Fprintf(&b, "**Summary:** %s\n\n", review.Summary)

	if len(review.Issues) > 0 {
		b.WriteString("### Issues Found\n\n")

		for _, issue := range review.Issues {
			emoji, ok := severityEmoji[issue.Severity]
			if !ok {
				emoji = severityEmoji[domain.SeverityMedium]
			}

			fmt.Fprintf(&b, "%s **%s** - %s\n", emoji, issue.Severity, issue.Title)
			fmt.Fprintf(&b, "- **File:** `%s`", issue.FilePath)
			if issue.LineNumber != nil {
				fmt.Fprintf(&b, " (Line %d)", *issue.LineNumber)
			}
			b.WriteString("\n")
			fmt.Fprintf(&b, "- **Description:** %s\n", issue.Description)
			if issue.Suggestion != "" {
				fmt.Fprintf(&b, "- **Suggestion:** %s\n", issue.Suggestion)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n---\n")
	fmt.Fprintf(&b, "*Powered by %s (%s)*", review.Provider, review.Model)

	return b.String()
}
