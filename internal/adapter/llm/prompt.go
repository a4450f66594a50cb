package llm

import (
	"fmt"
	"log"
	"strings"
)

// maxDiffTokens bounds the diff portion of the prompt so huge PRs stay
// within provider context windows.
const maxDiffTokens = 12000

const truncationMarker = "\n... [diff truncated for length] ..."

// BuildPrompt constructs the analysis prompt shared by all real providers.
// The JSON contract here is what the response parser expects back.
func BuildPrompt(diff string) string {
	diff = boundDiff(diff)

	return fmt.Sprintf(`Analyze the following code diff and provide a structured code review.

Return your analysis in JSON format with this structure:
{
  "qualityScore": <number 0-10>,
  "summary": "<brief overall assessment>",
  "issues": [
    {
      "type": "<SECURITY|PERFORMANCE|BUG|CODE_QUALITY|DOCUMENTATION|BEST_PRACTICE>",
      "severity": "<CRITICAL|HIGH|MEDIUM|LOW|INFO>",
      "file": "<file path>",
      "line": <line number or null>,
      "title": "<short title>",
      "description": "<detailed description>",
      "suggestion": "<how to fix>"
    }
  ],
  "strengths": ["<positive aspect 1>", "<positive aspect 2>"]
}

Code Diff:
`+"```"+`
%s
`+"```"+`

Focus on:
- Security vulnerabilities
- Performance issues
- Potential bugs
- Code quality and maintainability
- Best practices
- Documentation

Be concise but thorough. Provide actionable suggestions.
`, diff)
}

// boundDiff truncates an oversized diff on a line boundary. Dropping the
// tail loses review coverage but keeps the request inside every provider's
// context window.
func boundDiff(diff string) string {
	total := EstimateTokens(diff)
	if total <= maxDiffTokens {
		return diff
	}

	lines := strings.Split(diff, "\n")
	kept := make([]string, 0, len(lines))
	budget := 0
	for _, line := range lines {
		cost := EstimateTokens(line) + 1
		if budget+cost > maxDiffTokens {
			break
		}
		kept = append(kept, line)
		budget += cost
	}

	log.Printf("[WARN] llm: diff of ~%d tokens truncated to ~%d", total, budget)
	return strings.Join(kept, "\n") + truncationMarker
}
