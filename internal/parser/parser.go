// Package parser extracts a structured analysis document from an AI
// provider's free-text reply.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/codesage/codesage/internal/domain"
)

const (
	defaultScore    = 7.0
	defaultSummary  = "Code review completed"
	defaultFilePath = "unknown"
)

// ParseError indicates the reply could not be coerced into a usable analysis
// document. Field-level anomalies never raise this; only a structurally
// uninterpretable document does.
type ParseError struct {
	Message string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse analysis: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("parse analysis: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Analysis is the validated result of parsing a provider reply.
type Analysis struct {
	Score   float64
	Summary string
	Issues  []domain.ReviewIssue
}

// document mirrors the JSON contract given to providers. Pointer fields
// distinguish absent values from zero values.
type document struct {
	QualityScore *float64        `json:"qualityScore"`
	Summary      *string         `json:"summary"`
	Issues       []issueDocument `json:"issues"`
	Strengths    []string        `json:"strengths"` // accepted but not persisted
}

type issueDocument struct {
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	File        *string `json:"file"`
	Line        *int    `json:"line"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Suggestion  string  `json:"suggestion"`
	CodeSnippet string  `json:"codeSnippet"`
}

// Parse interprets a raw provider reply as an analysis document. An optional
// surrounding markdown code fence is stripped before decoding.
func Parse(raw string) (Analysis, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return Analysis{}, &ParseError{Message: "empty response"}
	}

	// A bare "null" or an array would unmarshal into the zero document
	// without error, silently producing an all-defaults analysis.
	if !strings.HasPrefix(cleaned, "{") {
		return Analysis{}, &ParseError{Message: "response is not a JSON analysis document"}
	}

	var doc document
	if err := json.Unmarshal([]byte(cleaned), &doc); err != nil {
		return Analysis{}, &ParseError{Message: "response is not a JSON analysis document", Err: err}
	}

	score := defaultScore
	if doc.QualityScore != nil {
		score = *doc.QualityScore
	}

	summary := defaultSummary
	if doc.Summary != nil && strings.TrimSpace(*doc.Summary) != "" {
		summary = *doc.Summary
	}

	issues := make([]domain.ReviewIssue, 0, len(doc.Issues))
	for _, issue := range doc.Issues {
		issues = append(issues, parseIssue(issue))
	}

	return Analysis{
		Score:   domain.ClampScore(score),
		Summary: summary,
		Issues:  issues,
	}, nil
}

// parseIssue degrades gracefully: a single malformed issue never rejects the
// whole document.
func parseIssue(doc issueDocument) domain.ReviewIssue {
	filePath := defaultFilePath
	if doc.File != nil && strings.TrimSpace(*doc.File) != "" {
		filePath = *doc.File
	}

	return domain.ReviewIssue{
		Type:        domain.ParseIssueType(doc.Type),
		Severity:    domain.ParseIssueSeverity(doc.Severity),
		FilePath:    filePath,
		LineNumber:  doc.Line, // null or absent both mean file-level
		Title:       doc.Title,
		Description: doc.Description,
		Suggestion:  doc.Suggestion,
		CodeSnippet: doc.CodeSnippet,
	}
}

// stripCodeFence removes a surrounding triple-backtick block, with or without
// a language tag, returning the inner text.
func stripCodeFence(text string) string {
	cleaned := strings.TrimSpace(text)

	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		// Drop a language tag like "json" on the opening fence line
		if idx := strings.IndexByte(cleaned, '\n'); idx >= 0 {
			firstLine := strings.TrimSpace(cleaned[:idx])
			if firstLine != "" && !strings.ContainsAny(firstLine, "{[") {
				cleaned = cleaned[idx+1:]
			}
		}
	}

	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimSuffix(cleaned, "```")

	return strings.TrimSpace(cleaned)
}
