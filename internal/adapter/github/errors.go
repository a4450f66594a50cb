package github

import "fmt"

// AuthError indicates App JWT signing or installation-token exchange failed.
// It is fatal for the current call chain; the orchestrator records FAILED.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("github auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// PlatformError indicates a GitHub API operation exhausted its retries. The
// upstream status code is carried so callers can distinguish 4xx from 5xx.
type PlatformError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *PlatformError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("github: %s failed (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("github: %s failed: %v", e.Op, e.Err)
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}
