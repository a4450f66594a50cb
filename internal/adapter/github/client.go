// Package github is the source-control adapter: it fetches PR diffs and
// posts review comments using GitHub App installation tokens. Without App
// credentials it degrades to a mock mode so the pipeline stays exercisable.
package github

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"

	"github.com/codesage/codesage/internal/adapter/httpx"
)

// mockDiff is returned by FetchDiff when the App is not configured, keeping
// development environments working without credentials.
const mockDiff = `diff --git a/internal/service/example.go b/internal/service/example.go
index 1234567..abcdefg 100644
--- a/internal/service/example.go
+++ b/internal/service/example.go
@@ -10,7 +10,8 @@ func (s *Service) ProcessData(ctx context.Context, input string) error {
-	query := "SELECT * FROM users WHERE name = '" + input + "'"
-	rows, err := s.db.QueryContext(ctx, query)
+	query := "SELECT * FROM users WHERE name = ?"
+	rows, err := s.db.QueryContext(ctx, query, input)
 	if err != nil {
 		return err
 	}
`

// Client performs PR diff fetches and comment posts with bounded retries.
type Client struct {
	gh         *gogithub.Client
	configured bool
	retry      httpx.RetryConfig
	timeout    time.Duration
}

// NewClient builds a client backed by the token cache. A nil cache means the
// App is not configured: FetchDiff returns the mock diff and PostComment
// only logs.
func NewClient(cache *TokenCache, baseURL string, retry httpx.RetryConfig, timeout time.Duration) (*Client, error) {
	c := &Client{
		retry:   retry,
		timeout: timeout,
	}

	if cache == nil {
		return c, nil
	}

	httpClient := oauth2.NewClient(context.Background(), cache)
	gh := gogithub.NewClient(httpClient)

	if baseURL != "" {
		parsed, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, &AuthError{Op: "parse base url", Err: err}
		}
		gh.BaseURL = parsed
	}

	c.gh = gh
	c.configured = true
	return c, nil
}

// Configured reports whether real GitHub credentials are in use.
func (c *Client) Configured() bool {
	return c.configured
}

// FetchDiff returns the PR's unified diff text.
func (c *Client) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	if !c.configured {
		log.Printf("[WARN] github: app not configured, returning mock diff for %s/%s#%d", owner, repo, number)
		return mockDiff, nil
	}

	var diff string
	err := httpx.RetryWithBackoff(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		raw, _, err := c.gh.PullRequests.GetRaw(callCtx, owner, repo, number,
			gogithub.RawOptions{Type: gogithub.Diff})
		if err != nil {
			return classify(callCtx, err)
		}

		diff = raw
		return nil
	}, c.retry)

	if err != nil {
		return "", wrapPlatform("fetch diff", err)
	}

	log.Printf("[INFO] github: fetched diff for %s/%s#%d (%d bytes)", owner, repo, number, len(diff))
	return diff, nil
}

// PostComment posts a markdown comment on the PR's conversation thread.
func (c *Client) PostComment(ctx context.Context, owner, repo string, number int, body string) error {
	if !c.configured {
		log.Printf("[WARN] github: app not configured, logging comment for %s/%s#%d instead", owner, repo, number)
		log.Printf("[INFO] github: comment for %s/%s#%d:\n%s", owner, repo, number, body)
		return nil
	}

	err := httpx.RetryWithBackoff(ctx, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		comment := &gogithub.IssueComment{Body: gogithub.String(body)}
		_, _, err := c.gh.Issues.CreateComment(callCtx, owner, repo, number, comment)
		if err != nil {
			return classify(callCtx, err)
		}
		return nil
	}, c.retry)

	if err != nil {
		return wrapPlatform("post comment", err)
	}

	log.Printf("[INFO] github: posted comment to %s/%s#%d", owner, repo, number)
	return nil
}

// classify maps go-github errors onto the shared typed error so the retry
// helper can decide whether another attempt makes sense.
func classify(ctx context.Context, err error) error {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return httpx.ClassifyStatus("github", ghErr.Response.StatusCode, ghErr.Message)
	}

	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return httpx.ClassifyStatus("github", http.StatusTooManyRequests, rateErr.Message)
	}

	if ctx.Err() == context.DeadlineExceeded {
		return httpx.NewTimeoutError("github", "request timed out")
	}
	return httpx.NewTimeoutError("github", err.Error())
}

// wrapPlatform surfaces the upstream status code after retry exhaustion.
// Auth failures keep their own type so the orchestrator sees them as fatal.
func wrapPlatform(op string, err error) error {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr
	}

	var httpErr *httpx.Error
	if errors.As(err, &httpErr) {
		return &PlatformError{Op: op, StatusCode: httpErr.StatusCode, Err: err}
	}
	return &PlatformError{Op: op, Err: err}
}
