package github

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

const (
	defaultAPIBaseURL = "https://api.github.com"

	// App JWTs must be short-lived; GitHub rejects anything over 10 minutes.
	jwtValidity = 9 * time.Minute

	// Installation tokens live an hour; refresh inside this margin so a
	// token never expires mid-request.
	refreshMargin = 10 * time.Minute

	exchangeTimeout = 10 * time.Second
)

// TokenCache owns GitHub App authentication: it mints short-lived signed
// JWTs, exchanges them for installation access tokens, and caches the result
// with a safety margin. Refresh is single-flight: concurrent callers
// observing a stale cache share one mint+exchange instead of racing.
//
// TokenCache implements oauth2.TokenSource so it can back an HTTP client
// directly.
type TokenCache struct {
	appID          string
	installationID string
	privateKey     *rsa.PrivateKey
	baseURL        string
	client         *http.Client
	now            func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenCache loads the App private key and returns a ready cache. No
// network call happens until the first token request.
func NewTokenCache(appID, privateKeyPath, installationID string) (*TokenCache, error) {
	data, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, &AuthError{Op: "read private key", Err: err}
	}

	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, &AuthError{Op: "parse private key", Err: err}
	}

	return &TokenCache{
		appID:          appID,
		installationID: installationID,
		privateKey:     key,
		baseURL:        defaultAPIBaseURL,
		client:         &http.Client{Timeout: exchangeTimeout},
		now:            time.Now,
	}, nil
}

// SetBaseURL sets a custom API base URL (for testing).
func (c *TokenCache) SetBaseURL(url string) {
	c.baseURL = url
}

// SetNow overrides the clock (for testing).
func (c *TokenCache) SetNow(now func() time.Time) {
	c.now = now
}

// InstallationToken returns a valid installation access token, refreshing
// through a single-flight mint+exchange when the cache is absent or within
// the safety margin of expiry.
func (c *TokenCache) InstallationToken(ctx context.Context) (string, error) {
	if token, ok := c.cached(); ok {
		return token, nil
	}

	v, err, _ := c.group.Do("installation-token", func() (interface{}, error) {
		// A waiter may arrive just after another refresh finished.
		if token, ok := c.cached(); ok {
			return token, nil
		}
		return c.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Token implements oauth2.TokenSource.
func (c *TokenCache) Token() (*oauth2.Token, error) {
	token, err := c.InstallationToken(context.Background())
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	expiry := c.expiry
	c.mu.Unlock()

	return &oauth2.Token{AccessToken: token, Expiry: expiry}, nil
}

func (c *TokenCache) cached() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiry.Add(-refreshMargin)) {
		return c.token, true
	}
	return "", false
}

// refresh performs the mint+exchange sequence and replaces the cache.
func (c *TokenCache) refresh(ctx context.Context) (string, error) {
	signed, err := c.mintJWT()
	if err != nil {
		return "", &AuthError{Op: "sign app jwt", Err: err}
	}

	token, expiry, err := c.exchange(ctx, signed)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.token = token
	c.expiry = expiry
	c.mu.Unlock()

	return token, nil
}

// mintJWT creates the time-boxed identity assertion signed with the App's
// private key.
func (c *TokenCache) mintJWT() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(jwtValidity).Unix(),
		"iss": c.appID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(c.privateKey)
}

// exchange trades the signed JWT for an installation access token.
func (c *TokenCache) exchange(ctx context.Context, signedJWT string) (string, time.Time, error) {
	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", c.baseURL, c.installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return "", time.Time{}, &AuthError{Op: "build exchange request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+signedJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", time.Time{}, &AuthError{Op: "token exchange", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return "", time.Time{}, &AuthError{
			Op:  "token exchange",
			Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var out struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", time.Time{}, &AuthError{Op: "decode exchange response", Err: err}
	}
	if out.Token == "" {
		return "", time.Time{}, &AuthError{Op: "token exchange", Err: fmt.Errorf("empty token in response")}
	}

	expiry := out.ExpiresAt
	if expiry.IsZero() {
		expiry = c.now().Add(time.Hour)
	}

	return out.Token, expiry, nil
}
