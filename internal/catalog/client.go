// Package catalog implements the remote bookmark catalog client:
// authentication, paginated enumeration, task expansion, detail
// lookup, and the byte transfer for one download task.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/errors"
	"github.com/pixvault/pixvault-server/internal/ratelimit"
)

const (
	defaultBaseURL = "https://app-api.pixiv.net"
	defaultAuthURL = "https://oauth.secure.pixiv.net/auth/token"
	defaultReferer = "https://app-api.pixiv.net/"

	// Rate limit: 2 requests per second per host, burst of 4.
	defaultRPS   = 2.0
	defaultBurst = 4

	defaultTimeout = 60 * time.Second

	// rateLimitCooldown is the fixed penalty after the remote reports
	// throttling. Retries during the cooldown do not count against the
	// per-page attempt budget.
	rateLimitCooldown = 30 * time.Second
)

// Config configures the catalog client. Zero values take the
// production defaults; tests point BaseURL/AuthURL at a local server.
type Config struct {
	BaseURL      string
	AuthURL      string
	Referer      string
	RefreshToken string

	// RestrictModes lists the bookmark visibility partitions to
	// enumerate, in order.
	RestrictModes []string

	// MaxPages caps enumeration per restrict mode; 0 means unlimited.
	MaxPages int
}

// Client is a rate-limited catalog API client.
// Authenticate must succeed before any other operation.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *ratelimit.KeyedRateLimiter
	logger  *slog.Logger

	// Retry pacing, shortened in tests.
	pageBackoff     time.Duration
	downloadBackoff time.Duration
	cooldown        time.Duration

	mu          sync.RWMutex
	accessToken string
	userID      string
}

// New creates a new catalog client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.Referer == "" {
		cfg.Referer = defaultReferer
	}
	if len(cfg.RestrictModes) == 0 {
		cfg.RestrictModes = []string{RestrictPublic}
	}

	return &Client{
		cfg: cfg,
		http: &http.Client{
			Timeout: defaultTimeout,
		},
		limiter:         ratelimit.New(defaultRPS, defaultBurst),
		logger:          logger,
		pageBackoff:     backoffStep,
		downloadBackoff: downloadBackoffBase,
		cooldown:        rateLimitCooldown,
	}
}

// Authenticate exchanges the refresh token for a session token.
// It is called once before enumeration and again as a recovery step
// after repeated fetch failures.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.cfg.RefreshToken == "" {
		return errors.Auth("no refresh token configured")
	}

	form := url.Values{
		"grant_type":     {"refresh_token"},
		"refresh_token":  {c.cfg.RefreshToken},
		"get_secure_url": {"1"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, errors.CodeAuth, "create auth request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeAuth, "auth request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.CodeAuth, "read auth response")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Authf("token endpoint returned %d", resp.StatusCode)
	}

	var auth authResponse
	if err := json.Unmarshal(body, &auth); err != nil {
		return errors.Wrap(err, errors.CodeAuth, "decode auth response")
	}
	if auth.AccessToken == "" || auth.User.ID.String() == "" {
		return errors.Auth("token endpoint returned no usable identity")
	}

	c.mu.Lock()
	c.accessToken = auth.AccessToken
	c.userID = auth.User.ID.String()
	c.mu.Unlock()

	c.logger.Info("authenticated with catalog", "user", auth.User.Name)
	return nil
}

// session returns the current access token and user id.
func (c *Client) session() (token, userID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.accessToken, c.userID
}

// doRequest executes a rate-limited GET against the catalog API and
// returns the response body.
func (c *Client) doRequest(ctx context.Context, path string, query url.Values) ([]byte, error) {
	token, _ := c.session()
	if token == "" {
		return nil, errors.Auth("not authenticated")
	}

	fullURL := c.cfg.BaseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	host := hostOf(fullURL)

	if err := c.limiter.Wait(ctx, host); err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Referer", c.cfg.Referer)

	c.logger.Debug("catalog request", "path", path)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "execute request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.ErrNotFound
	case isRateLimited(resp.StatusCode, body):
		c.limiter.Cooldown(host, c.cooldown)
		return nil, errors.RateLimited("catalog throttled the request")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Authf("catalog rejected the session: %d", resp.StatusCode)
	default:
		return nil, errors.Transportf("unexpected status %d", resp.StatusCode)
	}
}

// FetchDetail looks up a single item for backfill. A remote-deleted
// item returns (nil, nil), not an error.
func (c *Client) FetchDetail(ctx context.Context, itemID int64) (*domain.BookmarkedItem, error) {
	query := url.Values{"illust_id": {fmt.Sprintf("%d", itemID)}}

	body, err := c.doRequest(ctx, "/v1/illust/detail", query)
	if errors.Is(err, errors.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var detail detailResponse
	if err := json.Unmarshal(body, &detail); err != nil {
		return nil, errors.Wrap(err, errors.CodeTransport, "decode detail response")
	}
	if detail.Illust.ID == 0 {
		return nil, nil
	}

	item := detail.Illust.toDomain()
	return &item, nil
}

// isRateLimited recognizes the remote's throttling responses, which
// arrive both as 429s and as 403s with a "Rate Limit" body.
func isRateLimited(status int, body []byte) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return strings.Contains(string(body), "Rate Limit")
}

// hostOf extracts the host from a URL for rate limiter keying.
func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}
