package catalog

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/errors"
)

const (
	// maxPageAttempts bounds transport retries per page. Rate-limit
	// cooldowns retry the same page without consuming attempts.
	maxPageAttempts = 3

	// backoffStep scales the linear per-attempt backoff, capped at
	// three steps.
	backoffStep = 5 * time.Second
)

// cursorKeys are the pagination parameter names probed in priority
// order. The remote has shipped several shapes of the "next page"
// pointer; the cursor itself is treated as opaque.
var cursorKeys = []string{
	"max_bookmark_id",
	"bookmark_id",
	"bookmarked_id",
	"min_bookmark_id",
	"last_id",
	"cursor",
}

// pageCursor is the extracted position of the next page: one opaque
// key/value pair plus an optional numeric offset.
type pageCursor struct {
	key    string
	value  string
	offset string
}

func (pc pageCursor) valid() bool {
	return pc.key != ""
}

// extractCursor parses a next-page URL into a pageCursor, probing each
// candidate parameter name. Returns an invalid cursor when nothing
// matches.
func extractCursor(nextURL string) pageCursor {
	if nextURL == "" {
		return pageCursor{}
	}
	parsed, err := url.Parse(nextURL)
	if err != nil {
		return pageCursor{}
	}

	query := parsed.Query()
	for _, key := range cursorKeys {
		if value := query.Get(key); value != "" {
			return pageCursor{
				key:    key,
				value:  value,
				offset: query.Get("offset"),
			}
		}
	}
	return pageCursor{}
}

// Enumerate produces a lazy, finite, deduplicated sequence of
// bookmarked items across all configured restrict modes. The channel
// closes when every mode is exhausted, the page cap is reached, or the
// context is canceled. Send blocking is the pipeline's backpressure:
// the consumer throttles pagination by draining slowly.
//
// Failures abort only the affected restrict mode; items already
// yielded and the remaining modes are unaffected. The dedup set is
// scoped to this one call.
func (c *Client) Enumerate(ctx context.Context) <-chan domain.BookmarkedItem {
	out := make(chan domain.BookmarkedItem)

	go func() {
		defer close(out)

		seen := make(map[int64]struct{})
		for _, restrict := range c.cfg.RestrictModes {
			c.enumerateMode(ctx, restrict, seen, out)
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return out
}

// enumerateMode pages through one restrict mode, sending unseen items.
func (c *Client) enumerateMode(ctx context.Context, restrict string, seen map[int64]struct{}, out chan<- domain.BookmarkedItem) {
	var cursor pageCursor
	pages := 0

	for {
		if c.cfg.MaxPages > 0 && pages >= c.cfg.MaxPages {
			c.logger.Info("page cap reached", "restrict", restrict, "pages", pages)
			return
		}

		page, err := c.fetchBookmarkPage(ctx, restrict, cursor)
		if err != nil {
			c.logger.Error("bookmark enumeration aborted",
				"restrict", restrict,
				"pages", pages,
				"error", err,
			)
			return
		}
		pages++

		if len(page.Illusts) == 0 {
			c.logger.Debug("bookmark listing exhausted", "restrict", restrict, "pages", pages)
			return
		}

		for _, raw := range page.Illusts {
			if raw.ID == 0 {
				continue
			}
			if _, dup := seen[raw.ID]; dup {
				continue
			}
			seen[raw.ID] = struct{}{}

			select {
			case out <- raw.toDomain():
			case <-ctx.Done():
				return
			}
		}

		cursor = extractCursor(page.NextURL)
		if !cursor.valid() {
			c.logger.Debug("no cursor after non-empty page", "restrict", restrict, "pages", pages)
			return
		}
	}
}

// fetchBookmarkPage fetches one page with the retry policy: up to
// maxPageAttempts transport attempts with linear backoff and a fresh
// authentication before each retry; rate limiting waits out the
// cooldown and retries the same page without consuming an attempt.
func (c *Client) fetchBookmarkPage(ctx context.Context, restrict string, cursor pageCursor) (*bookmarkPage, error) {
	_, userID := c.session()

	query := url.Values{
		"user_id":  {userID},
		"restrict": {restrict},
	}
	if cursor.valid() {
		query.Set(cursor.key, cursor.value)
		if cursor.offset != "" {
			query.Set("offset", cursor.offset)
		}
	}

	var lastErr error
	for attempt := 0; attempt < maxPageAttempts; attempt++ {
		body, err := c.doRequest(ctx, "/v1/user/bookmarks/illust", query)
		if err == nil {
			var page bookmarkPage
			if err := json.Unmarshal(body, &page); err != nil {
				return nil, errors.Wrap(err, errors.CodeTransport, "decode bookmark page")
			}
			return &page, nil
		}

		if errors.Is(err, errors.ErrRateLimited) {
			// The limiter already holds the cooldown; the next doRequest
			// waits it out. Does not count against the attempt budget.
			c.logger.Warn("rate limited, backing off", "restrict", restrict)
			attempt--
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		lastErr = err
		backoff := c.pageBackoff * time.Duration(attempt+1)
		if max := 3 * c.pageBackoff; backoff > max {
			backoff = max
		}
		c.logger.Warn("bookmark page fetch failed",
			"restrict", restrict,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", err,
		)

		if attempt == maxPageAttempts-1 {
			break
		}
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
		// Recovery step: a stale session is the common cause of
		// repeated failures.
		if err := c.Authenticate(ctx); err != nil {
			c.logger.Warn("re-authentication failed", "error", err)
		}
		_, userID = c.session()
		query.Set("user_id", userID)
	}

	return nil, lastErr
}

// sleepCtx sleeps for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
