package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pixvault/pixvault-server/internal/domain"
	"github.com/pixvault/pixvault-server/internal/errors"
)

const (
	// maxDownloadAttempts bounds transfer retries per task.
	maxDownloadAttempts = 3

	downloadBackoffBase = 2 * time.Second
)

// Download streams one task's URL into destDir/task.RelPath(). The
// transfer goes to a temporary file first and is renamed only after
// full success, so a crash or network failure never leaves a partial
// file at the target path. Retries with exponential backoff.
func (c *Client) Download(ctx context.Context, task domain.DownloadTask, destDir string) error {
	dir := filepath.Join(destDir, task.DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "create item directory")
	}
	target := filepath.Join(dir, task.FileName)

	var lastErr error
	for attempt := 0; attempt < maxDownloadAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.downloadBackoff << (attempt - 1)
			if err := sleepCtx(ctx, backoff); err != nil {
				return err
			}
		}

		if err := c.fetchToFile(ctx, task.URL, target); err != nil {
			lastErr = err
			c.logger.Warn("download attempt failed",
				"item_id", task.ItemID,
				"page", task.PageIndex,
				"attempt", attempt+1,
				"error", err,
			)
			continue
		}
		return nil
	}

	return lastErr
}

// fetchToFile performs one rate-limited transfer attempt.
func (c *Client) fetchToFile(ctx context.Context, rawURL, target string) error {
	host := hostOf(rawURL)
	if err := c.limiter.Wait(ctx, host); err != nil {
		return errors.Wrap(err, errors.CodeTransport, "rate limit wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeTransport, "create request")
	}
	// The image host rejects requests without the provider referer.
	req.Header.Set("Referer", c.cfg.Referer)

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.CodeTransport, "execute request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if isRateLimited(resp.StatusCode, nil) {
			c.limiter.Cooldown(host, rateLimitCooldown)
			return errors.RateLimited("image host throttled the request")
		}
		return errors.Transportf("unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), filepath.Base(target)+".part*")
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "create temp file")
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.CodeTransport, "stream body")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.CodeStorage, "close temp file")
	}

	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.CodeStorage, fmt.Sprintf("move into place: %s", target))
	}
	return nil
}
