package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/robalyx/starboard/pkg/utils"
	"go.uber.org/zap"
)

// ErrAttachmentTooLarge is returned when an attachment exceeds the upload limit.
var ErrAttachmentTooLarge = errors.New("attachment exceeds upload limit")

// Downloader fetches attachments for re-upload.
type Downloader struct {
	client *retryablehttp.Client
}

// NewDownloader creates a Downloader whose retries follow opts.
func NewDownloader(opts utils.RetryOptions, logger *zap.Logger) *Downloader {
	client := retryablehttp.NewClient()
	client.RetryMax = int(opts.MaxRetries)
	client.RetryWaitMin = opts.InitialInterval
	client.RetryWaitMax = opts.MaxInterval
	client.HTTPClient.Timeout = 30 * time.Second
	client.Logger = leveledLogger{logger.Named("download").Sugar()}

	return &Downloader{client: client}
}

// Download reads the body at url, failing once more than limit bytes arrive.
// A limit of zero or less reads the whole body.
func (d *Downloader) Download(ctx context.Context, url string, limit int) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrPermanent, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download attachment: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: attachment returned %d", utils.ErrPermanent, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("attachment returned %d", resp.StatusCode)
	}

	if limit > 0 && resp.ContentLength > int64(limit) {
		return nil, fmt.Errorf("%w: %w (%d bytes)", utils.ErrPermanent, ErrAttachmentTooLarge, resp.ContentLength)
	}

	reader := io.Reader(resp.Body)
	if limit > 0 {
		reader = io.LimitReader(resp.Body, int64(limit)+1)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if limit > 0 && buf.Len() > limit {
		return nil, fmt.Errorf("%w: %w", utils.ErrPermanent, ErrAttachmentTooLarge)
	}
	return buf.Bytes(), nil
}

// leveledLogger routes retryablehttp logs through zap.
type leveledLogger struct {
	sugar *zap.SugaredLogger
}

func (l leveledLogger) Error(msg string, keysAndValues ...any) { l.sugar.Errorw(msg, keysAndValues...) }
func (l leveledLogger) Warn(msg string, keysAndValues ...any)  { l.sugar.Warnw(msg, keysAndValues...) }
func (l leveledLogger) Info(msg string, keysAndValues ...any)  { l.sugar.Debugw(msg, keysAndValues...) }
func (l leveledLogger) Debug(msg string, keysAndValues ...any) { l.sugar.Debugw(msg, keysAndValues...) }
