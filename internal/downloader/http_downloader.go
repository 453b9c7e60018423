// Package downloader fetches upstream media over HTTP and classifies the
// failures the caching layers care about: expired signed links, rate limits
// and stalled transfers.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/iconidentify/albumproxy/internal/domain"
)

// Config holds downloader tuning.
type Config struct {
	UserAgent     string
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	ReadTimeout   time.Duration
}

// HTTPDownloader implements media fetching using HTTP requests.
type HTTPDownloader struct {
	// client is used for short requests with an overall timeout
	client *http.Client
	// streamClient is used for streaming downloads without overall timeout
	streamClient *http.Client
	cfg          Config
	logger       *slog.Logger
}

// New creates a new HTTP downloader.
func New(cfg Config, logger *slog.Logger) *HTTPDownloader {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	streamTransport := &http.Transport{
		ResponseHeaderTimeout: 30 * time.Second,
	}

	return &HTTPDownloader{
		client: &http.Client{
			Timeout: time.Minute,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
			// No Timeout - per-read stall detection instead
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Fetch downloads url fully into memory. Used for image derivatives, which
// are bounded in size by the upstream provider.
func (d *HTTPDownloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt < 3; attempt++ {
		reader, _, err := d.open(ctx, url, d.client)
		if err == nil {
			data, readErr := io.ReadAll(reader)
			reader.Close()
			if readErr == nil {
				return data, nil
			}
			err = readErr
		}

		lastErr = err
		if !isRetryable(err) {
			return nil, err
		}

		delay := d.cfg.RetryDelay * (1 << attempt)
		if delay > d.cfg.MaxRetryDelay {
			delay = d.cfg.MaxRetryDelay
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("fetch failed after retries: %w", lastErr)
}

// DownloadToFile streams url to dst, creating it. Transfers that stop
// making progress for the configured read timeout fail with
// domain.ErrDownloadTimeout, as do context deadline expiries.
func (d *HTTPDownloader) DownloadToFile(ctx context.Context, url, dst string) error {
	reader, size, err := d.open(ctx, url, d.streamClient)
	if err != nil {
		return err
	}
	defer reader.Close()

	progress := newProgressReader(reader, size, d.cfg.ReadTimeout, d.logger, url)

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create scratch file: %w", err)
	}

	_, err = io.Copy(f, progress)
	closeErr := f.Close()
	if err != nil {
		os.Remove(dst)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || isStall(err) {
			return domain.ErrDownloadTimeout
		}
		return fmt.Errorf("download media: %w", err)
	}
	if closeErr != nil {
		os.Remove(dst)
		return fmt.Errorf("close scratch file: %w", closeErr)
	}

	return nil
}

func (d *HTTPDownloader) open(ctx context.Context, url string, client *http.Client) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept", "image/*,video/mp4,video/*;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, 0, domain.ErrDownloadTimeout
		}
		return nil, 0, fmt.Errorf("send request: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized:
		resp.Body.Close()
		return nil, 0, domain.ErrURLExpired
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		resp.Body.Close()
		return nil, 0, domain.ErrURLExpired
	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, 0, domain.ErrRateLimited
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, resp.ContentLength, nil
}

func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrRateLimited) {
		return true
	}
	// An expired link never recovers by retrying; the caller needs a fresh
	// link from the next album refresh.
	if errors.Is(err, domain.ErrURLExpired) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

type stallError struct {
	timeout time.Duration
}

func (e *stallError) Error() string {
	return fmt.Sprintf("download stalled: no data received for %v", e.timeout)
}

func isStall(err error) bool {
	var se *stallError
	return errors.As(err, &se)
}

// progressReader wraps a response body to track download progress and detect
// stalls (no data for readTimeout).
type progressReader struct {
	reader      io.Reader
	total       int64
	downloaded  int64
	readTimeout time.Duration
	lastRead    time.Time
	lastLog     time.Time
	logger      *slog.Logger
	url         string
	mu          sync.Mutex
}

func newProgressReader(r io.Reader, total int64, readTimeout time.Duration, logger *slog.Logger, url string) *progressReader {
	now := time.Now()
	return &progressReader{
		reader:      r,
		total:       total,
		readTimeout: readTimeout,
		lastRead:    now,
		lastLog:     now,
		logger:      logger,
		url:         url,
	}
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 {
		p.downloaded += int64(n)
		p.lastRead = time.Now()

		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	if err == nil && p.readTimeout > 0 && time.Since(p.lastRead) > p.readTimeout {
		return n, &stallError{timeout: p.readTimeout}
	}

	return n, err
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.downloaded) / float64(p.total) * 100
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
			"total_mb", p.total/(1024*1024),
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("download progress",
			"downloaded_mb", p.downloaded/(1024*1024),
		)
	}
}
