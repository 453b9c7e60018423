package tracker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/albumproxy/internal/domain"
)

// AlbumRefresher re-fetches and stores one album.
type AlbumRefresher interface {
	Refresh(ctx context.Context, token domain.Token) error
}

// Config holds refresh scheduling configuration.
type Config struct {
	Interval   time.Duration
	BatchSize  int
	BatchDelay time.Duration
}

// Refresher periodically walks the tracked tokens and refreshes them in
// small batches with an inter-batch delay, trading throughput for not
// overwhelming the upstream provider.
type Refresher struct {
	cfg     Config
	tracker *Tracker
	albums  AlbumRefresher
	logger  *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewRefresher creates a refresher over the given tracker.
func NewRefresher(cfg Config, tracker *Tracker, albums AlbumRefresher, logger *slog.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Refresher{
		cfg:     cfg,
		tracker: tracker,
		albums:  albums,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the background refresh loop.
func (r *Refresher) Start() {
	r.wg.Add(1)
	go r.loop()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (r *Refresher) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Refresher) loop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.sweep()
		}
	}
}

// sweep refreshes every tracked token, batchSize at a time.
func (r *Refresher) sweep() {
	tokens := r.tracker.Tokens()
	if len(tokens) == 0 {
		return
	}

	r.logger.Info("refreshing tracked albums", "count", len(tokens))

	for start := 0; start < len(tokens); start += r.cfg.BatchSize {
		end := start + r.cfg.BatchSize
		if end > len(tokens) {
			end = len(tokens)
		}

		for _, token := range tokens[start:end] {
			if err := r.albums.Refresh(r.ctx, token); err != nil {
				r.logger.Warn("background album refresh failed",
					"token", token,
					"error", err,
				)
			}
		}

		if end < len(tokens) && r.cfg.BatchDelay > 0 {
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(r.cfg.BatchDelay):
			}
		}
	}
}
