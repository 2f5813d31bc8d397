package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tnprice/crawler/internal/cancel"
	"github.com/tnprice/crawler/internal/metrics"
)

// progressEvery controls how often the checkpoint emits a progress log line.
const progressEvery = 10

// checkpoint is the per-job scraper.Checkpoint: it polls the cancellation
// gate, enforces the website's request spacing and reports progress.
// Strategies call it between work units; they never talk to the gate or
// the limiter directly.
type checkpoint struct {
	jobID   string
	website string
	gate    cancel.Gate
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func newCheckpoint(job Job, gate cancel.Gate, m *metrics.Metrics, logger *zap.Logger) *checkpoint {
	interval := job.Website.RateLimit
	if interval <= 0 {
		interval = time.Second
	}
	limiter := rate.NewLimiter(rate.Every(interval), 1)
	// Drain the initial token: Wait is called after a unit of work, so it
	// must always space the next request by the full interval.
	limiter.Allow()
	return &checkpoint{
		jobID:   job.ID,
		website: job.Website.Name,
		gate:    gate,
		limiter: limiter,
		metrics: m,
		logger:  logger,
	}
}

// Cancelled polls the gate. A gate read failure is logged and treated as
// "not cancelled": a flaky flag store must not kill running jobs.
func (c *checkpoint) Cancelled(ctx context.Context) bool {
	cancelled, err := c.gate.Cancelled(ctx, c.jobID)
	if err != nil {
		c.logger.Warn("cancellation check failed", zap.Error(err))
		return false
	}
	if cancelled {
		c.logger.Info("cancellation requested, stopping")
	}
	return cancelled
}

// Wait blocks until the website's request spacing allows the next fetch,
// or the context ends.
func (c *checkpoint) Wait(ctx context.Context) error {
	start := time.Now()
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	c.metrics.ObserveRateLimitDelay(time.Since(start))
	return nil
}

// Progress records a completed work unit and logs every tenth one.
func (c *checkpoint) Progress(units, found int) {
	c.metrics.IncPage(c.website)
	if units%progressEvery == 0 {
		c.logger.Info("progress",
			zap.Int("pages_visited", units),
			zap.Int("items_found", found),
		)
	}
}
