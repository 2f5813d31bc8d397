// Package orchestrator drives crawl jobs end to end: it resolves the
// extraction strategy, owns the browser lease for the job's duration, and
// is the single checkpoint for rate limiting and cancellation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tnprice/crawler/internal/cancel"
	"github.com/tnprice/crawler/internal/logging"
	"github.com/tnprice/crawler/internal/metrics"
	"github.com/tnprice/crawler/internal/scraper"
	"github.com/tnprice/crawler/internal/strategy"
)

// Status is the lifecycle state of a crawl job. Terminal states are
// exclusive and final.
type Status string

// Job lifecycle states.
const (
	StatusPending         Status = "pending"
	StatusRunning         Status = "running"
	StatusSucceeded       Status = "succeeded"
	StatusPartiallyFailed Status = "partially_failed"
	StatusFailed          Status = "failed"
	StatusCancelled       Status = "cancelled"
)

// Job is one full crawl of one website. The caller resolves the website
// descriptor and its active scraper configuration before submitting.
type Job struct {
	ID       string
	Website  scraper.Website
	Config   scraper.ScraperConfig
	MaxPages int
}

// Report is returned to the caller at job completion, for persisting as a
// job-log record and reconciling items against product storage.
type Report struct {
	JobID    string         `json:"job_id"`
	Website  string         `json:"website"`
	Status   Status         `json:"status"`
	Result   scraper.Result `json:"result"`
	Started  time.Time      `json:"started_at"`
	Finished time.Time      `json:"finished_at"`
}

// PagePool abstracts the browser pool: run fn with an exclusively-owned
// page, releasing it on every exit path.
type PagePool interface {
	WithPage(ctx context.Context, fn func(scraper.PageDriver) error) error
}

// clearTimeout bounds the post-job cancellation-flag cleanup, which must
// run even when the job's own context is gone.
const clearTimeout = 5 * time.Second

// Orchestrator runs jobs. Safe for concurrent use; per-job state lives on
// the stack of Run.
type Orchestrator struct {
	pool     PagePool
	gate     cancel.Gate
	registry *strategy.Registry
	disc     strategy.Discoverer
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

// New wires an orchestrator from its collaborators.
func New(pool PagePool, gate cancel.Gate, registry *strategy.Registry, disc strategy.Discoverer, m *metrics.Metrics, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		pool:     pool,
		gate:     gate,
		registry: registry,
		disc:     disc,
		metrics:  m,
		logger:   logger,
	}
}

// Run executes one job to a terminal state and returns its report. The
// returned error is non-nil only for job-level failures (infrastructure,
// configuration, first-page navigation); per-unit failures are absorbed
// into the report's error list. The job's cancellation flag is cleared on
// every exit path.
func (o *Orchestrator) Run(ctx context.Context, job Job) (Report, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	logger := logging.ForJob(o.logger, job.ID, job.Website.Name)

	report := Report{
		JobID:   job.ID,
		Website: job.Website.Name,
		Status:  StatusPending,
		Started: time.Now(),
	}

	defer func() {
		clearCtx, cancelClear := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
		defer cancelClear()
		if err := o.gate.Clear(clearCtx, job.ID); err != nil {
			logger.Warn("clearing cancellation flag failed", zap.Error(err))
		}
	}()

	if err := scraper.ValidateBaseURL(job.Website.BaseURL); err != nil {
		report.Result.AddError(scraper.ErrorKindConfig, job.Website.BaseURL, err.Error())
		o.finish(&report, logger)
		return report, fmt.Errorf("job %s: %w", job.ID, err)
	}

	st := o.registry.Resolve(strategy.Params{
		Website:    job.Website,
		Config:     job.Config,
		MaxPages:   job.MaxPages,
		Discoverer: o.disc,
		Logger:     logger,
	})

	report.Status = StatusRunning
	o.metrics.JobStarted()
	defer o.metrics.JobFinished()

	logger.Info("job started",
		zap.String("strategy", st.Name()),
		zap.Duration("rate_limit", job.Website.RateLimit),
	)

	cp := newCheckpoint(job, o.gate, o.metrics, logger)

	var jobErr error
	poolErr := o.pool.WithPage(ctx, func(page scraper.PageDriver) error {
		res, err := st.Extract(ctx, page, cp)
		report.Result = res
		jobErr = err
		return nil
	})

	switch {
	case poolErr != nil:
		// Pool acquisition failure is infrastructure-level: propagate it
		// unmodified so the external scheduler decides about retries.
		report.Result.AddError(scraper.ErrorKindInfrastructure, job.Website.BaseURL, poolErr.Error())
		o.finish(&report, logger)
		return report, poolErr
	case jobErr != nil:
		// Job-level failures from the strategy (a dead first page, failed
		// discovery) carry their own kind. Record it here when the strategy
		// did not, so finish never mistakes them for a selector problem.
		if len(report.Result.Errors) == 0 {
			report.Result.AddError(jobErrorKind(jobErr), job.Website.BaseURL, jobErr.Error())
		}
		o.finish(&report, logger)
		return report, fmt.Errorf("job %s: %w", job.ID, jobErr)
	}

	o.finish(&report, logger)
	return report, nil
}

// jobErrorKind maps a job-level strategy error onto the error taxonomy.
func jobErrorKind(err error) scraper.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return scraper.ErrorKindTimeout
	}
	return scraper.ErrorKindNetwork
}

// finish derives the terminal status, stamps the report and emits the
// completion log and metrics.
func (o *Orchestrator) finish(report *Report, logger *zap.Logger) {
	res := &report.Result

	switch {
	case res.Cancelled:
		report.Status = StatusCancelled
	case len(res.Errors) == 0 && len(res.Items) > 0:
		report.Status = StatusSucceeded
	case len(res.Items) > 0:
		report.Status = StatusPartiallyFailed
	default:
		report.Status = StatusFailed
		if len(res.Errors) == 0 {
			// Zero items with no hard errors means the selectors matched
			// nothing anywhere; say so instead of reporting an empty
			// success.
			res.AddError(scraper.ErrorKindExtraction, report.Website,
				"no extractable items; check the selector configuration")
		}
	}
	res.Success = report.Status == StatusSucceeded
	report.Finished = time.Now()

	for _, e := range res.Errors {
		o.metrics.IncError(string(e.Kind))
	}
	o.metrics.AddItems(report.Website, len(res.Items))
	o.metrics.IncJob(string(report.Status))

	logger.Info("job finished",
		zap.String("status", string(report.Status)),
		zap.Int("items", len(res.Items)),
		zap.Int("pages_visited", res.PagesVisited),
		zap.Int("errors", len(res.Errors)),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
}
