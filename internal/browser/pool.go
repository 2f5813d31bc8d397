// Package browser manages a bounded pool of headless-Chrome pages via
// chromedp. One shared browser process hosts every lease; each lease is an
// isolated tab with consistent defaults.
package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tnprice/crawler/internal/metrics"
	"github.com/tnprice/crawler/internal/scraper"
)

// Pool errors. ErrBrowserStart is fatal infrastructure failure and must
// reach the caller unmodified; retrying is the scheduler's job, not ours.
var (
	ErrPoolExhausted = errors.New("browser pool exhausted")
	ErrBrowserStart  = errors.New("browser failed to start")
	ErrPoolClosed    = errors.New("browser pool closed")
)

// Config controls pool capacity and per-lease page defaults.
type Config struct {
	MaxSessions       int
	Headless          bool
	UserAgent         string
	NavigationTimeout time.Duration
	ReadyTimeout      time.Duration
	ViewportWidth     int
	ViewportHeight    int
}

func (c *Config) applyDefaults() {
	if c.MaxSessions <= 0 {
		c.MaxSessions = 3
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = 30 * time.Second
	}
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = 15 * time.Second
	}
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1920
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 1080
	}
}

// imagePatterns is blocked for regular leases so list crawls skip visual
// payloads. AcquireWithImages leaves them loadable.
var imagePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.svg", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.eot",
}

// Pool hands out Leases up to MaxSessions at a time. The underlying browser
// process starts lazily on the first acquisition and the start result is
// cached: once the process fails to start, every acquisition fails the same
// way.
type Pool struct {
	cfg     Config
	logger  *zap.Logger
	metrics *metrics.Metrics

	sem chan struct{}

	mu            sync.Mutex
	started       bool
	startErr      error
	closed        bool
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	// launch and openTab are replaceable in tests.
	launch  func() error
	openTab func(images bool) (*Lease, error)
}

// NewPool builds a pool; the browser process is not started yet.
func NewPool(cfg Config, logger *zap.Logger, m *metrics.Metrics) *Pool {
	cfg.applyDefaults()
	p := &Pool{
		cfg:     cfg,
		logger:  logger,
		metrics: m,
		sem:     make(chan struct{}, cfg.MaxSessions),
	}
	p.launch = p.launchBrowser
	p.openTab = p.newTab
	return p
}

// Acquire blocks until a pool slot is free or ctx expires, then opens an
// isolated page with image loading disabled. The caller must Release the
// lease on every exit path; prefer WithPage.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	return p.acquire(ctx, false)
}

// AcquireWithImages is Acquire without the image-blocking filter, for
// visual/verification scraping.
func (p *Pool) AcquireWithImages(ctx context.Context) (*Lease, error) {
	return p.acquire(ctx, true)
}

func (p *Pool) acquire(ctx context.Context, images bool) (*Lease, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrPoolExhausted, ctx.Err())
	}

	if err := p.ensureStarted(); err != nil {
		<-p.sem
		return nil, err
	}

	lease, err := p.openTab(images)
	if err != nil {
		<-p.sem
		return nil, fmt.Errorf("open page: %w", err)
	}
	p.metrics.SetPoolInUse(len(p.sem))
	p.logger.Debug("page acquired", zap.Int("in_use", len(p.sem)))
	return lease, nil
}

// WithPage runs fn with an acquired page and guarantees release on every
// exit path.
func (p *Pool) WithPage(ctx context.Context, fn func(scraper.PageDriver) error) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()
	return fn(lease)
}

// ensureStarted lazily launches the browser exactly once.
func (p *Pool) ensureStarted() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	if p.started {
		return p.startErr
	}
	p.started = true
	p.logger.Info("starting browser", zap.Int("max_sessions", p.cfg.MaxSessions))
	if err := p.launch(); err != nil {
		p.startErr = fmt.Errorf("%w: %v", ErrBrowserStart, err)
		p.logger.Error("browser start failed", zap.Error(err))
	}
	return p.startErr
}

func (p *Pool) launchBrowser() error {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", p.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(p.cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("chromedp warmup: %w", err)
	}
	p.allocCancel = allocCancel
	p.browserCtx = browserCtx
	p.browserCancel = browserCancel
	return nil
}

func (p *Pool) newTab(images bool) (*Lease, error) {
	tabCtx, tabCancel := chromedp.NewContext(p.browserCtx)

	tasks := chromedp.Tasks{
		network.Enable(),
		chromedp.EmulateViewport(int64(p.cfg.ViewportWidth), int64(p.cfg.ViewportHeight)),
	}
	if !images {
		tasks = append(tasks, network.SetBlockedURLS(imagePatterns))
	}
	if err := chromedp.Run(tabCtx, tasks); err != nil {
		tabCancel()
		return nil, fmt.Errorf("configure page: %w", err)
	}

	return &Lease{
		pool:   p,
		ctx:    tabCtx,
		cancel: tabCancel,
		images: images,
	}, nil
}

// Close tears the browser process down. In-flight leases are invalidated.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.browserCancel != nil {
		p.browserCancel()
	}
	if p.allocCancel != nil {
		p.allocCancel()
	}
	p.logger.Info("browser pool closed")
}

func (p *Pool) freeSlot() {
	<-p.sem
	p.metrics.SetPoolInUse(len(p.sem))
	p.logger.Debug("page released", zap.Int("in_use", len(p.sem)))
}
