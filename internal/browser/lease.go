package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/tnprice/crawler/internal/scraper"
)

// Lease is one exclusively-owned browser tab. It implements
// scraper.PageDriver and stays valid across navigations so cookies and
// session state survive for the duration of a job.
type Lease struct {
	pool    *Pool
	ctx     context.Context
	cancel  context.CancelFunc
	images  bool
	release sync.Once
}

// Release closes the tab and frees the pool slot. It is idempotent; calling
// it from a defer directly after acquisition is the expected discipline.
func (l *Lease) Release() {
	l.release.Do(func() {
		l.cancel()
		l.pool.freeSlot()
	})
}

// Navigate loads url and waits for the page to be usable. When
// opts.WaitSelector is set it is awaited under the pool's ready timeout;
// that wait expiring is logged but not an error, matching sites whose
// marker element only renders on some pages. Without a selector the page is
// given a short settle after the body is ready.
func (l *Lease) Navigate(ctx context.Context, url string, opts scraper.NavigateOptions) error {
	timeout := l.pool.cfg.NavigationTimeout
	if opts.LoadTimeout > 0 {
		timeout = opts.LoadTimeout
	}

	navCtx, cancel := context.WithTimeout(l.ctx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}

	if opts.WaitSelector != "" {
		waitCtx, cancelWait := context.WithTimeout(l.ctx, l.pool.cfg.ReadyTimeout)
		defer cancelWait()
		if err := chromedp.Run(waitCtx, chromedp.WaitVisible(opts.WaitSelector, chromedp.ByQuery)); err != nil {
			l.pool.logger.Warn("ready selector wait timed out",
				zap.String("url", url),
				zap.String("selector", opts.WaitSelector),
			)
		}
		return nil
	}

	// No ready marker configured: give dynamic content a brief settle.
	settleCtx, cancelSettle := context.WithTimeout(l.ctx, time.Second)
	defer cancelSettle()
	_ = chromedp.Run(settleCtx, chromedp.Sleep(500*time.Millisecond))
	return nil
}

// HTML snapshots the rendered DOM of the current page.
func (l *Lease) HTML(ctx context.Context) (string, error) {
	snapCtx, cancel := context.WithTimeout(l.ctx, l.pool.cfg.ReadyTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(snapCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot dom: %w", err)
	}
	return html, nil
}

// Title returns the current document title.
func (l *Lease) Title(ctx context.Context) (string, error) {
	titleCtx, cancel := context.WithTimeout(l.ctx, l.pool.cfg.ReadyTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var title string
	if err := chromedp.Run(titleCtx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("read title: %w", err)
	}
	return title, nil
}

// forwardCancel propagates cancellation from the caller's context into a
// chromedp task context, which is derived from the tab rather than the
// caller.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
