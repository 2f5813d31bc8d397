package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tnprice/crawler/internal/scraper"
)

// newStubPool replaces the chromedp seams so tests run without Chrome.
func newStubPool(maxSessions int) *Pool {
	p := NewPool(Config{MaxSessions: maxSessions}, zap.NewNop(), nil)
	p.launch = func() error { return nil }
	p.openTab = func(images bool) (*Lease, error) {
		ctx, cancel := context.WithCancel(context.Background())
		return &Lease{pool: p, ctx: ctx, cancel: cancel, images: images}, nil
	}
	return p
}

func TestPoolAcquireRelease(t *testing.T) {
	p := newStubPool(2)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	b, err := p.Acquire(ctx)
	require.NoError(t, err)

	// Pool is full: a bounded wait must fail with ErrPoolExhausted.
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(shortCtx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPoolExhausted)

	a.Release()
	c, err := p.Acquire(ctx)
	require.NoError(t, err)

	b.Release()
	c.Release()
}

func TestPoolReleaseIdempotent(t *testing.T) {
	p := newStubPool(1)
	ctx := context.Background()

	a, err := p.Acquire(ctx)
	require.NoError(t, err)
	a.Release()
	a.Release()

	// A double release must not free a second slot.
	b, err := p.Acquire(ctx)
	require.NoError(t, err)
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = p.Acquire(shortCtx)
	assert.ErrorIs(t, err, ErrPoolExhausted)
	b.Release()
}

func TestPoolStartFailureCached(t *testing.T) {
	p := newStubPool(2)
	launches := 0
	p.launch = func() error {
		launches++
		return errors.New("chrome not found")
	}

	ctx := context.Background()
	_, err := p.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBrowserStart)

	// The failure is permanent: no relaunch, same error, slot freed.
	_, err = p.Acquire(ctx)
	assert.ErrorIs(t, err, ErrBrowserStart)
	assert.Equal(t, 1, launches)

	lease, err := newStubPool(1).Acquire(ctx)
	require.NoError(t, err, "slots must not leak after start failures")
	lease.Release()
}

func TestPoolOpenTabFailureFreesSlot(t *testing.T) {
	p := newStubPool(1)
	tabErr := errors.New("target crashed")
	p.openTab = func(bool) (*Lease, error) { return nil, tabErr }

	ctx := context.Background()
	_, err := p.Acquire(ctx)
	require.ErrorIs(t, err, tabErr)

	// The slot is free again: a working openTab succeeds immediately.
	p.openTab = func(images bool) (*Lease, error) {
		leaseCtx, cancel := context.WithCancel(context.Background())
		return &Lease{pool: p, ctx: leaseCtx, cancel: cancel, images: images}, nil
	}
	lease, err := p.Acquire(ctx)
	require.NoError(t, err)
	lease.Release()
}

func TestPoolClosed(t *testing.T) {
	p := newStubPool(1)
	p.Close()
	_, err := p.Acquire(context.Background())
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestWithPageReleasesOnError(t *testing.T) {
	p := newStubPool(1)
	ctx := context.Background()

	fnErr := errors.New("extract failed")
	err := p.WithPage(ctx, func(scraper.PageDriver) error { return fnErr })
	require.ErrorIs(t, err, fnErr)

	// The slot must be free even though fn failed.
	lease, err := p.Acquire(ctx)
	require.NoError(t, err)
	lease.Release()
}

func TestAcquireWithImages(t *testing.T) {
	p := newStubPool(1)
	var gotImages bool
	p.openTab = func(images bool) (*Lease, error) {
		gotImages = images
		ctx, cancel := context.WithCancel(context.Background())
		return &Lease{pool: p, ctx: ctx, cancel: cancel, images: images}, nil
	}

	lease, err := p.AcquireWithImages(context.Background())
	require.NoError(t, err)
	assert.True(t, gotImages)
	lease.Release()
}

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.applyDefaults()
	assert.Equal(t, 3, cfg.MaxSessions)
	assert.Equal(t, 30*time.Second, cfg.NavigationTimeout)
	assert.Equal(t, 15*time.Second, cfg.ReadyTimeout)
	assert.NotEmpty(t, cfg.UserAgent)
	assert.Equal(t, 1920, cfg.ViewportWidth)
	assert.Equal(t, 1080, cfg.ViewportHeight)
}
