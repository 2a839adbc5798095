// Package browser provides the page-render sessions the resolution pipeline
// consumes: one shared Chrome process, one tab per work item.
//
// The browser is an explicitly constructed dependency handed to the
// orchestrator, never a process-wide singleton, so work items stay
// independently testable and parallel-safe.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Options struct {
	MaxTabs      int
	NavTimeout   time.Duration
	SettleDelay  time.Duration
	NavPerMinute int
	ProxyURL     string
}

type Browser struct {
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	semaphore     chan struct{} // limits concurrent tabs
	limiter       *rate.Limiter // paces navigations across all tabs
	opts          Options
	log           zerolog.Logger
}

func New(ctx context.Context, opts Options, log zerolog.Logger) (*Browser, error) {
	if opts.MaxTabs < 1 {
		opts.MaxTabs = 4
	}
	if opts.NavTimeout <= 0 {
		opts.NavTimeout = 45 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = 2 * time.Second
	}
	if opts.NavPerMinute < 1 {
		opts.NavPerMinute = 20
	}

	allocOpts := execAllocatorOptions()
	if opts.ProxyURL != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyURL))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	b := &Browser{
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		semaphore:     make(chan struct{}, opts.MaxTabs),
		limiter:       rate.NewLimiter(rate.Limit(float64(opts.NavPerMinute)/60.0), 1),
		opts:          opts,
		log:           log,
	}

	log.Info().Int("max_tabs", opts.MaxTabs).Int("nav_per_minute", opts.NavPerMinute).Msg("browser started")
	return b, nil
}

// NewTab opens a fresh tab, blocking until a slot is free or ctx is done.
// The caller owns the tab and must Close it.
func (b *Browser) NewTab(ctx context.Context) (*Tab, error) {
	select {
	case b.semaphore <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	tabCtx, tabCancel := chromedp.NewContext(b.browserCtx)

	t := &Tab{
		ctx:     tabCtx,
		cancel:  tabCancel,
		browser: b,
	}

	if err := t.init(); err != nil {
		t.Close()
		return nil, fmt.Errorf("init tab: %w", err)
	}
	return t, nil
}

func (b *Browser) release() {
	<-b.semaphore
}

func (b *Browser) Close() {
	if b.browserCancel != nil {
		b.browserCancel()
	}
	if b.allocCancel != nil {
		b.allocCancel()
	}
	b.log.Info().Msg("browser closed")
}
