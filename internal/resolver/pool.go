package resolver

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/kumma49/kuaishou-topn-downloader/internal/model"
)

const queueCapacity = 256

// Pool processes work items with a fixed, small number of workers. The
// bound trades throughput for a lower request rate against the target site.
// No two workers ever share a page-render session.
type Pool struct {
	resolver    *Resolver
	queue       chan model.WorkItem
	workers     int
	itemTimeout time.Duration
	pending     sync.WaitGroup
	log         zerolog.Logger
}

func NewPool(r *Resolver, workers int, itemTimeout time.Duration, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 2
	}
	if itemTimeout <= 0 {
		itemTimeout = 3 * time.Minute
	}
	return &Pool{
		resolver:    r,
		queue:       make(chan model.WorkItem, queueCapacity),
		workers:     workers,
		itemTimeout: itemTimeout,
		log:         log,
	}
}

// Submit enqueues a work item. Never blocks the caller: if the queue is
// momentarily full, handoff moves to a goroutine so a worker submitting
// follow-up work cannot deadlock the pool.
func (p *Pool) Submit(item model.WorkItem) {
	p.pending.Add(1)
	select {
	case p.queue <- item:
	default:
		go func() { p.queue <- item }()
	}
}

// Run starts the workers and blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) error {
	p.log.Info().Int("workers", p.workers).Msg("worker pool started")

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case item := <-p.queue:
					p.process(ctx, item)
				}
			}
		}()
	}

	wg.Wait()
	return ctx.Err()
}

// Drain blocks until every submitted item (including follow-up detail work)
// has finished. One-shot mode uses it to know when to exit.
func (p *Pool) Drain() {
	p.pending.Wait()
}

// process handles one item under its wall-clock budget. A failure or
// timeout in one item never terminates the pool or other in-flight items.
func (p *Pool) process(ctx context.Context, item model.WorkItem) {
	defer p.pending.Done()

	itemCtx, cancel := context.WithTimeout(ctx, p.itemTimeout)
	defer cancel()

	switch {
	case item.Search != nil:
		for _, req := range p.resolver.ResolveKeyword(itemCtx, item.Search.Keyword) {
			p.Submit(model.WorkItem{Detail: &req})
		}

	case item.Detail != nil:
		rec := p.resolver.ResolveDetail(itemCtx, *item.Detail)
		if itemCtx.Err() != nil {
			p.log.Warn().Str("url", item.Detail.URL).Dur("budget", p.itemTimeout).Msg("item abandoned on timeout, emitting failure record")
		}
		// Emit outside the expired budget so the record is not lost.
		p.resolver.Emit(ctx, rec)

	default:
		p.log.Error().Msg("empty work item dropped")
	}
}
