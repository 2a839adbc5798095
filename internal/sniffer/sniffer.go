// Package sniffer passively collects media-looking response URLs from an
// in-progress page render.
//
// A collector must be attached strictly before the navigation that triggers
// the page's requests. Responses fired before attachment are lost for good:
// replaying navigation against a stateful remote site is not idempotent, so
// late attachment is a bug, not a retryable condition.
package sniffer

import (
	"sync"

	"github.com/kumma49/kuaishou-topn-downloader/internal/extractor"
)

// ResponseSource is the slice of a page-render session the sniffer needs:
// a subscription to observed response URLs with an unsubscribe handle.
type ResponseSource interface {
	OnResponse(fn func(url string)) (stop func())
}

// Collector accumulates qualifying media URLs for exactly one detail-page
// resolution. Insert order is preserved, exact duplicates are dropped.
type Collector struct {
	mu       sync.Mutex
	seen     map[string]bool
	urls     []string
	detached bool
	stop     func()
}

func NewCollector() *Collector {
	return &Collector{seen: make(map[string]bool)}
}

// Attach subscribes a fresh collector to the session's network responses.
// Call before navigating.
func Attach(src ResponseSource) *Collector {
	c := NewCollector()
	c.stop = src.OnResponse(c.Offer)
	return c
}

// Offer records a URL if it qualifies as media and has not been seen.
// After Detach every Offer is a no-op, even if the underlying session
// keeps receiving traffic.
func (c *Collector) Offer(url string) {
	if !extractor.IsMediaURL(url) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.detached || c.seen[url] {
		return
	}
	c.seen[url] = true
	c.urls = append(c.urls, url)
}

// URLs returns the collected URLs in insertion order.
func (c *Collector) URLs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.urls))
	copy(out, c.urls)
	return out
}

// Detach ends observation. Idempotent; safe on every exit path.
func (c *Collector) Detach() {
	c.mu.Lock()
	if c.detached {
		c.mu.Unlock()
		return
	}
	c.detached = true
	stop := c.stop
	c.mu.Unlock()

	if stop != nil {
		stop()
	}
}
