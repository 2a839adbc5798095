// Package search aggregates site-scoped queries across external search
// backends. Each backend adapter normalizes its own response shape into the
// common Result at its boundary, so the aggregator never branches on shape.
package search

import (
	"context"
	"errors"
)

// ErrBackendQuery marks a backend query failure. The aggregator treats it
// as zero results from that backend and carries on.
var ErrBackendQuery = errors.New("search backend query failed")

// Result is the one thing every backend must produce: a result URL.
type Result struct {
	URL string `json:"url"`
}

// Backend submits a site-scoped text query to one external search service
// and retrieves up to limit result URLs. Backends fail independently; an
// error from one never affects the others.
type Backend interface {
	Name() string
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}
