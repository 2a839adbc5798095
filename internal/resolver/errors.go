package resolver

import "errors"

// Pipeline failure taxonomy. All of these degrade the affected item and
// never abort the batch; they exist so logs and diagnostics name what
// happened.
var (
	// ErrNavigationFailure: the page never reached a usable state, even
	// after the single relaxed-readiness retry.
	ErrNavigationFailure = errors.New("navigation failed after retry")

	// ErrMediaNotFound: the page loaded but no qualifying media URL was
	// assembled from tags, traffic or markup.
	ErrMediaNotFound = errors.New("no playable media found")
)
