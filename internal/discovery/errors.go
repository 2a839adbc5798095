package discovery

import "errors"

// ErrExhausted: every strategy ran and none yielded a candidate. Diagnostic
// only; an exhausted keyword is a valid zero-result outcome.
var ErrExhausted = errors.New("discovery exhausted")
