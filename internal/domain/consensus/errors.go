package consensus

import "errors"

// ErrRateLimited indicates the ingress guard rejected the call. This is the
// only error the analyze/evaluate path surfaces to callers; every backend
// failure is absorbed into the fail-closed verdict instead.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrInvalidRequest indicates the request failed input validation.
var ErrInvalidRequest = errors.New("invalid request")
