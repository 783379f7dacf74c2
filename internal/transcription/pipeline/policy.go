package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// DropPolicy decides what happens to a batch whose inference fails.
type DropPolicy string

const (
	// DropContinue logs the failure and leaves the batch's chunks out of the
	// transcript.
	DropContinue DropPolicy = "continue"
	// DropRetry retries the batch with backoff, then behaves like
	// DropContinue.
	DropRetry DropPolicy = "retry"
	// DropAbort fails the whole request on the first failed batch.
	DropAbort DropPolicy = "abort"
)

// ParseDropPolicy accepts the names above, case-insensitively. An empty
// string means DropContinue.
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch p := DropPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return DropContinue, nil
	case DropContinue, DropRetry, DropAbort:
		return p, nil
	}
	return "", fmt.Errorf("unknown drop policy %q", s)
}

// Policy configures failure handling for the executor.
type Policy struct {
	Mode DropPolicy
	// Attempts is the total number of tries per batch under DropRetry.
	Attempts int
	// InitialBackoff is the first retry delay; zero uses the backoff
	// library default.
	InitialBackoff time.Duration
}

func (p Policy) attempts() uint {
	if p.Mode != DropRetry || p.Attempts < 1 {
		return 1
	}
	return uint(p.Attempts)
}
