package publish

import (
	"fmt"
)

type Kind int

const (
	// Transient failures are safe to retry on a later run; the record stays
	// unpublished.
	Transient Kind = iota
	// Fatal failures mean the forum rejects the whole configuration
	// (credentials, category), so the rest of the batch is pointless.
	Fatal
)

func (k Kind) String() string {
	if k == Fatal {
		return "fatal"
	}
	return "transient"
}

// PublishError is returned by a Poster for a single failed post.
type PublishError struct {
	Kind       Kind
	StatusCode int // 0 for network errors
	Err        error
}

func (e *PublishError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("publish %s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("publish %s: %v", e.Kind, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// PublishConfigError aborts a publish batch.
type PublishConfigError struct {
	Identity string // record being posted when the batch aborted
	Err      error
}

func (e *PublishConfigError) Error() string {
	return fmt.Sprintf("publish aborted at %s: forum configuration rejected: %v", e.Identity, e.Err)
}

func (e *PublishConfigError) Unwrap() error { return e.Err }
