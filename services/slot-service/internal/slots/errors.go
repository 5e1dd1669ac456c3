package slots

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrConfig marks a misconfigured appointment type or query. Callers surface it as a 4xx.
	ErrConfig = errors.New("invalid configuration")
	// ErrNotFound marks an unknown appointment type or an ineligible staff user.
	ErrNotFound = errors.New("not found")
	// ErrCollaborator marks a failure of a backing store.
	ErrCollaborator = errors.New("collaborator failed")
	// ErrTimeout marks a query that ran past its deadline or was cancelled.
	ErrTimeout = errors.New("slot query timed out")
	// ErrInternalInvariant marks inconsistent data that indicates a bug.
	ErrInternalInvariant = errors.New("internal invariant violated")
)

func checkpoint(ctx context.Context, stage string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: stopped after %s: %w", ErrTimeout, stage, err)
	}
	return nil
}

// collaboratorError wraps a store failure, preferring ErrTimeout when the context is done.
func collaboratorError(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", ErrTimeout, what, ctx.Err())
	}
	if errors.Is(err, ErrInternalInvariant) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %w", ErrCollaborator, what, err)
}
