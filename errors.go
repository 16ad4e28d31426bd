package discovery

import (
	"context"
	"errors"
	"fmt"

	"github.com/FrenchMajesty/hue-discovery/pkg/types"
)

var (
	// ErrInvalidInput is returned when paramA or paramB is outside the configured range
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled is returned when the caller's context ends before discovery completes.
	// It is not a failure and should not be surfaced as one.
	ErrCancelled = errors.New("discovery cancelled")

	// ErrClosed is returned by discoveries started after Close
	ErrClosed = errors.New("engine is shutting down")

	// ErrSuperseded is the cancellation cause for a Runner discovery replaced by a newer one
	ErrSuperseded = errors.New("superseded by a newer discovery")
)

// RemoteError is the error type for failed remote lookups
type RemoteError = types.RemoteError

// IsCancelled reports whether err is a cancelled outcome
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// AsRemoteError extracts the remote lookup failure from err, if any
func AsRemoteError(err error) (*RemoteError, bool) {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr, true
	}
	return nil, false
}

// cancelledError builds the cancelled outcome for a finished context, keeping
// both ctx.Err() and any cancellation cause reachable through errors.Is.
func cancelledError(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		err = context.Canceled
	}

	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, err) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return fmt.Errorf("%w: %w: %w", ErrCancelled, err, cause)
}

// asRemoteError normalizes a classifier failure into a *RemoteError
func asRemoteError(key types.QueryKey, err error) error {
	if _, ok := AsRemoteError(err); ok {
		return err
	}
	return &RemoteError{
		Kind: types.RemoteErrorNetwork,
		Key:  key,
		Err:  err,
	}
}
