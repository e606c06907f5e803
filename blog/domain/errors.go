package domain

import (
	"github.com/jmgilman/go/errors"
)

var (
	// ErrMissingParameter is returned when id, or both w and orig, are absent.
	ErrMissingParameter = errors.New(errors.CodeInvalidInput, "missing parameter")

	// ErrInvalidParameter is returned for a w that is not a usable width.
	ErrInvalidParameter = errors.New(errors.CodeInvalidInput, "invalid parameter")

	// ErrUnknownImage is returned when the registry has no entry for an id.
	ErrUnknownImage = errors.New(errors.CodeNotFound, "img not found")

	// ErrSourceUnreadable is returned when a registered source cannot be read.
	ErrSourceUnreadable = errors.New(errors.CodeInternal, "source image unreadable")

	// ErrProcessingFailure is returned when decoding, resizing or encoding fails.
	ErrProcessingFailure = errors.New(errors.CodeExecutionFailed, "image processing failed")

	// ErrQueueFull is returned when the resize queue has no free slot.
	ErrQueueFull = errors.New(errors.CodeUnavailable, "resize queue is full")

	// ErrJobTimeout is returned when a resize job exceeds its deadline.
	ErrJobTimeout = errors.New(errors.CodeTimeout, "resize job timed out")

	// ErrWorkerClosed is returned for jobs submitted to, or pending in, a closed worker.
	ErrWorkerClosed = errors.New(errors.CodeUnavailable, "resize worker is closed")

	// ErrCacheMiss is returned by a CacheStore when a key is not (yet) visible.
	ErrCacheMiss = errors.New(errors.CodeNotFound, "not in cache")
)
