package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	ErrEmptyJob      = errors.New("job carries nothing to write")
	ErrNotDispatched = errors.New("job not dispatched")
	ErrWriterPanic   = errors.New("writer panicked")
)
