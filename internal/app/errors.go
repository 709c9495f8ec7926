package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted    = errors.New("service not started")
	ErrComputation   = errors.New("score computation failed")
	ErrPersistence   = errors.New("standing persistence failed")
	ErrRecomputeTime = errors.New("recompute exceeded its time budget")
)
