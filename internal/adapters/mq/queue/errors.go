package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrClosed   = errors.New("queue closed")
	ErrFull     = errors.New("queue shard full")
	ErrBadShard = errors.New("shard index out of range")
)
