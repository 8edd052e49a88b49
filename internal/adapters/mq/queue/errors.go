package queue

import "errors"

// ErrFull is returned by callers that give up after a rejected Enqueue.
var ErrFull = errors.New("queue full or closed")
