package broker

import "errors"

// ErrQueueFull is returned by SubmitRequest when the broker is at capacity.
var ErrQueueFull = errors.New("broker: request queue full")
