package transport

import "errors"

// ErrBufferBusy is returned by SendRequest when the request slot already
// holds an unconsumed message.
var ErrBufferBusy = errors.New("transport: request slot busy")

// ErrOversizeMessage is returned when a framed message would exceed
// MaxMessageSize.
var ErrOversizeMessage = errors.New("transport: message exceeds MaxMessageSize")

// ErrCorrelationMismatch is returned by WaitResponse when the posted
// response does not correlate to the message id the caller is waiting on.
var ErrCorrelationMismatch = errors.New("transport: response message id does not match request")

// ErrBufferTooSmall is returned by WaitResponse when the caller's
// destination buffer cannot hold the posted response.
var ErrBufferTooSmall = errors.New("transport: destination buffer too small for response")

// ErrNotAttached is returned when an operation is attempted against a
// shared memory object that does not exist.
var ErrNotAttached = errors.New("transport: shared memory segment does not exist")
