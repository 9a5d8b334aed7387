package sim

import "errors"

var (
	// ErrIllegalTransition is returned when an operation is not allowed from
	// the current session status, e.g. a rescan while a scan is in flight.
	ErrIllegalTransition = errors.New("illegal transition")
	// ErrClosed is returned by operations on a closed controller.
	ErrClosed = errors.New("controller closed")
)
