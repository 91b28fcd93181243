package raop

import "errors"

// ErrFatal marks the Fatal error class from spec.md §7: the session ends
// immediately, with no RTSP response written, rather than replying with a
// status code.
var ErrFatal = errors.New("raop: fatal session error")

// ErrInternal marks the Internal error class from spec.md §7: a 500
// response is sent (CSeq preserved) and the session survives.
var ErrInternal = errors.New("raop: internal session error")
