package vidpipe

import "fmt"

// ErrInvalidArgument means the caller passed bad input (or called an
// encode-direction method on a decode session). No session state was
// changed.
type ErrInvalidArgument struct {
	Err error
}

func (e ErrInvalidArgument) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid argument: %v", e.Err)
	}
	return "invalid argument"
}

func (e ErrInvalidArgument) Unwrap() error {
	return e.Err
}

// ErrDecodeSetup means creating the parser or the decoder failed. This is
// fatal: the session is unusable and must be discarded.
type ErrDecodeSetup struct {
	Err error
}

func (e ErrDecodeSetup) Error() string {
	return fmt.Sprintf("decoder setup failed: %v", e.Err)
}

func (e ErrDecodeSetup) Unwrap() error {
	return e.Err
}

// ErrDecode means the engine rejected the data, or mapping/conversion/copy
// failed. Transient: the current frame is lost, but the session remains
// usable for the next call.
type ErrDecode struct {
	Err error
}

func (e ErrDecode) Error() string {
	return fmt.Sprintf("unable to decode: %v", e.Err)
}

func (e ErrDecode) Unwrap() error {
	return e.Err
}

// ErrEmptyStream means two consecutive packets resolved to no picture:
// the input is pure stream metadata, not a latency gap that would resolve
// itself.
type ErrEmptyStream struct{}

func (e ErrEmptyStream) Error() string {
	return "input is just stream metadata"
}
