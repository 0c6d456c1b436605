package avhwdecoder

import (
	"fmt"

	"github.com/xaionaro-go/avhwdecoder/types"
)

// ErrUnreadableInput: the client submitted a bitstream buffer that could not
// be mapped. Terminal for this Decoder instance.
type ErrUnreadableInput struct {
	BufferID types.BufferID
	Err      error
}

func (e ErrUnreadableInput) Error() string {
	return fmt.Sprintf("unable to map bitstream buffer %d: %v", e.BufferID, e.Err)
}

func (e ErrUnreadableInput) Unwrap() error {
	return e.Err
}

// ErrInvalidArgument: the client violated the output-target protocol (e.g.
// assigned a wrong number of pictures, or pictures of a wrong size).
// Terminal for this Decoder instance.
type ErrInvalidArgument struct {
	Err error
}

func (e ErrInvalidArgument) Error() string {
	return fmt.Sprintf("invalid argument: %v", e.Err)
}

func (e ErrInvalidArgument) Unwrap() error {
	return e.Err
}

// ErrPlatformFailure: the decode engine or the platform failed, or the
// client issued a request illegal in the current state. Terminal for this
// Decoder instance; any retry policy (e.g. building a fresh instance) is the
// client's business.
type ErrPlatformFailure struct {
	Err error
}

func (e ErrPlatformFailure) Error() string {
	return fmt.Sprintf("platform failure: %v", e.Err)
}

func (e ErrPlatformFailure) Unwrap() error {
	return e.Err
}
