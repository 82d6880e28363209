package muse

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedPacket    = errors.New("malformed packet")
	ErrUnknownSource      = errors.New("unknown source")
	ErrSequenceGap        = errors.New("sequence gap")
	ErrSinkFailure        = errors.New("sink failure")
	ErrInvariantViolation = errors.New("assembler invariant violation: no arrival time to anchor frame")
)

type MalformedPacketError struct {
	Length int
}

func (e *MalformedPacketError) Error() string {
	return fmt.Sprintf("malformed packet: got %d bytes, want %d", e.Length, PacketLength)
}

func (e *MalformedPacketError) Is(target error) bool { return target == ErrMalformedPacket }

type UnknownSourceError struct {
	Source string
}

func (e *UnknownSourceError) Error() string {
	return fmt.Sprintf("unknown source %q", e.Source)
}

func (e *UnknownSourceError) Is(target error) bool { return target == ErrUnknownSource }

// SequenceGapError reports a discontinuity in the 16-bit sequence counter.
// It is informational: the frame is still emitted.
type SequenceGapError struct {
	Expected uint16
	Observed uint16
}

func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("missing sample: expected sequence %d, got %d", e.Expected, e.Observed)
}

func (e *SequenceGapError) Is(target error) bool { return target == ErrSequenceGap }

// Missed is the number of bursts skipped, modulo 65536.
func (e *SequenceGapError) Missed() int {
	return int(e.Observed - e.Expected)
}

type SinkError struct {
	Err error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink failure: %v", e.Err)
}

func (e *SinkError) Is(target error) bool { return target == ErrSinkFailure }

func (e *SinkError) Unwrap() error { return e.Err }
