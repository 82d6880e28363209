package frame

import "github.com/norasector/museband/pkg/muse"

// Assembler takes decoded bursts from individual channels and assembles them into frames.
type Assembler interface {
	// OnBurst must be called once per decoded burst, in arrival order.
	// Per-burst problems are sent to a Reporter; only errors that abandon
	// the current cycle are returned.
	OnBurst(muse.Burst) error
}

// Sink receives completed frames. The frame is a copy owned by the sink.
type Sink interface {
	Accept(*muse.Frame) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(*muse.Frame) error

func (f SinkFunc) Accept(fr *muse.Frame) error { return f(fr) }

// Reporter receives non-fatal diagnostics: unknown sources, malformed
// packets, sequence gaps and sink failures.
type Reporter interface {
	Report(error)
}

type ReporterFunc func(error)

func (f ReporterFunc) Report(err error) { f(err) }

// TriggerPolicy decides whether the burst just stored on ch completes the
// current cycle. received marks the channels stored so far this cycle,
// including ch.
type TriggerPolicy interface {
	Complete(ch muse.Channel, received [muse.NumChannels]bool) bool
}

// FlushPolicy decides whether a cycle that opened at opened (unix seconds)
// should be emitted without waiting for the trigger.
type FlushPolicy interface {
	Expired(opened, now float64) bool
}
