package eeg

import (
	"fmt"
	"math"
	"sync"

	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/muse/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type frameBuffer struct {
	samples [muse.NumChannels][muse.SamplesPerBurst]float64
	// 0 means the channel has not arrived this cycle.
	arrivals [muse.NumChannels]float64

	lastSequence uint16
	seeded       bool
}

func (b *frameBuffer) resetCycle() {
	b.samples = [muse.NumChannels][muse.SamplesPerBurst]float64{}
	b.arrivals = [muse.NumChannels]float64{}
}

func (b *frameBuffer) received() (ret [muse.NumChannels]bool) {
	for i, t := range b.arrivals {
		ret[i] = t != 0
	}
	return
}

// opened is the earliest arrival of the cycle, 0 if nothing arrived.
func (b *frameBuffer) opened() float64 {
	anchor := math.Inf(1)
	for _, t := range b.arrivals {
		if t != 0 && t < anchor {
			anchor = t
		}
	}
	if math.IsInf(anchor, 1) {
		return 0
	}
	return anchor
}

// Assembler buffers per-channel bursts and emits a Frame each time the
// trigger policy completes a cycle. All methods are safe for concurrent use.
type Assembler struct {
	mu  sync.Mutex
	buf frameBuffer

	channels muse.ChannelMap
	sink     frame.Sink
	reporter frame.Reporter
	trigger  frame.TriggerPolicy
	flush    frame.FlushPolicy
	clock    muse.Clock
	logger   zerolog.Logger
}

type AssemblerOption func(a *Assembler)

func WithClock(clock muse.Clock) AssemblerOption {
	return func(a *Assembler) {
		a.clock = clock
	}
}

func WithTrigger(trigger frame.TriggerPolicy) AssemblerOption {
	return func(a *Assembler) {
		a.trigger = trigger
	}
}

func WithFlushPolicy(flush frame.FlushPolicy) AssemblerOption {
	return func(a *Assembler) {
		a.flush = flush
	}
}

func WithReporter(reporter frame.Reporter) AssemblerOption {
	return func(a *Assembler) {
		a.reporter = reporter
	}
}

func WithChannelMap(channels muse.ChannelMap) AssemblerOption {
	return func(a *Assembler) {
		a.channels = channels
	}
}

func WithLogger(logger zerolog.Logger) AssemblerOption {
	return func(a *Assembler) {
		a.logger = logger
	}
}

func NewAssembler(sink frame.Sink, opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		sink:     sink,
		channels: muse.DefaultChannelMap(),
		trigger:  LastChannelTrigger{},
		flush:    NeverFlush{},
		clock:    muse.WallClock,
		logger:   log.Logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.reporter == nil {
		a.reporter = NewLogReporter(a.logger, nil)
	}
	return a
}

// Reset discards the open cycle and forgets the last sequence number, so
// the next burst is treated as the first.
func (a *Assembler) Reset() {
	a.mu.Lock()
	a.buf = frameBuffer{}
	a.mu.Unlock()
}

func (a *Assembler) OnBurst(burst muse.Burst) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch, ok := a.channels.Resolve(burst.Source)
	if !ok {
		a.reporter.Report(&muse.UnknownSourceError{Source: burst.Source})
		return nil
	}

	if !a.buf.seeded {
		a.buf.lastSequence = burst.Sequence - 1
		a.buf.seeded = true
	}

	a.buf.samples[ch] = burst.Samples
	a.buf.arrivals[ch] = a.clock()

	if !a.trigger.Complete(ch, a.buf.received()) {
		return nil
	}

	if expected := a.buf.lastSequence + 1; burst.Sequence != expected {
		a.reporter.Report(&muse.SequenceGapError{Expected: expected, Observed: burst.Sequence})
	}
	a.buf.lastSequence = burst.Sequence

	return a.finalize(burst.Sequence, false)
}

// Poll emits the open cycle if the flush policy says it has waited long
// enough. Sequence tracking is not affected.
func (a *Assembler) Poll() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	opened := a.buf.opened()
	if opened == 0 || !a.flush.Expired(opened, a.clock()) {
		return nil
	}

	a.logger.Debug().
		Float64("opened", opened).
		Int("contributing", countReceived(a.buf.received())).
		Msg("flushing incomplete cycle")

	return a.finalize(a.buf.lastSequence, true)
}

// finalize emits the buffered cycle and resets it. The buffer is reset on
// every path out of this function.
func (a *Assembler) finalize(seq uint16, flushed bool) error {
	defer a.buf.resetCycle()

	anchor := a.buf.opened()
	if anchor == 0 {
		return fmt.Errorf("sequence %d: %w", seq, muse.ErrInvariantViolation)
	}

	out := &muse.Frame{
		Samples:      a.buf.samples,
		Sequence:     seq,
		Contributing: countReceived(a.buf.received()),
		Flushed:      flushed,
	}
	for i := range out.Timestamps {
		k := i - muse.SamplesPerBurst
		out.Timestamps[i] = float64(k)/muse.SampleRate + anchor
	}

	if err := a.emit(out); err != nil {
		a.reporter.Report(&muse.SinkError{Err: err})
	}
	return nil
}

func (a *Assembler) emit(f *muse.Frame) (err error) {
	if a.sink == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
	}()
	return a.sink.Accept(f)
}

func countReceived(received [muse.NumChannels]bool) int {
	n := 0
	for _, r := range received {
		if r {
			n++
		}
	}
	return n
}
