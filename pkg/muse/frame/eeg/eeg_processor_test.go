package eeg

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/muse/packet"
	"github.com/norasector/museband/pkg/util"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notification(t *testing.T, ch int, seq uint16, code uint16) muse.Notification {
	var codes [muse.SamplesPerBurst]uint16
	for i := range codes {
		codes[i] = code
	}
	buf, err := packet.Encode(seq, codes)
	require.NoError(t, err)
	return muse.Notification{Source: muse.EEGUUIDs[ch], Payload: buf}
}

func TestProcessorDecodesAndAssembles(t *testing.T) {
	a, sink, _, _ := newTestAssembler()
	reporter := NewLogReporter(zerolog.Nop(), &util.MockWriteAPI{})
	a.reporter = reporter

	ch := make(chan muse.Notification, 16)
	ch <- notification(t, 0, 100, 2048)
	ch <- notification(t, 1, 100, 2048)
	ch <- muse.Notification{Source: muse.EEGUUIDs[2], Payload: []byte{0x01, 0x02}}
	ch <- notification(t, 2, 100, 2048)
	ch <- notification(t, 3, 101, 2049)
	ch <- muse.Notification{Source: "273e0007-4c4d-454d-96be-f03bac821358", Payload: make([]byte, muse.PacketLength)}
	close(ch)

	p := NewProcessor(ch, a, reporter, &util.MockWriteAPI{}, 0, zerolog.Nop())
	require.NoError(t, p.Start(context.Background()))

	require.Len(t, sink.frames, 1)
	f := sink.frames[0]
	for i := 0; i < muse.SamplesPerBurst; i++ {
		assert.Equal(t, 0.0, f.Samples[0][i])
		assert.Equal(t, 0.48828125, f.Samples[3][i])
	}

	assert.Equal(t, 1, reporter.Count("malformed_packet"))
	assert.Equal(t, 1, reporter.Count("unknown_source"))
	assert.Equal(t, 1, reporter.Count("sequence_gap"))
	assert.Equal(t, 0, reporter.Count("sink_failure"))
}

func TestProcessorMalformedPacketLeavesStateAlone(t *testing.T) {
	a, sink, reporter, _ := newTestAssembler()
	p := NewProcessor(nil, a, reporter, nil, 0, zerolog.Nop())

	p.Handle(notification(t, 0, 3, 100))
	before := a.buf

	p.Handle(muse.Notification{Source: muse.EEGUUIDs[3], Payload: make([]byte, muse.PacketLength-1)})
	assert.Equal(t, before, a.buf)
	assert.Empty(t, sink.frames)
	require.Len(t, reporter.errors, 1)
	assert.True(t, errors.Is(reporter.errors[0], muse.ErrMalformedPacket))
}

func TestProcessorReportsInvariantViolation(t *testing.T) {
	reporter := &captureReporter{}
	a := NewAssembler(&captureSink{},
		WithClock(func() float64 { return 0 }),
		WithReporter(reporter),
		WithLogger(zerolog.Nop()))
	p := NewProcessor(nil, a, reporter, nil, 0, zerolog.Nop())

	p.Handle(notification(t, 3, 1, 2048))
	require.Len(t, reporter.errors, 1)
	assert.True(t, errors.Is(reporter.errors[0], muse.ErrInvariantViolation))
}

func TestProcessorPollsFlushPolicy(t *testing.T) {
	sink := &captureSink{}
	a := NewAssembler(sink,
		WithFlushPolicy(FlushAfter(time.Millisecond)),
		WithReporter(&captureReporter{}),
		WithLogger(zerolog.Nop()))

	ch := make(chan muse.Notification, 1)
	ch <- notification(t, 0, 1, 2048)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewProcessor(ch, a, &captureReporter{}, nil, time.Millisecond, zerolog.Nop())
	done := make(chan error, 1)
	go func() { done <- p.Start(ctx) }()

	require.Eventually(t, func() bool {
		sink.mu.Lock()
		defer sink.mu.Unlock()
		return len(sink.frames) == 1
	}, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	sink.mu.Lock()
	assert.True(t, sink.frames[0].Flushed)
	sink.mu.Unlock()
}

func TestLogReporterCounts(t *testing.T) {
	r := NewLogReporter(zerolog.Nop(), nil)
	r.Report(nil)
	r.Report(&muse.SequenceGapError{Expected: 1, Observed: 3})
	r.Report(&muse.SequenceGapError{Expected: 5, Observed: 6})
	r.Report(&muse.SinkError{Err: errors.New("closed")})
	r.Report(errors.New("something else"))

	assert.Equal(t, 2, r.Count("sequence_gap"))
	assert.Equal(t, 1, r.Count("sink_failure"))
	assert.Equal(t, 1, r.Count("other"))
	assert.Equal(t, 0, r.Count("unknown_source"))
}
