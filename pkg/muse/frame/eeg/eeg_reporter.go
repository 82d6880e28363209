package eeg

import (
	"errors"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/museband/pkg/muse"
	"github.com/rs/zerolog"
)

// LogReporter logs diagnostics and keeps running counts of each kind.
// If writeAPI is set each diagnostic is also written as a point.
type LogReporter struct {
	logger   zerolog.Logger
	writeAPI api.WriteAPI

	mu     sync.Mutex
	counts map[string]int
}

func NewLogReporter(logger zerolog.Logger, writeAPI api.WriteAPI) *LogReporter {
	return &LogReporter{
		logger:   logger,
		writeAPI: writeAPI,
		counts:   make(map[string]int),
	}
}

func diagnosticKind(err error) string {
	switch {
	case errors.Is(err, muse.ErrUnknownSource):
		return "unknown_source"
	case errors.Is(err, muse.ErrMalformedPacket):
		return "malformed_packet"
	case errors.Is(err, muse.ErrSequenceGap):
		return "sequence_gap"
	case errors.Is(err, muse.ErrSinkFailure):
		return "sink_failure"
	case errors.Is(err, muse.ErrInvariantViolation):
		return "invariant_violation"
	default:
		return "other"
	}
}

func (r *LogReporter) Report(err error) {
	if err == nil {
		return
	}
	kind := diagnosticKind(err)

	r.mu.Lock()
	r.counts[kind]++
	r.mu.Unlock()

	fields := map[string]interface{}{"count": 1}

	var (
		gap     *muse.SequenceGapError
		unknown *muse.UnknownSourceError
	)
	switch {
	case errors.As(err, &gap):
		fields["missed"] = gap.Missed()
		r.logger.Warn().
			Uint16("expected", gap.Expected).
			Uint16("observed", gap.Observed).
			Int("missed", gap.Missed()).
			Msg("missing sample")
	case errors.As(err, &unknown):
		r.logger.Warn().Str("source", unknown.Source).Msg("received data from unknown source")
	case kind == "invariant_violation":
		r.logger.Error().Err(err).Msg("dropping frame")
	default:
		r.logger.Warn().Err(err).Str("kind", kind).Msg("eeg diagnostic")
	}

	if r.writeAPI != nil {
		go r.writeAPI.WritePoint(influxdb2.NewPoint("eeg.diagnostic",
			map[string]string{
				"kind": kind,
			},
			fields, time.Now()))
	}
}

// Count returns how many diagnostics of kind were reported.
func (r *LogReporter) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[kind]
}
