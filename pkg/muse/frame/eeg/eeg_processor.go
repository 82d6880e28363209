package eeg

import (
	"context"
	"errors"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/muse/frame"
	"github.com/norasector/museband/pkg/muse/packet"
	"github.com/norasector/museband/pkg/util"
	"github.com/rs/zerolog"
)

type EEGProcessor struct {
	notifications <-chan muse.Notification
	assembler     *Assembler
	reporter      frame.Reporter
	writeAPI      api.WriteAPI
	logger        zerolog.Logger
	pollInterval  time.Duration
}

// NewProcessor decodes notifications and feeds them to the assembler. If
// pollInterval is positive the assembler's flush policy is checked on
// that interval.
func NewProcessor(notifications <-chan muse.Notification, assembler *Assembler, reporter frame.Reporter, writeAPI api.WriteAPI, pollInterval time.Duration, logger zerolog.Logger) *EEGProcessor {
	return &EEGProcessor{
		notifications: notifications,
		assembler:     assembler,
		reporter:      reporter,
		writeAPI:      writeAPI,
		pollInterval:  pollInterval,
		logger:        logger,
	}
}

func (p *EEGProcessor) Start(ctx context.Context) error {
	var poll <-chan time.Time
	if p.pollInterval > 0 {
		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-poll:
			p.check(p.assembler.Poll())

		case n, ok := <-p.notifications:
			if !ok {
				return nil
			}
			p.Handle(n)
		}
	}
}

// Handle processes one notification synchronously.
func (p *EEGProcessor) Handle(n muse.Notification) {
	metrics := map[string]interface{}{
		"payload_bytes": len(n.Payload),
	}
	start := time.Now()

	defer func() {
		if p.writeAPI == nil {
			return
		}
		metrics["duration"] = time.Since(start).Microseconds()
		go p.writeAPI.WritePoint(influxdb2.NewPoint("eeg.packet.processed",
			map[string]string{
				"source": n.Source,
			},
			metrics, start))
	}()

	seq, samples, err := packet.Decode(n.Payload)
	if err != nil {
		metrics["malformed"] = 1
		p.reporter.Report(err)
		return
	}
	metrics["sequence"] = int(seq)

	var assembleErr error
	metrics["assembler_duration"] = util.TimeOperationMicroseconds(func() {
		assembleErr = p.assembler.OnBurst(muse.Burst{
			Source:   n.Source,
			Sequence: seq,
			Samples:  samples,
		})
	})
	p.check(assembleErr)
}

func (p *EEGProcessor) check(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, muse.ErrInvariantViolation) {
		p.reporter.Report(err)
		return
	}
	p.logger.Error().Err(err).Msg("assembler error")
}
