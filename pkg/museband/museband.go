package museband

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/muse/frame/eeg"
	"github.com/norasector/museband/pkg/museband/device"
	"github.com/norasector/museband/pkg/util"
	"github.com/norasector/museband/pkg/viz"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	notificationBuffer = 64
	defaultPlotWindow  = 4 * muse.SampleRate
	defaultPlotRange   = 500.0 // µV
)

type Museband struct {
	device        device.Device
	opts          Options
	writeAPI      api.WriteAPI
	vizServer     *viz.Server
	logger        zerolog.Logger
	notifications chan muse.Notification
	assembler     *eeg.Assembler
	reporter      *eeg.LogReporter
	plotters      []*viz.ChannelPlotter

	mu     sync.Mutex
	cancel context.CancelFunc
}

type MusebandOption func(m *Museband) error

func WithInfluxDB(influxClient api.WriteAPI) MusebandOption {
	return func(m *Museband) error {
		m.writeAPI = influxClient
		return nil
	}
}

func WithImageServer(vizServer *viz.Server) MusebandOption {
	return func(m *Museband) error {
		m.vizServer = vizServer
		return nil
	}
}

func WithLogger(logger zerolog.Logger) MusebandOption {
	return func(m *Museband) error {
		m.logger = logger
		return nil
	}
}

func NewMuseband(device device.Device, options Options, opts ...MusebandOption) (*Museband, error) {
	if device == nil {
		return nil, fmt.Errorf("must specify a device")
	}

	m := &Museband{
		device:        device,
		opts:          options,
		writeAPI:      &util.MockWriteAPI{}, // overwritten with option
		notifications: make(chan muse.Notification, notificationBuffer),
		logger:        log.Logger,
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}

	if m.opts.PollInterval < 0 {
		return nil, fmt.Errorf("poll interval must not be negative")
	}
	if m.opts.PlotWindow == 0 {
		m.opts.PlotWindow = defaultPlotWindow
	}
	if m.opts.PlotRange == 0 {
		m.opts.PlotRange = defaultPlotRange
	}

	m.reporter = eeg.NewLogReporter(m.logger, m.writeAPI)

	assemblerOpts := []eeg.AssemblerOption{
		eeg.WithReporter(m.reporter),
		eeg.WithLogger(m.logger),
	}
	if m.opts.Trigger != nil {
		assemblerOpts = append(assemblerOpts, eeg.WithTrigger(m.opts.Trigger))
	}
	if m.opts.FlushPolicy != nil {
		assemblerOpts = append(assemblerOpts, eeg.WithFlushPolicy(m.opts.FlushPolicy))
	}
	m.assembler = eeg.NewAssembler(m, assemblerOpts...)

	if m.vizServer != nil {
		for ch := 0; ch < muse.NumChannels; ch++ {
			p := viz.NewChannelPlotter(muse.Channel(ch), m.opts.PlotWindow, m.opts.PlotRange)
			m.plotters = append(m.plotters, p)
			m.vizServer.Register("eeg", p)
		}
	}

	return m, nil
}

// Reporter exposes diagnostic counts.
func (m *Museband) Reporter() *eeg.LogReporter {
	return m.reporter
}

// Stop asks the headband to stop streaming, then disconnects.
func (m *Museband) Stop() error {
	if err := m.StopStreaming(); err != nil {
		m.logger.Warn().Err(err).Msg("error stopping stream")
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Unlock()

	if m.vizServer != nil {
		m.vizServer.Stop(context.TODO())
	}
	return m.device.Stop()
}

// Start connects to the device, starts streaming and runs until parent ends,
// the device runs dry, Stop is called or a component fails.
func (m *Museband) Start(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()
	defer cancel()

	if err := m.device.Connect(ctx); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}
	if err := m.StartStreaming(); err != nil {
		return err
	}

	eg, ctx := errgroup.WithContext(ctx)

	processor := eeg.NewProcessor(m.notifications, m.assembler, m.reporter, m.writeAPI, m.opts.PollInterval, m.logger)
	eg.Go(func() error {
		if err := processor.Start(ctx); err != nil {
			return err
		}
		// The device is exhausted and every notification was processed.
		cancel()
		return nil
	})

	for _, output := range m.opts.Outputs {
		thisOutput := output
		eg.Go(func() error {
			return thisOutput.Start(ctx)
		})
	}

	if m.vizServer != nil {
		eg.Go(func() error {
			go func() {
				<-ctx.Done()
				m.vizServer.Stop(context.Background())
			}()
			return m.vizServer.Run(ctx)
		})
	}

	eg.Go(func() error {
		defer close(m.notifications)
		err := m.device.Start(ctx, m.notifications)
		if err == nil {
			m.logger.Info().Msg("device finished")
		}
		return err
	})

	err := eg.Wait()
	if errors.Is(err, context.Canceled) && parent.Err() == nil {
		// Stopped, or playback ran out.
		return nil
	}
	return err
}
