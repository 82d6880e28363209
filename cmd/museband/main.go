package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/museband/pkg/muse/frame"
	"github.com/norasector/museband/pkg/muse/frame/eeg"
	"github.com/norasector/museband/pkg/museband"
	"github.com/norasector/museband/pkg/museband/config"
	"github.com/norasector/museband/pkg/museband/device"
	"github.com/norasector/museband/pkg/museband/device/ble"
	"github.com/norasector/museband/pkg/museband/device/file"
	"github.com/norasector/museband/pkg/museband/device/synthetic"
	"github.com/norasector/museband/pkg/museband/output"
	"github.com/norasector/museband/pkg/util"
	"github.com/norasector/museband/pkg/viz"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.InfoLevel)
	configFile := flag.String("config", "museband.yaml", "YAML config file")
	flag.Parse()

	opts, err := config.Load(*configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error loading config")
	}
	if opts.LogLevel != "" {
		level, err := zerolog.ParseLevel(opts.LogLevel)
		if err != nil {
			log.Fatal().Err(err).Str("log_level", opts.LogLevel).Msg("invalid log level")
		}
		log.Logger = log.Logger.Level(level)
	}

	var dev device.Device
	switch opts.Device {
	case config.DeviceFile:
		log.Info().Str("device", "file").Str("path", opts.PlaybackLocation).Msg("initializing device...")
		dev, err = file.NewFileDevice(opts.PlaybackLocation, opts.PlaybackInterval)
		if err != nil {
			log.Fatal().Str("device", "file").Err(err).Msg("failed to open capture")
		}
	case config.DeviceSynthetic:
		log.Info().Str("device", "synthetic").Msg("initializing device...")
		dev = synthetic.NewSyntheticDevice()
	default:
		log.Info().Str("device", "ble").Str("name", opts.BLE.Name).Str("address", opts.BLE.Address).Msg("initializing device...")
		dev = ble.NewBLEDevice(opts.BLE.Name, opts.BLE.Address, opts.BLE.ScanTimeout)
	}

	if opts.RecordLocation != "" {
		dev, err = file.NewRecordingDevice(dev, opts.RecordLocation)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create recording file")
		}
	}

	var trigger frame.TriggerPolicy = eeg.LastChannelTrigger{}
	if opts.Trigger == config.TriggerAllChannels {
		trigger = eeg.AllChannelsTrigger{}
	}
	var flush frame.FlushPolicy = eeg.NeverFlush{}
	if opts.FlushTimeout > 0 {
		flush = eeg.FlushAfter(opts.FlushTimeout)
	}

	var writeAPI api.WriteAPI = &util.MockWriteAPI{}
	if opts.InfluxDB.Host != "" {
		client := influxdb2.NewClient(opts.InfluxDB.Host, "")
		defer client.Close()
		writeAPI = client.WriteAPI(opts.InfluxDB.Organization, opts.InfluxDB.Bucket)
	}

	var outputs []museband.FrameOutput
	if opts.CSVOutput != "" {
		csvFile, err := os.Create(opts.CSVOutput)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create csv output")
		}
		defer csvFile.Close()
		outputs = append(outputs, output.NewSimpleFrameOutput(csvFile))
	}
	if len(opts.OutputDestinations) > 0 {
		outputs = append(outputs, output.NewFrameUDPOutput(opts.OutputDestinations, writeAPI))
	}

	bandOpts := []museband.MusebandOption{
		museband.WithInfluxDB(writeAPI),
		museband.WithLogger(log.Logger),
	}
	if opts.VizServer.Port > 0 {
		bandOpts = append(bandOpts, museband.WithImageServer(viz.NewServer(opts.VizServer.Port, opts.VizServer.UpdateInterval)))
	}

	band, err := museband.NewMuseband(dev,
		museband.Options{
			Trigger:      trigger,
			FlushPolicy:  flush,
			PollInterval: opts.PollInterval,
			Outputs:      outputs,
		}, bandOpts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create museband")
	}

	eg, ctx := errgroup.WithContext(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eg.Go(func() error {
		select {
		case <-sigChan:
		case <-ctx.Done():
		}
		return band.Stop()
	})

	eg.Go(func() error {
		if err := band.Start(ctx); err != nil {
			return err
		}
		// Playback finished; release the signal goroutine.
		return context.Canceled
	})

	if err := eg.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("exited program")
	}
}
