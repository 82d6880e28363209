package config

import (
	"fmt"
	"os"
	"time"

	"github.com/norasector/museband/pkg/muse"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Device           string        `yaml:"device"`
	LogLevel         string        `yaml:"log_level"`
	BLE              BLE           `yaml:"ble"`
	PlaybackLocation string        `yaml:"playback_location"`
	PlaybackInterval time.Duration `yaml:"playback_interval"`
	RecordLocation   string        `yaml:"record_location"`

	// Trigger is "last_channel" (default) or "all_channels".
	Trigger      string        `yaml:"trigger"`
	FlushTimeout time.Duration `yaml:"flush_timeout"`
	PollInterval time.Duration `yaml:"poll_interval"`

	CSVOutput          string              `yaml:"csv_output"`
	OutputDestinations []OutputDestination `yaml:"output_destinations"`
	VizServer          struct {
		Port           int           `yaml:"port"`
		UpdateInterval time.Duration `yaml:"update_interval_ms"`
	} `yaml:"viz_server"`
	InfluxDB struct {
		Host         string `yaml:"host"`
		Organization string `yaml:"organization"`
		Bucket       string `yaml:"bucket"`
	} `yaml:"influxdb"`
}

type BLE struct {
	// Name matches the advertised local name. Empty matches any name
	// containing "Muse".
	Name        string        `yaml:"name"`
	Address     string        `yaml:"address"`
	ScanTimeout time.Duration `yaml:"scan_timeout"`
}

type OutputDestination struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

const (
	DeviceBLE       = "ble"
	DeviceFile      = "file"
	DeviceSynthetic = "synthetic"

	TriggerLastChannel = "last_channel"
	TriggerAllChannels = "all_channels"
)

// Load reads a YAML config file and fills in defaults.
func Load(path string) (*Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	return Parse(contents)
}

func Parse(contents []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(contents, &c); err != nil {
		return nil, fmt.Errorf("error unmarshaling yaml: %w", err)
	}

	switch {
	case c.PlaybackLocation != "" && c.Device == "":
		c.Device = DeviceFile
	case c.PlaybackLocation != "" && c.Device != DeviceFile:
		return nil, fmt.Errorf("playback_location %q requires device %q, got %q", c.PlaybackLocation, DeviceFile, c.Device)
	case c.Device == "":
		c.Device = DeviceBLE
	}
	if c.Trigger == "" {
		c.Trigger = TriggerLastChannel
	}
	if c.BLE.ScanTimeout == 0 {
		c.BLE.ScanTimeout = 10 * time.Second
	}
	if c.PlaybackInterval == 0 {
		// One notification per channel per burst period.
		c.PlaybackInterval = muse.SamplesPerBurst * time.Second / muse.SampleRate / muse.NumChannels
	}
	if c.FlushTimeout > 0 && c.PollInterval == 0 {
		c.PollInterval = c.FlushTimeout / 4
	}
	// yaml.v2 reads bare integers as nanoseconds.
	if c.VizServer.UpdateInterval > 0 && c.VizServer.UpdateInterval < time.Millisecond {
		c.VizServer.UpdateInterval *= time.Millisecond
	}

	switch c.Device {
	case DeviceBLE, DeviceFile, DeviceSynthetic:
	default:
		return nil, fmt.Errorf("unknown device %q", c.Device)
	}
	switch c.Trigger {
	case TriggerLastChannel, TriggerAllChannels:
	default:
		return nil, fmt.Errorf("unknown trigger %q", c.Trigger)
	}

	return &c, nil
}
