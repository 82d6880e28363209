package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
device: ble
log_level: debug
ble:
  name: Muse-1A2B
  scan_timeout: 5s
trigger: all_channels
flush_timeout: 200ms
csv_output: /tmp/eeg.csv
output_destinations:
  - host: 127.0.0.1
    port: 9999
viz_server:
  port: 8080
  update_interval_ms: 500
influxdb:
  host: http://localhost:8086
  organization: lab
  bucket: eeg
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, DeviceBLE, c.Device)
	assert.Equal(t, "Muse-1A2B", c.BLE.Name)
	assert.Equal(t, 5*time.Second, c.BLE.ScanTimeout)
	assert.Equal(t, TriggerAllChannels, c.Trigger)
	assert.Equal(t, 200*time.Millisecond, c.FlushTimeout)
	assert.Equal(t, 50*time.Millisecond, c.PollInterval)
	assert.Equal(t, []OutputDestination{{Host: "127.0.0.1", Port: 9999}}, c.OutputDestinations)
	assert.Equal(t, 500*time.Millisecond, c.VizServer.UpdateInterval)
	assert.Equal(t, "eeg", c.InfluxDB.Bucket)
}

func TestParseDefaults(t *testing.T) {
	c, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, DeviceBLE, c.Device)
	assert.Equal(t, TriggerLastChannel, c.Trigger)
	assert.Equal(t, 10*time.Second, c.BLE.ScanTimeout)
	// 12 samples at 256 Hz, spread over four channel notifications.
	assert.Equal(t, 11718750*time.Nanosecond, c.PlaybackInterval)
	assert.Zero(t, c.FlushTimeout)
	assert.Zero(t, c.PollInterval)
}

func TestPlaybackDefaultsToFileDevice(t *testing.T) {
	c, err := Parse([]byte("playback_location: capture.bin\n"))
	require.NoError(t, err)
	assert.Equal(t, DeviceFile, c.Device)

	c, err = Parse([]byte("device: file\nplayback_location: capture.bin\n"))
	require.NoError(t, err)
	assert.Equal(t, DeviceFile, c.Device)
}

func TestPlaybackRejectsOtherDevices(t *testing.T) {
	for _, dev := range []string{DeviceBLE, DeviceSynthetic} {
		_, err := Parse([]byte("device: " + dev + "\nplayback_location: capture.bin\n"))
		assert.Error(t, err, dev)
	}
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"device: hackrf",
		"trigger: sometimes",
		"device: [",
	} {
		_, err := Parse([]byte(in))
		assert.Error(t, err, in)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "museband.yaml")
	require.NoError(t, os.WriteFile(path, []byte("device: synthetic\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DeviceSynthetic, c.Device)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
