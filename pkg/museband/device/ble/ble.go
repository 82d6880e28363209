package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/museband/device"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"tinygo.org/x/bluetooth"
)

const notificationBuffer = 256

var ErrDeviceNotFound = errors.New("unable to find headband")

// BLEDevice talks to a headband over the host Bluetooth adapter.
type BLEDevice struct {
	adapter     *bluetooth.Adapter
	name        string
	address     string
	scanTimeout time.Duration
	logger      zerolog.Logger

	mu      sync.Mutex
	device  *bluetooth.Device
	control *bluetooth.DeviceCharacteristic
	recv    chan muse.Notification
	dropped int
}

// NewBLEDevice connects to the device at address if set, otherwise to the
// first device advertising name (or any name containing "Muse").
func NewBLEDevice(name, address string, scanTimeout time.Duration) *BLEDevice {
	return &BLEDevice{
		adapter:     bluetooth.DefaultAdapter,
		name:        name,
		address:     address,
		scanTimeout: scanTimeout,
		logger:      log.Logger.With().Str("device", "ble").Logger(),
		recv:        make(chan muse.Notification, notificationBuffer),
	}
}

func (b *BLEDevice) matches(result bluetooth.ScanResult) bool {
	switch {
	case b.address != "":
		return strings.EqualFold(result.Address.String(), b.address)
	case b.name != "":
		return result.LocalName() == b.name
	default:
		return strings.Contains(result.LocalName(), "Muse")
	}
}

func (b *BLEDevice) scan(ctx context.Context) (bluetooth.ScanResult, error) {
	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)

	go func() {
		scanErr <- b.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !b.matches(result) {
				return
			}
			select {
			case found <- result:
				adapter.StopScan()
			default:
			}
		})
	}()

	timer := time.NewTimer(b.scanTimeout)
	defer timer.Stop()

	select {
	case result := <-found:
		return result, nil
	case err := <-scanErr:
		if err == nil {
			err = ErrDeviceNotFound
		}
		return bluetooth.ScanResult{}, err
	case <-timer.C:
		b.adapter.StopScan()
		return bluetooth.ScanResult{}, ErrDeviceNotFound
	case <-ctx.Done():
		b.adapter.StopScan()
		return bluetooth.ScanResult{}, ctx.Err()
	}
}

func (b *BLEDevice) Connect(ctx context.Context) error {
	if err := b.adapter.Enable(); err != nil {
		return fmt.Errorf("enabling adapter: %w", err)
	}

	b.logger.Info().Str("name", b.name).Str("address", b.address).Msg("scanning...")
	result, err := b.scan(ctx)
	if err != nil {
		return err
	}

	b.logger.Info().
		Str("name", result.LocalName()).
		Str("address", result.Address.String()).
		Msg("connecting")

	dev, err := b.adapter.Connect(result.Address, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", result.Address.String(), err)
	}

	services, err := dev.DiscoverServices([]bluetooth.UUID{bluetooth.New16BitUUID(muse.ServiceUUID)})
	if err != nil {
		dev.Disconnect()
		return fmt.Errorf("discovering services: %w", err)
	}
	if len(services) == 0 {
		dev.Disconnect()
		return fmt.Errorf("service %04x not found", muse.ServiceUUID)
	}

	wanted := make([]bluetooth.UUID, 0, muse.NumChannels+1)
	for _, s := range append([]string{muse.ControlUUID}, muse.EEGUUIDs[:]...) {
		uuid, err := bluetooth.ParseUUID(s)
		if err != nil {
			dev.Disconnect()
			return err
		}
		wanted = append(wanted, uuid)
	}

	chars, err := services[0].DiscoverCharacteristics(wanted)
	if err != nil {
		dev.Disconnect()
		return fmt.Errorf("discovering characteristics: %w", err)
	}

	channels := muse.DefaultChannelMap()
	var control *bluetooth.DeviceCharacteristic
	subscribed := 0
	for i := range chars {
		char := chars[i]
		uuid := strings.ToLower(char.UUID().String())

		if uuid == muse.ControlUUID {
			control = &char
			continue
		}
		if _, ok := channels.Resolve(uuid); !ok {
			continue
		}
		if err := char.EnableNotifications(b.notify(uuid)); err != nil {
			dev.Disconnect()
			return fmt.Errorf("subscribing to %s: %w", uuid, err)
		}
		subscribed++
	}

	if control == nil {
		dev.Disconnect()
		return errors.New("control characteristic not found")
	}
	if subscribed != muse.NumChannels {
		b.logger.Warn().Int("subscribed", subscribed).Msg("not every EEG channel was found")
	}

	b.mu.Lock()
	b.device = &dev
	b.control = control
	b.mu.Unlock()

	b.logger.Info().Int("channels", subscribed).Msg("connected")
	return nil
}

// notify is called from the Bluetooth stack's own goroutine.
func (b *BLEDevice) notify(source string) func([]byte) {
	return func(buf []byte) {
		n := muse.Notification{Source: source, Payload: make([]byte, len(buf))}
		copy(n.Payload, buf)

		select {
		case b.recv <- n:
		default:
			b.mu.Lock()
			b.dropped++
			dropped := b.dropped
			b.mu.Unlock()
			b.logger.Warn().Str("source", source).Int("dropped", dropped).Msg("notification buffer full")
		}
	}
}

func (b *BLEDevice) Start(ctx context.Context, notifications chan<- muse.Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n := <-b.recv:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case notifications <- n:
			}
		}
	}
}

func (b *BLEDevice) Command(cmd []byte) error {
	b.mu.Lock()
	control := b.control
	b.mu.Unlock()
	if control == nil {
		return device.ErrNotConnected
	}
	_, err := control.WriteWithoutResponse(cmd)
	return err
}

func (b *BLEDevice) Stop() error {
	b.mu.Lock()
	dev := b.device
	b.device = nil
	b.control = nil
	b.mu.Unlock()
	if dev == nil {
		return nil
	}
	return dev.Disconnect()
}
