package file

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/norasector/museband/pkg/muse"
	"github.com/rs/zerolog/log"
)

// FileDevice replays a capture, one notification per tick.
type FileDevice struct {
	readFile    io.ReadCloser
	reader      *CaptureReader
	timeBetween time.Duration
}

func NewFileDevice(file string, timeBetween time.Duration) (*FileDevice, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	return NewReaderDevice(f, timeBetween), nil
}

func NewReaderDevice(r io.ReadCloser, timeBetween time.Duration) *FileDevice {
	return &FileDevice{
		readFile:    r,
		reader:      NewCaptureReader(r),
		timeBetween: timeBetween,
	}
}

func (f *FileDevice) Connect(ctx context.Context) error {
	return nil
}

// Start returns nil once the capture is exhausted.
func (f *FileDevice) Start(ctx context.Context, notifications chan<- muse.Notification) error {
	tick := time.NewTicker(f.timeBetween)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			n, err := f.reader.Read()
			if errors.Is(err, io.EOF) {
				log.Info().Str("device", "file").Msg("playback finished")
				return nil
			}
			if err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case notifications <- n:
			}
		}
	}
}

// Command is accepted and ignored; a capture cannot be told to stop.
func (f *FileDevice) Command(cmd []byte) error {
	log.Debug().Str("device", "file").Hex("command", cmd).Msg("ignoring command during playback")
	return nil
}

func (f *FileDevice) Stop() error {
	return f.readFile.Close()
}
