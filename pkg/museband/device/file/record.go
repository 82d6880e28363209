package file

import (
	"context"
	"os"
	"sync"

	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/museband/device"
	"golang.org/x/sync/errgroup"
)

// RecordingDevice passes notifications through from another device while
// writing each one to a capture file. Stop may be called while Start is
// still running; notifications after Stop are passed through unrecorded.
type RecordingDevice struct {
	device.Device

	mu         sync.Mutex
	outputFile *os.File
	writer     *CaptureWriter
	closed     bool
}

func NewRecordingDevice(dev device.Device, recordLocation string) (*RecordingDevice, error) {
	outFile, err := os.Create(recordLocation)
	if err != nil {
		return nil, err
	}
	return &RecordingDevice{
		Device:     dev,
		outputFile: outFile,
		writer:     NewCaptureWriter(outFile),
	}, nil
}

func (r *RecordingDevice) record(n muse.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.writer.Write(n)
}

func (r *RecordingDevice) flush() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	return r.writer.Flush()
}

func (r *RecordingDevice) Start(ctx context.Context, notifications chan<- muse.Notification) error {
	eg, ctx := errgroup.WithContext(ctx)
	raw := make(chan muse.Notification)

	eg.Go(func() error {
		defer close(raw)
		return r.Device.Start(ctx, raw)
	})

	eg.Go(func() error {
		for n := range raw {
			if err := r.record(n); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case notifications <- n:
			}
		}
		return r.flush()
	})

	return eg.Wait()
}

// Stop flushes and closes the capture, then stops the wrapped device.
func (r *RecordingDevice) Stop() error {
	r.mu.Lock()
	var err error
	if !r.closed {
		r.closed = true
		err = r.writer.Flush()
		if closeErr := r.outputFile.Close(); err == nil {
			err = closeErr
		}
	}
	r.mu.Unlock()

	if stopErr := r.Device.Stop(); err == nil {
		err = stopErr
	}
	return err
}
