package device

import (
	"context"
	"errors"

	"github.com/norasector/museband/pkg/muse"
)

var ErrNotConnected = errors.New("device not connected")

// Device is the transport for a headband: it delivers raw notifications
// and accepts control commands.
type Device interface {
	// Connect blocks until the device is ready to accept commands.
	Connect(ctx context.Context) error
	// Start delivers notifications until ctx ends or the device fails.
	Start(ctx context.Context, notifications chan<- muse.Notification) error
	// Command writes a control command without waiting for acknowledgment.
	Command(cmd []byte) error
	Stop() error
}
