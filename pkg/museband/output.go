package museband

import (
	"context"

	"github.com/norasector/museband/pkg/muse"
)

// FrameOutput handles completed EEG frames.
type FrameOutput interface {
	// Start receives a context and should run in a loop, terminating upon ctx closing or on any errors.
	Start(ctx context.Context) error
	// Receive returns a channel that receives frames. Frames are shared
	// between outputs and must not be modified.
	Receive() chan<- *muse.Frame
}
