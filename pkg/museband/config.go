package museband

import (
	"time"

	"github.com/norasector/museband/pkg/muse/frame"
)

type Options struct {
	// Trigger defaults to completing a cycle on the last channel.
	Trigger frame.TriggerPolicy
	// FlushPolicy defaults to never flushing an incomplete cycle.
	FlushPolicy  frame.FlushPolicy
	PollInterval time.Duration
	Outputs      []FrameOutput
	// PlotWindow is the number of samples per channel shown by the viz
	// server.
	PlotWindow int
	PlotRange  float64
}
