package viz

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/norasector/museband/pkg/muse"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ChannelPlotter keeps a rolling window of one channel's samples and
// renders it against time.
type ChannelPlotter struct {
	mu          sync.Mutex
	channel     muse.Channel
	samples     []float64
	timestamps  []float64
	size        int
	name        string
	rangeUV     float64
	plotOptions []PlotOptions
}

// NewChannelPlotter plots the last size samples of ch, with the Y axis
// fixed at +/- rangeUV microvolts.
func NewChannelPlotter(ch muse.Channel, size int, rangeUV float64) *ChannelPlotter {
	return &ChannelPlotter{
		channel:  ch,
		size:     size,
		name:     fmt.Sprintf("ch%d", ch),
		rangeUV:  rangeUV,
	}
}

func (c *ChannelPlotter) Name() string {
	return c.name
}

// AppendFrame adds this plotter's row of f to the window.
func (c *ChannelPlotter) AppendFrame(f *muse.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samples = append(c.samples, f.Samples[c.channel][:]...)
	c.timestamps = append(c.timestamps, f.Timestamps[:]...)

	if len(c.samples) > c.size {
		c.samples = c.samples[len(c.samples)-c.size:]
		c.timestamps = c.timestamps[len(c.timestamps)-c.size:]
	}
}

func (c *ChannelPlotter) AddPlotOption(opt PlotOptions) {
	c.mu.Lock()
	c.plotOptions = append(c.plotOptions, opt)
	c.mu.Unlock()
}

func (c *ChannelPlotter) xys() plotter.XYs {
	ret := make(plotter.XYs, len(c.samples))
	origin := c.timestamps[len(c.timestamps)-1]
	for i := range c.samples {
		ret[i] = plotter.XY{X: c.timestamps[i] - origin, Y: c.samples[i]}
	}
	return ret
}

// GetImage returns nil until the window is full.
func (c *ChannelPlotter) GetImage() (*ImageContainer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.samples) < c.size {
		return nil, nil
	}

	p := plotWithDefaults(c.name, "t (s)", "µV")
	p.Y.Min = -c.rangeUV
	p.Y.Max = c.rangeUV

	for _, opt := range c.plotOptions {
		opt(p)
	}

	p.Add(plotter.NewGrid())
	if err := plotutil.AddLines(p, c.name, c.xys()); err != nil {
		return nil, err
	}

	w, err := p.WriterTo(8*vg.Inch, 3*vg.Inch, "png")
	if err != nil {
		return nil, err
	}
	var imageData bytes.Buffer
	if _, err := w.WriteTo(&imageData); err != nil {
		return nil, err
	}
	return &ImageContainer{name: c.name, data: imageData.Bytes()}, nil
}
