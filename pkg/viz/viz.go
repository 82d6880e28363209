package viz

import (
	"image/color"

	"gonum.org/v1/plot"
)

// PlotOptions adjust a plot after its defaults are applied.
type PlotOptions func(p *plot.Plot)

var foreground = color.White

// plotWithDefaults returns a titled plot drawn light on black.
func plotWithDefaults(title, xLabel, yLabel string) *plot.Plot {
	p := plot.New()
	p.BackgroundColor = color.Black
	p.Title.Text = title
	p.Title.TextStyle.Color = foreground
	p.Legend.TextStyle.Color = foreground

	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel
	for _, axis := range []*plot.Axis{&p.X, &p.Y} {
		axis.Color = foreground
		axis.Label.TextStyle.Color = foreground
		axis.Tick.Color = foreground
		axis.Tick.Label.Color = foreground
	}
	return p
}
