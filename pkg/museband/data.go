package museband

import (
	"errors"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/norasector/museband/pkg/muse"
)

var ErrOutputBlocked = errors.New("output blocked")

// Accept fans a completed frame out to every output. Outputs that are not
// keeping up are skipped rather than waited on.
func (m *Museband) Accept(f *muse.Frame) error {
	for _, p := range m.plotters {
		p.AppendFrame(f)
	}

	skippedOutputs := 0
	for _, output := range m.opts.Outputs {
		select {
		case output.Receive() <- f:
			// We will not wait on blocked channels.
		default:
			skippedOutputs++
		}
	}

	go m.writeAPI.WritePoint(influxdb2.NewPoint("eeg.frame.emitted",
		map[string]string{
			"flushed": fmt.Sprint(f.Flushed),
		},
		map[string]interface{}{
			"sequence":        int(f.Sequence),
			"contributing":    f.Contributing,
			"skipped_outputs": skippedOutputs,
		}, f.Time(muse.SamplesPerBurst-1)))

	if skippedOutputs > 0 {
		return fmt.Errorf("%d of %d outputs: %w", skippedOutputs, len(m.opts.Outputs), ErrOutputBlocked)
	}
	return nil
}
