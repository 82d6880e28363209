package museband

import (
	"fmt"

	"github.com/norasector/museband/pkg/muse"
)

// StartStreaming clears any partial cycle and asks the headband to start
// notifying. The command is not acknowledged.
func (m *Museband) StartStreaming() error {
	m.assembler.Reset()
	if err := m.device.Command(muse.StartStreaming); err != nil {
		return fmt.Errorf("start streaming: %w", err)
	}
	m.logger.Info().Msg("streaming started")
	return nil
}

func (m *Museband) StopStreaming() error {
	if err := m.device.Command(muse.StopStreaming); err != nil {
		return fmt.Errorf("stop streaming: %w", err)
	}
	m.logger.Info().Msg("streaming stopped")
	return nil
}
