package synthetic

import (
	"context"
	"testing"
	"time"

	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/muse/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBurstsDecode(t *testing.T) {
	s := NewSyntheticDevice()
	s.NoiseAmplitude = 0

	for cycle := 1; cycle <= 3; cycle++ {
		bursts := s.NextBursts()
		require.Len(t, bursts, muse.NumChannels)
		for ch, n := range bursts {
			assert.Equal(t, muse.EEGUUIDs[ch], n.Source)
			seq, samples, err := packet.Decode(n.Payload)
			require.NoError(t, err)
			assert.Equal(t, uint16(cycle), seq)
			for _, v := range samples {
				assert.LessOrEqual(t, v, s.Amplitude+muse.MicrovoltsPerCode)
				assert.GreaterOrEqual(t, v, -s.Amplitude-muse.MicrovoltsPerCode)
			}
		}
	}
}

func TestCommands(t *testing.T) {
	s := NewSyntheticDevice()
	s.BurstInterval = time.Millisecond
	require.NoError(t, s.Connect(context.Background()))

	ch := make(chan muse.Notification, 64)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx, ch) }()

	time.Sleep(10 * time.Millisecond)
	assert.Empty(t, ch)

	require.NoError(t, s.Command(muse.StartStreaming))
	require.Eventually(t, func() bool { return len(ch) >= muse.NumChannels }, time.Second, time.Millisecond)

	require.NoError(t, s.Command(muse.StopStreaming))
	assert.Error(t, s.Command([]byte{0x02, 0x73, 0x0A}))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.NoError(t, s.Stop())
}
