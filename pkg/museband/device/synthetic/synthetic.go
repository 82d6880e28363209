// Package synthetic provides a headband that needs no hardware. It emits
// one sine wave per channel, packed exactly as the real device packs them.
package synthetic

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/muse/packet"
)

type SyntheticDevice struct {
	streaming atomic.Bool
	sequence  atomic.Uint32
	sampleNum int

	// Configuration
	Frequencies    [muse.NumChannels]float64 // Hz per channel
	Amplitude      float64                   // microvolts
	NoiseAmplitude float64                   // microvolts, uniform
	BurstInterval  time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

func NewSyntheticDevice() *SyntheticDevice {
	return &SyntheticDevice{
		Frequencies:    [muse.NumChannels]float64{6, 10, 14, 22},
		Amplitude:      50,
		NoiseAmplitude: 5,
		BurstInterval:  muse.SamplesPerBurst * time.Second / muse.SampleRate,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SyntheticDevice) Connect(ctx context.Context) error {
	return nil
}

func (s *SyntheticDevice) Start(ctx context.Context, notifications chan<- muse.Notification) error {
	tick := time.NewTicker(s.BurstInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
			if !s.streaming.Load() {
				continue
			}
			for _, n := range s.NextBursts() {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case notifications <- n:
				}
			}
		}
	}
}

// NextBursts returns one notification per channel, in channel order, all
// carrying the same sequence number.
func (s *SyntheticDevice) NextBursts() []muse.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq := uint16(s.sequence.Add(1))
	ret := make([]muse.Notification, 0, muse.NumChannels)
	for ch := 0; ch < muse.NumChannels; ch++ {
		var samples [muse.SamplesPerBurst]float64
		for i := range samples {
			t := float64(s.sampleNum+i) / muse.SampleRate
			samples[i] = s.Amplitude * math.Sin(2*math.Pi*s.Frequencies[ch]*t)
			if s.NoiseAmplitude > 0 {
				samples[i] += s.NoiseAmplitude * (2*s.rng.Float64() - 1)
			}
		}
		ret = append(ret, muse.Notification{
			Source:  muse.EEGUUIDs[ch],
			Payload: packet.EncodeSamples(seq, samples),
		})
	}
	s.sampleNum += muse.SamplesPerBurst
	return ret
}

func (s *SyntheticDevice) Command(cmd []byte) error {
	switch {
	case bytes.Equal(cmd, muse.StartStreaming):
		s.streaming.Store(true)
	case bytes.Equal(cmd, muse.StopStreaming):
		s.streaming.Store(false)
	default:
		return fmt.Errorf("synthetic device: unsupported command % x", cmd)
	}
	return nil
}

func (s *SyntheticDevice) Stop() error {
	s.streaming.Store(false)
	return nil
}
