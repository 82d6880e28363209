package eeg

import (
	"time"

	"github.com/norasector/museband/pkg/muse"
)

// LastChannelTrigger completes a cycle whenever the highest channel
// arrives, whether or not the others did. Assumes channels notify in a
// stable order within a cycle.
type LastChannelTrigger struct{}

func (LastChannelTrigger) Complete(ch muse.Channel, _ [muse.NumChannels]bool) bool {
	return ch == muse.LastChannel
}

// AllChannelsTrigger completes a cycle once every channel has arrived.
type AllChannelsTrigger struct{}

func (AllChannelsTrigger) Complete(_ muse.Channel, received [muse.NumChannels]bool) bool {
	for _, r := range received {
		if !r {
			return false
		}
	}
	return true
}

// NeverFlush leaves a cycle open until the trigger fires.
type NeverFlush struct{}

func (NeverFlush) Expired(float64, float64) bool { return false }

// FlushAfter emits an open cycle once it has been open for the duration.
type FlushAfter time.Duration

func (f FlushAfter) Expired(opened, now float64) bool {
	return now-opened >= time.Duration(f).Seconds()
}
