package muse

import (
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"
)

const (
	NumChannels     = 4
	LastChannel     = Channel(NumChannels - 1)
	SamplesPerBurst = 12
	SampleRate      = 256 // Hz

	// PacketLength is 16 bits of sequence number plus twelve 12-bit codes.
	PacketLength = 20

	MicrovoltsPerCode = 0.48828125
	CodeOffset        = 2048
)

const MaxCode uint16 = 0x0fff

const uuidSuffix = "-4c4d-454d-96be-f03bac821358"

const (
	ControlUUID = "273e0001" + uuidSuffix

	// ServiceUUID is the 16-bit UUID the headband advertises.
	ServiceUUID uint16 = 0xfe8d
)

// EEGUUIDs are the characteristics carrying channels 0 to 3. The fifth
// characteristic (273e0007) is never notified by current hardware.
var EEGUUIDs = [NumChannels]string{
	"273e0003" + uuidSuffix,
	"273e0004" + uuidSuffix,
	"273e0005" + uuidSuffix,
	"273e0006" + uuidSuffix,
}

var (
	StartStreaming = []byte{0x02, 0x64, 0x0A}
	StopStreaming  = []byte{0x02, 0x68, 0x0A}
)

// Channel is the index of an EEG sensor line.
type Channel int

// ChannelMap maps a notification source to the channel it carries.
type ChannelMap map[string]Channel

// DefaultChannelMap returns the mapping for EEGUUIDs.
func DefaultChannelMap() ChannelMap {
	m := make(ChannelMap, NumChannels)
	for i, uuid := range EEGUUIDs {
		m[uuid] = Channel(i)
	}
	return m
}

// Resolve is case-insensitive; unmapped sources are not channels.
func (m ChannelMap) Resolve(source string) (Channel, bool) {
	ch, ok := m[strings.ToLower(source)]
	return ch, ok
}

// Notification is one raw packet as delivered by a device.
type Notification struct {
	Source  string
	Payload []byte
}

type Burst struct {
	Source   string
	Sequence uint16
	Samples  [SamplesPerBurst]float64
}

// Frame is one 12-sample block across all channels. Timestamps are unix
// seconds and shared by every channel.
type Frame struct {
	Samples    [NumChannels][SamplesPerBurst]float64
	Timestamps [SamplesPerBurst]float64
	Sequence   uint16

	// Contributing is the number of channels whose arrival time anchored
	// the timestamps.
	Contributing int

	// Flushed frames were emitted by a flush policy instead of the trigger.
	Flushed bool
}

// Matrix returns the samples as a NumChannels x SamplesPerBurst matrix.
func (f *Frame) Matrix() *mat.Dense {
	data := make([]float64, 0, NumChannels*SamplesPerBurst)
	for _, row := range f.Samples {
		data = append(data, row[:]...)
	}
	return mat.NewDense(NumChannels, SamplesPerBurst, data)
}

func (f *Frame) Time(i int) time.Time {
	return SecondsToTime(f.Timestamps[i])
}

// Clock returns the current wall-clock time in unix seconds.
type Clock func() float64

func WallClock() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

func SecondsToTime(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}
