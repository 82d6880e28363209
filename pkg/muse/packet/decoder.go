package packet

import (
	"math"

	"github.com/norasector/museband/pkg/muse"
)

const (
	sequenceLength = 2
	// Two 12-bit codes pack into three bytes.
	codePairLength = 3
)

// DecodeCodes unpacks the sequence number and the raw 12-bit codes.
func DecodeCodes(payload []byte) (uint16, [muse.SamplesPerBurst]uint16, error) {
	var codes [muse.SamplesPerBurst]uint16
	if len(payload) != muse.PacketLength {
		return 0, codes, &muse.MalformedPacketError{Length: len(payload)}
	}

	seq := uint16(payload[0])<<8 | uint16(payload[1])

	buf := payload[sequenceLength:]
	for k := 0; k < muse.SamplesPerBurst/2; k++ {
		b := buf[k*codePairLength : (k+1)*codePairLength]
		codes[2*k] = uint16(b[0])<<4 | uint16(b[1])>>4
		codes[2*k+1] = uint16(b[1]&0x0f)<<8 | uint16(b[2])
	}

	return seq, codes, nil
}

// Decode unpacks a notification payload into its sequence number and
// twelve samples in microvolts.
func Decode(payload []byte) (uint16, [muse.SamplesPerBurst]float64, error) {
	var samples [muse.SamplesPerBurst]float64
	seq, codes, err := DecodeCodes(payload)
	if err != nil {
		return 0, samples, err
	}
	for i, code := range codes {
		samples[i] = Microvolts(code)
	}
	return seq, samples, nil
}

func Microvolts(code uint16) float64 {
	return muse.MicrovoltsPerCode * (float64(code) - muse.CodeOffset)
}

// Code is the inverse of Microvolts, rounded to the nearest code and
// clamped to the 12-bit range.
func Code(microvolts float64) uint16 {
	c := math.Round(microvolts/muse.MicrovoltsPerCode) + muse.CodeOffset
	switch {
	case c < 0:
		return 0
	case c > float64(muse.MaxCode):
		return muse.MaxCode
	}
	return uint16(c)
}
