package packet

import (
	"fmt"

	"github.com/norasector/museband/pkg/muse"
)

// Encode packs a sequence number and twelve codes into the wire layout
// used by the headband. Used by the synthetic device and tests.
func Encode(seq uint16, codes [muse.SamplesPerBurst]uint16) ([]byte, error) {
	buf := make([]byte, muse.PacketLength)
	buf[0] = byte(seq >> 8)
	buf[1] = byte(seq & 0xff)

	for i, code := range codes {
		if code > muse.MaxCode {
			return nil, fmt.Errorf("code %d at index %d exceeds 12 bits", code, i)
		}
	}

	out := buf[sequenceLength:]
	for k := 0; k < muse.SamplesPerBurst/2; k++ {
		c0, c1 := codes[2*k], codes[2*k+1]
		b := out[k*codePairLength : (k+1)*codePairLength]
		b[0] = byte(c0 >> 4)
		b[1] = byte(c0&0x0f)<<4 | byte(c1>>8)
		b[2] = byte(c1 & 0xff)
	}

	return buf, nil
}

// EncodeSamples packs microvolt samples, rounding each to the nearest code.
func EncodeSamples(seq uint16, samples [muse.SamplesPerBurst]float64) []byte {
	var codes [muse.SamplesPerBurst]uint16
	for i, s := range samples {
		codes[i] = Code(s)
	}
	// Codes from Code are always in range.
	buf, _ := Encode(seq, codes)
	return buf
}
