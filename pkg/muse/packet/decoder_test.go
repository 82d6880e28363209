package packet

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/norasector/museband/pkg/muse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMidscaleIsZero(t *testing.T) {
	var codes [muse.SamplesPerBurst]uint16
	for i := range codes {
		codes[i] = 2048
	}
	buf, err := Encode(100, codes)
	require.NoError(t, err)

	seq, samples, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(100), seq)
	for i, s := range samples {
		assert.Equalf(t, 0.0, s, "sample %d", i)
	}
}

func TestDecodeBitLayout(t *testing.T) {
	buf := []byte{
		0x12, 0x34, // sequence
		0xAB, 0xC1, 0x23,
		0xFF, 0xF0, 0x00,
		0x80, 0x08, 0x00,
		0x00, 0x00, 0x01,
		0x00, 0x00, 0x00,
		0x7F, 0xF8, 0x01,
	}
	seq, codes, err := DecodeCodes(buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), seq)
	assert.Equal(t, [muse.SamplesPerBurst]uint16{
		0xABC, 0x123,
		0xFFF, 0x000,
		0x800, 0x800,
		0x000, 0x001,
		0x000, 0x000,
		0x7FF, 0x801,
	}, codes)

	_, samples, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, 0.48828125*(4095-2048), samples[2])
	assert.Equal(t, -1000.0, samples[3])
	assert.Equal(t, 0.0, samples[4])
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{"nil", nil},
		{"empty", []byte{}},
		{"short", make([]byte, muse.PacketLength-1)},
		{"long", make([]byte, muse.PacketLength+1)},
		{"legacy five channel", make([]byte, 40)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, samples, err := Decode(tt.payload)
			require.Error(t, err)
			assert.True(t, errors.Is(err, muse.ErrMalformedPacket))

			var malformed *muse.MalformedPacketError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, len(tt.payload), malformed.Length)

			assert.Zero(t, seq)
			assert.Equal(t, [muse.SamplesPerBurst]float64{}, samples)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for n := 0; n < 500; n++ {
		seq := uint16(rng.Intn(math.MaxUint16 + 1))
		var codes [muse.SamplesPerBurst]uint16
		for i := range codes {
			codes[i] = uint16(rng.Intn(int(muse.MaxCode) + 1))
		}

		buf, err := Encode(seq, codes)
		require.NoError(t, err)
		require.Len(t, buf, muse.PacketLength)

		gotSeq, samples, err := Decode(buf)
		require.NoError(t, err)
		require.Equal(t, seq, gotSeq)
		for i, s := range samples {
			require.Equal(t, 0.48828125*(float64(codes[i])-2048), s)
			require.Equal(t, codes[i], Code(s))
		}
	}
}

func TestRoundTripExtremes(t *testing.T) {
	for _, seq := range []uint16{0, 1, 0x7fff, 0x8000, 0xffff} {
		var codes [muse.SamplesPerBurst]uint16
		for i := range codes {
			if i%2 == 0 {
				codes[i] = muse.MaxCode
			}
		}
		buf, err := Encode(seq, codes)
		require.NoError(t, err)
		gotSeq, gotCodes, err := DecodeCodes(buf)
		require.NoError(t, err)
		assert.Equal(t, seq, gotSeq)
		assert.Equal(t, codes, gotCodes)
	}
}

func TestEncodeRejectsWideCodes(t *testing.T) {
	var codes [muse.SamplesPerBurst]uint16
	codes[5] = 4096
	_, err := Encode(1, codes)
	assert.Error(t, err)
}

func TestCodeClamps(t *testing.T) {
	assert.Equal(t, uint16(0), Code(-5000))
	assert.Equal(t, muse.MaxCode, Code(5000))
	assert.Equal(t, uint16(2048), Code(0.1))
	assert.Equal(t, uint16(2049), Code(0.3))
}

func TestEncodeSamples(t *testing.T) {
	var samples [muse.SamplesPerBurst]float64
	for i := range samples {
		samples[i] = Microvolts(uint16(i * 300))
	}
	seq, got, err := Decode(EncodeSamples(42, samples))
	require.NoError(t, err)
	assert.Equal(t, uint16(42), seq)
	assert.Equal(t, samples, got)
}
