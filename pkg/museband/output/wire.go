package output

import (
	"errors"
	"fmt"
	"math"

	"github.com/norasector/museband/pkg/muse"
	"google.golang.org/protobuf/encoding/protowire"
)

// Frames are sent as protobuf messages with this schema:
//
//	message Frame {
//	  uint32 sequence = 1;
//	  repeated double timestamps = 2 [packed = true];
//	  repeated Channel channels = 3;
//	  uint32 contributing = 4;
//	  bool flushed = 5;
//	}
//	message Channel {
//	  uint32 index = 1;
//	  repeated double samples = 2 [packed = true];
//	}
const (
	fieldSequence     protowire.Number = 1
	fieldTimestamps   protowire.Number = 2
	fieldChannels     protowire.Number = 3
	fieldContributing protowire.Number = 4
	fieldFlushed      protowire.Number = 5

	fieldChannelIndex   protowire.Number = 1
	fieldChannelSamples protowire.Number = 2
)

func appendPackedDoubles(b []byte, num protowire.Number, vals []float64) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	b = protowire.AppendVarint(b, uint64(len(vals)*8))
	for _, v := range vals {
		b = protowire.AppendFixed64(b, math.Float64bits(v))
	}
	return b
}

func MarshalFrame(f *muse.Frame) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Sequence))
	b = appendPackedDoubles(b, fieldTimestamps, f.Timestamps[:])

	for ch := range f.Samples {
		var c []byte
		c = protowire.AppendTag(c, fieldChannelIndex, protowire.VarintType)
		c = protowire.AppendVarint(c, uint64(ch))
		c = appendPackedDoubles(c, fieldChannelSamples, f.Samples[ch][:])

		b = protowire.AppendTag(b, fieldChannels, protowire.BytesType)
		b = protowire.AppendBytes(b, c)
	}

	b = protowire.AppendTag(b, fieldContributing, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Contributing))
	b = protowire.AppendTag(b, fieldFlushed, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(f.Flushed))
	return b
}

var errShortMessage = errors.New("truncated frame message")

func consumePackedDoubles(b []byte, dst []float64) error {
	if len(b) != len(dst)*8 {
		return fmt.Errorf("expected %d doubles, got %d bytes", len(dst), len(b))
	}
	for i := range dst {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		dst[i] = math.Float64frombits(v)
		b = b[n:]
	}
	return nil
}

// UnmarshalFrame decodes a message produced by MarshalFrame. Unknown
// fields are skipped.
func UnmarshalFrame(b []byte) (*muse.Frame, error) {
	f := &muse.Frame{}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		switch {
		case num == fieldSequence && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			f.Sequence = uint16(v)
			b = b[n:]
		case num == fieldContributing && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			f.Contributing = int(v)
			b = b[n:]
		case num == fieldFlushed && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			f.Flushed = protowire.DecodeBool(v)
			b = b[n:]
		case num == fieldTimestamps && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			if err := consumePackedDoubles(v, f.Timestamps[:]); err != nil {
				return nil, err
			}
			b = b[n:]
		case num == fieldChannels && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			if err := unmarshalChannel(v, f); err != nil {
				return nil, err
			}
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return f, nil
}

func unmarshalChannel(b []byte, f *muse.Frame) error {
	var (
		index   uint64
		samples []byte
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch {
		case num == fieldChannelIndex && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			index = v
			b = b[n:]
		case num == fieldChannelSamples && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			samples = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	if samples == nil {
		return errShortMessage
	}
	if index >= muse.NumChannels {
		return fmt.Errorf("channel index %d out of range", index)
	}
	return consumePackedDoubles(samples, f.Samples[index][:])
}
