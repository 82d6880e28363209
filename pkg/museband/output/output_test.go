package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/csv"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/museband/config"
	"github.com/norasector/museband/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func testFrame() *muse.Frame {
	f := &muse.Frame{Sequence: 4242, Contributing: 3, Flushed: true}
	for i := range f.Timestamps {
		f.Timestamps[i] = 1700000000.5 + float64(i-12)/256
	}
	for ch := range f.Samples {
		for i := range f.Samples[ch] {
			f.Samples[ch][i] = float64(ch*100+i) * 0.48828125
		}
	}
	return f
}

func TestFrameWireRoundTrip(t *testing.T) {
	want := testFrame()
	got, err := UnmarshalFrame(MarshalFrame(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	b := MarshalFrame(testFrame())
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte("future"))

	got, err := UnmarshalFrame(b)
	require.NoError(t, err)
	assert.Equal(t, testFrame(), got)
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	b := MarshalFrame(testFrame())
	_, err := UnmarshalFrame(b[:len(b)-20])
	assert.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestSimpleFrameOutput(t *testing.T) {
	var dest syncBuffer
	out := NewSimpleFrameOutput(&dest)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- out.Start(ctx) }()

	out.Receive() <- testFrame()
	out.Receive() <- testFrame()

	require.Eventually(t, func() bool {
		return strings.Count(dest.String(), "\n") == 1+2*muse.SamplesPerBurst
	}, time.Second, time.Millisecond)
	cancel()
	<-done

	rows, err := csv.NewReader(strings.NewReader(dest.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"timestamp", "ch0", "ch1", "ch2", "ch3"}, rows[0])
	assert.Equal(t, "1700000000.453125", rows[1][0])
	assert.Equal(t, "0", rows[1][1])
	assert.Equal(t, "48.828125", rows[1][2])
}

func TestFrameUDPOutput(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer listener.Close()
	port := listener.LocalAddr().(*net.UDPAddr).Port

	out := NewFrameUDPOutput([]config.OutputDestination{{Host: "127.0.0.1", Port: port}}, &util.MockWriteAPI{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go out.Start(ctx)

	out.Receive() <- testFrame()

	require.NoError(t, listener.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 2048)
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	size := binary.LittleEndian.Uint16(buf[:2])
	require.Equal(t, int(size), n-2)

	got, err := UnmarshalFrame(buf[2:n])
	require.NoError(t, err)
	assert.Equal(t, testFrame(), got)
}
