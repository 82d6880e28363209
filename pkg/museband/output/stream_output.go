package output

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go"
	"github.com/influxdata/influxdb-client-go/api"
	"github.com/norasector/museband/pkg/muse"
	"github.com/norasector/museband/pkg/museband/config"
	"github.com/rs/zerolog/log"
)

const receiveChannels = 8

// FrameUDPOutput sends each frame to every destination as a uint16
// little-endian length followed by the protobuf-encoded frame.
type FrameUDPOutput struct {
	dests    []config.OutputDestination
	recvChan chan *muse.Frame
	metrics  api.WriteAPI
}

func NewFrameUDPOutput(dests []config.OutputDestination, metrics api.WriteAPI) *FrameUDPOutput {
	return &FrameUDPOutput{
		dests:    dests,
		recvChan: make(chan *muse.Frame, receiveChannels),
		metrics:  metrics,
	}
}

func (s *FrameUDPOutput) Receive() chan<- *muse.Frame {
	return s.recvChan
}

func encodeMessage(f *muse.Frame) ([]byte, error) {
	encoded := MarshalFrame(f)

	var msgBuf bytes.Buffer
	if err := binary.Write(&msgBuf, binary.LittleEndian, uint16(len(encoded))); err != nil {
		return nil, fmt.Errorf("error encoding header size: %w", err)
	}
	if _, err := msgBuf.Write(encoded); err != nil {
		return nil, fmt.Errorf("error writing encoded message: %w", err)
	}
	return msgBuf.Bytes(), nil
}

func (s *FrameUDPOutput) Start(ctx context.Context) error {
	destAddrs := make([]*net.UDPAddr, 0, len(s.dests))
	for _, dest := range s.dests {
		ips, err := net.LookupIP(dest.Host)
		if err != nil {
			return err
		}
		if len(ips) == 0 {
			return fmt.Errorf("no IPs returned for %s", dest.Host)
		}

		destAddr := &net.UDPAddr{IP: ips[0], Port: dest.Port}
		destAddrs = append(destAddrs, destAddr)
		log.Info().IPAddr("dest_ip", destAddr.IP).Int("port", dest.Port).Msg("stream output starting")
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-s.recvChan:
			msg, err := encodeMessage(f)
			if err != nil {
				log.Warn().Err(err).Msg("error encoding frame")
				continue
			}

			success := true
			var bytesWritten int
			for _, destAddr := range destAddrs {
				bytesWritten, err = conn.WriteToUDP(msg, destAddr)
				if err != nil {
					log.Error().Err(err).Msg("error writing")
					success = false
				}
			}

			if s.metrics == nil {
				continue
			}
			sent, dropped := 1, 0
			if !success {
				sent, dropped = 0, 1
			}
			go s.metrics.WritePoint(influxdb2.NewPoint("eeg.output",
				map[string]string{
					"output": "udp",
				},
				map[string]interface{}{
					"bytes_written": bytesWritten,
					"sequence":      int(f.Sequence),
					"sent":          sent,
					"dropped":       dropped,
				}, time.Now()))
		}
	}
}
