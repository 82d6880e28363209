package output

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/norasector/museband/pkg/muse"
	"gonum.org/v1/gonum/mat"
)

const frameBufferLength int = 8

// SimpleFrameOutput writes one CSV row per sample: unix timestamp followed
// by one column per channel.
type SimpleFrameOutput struct {
	dest     *csv.Writer
	recvChan chan *muse.Frame
	header   bool
}

func NewSimpleFrameOutput(dest io.Writer) *SimpleFrameOutput {
	return &SimpleFrameOutput{
		dest:     csv.NewWriter(dest),
		recvChan: make(chan *muse.Frame, frameBufferLength),
		header:   true,
	}
}

func (s *SimpleFrameOutput) Receive() chan<- *muse.Frame {
	return s.recvChan
}

func (s *SimpleFrameOutput) Start(ctx context.Context) error {
	defer s.dest.Flush()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f := <-s.recvChan:
			if err := s.write(f); err != nil {
				return err
			}
		}
	}
}

func (s *SimpleFrameOutput) write(f *muse.Frame) error {
	if s.header {
		row := []string{"timestamp"}
		for ch := 0; ch < muse.NumChannels; ch++ {
			row = append(row, "ch"+strconv.Itoa(ch))
		}
		if err := s.dest.Write(row); err != nil {
			return err
		}
		s.header = false
	}

	// Columns of the channel matrix are the CSV rows.
	samples := f.Matrix()
	_, cols := samples.Dims()
	for i := 0; i < cols; i++ {
		row := make([]string, 0, muse.NumChannels+1)
		row = append(row, strconv.FormatFloat(f.Timestamps[i], 'f', 6, 64))
		for _, v := range mat.Col(nil, i, samples) {
			row = append(row, strconv.FormatFloat(v, 'f', -1, 64))
		}
		if err := s.dest.Write(row); err != nil {
			return err
		}
	}
	s.dest.Flush()
	return s.dest.Error()
}
