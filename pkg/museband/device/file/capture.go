package file

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/norasector/museband/pkg/muse"
	"google.golang.org/protobuf/encoding/protowire"
)

// A capture is a sequence of length-delimited records, each a protobuf
// message:
//
//	message Notification {
//	  string source  = 1;
//	  bytes  payload = 2;
//	}
const (
	sourceField  protowire.Number = 1
	payloadField protowire.Number = 2

	maxRecordLength = 1 << 16
)

var ErrRecordTooLarge = errors.New("capture record too large")

func marshalNotification(n muse.Notification) []byte {
	b := protowire.AppendTag(nil, sourceField, protowire.BytesType)
	b = protowire.AppendString(b, n.Source)
	b = protowire.AppendTag(b, payloadField, protowire.BytesType)
	return protowire.AppendBytes(b, n.Payload)
}

func unmarshalNotification(b []byte) (muse.Notification, error) {
	var n muse.Notification
	for len(b) > 0 {
		num, typ, l := protowire.ConsumeTag(b)
		if l < 0 {
			return n, protowire.ParseError(l)
		}
		b = b[l:]

		switch {
		case num == sourceField && typ == protowire.BytesType:
			v, l := protowire.ConsumeString(b)
			if l < 0 {
				return n, protowire.ParseError(l)
			}
			n.Source = v
			b = b[l:]
		case num == payloadField && typ == protowire.BytesType:
			v, l := protowire.ConsumeBytes(b)
			if l < 0 {
				return n, protowire.ParseError(l)
			}
			n.Payload = append([]byte(nil), v...)
			b = b[l:]
		default:
			l := protowire.ConsumeFieldValue(num, typ, b)
			if l < 0 {
				return n, protowire.ParseError(l)
			}
			b = b[l:]
		}
	}
	return n, nil
}

type CaptureWriter struct {
	w *bufio.Writer
}

func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{w: bufio.NewWriter(w)}
}

func (c *CaptureWriter) Write(n muse.Notification) error {
	msg := marshalNotification(n)
	if len(msg) > maxRecordLength {
		return fmt.Errorf("notification from %q: %w", n.Source, ErrRecordTooLarge)
	}
	_, err := c.w.Write(protowire.AppendBytes(nil, msg))
	return err
}

func (c *CaptureWriter) Flush() error {
	return c.w.Flush()
}

type CaptureReader struct {
	r *bufio.Reader
}

func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{r: bufio.NewReader(r)}
}

// Read returns io.EOF at a clean end of capture and io.ErrUnexpectedEOF
// for a truncated record.
func (c *CaptureReader) Read() (muse.Notification, error) {
	length, err := binary.ReadUvarint(c.r)
	if err != nil {
		return muse.Notification{}, err
	}
	if length > maxRecordLength {
		return muse.Notification{}, fmt.Errorf("record of %d bytes: %w", length, ErrRecordTooLarge)
	}

	msg := make([]byte, length)
	if _, err := io.ReadFull(c.r, msg); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return muse.Notification{}, err
	}
	return unmarshalNotification(msg)
}
