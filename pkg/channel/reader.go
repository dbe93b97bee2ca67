package channel

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/itohio/comview/pkg/device"
	"github.com/itohio/comview/pkg/frame"
	"github.com/itohio/comview/pkg/sample"
)

// reader pulls bytes from an open port and appends the parsed values to
// the channel buffer.
type reader struct {
	port      device.Port
	buf       *sample.Buffer
	transform func(float64) float64
	log       *logrus.Entry

	framer  frame.Framer
	dropped int
}

// run reads until ctx is cancelled or the port fails. It always closes the
// port before returning. A nil result means the reader was cancelled.
func (r *reader) run(ctx context.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("reader panic: %v", rec)
		}
		if cerr := r.port.Close(); cerr != nil {
			r.log.WithError(cerr).Warn("Error closing device")
		}
		if err != nil {
			r.log.WithError(err).Error("Error reading from device")
		}
		r.log.WithField("dropped", r.dropped).Debug("Reader exited")
	}()

	buf := make([]byte, ReadBufferSize)
	for ctx.Err() == nil {
		n, err := r.port.Read(buf)
		if n > 0 {
			r.feed(buf[:n])
		}
		if err != nil {
			if errors.Is(err, device.ErrTimeout) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
	return nil
}

// feed frames p and appends every numeric frame. Frames that don't parse
// are dropped.
func (r *reader) feed(p []byte) {
	r.framer.Write(p)
	for line := range r.framer.Frames() {
		v, ok := frame.Parse(line)
		if !ok {
			r.dropped++
			r.log.WithField("frame", line).Debug("Dropping malformed frame")
			continue
		}
		r.buf.Append(r.transform(v))
	}
}
