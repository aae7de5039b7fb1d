package bus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	serial "go.bug.st/serial"

	"dbw-bridge/utils"
)

// SerialSource reads line protocol messages from a serial port, typically a
// bench simulator or a microcontroller bridging the vehicle's sensors.
type SerialSource struct {
	port serial.Port
	dev  string
	sink InputSink
	log  *utils.Logger
}

func NewSerialSource(dev string, baud int, sink InputSink, log *utils.Logger) (*SerialSource, error) {
	p, err := serial.Open(dev, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial %s: %w", dev, err)
	}
	return &SerialSource{port: p, dev: dev, sink: sink, log: log}, nil
}

// Run reads lines until ctx ends or the port fails. The port is closed when
// ctx ends to unblock the pending read.
func (s *SerialSource) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.port.Close() })
	defer stop()

	s.log.Info("Serial source reading %s", s.dev)
	err := ReadLines(ctx, s.port, s.sink, s.log)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (s *SerialSource) Close() error {
	return s.port.Close()
}

// ReadLines feeds every line of r to DecodeLine. Malformed lines are logged
// and skipped. Returns nil at EOF.
func ReadLines(ctx context.Context, r io.Reader, sink InputSink, log *utils.Logger) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var bad uint64
	for sc.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := DecodeLine(sc.Text(), sink); err != nil {
			bad++
			if bad == 1 || errors.Is(err, ErrUnknownMessage) {
				log.Warn("Dropped line (%d bad so far): %v", bad, err)
			} else {
				log.Debug("Dropped line (%d bad so far): %v", bad, err)
			}
		}
	}
	return sc.Err()
}
