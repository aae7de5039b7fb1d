package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// DefaultWriteTimeout bounds one frame write. A bus that cannot take a
// frame within one 50 Hz period is reported as a failed publish.
const DefaultWriteTimeout = 20 * time.Millisecond

var ErrWriterClosed = errors.New("can writer closed")

type CANWriter interface {
	WriteFrame(ctx context.Context, frame can.Frame) error
	Close() error
}

var _ CANWriter = (*SocketCANWriter)(nil)

type SocketCANWriter struct {
	iface        string
	conn         net.Conn
	tx           *socketcan.Transmitter
	writeTimeout time.Duration
	closed       atomic.Bool
}

func dialSocketCAN(ctx context.Context, iface string) (net.Conn, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return conn, nil
}

func NewSocketCANWriter(ctx context.Context, iface string) (*SocketCANWriter, error) {
	conn, err := dialSocketCAN(ctx, iface)
	if err != nil {
		return nil, err
	}
	return &SocketCANWriter{
		iface:        iface,
		conn:         conn,
		tx:           socketcan.NewTransmitter(conn),
		writeTimeout: DefaultWriteTimeout,
	}, nil
}

// SetWriteTimeout changes the per-frame deadline. Zero leaves writes bounded
// only by the caller's context.
func (w *SocketCANWriter) SetWriteTimeout(d time.Duration) { w.writeTimeout = d }

func (w *SocketCANWriter) WriteFrame(ctx context.Context, frame can.Frame) error {
	if w.closed.Load() {
		return ErrWriterClosed
	}
	if err := frame.Validate(); err != nil {
		return fmt.Errorf("frame 0x%X: %w", frame.ID, err)
	}
	if w.writeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.writeTimeout)
		defer cancel()
	}
	if err := w.tx.TransmitFrame(ctx, frame); err != nil {
		return fmt.Errorf("%s: %w", w.iface, err)
	}
	return nil
}

func (w *SocketCANWriter) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	return w.conn.Close()
}
