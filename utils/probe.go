package utils

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.einride.tech/can"
	"go.einride.tech/can/pkg/socketcan"
)

// BusProbe sanity-checks a SocketCAN interface after it has been brought up
// with a calculated timing: transmit a marker frame and optionally listen
// for any traffic. A bus configured with a mismatched bit rate will
// typically error out on transmit or stay silent.
type BusProbe struct {
	conn net.Conn
	tx   *socketcan.Transmitter
	rx   *socketcan.Receiver
}

// NewBusProbe dials the interface, e.g. "can0" or "vcan0".
func NewBusProbe(ctx context.Context, iface string) (*BusProbe, error) {
	conn, err := socketcan.DialContext(ctx, "can", iface)
	if err != nil {
		return nil, fmt.Errorf("socketcan dial %s: %w", iface, err)
	}
	return &BusProbe{
		conn: conn,
		tx:   socketcan.NewTransmitter(conn),
		rx:   socketcan.NewReceiver(conn),
	}, nil
}

// Send transmits the probe frame.
func (p *BusProbe) Send(ctx context.Context, frame can.Frame) error {
	return p.tx.TransmitFrame(ctx, frame)
}

// WaitForTraffic blocks until any frame arrives or the timeout elapses.
// Returns the frame seen and whether one arrived in time.
func (p *BusProbe) WaitForTraffic(ctx context.Context, timeout time.Duration) (can.Frame, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	frameChan := make(chan can.Frame, 1)
	errChan := make(chan error, 1)
	go func() {
		if p.rx.Receive() {
			frameChan <- p.rx.Frame()
		} else {
			errChan <- p.rx.Err()
		}
	}()

	select {
	case <-ctx.Done():
		return can.Frame{}, false, nil
	case frame := <-frameChan:
		return frame, true, nil
	case err := <-errChan:
		if err == nil {
			err = fmt.Errorf("receive failed")
		}
		return can.Frame{}, false, err
	}
}

func (p *BusProbe) Close() error {
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
