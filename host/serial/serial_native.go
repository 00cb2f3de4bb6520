//go:build !wasm

package serial

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tarm/serial"
)

var errNoDevice = errors.New("serial: no device configured")

// TTY is a Port on a serial device, backed by github.com/tarm/serial.
type TTY struct {
	device string
	port   *serial.Port
	closed atomic.Bool
}

// Open opens the device named in cfg. Reads return io.EOF when
// cfg.ReadTimeout passes without data.
func Open(cfg *Config) (*TTY, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, errNoDevice
	}
	if cfg.Baud <= 0 || cfg.ReadTimeout < 0 {
		return nil, fmt.Errorf("serial: %s: invalid baud %d or timeout %dms", cfg.Device, cfg.Baud, cfg.ReadTimeout)
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}
	return &TTY{device: cfg.Device, port: port}, nil
}

func (t *TTY) Device() string { return t.device }

func (t *TTY) Read(b []byte) (int, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}
	return t.port.Read(b)
}

func (t *TTY) Write(b []byte) (int, error) {
	if t.closed.Load() {
		return 0, ErrClosed
	}
	return t.port.Write(b)
}

// Close is safe to call more than once.
func (t *TTY) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.port.Close()
}

// Flush drops unread input and unsent output.
func (t *TTY) Flush() error {
	if t.closed.Load() {
		return ErrClosed
	}
	return t.port.Flush()
}

var _ Port = (*TTY)(nil)
