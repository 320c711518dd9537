// Package serialport opens the serial or USB-CDC port the boot ROM and the
// payloads talk through.
package serialport

import (
	"fmt"
	"io"
	"time"

	"github.com/jacobsa/go-serial/serial"
	"go.uber.org/zap"

	"github.com/muurk/bromdump/internal/logging"
)

// DefaultBaud is the rate the boot ROM's USB-CDC interface announces.
const DefaultBaud = 115200

// DefaultTimeout is the inter-character timeout for reads.
const DefaultTimeout = 3 * time.Second

// Config selects and parameterises a port.
type Config struct {
	Port    string
	Baud    uint
	Timeout time.Duration

	// Trace logs every transfer at debug level
	Trace bool
}

// Options converts cfg to go-serial open options. A zero Timeout means
// reads block until at least one byte arrives.
func Options(cfg Config) serial.OpenOptions {
	baud := cfg.Baud
	if baud == 0 {
		baud = DefaultBaud
	}

	oo := serial.OpenOptions{
		PortName:          cfg.Port,
		BaudRate:          baud,
		DataBits:          8,
		StopBits:          1,
		ParityMode:        serial.PARITY_NONE,
		RTSCTSFlowControl: false,
		MinimumReadSize:   1,
	}
	if cfg.Timeout > 0 {
		// go-serial counts in milliseconds; with MinimumReadSize 0 a read
		// returns empty after the timeout
		oo.MinimumReadSize = 0
		oo.InterCharacterTimeout = uint(cfg.Timeout / time.Millisecond)
	}
	return oo
}

// Open opens the port described by cfg.
func Open(cfg Config) (io.ReadWriteCloser, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("no serial port given (use --port or set port in the config file)")
	}

	oo := Options(cfg)
	logging.Debug("Opening serial port",
		zap.String("port", oo.PortName),
		zap.Uint("baud", oo.BaudRate),
		zap.Uint("inter_char_timeout_ms", oo.InterCharacterTimeout),
	)

	s, err := serial.Open(oo)
	if err != nil {
		return nil, fmt.Errorf("can't open serial port %s: %w", cfg.Port, err)
	}
	if cfg.Trace {
		return &tracer{rw: s}, nil
	}
	return s, nil
}

// Trace wraps rw so every read and write is logged.
func Trace(rw io.ReadWriter) io.ReadWriter {
	return &tracer{rw: rw}
}

type tracer struct {
	rw io.ReadWriter
}

func (t *tracer) Read(p []byte) (int, error) {
	n, err := t.rw.Read(p)
	if n > 0 {
		logging.LogTransfer("rx", p[:n])
	}
	return n, err
}

func (t *tracer) Write(p []byte) (int, error) {
	n, err := t.rw.Write(p)
	if n > 0 {
		logging.LogTransfer("tx", p[:n])
	}
	return n, err
}

func (t *tracer) Close() error {
	if c, ok := t.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
