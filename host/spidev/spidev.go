// Package spidev drives a real SPI master (Linux spidev, FTDI, ...)
// through periph.io so the probe can read a flashed emulator.
package spidev

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"

	"tinygo.org/x/drivers"
)

// Config selects the port and clocking
type Config struct {
	Port    string // spireg name, e.g. "/dev/spidev0.0" or "SPI0.0"; empty picks the first port
	SpeedHz int64
	Mode    int // SPI mode 0-3; the logger clocks in mode 3
}

// DefaultConfig matches the logger's bus: 1MHz, mode 3
func DefaultConfig() Config {
	return Config{
		SpeedHz: 1000000,
		Mode:    3,
	}
}

// Bus adapts a periph SPI connection to drivers.SPI. Chip-select is
// asserted by the port for the duration of every Tx.
type Bus struct {
	conn   spi.Conn
	closer interface{ Close() error }
}

var _ drivers.SPI = (*Bus)(nil)

// Open initialises periph host drivers and connects to the port
func Open(cfg Config) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph init: %w", err)
	}

	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("open spi port %q: %w", cfg.Port, err)
	}

	bus, err := Connect(port, cfg)
	if err != nil {
		port.Close()
		return nil, err
	}
	return bus, nil
}

// Connect configures an already opened port
func Connect(port spi.PortCloser, cfg Config) (*Bus, error) {
	if cfg.Mode < 0 || cfg.Mode > 3 {
		return nil, fmt.Errorf("invalid spi mode %d", cfg.Mode)
	}
	if cfg.SpeedHz <= 0 {
		return nil, errors.New("spi speed must be positive")
	}

	conn, err := port.Connect(physic.Frequency(cfg.SpeedHz)*physic.Hertz, spi.Mode(cfg.Mode), 8)
	if err != nil {
		return nil, fmt.Errorf("connect spi port: %w", err)
	}
	return &Bus{conn: conn, closer: port}, nil
}

// Tx performs one full-duplex transaction. A nil w clocks zeros.
func (b *Bus) Tx(w, r []byte) error {
	if w == nil {
		w = make([]byte, len(r))
	}
	if r == nil {
		r = make([]byte, len(w))
	}
	if len(w) != len(r) {
		return fmt.Errorf("spidev: write %d bytes, read %d bytes", len(w), len(r))
	}
	return b.conn.Tx(w, r)
}

// Transfer clocks a single byte as its own transaction
func (b *Bus) Transfer(w byte) (byte, error) {
	var r [1]byte
	if err := b.conn.Tx([]byte{w}, r[:]); err != nil {
		return 0, err
	}
	return r[0], nil
}

// String names the underlying connection
func (b *Bus) String() string {
	return b.conn.String()
}

// Close releases the port
func (b *Bus) Close() error {
	return b.closer.Close()
}
