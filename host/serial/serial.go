// Package serial opens the USB CDC port of the emulator firmware
package serial

import (
	"io"
	"time"

	"greendot/host/config"
)

// Port is a serial port. The monitor only needs a byte stream, so tests
// substitute pipes.
type Port interface {
	io.ReadWriteCloser

	// Flush discards data buffered by the driver
	Flush() error
}

// Config holds serial port settings
type Config struct {
	// Device path (e.g. "/dev/ttyACM0", "COM3")
	Device string

	// Baud is ignored by USB CDC but required by the driver
	Baud int

	// ReadTimeout bounds each Read; 0 blocks
	ReadTimeout time.Duration
}

// DefaultConfig returns the defaults for device
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        250000,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// FromMonitor converts the monitor section of the host configuration
func FromMonitor(m config.MonitorConfig) *Config {
	return &Config{
		Device:      m.Device,
		Baud:        m.Baud,
		ReadTimeout: m.ReadTimeout(),
	}
}
