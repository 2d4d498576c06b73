package spidev

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3/conntest"
	"periph.io/x/conn/v3/spi/spitest"

	"greendot/core"
	"greendot/probe"
)

func TestProbeOverPlayback(t *testing.T) {
	// What the logger sees from an extended chip on the wire: the opcode
	// exchange returns idle, the reply follows
	status := conntest.IO{
		W: []byte{core.OpStatus, 0x00},
		R: []byte{0xFF, core.StatusReady},
	}
	mid := conntest.IO{
		W: []byte{core.OpManufacturerID, 0x00, 0x00, 0x00, 0x00},
		R: []byte{0xFF, 0x1F, 0x22, 0x00, 0x00},
	}
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops:       []conntest.IO{status, mid},
			DontPanic: true,
		},
	}

	bus, err := Connect(port, DefaultConfig())
	require.NoError(t, err)

	chip := &probe.Chip{Bus: bus}

	s, err := chip.Status()
	require.NoError(t, err)
	assert.Equal(t, byte(core.StatusReady), s)

	id, err := chip.ManufacturerID()
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1F, 0x22, 0x00, 0x00}, id)

	require.NoError(t, bus.Close())
}

func TestTxNilBuffers(t *testing.T) {
	port := &spitest.Playback{
		Playback: conntest.Playback{
			Ops: []conntest.IO{
				{W: []byte{0, 0, 0}, R: []byte{1, 2, 3}},
				{W: []byte{0xD7}, R: []byte{0}},
			},
			DontPanic: true,
		},
	}
	bus, err := Connect(port, DefaultConfig())
	require.NoError(t, err)

	r := make([]byte, 3)
	require.NoError(t, bus.Tx(nil, r))
	assert.Equal(t, []byte{1, 2, 3}, r)

	require.NoError(t, bus.Tx([]byte{0xD7}, nil))
	require.NoError(t, bus.Close())
}

func TestConnectValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mode = 4
	_, err := Connect(&spitest.Playback{}, cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.SpeedHz = 0
	_, err = Connect(&spitest.Playback{}, cfg)
	assert.Error(t, err)
}

func TestTxLengthMismatch(t *testing.T) {
	bus, err := Connect(&spitest.Playback{Playback: conntest.Playback{DontPanic: true}}, DefaultConfig())
	require.NoError(t, err)
	assert.Error(t, bus.Tx([]byte{1, 2}, make([]byte, 1)))
}
