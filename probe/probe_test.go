package probe

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"greendot/core"
	"greendot/sim"
)

func newSimChip(t *testing.T, profile *core.Profile) (*Chip, *sim.Harness) {
	t.Helper()
	h := sim.Start(profile)
	t.Cleanup(func() { require.NoError(t, h.Stop()) })

	return &Chip{
		Bus: h.Bus,
		Select: func(asserted bool) {
			if asserted {
				h.Bus.Select()
			} else {
				h.Bus.Deselect()
			}
		},
	}, h
}

func TestIdentifyExtended(t *testing.T) {
	chip, h := newSimChip(t, core.ExtendedProfile)

	report, err := chip.Identify()
	require.NoError(t, err)

	assert.Equal(t, byte(core.StatusReady), report.Status)
	assert.Equal(t, core.SecurityRegister.Bytes(), report.SecurityRegister)
	assert.Equal(t, []byte{0x1F, 0x22, 0x00, 0x00}, report.ManufacturerID)
	assert.Equal(t, "extended", report.Profile)

	stats := h.Stats()
	assert.Equal(t, uint32(3), stats.Transactions)
	assert.Equal(t, uint32(2), stats.Completed)
}

func TestIdentifyBase(t *testing.T) {
	chip, _ := newSimChip(t, core.BaseProfile)

	report, err := chip.Identify()
	require.NoError(t, err)

	assert.Equal(t, "base", report.Profile)
	require.NoError(t, Verify(report, core.BaseProfile))

	err = Verify(report, core.ExtendedProfile)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMismatch))
}

func TestVerifyReportsFirstDifference(t *testing.T) {
	report := &Report{
		Status:           core.StatusReady,
		SecurityRegister: core.SecurityRegister.Bytes(),
	}
	report.SecurityRegister[10] ^= 0x01

	err := Verify(report, core.BaseProfile)
	require.ErrorIs(t, err, ErrMismatch)
	assert.Contains(t, err.Error(), "byte 10")
}

func TestVerifyShortRead(t *testing.T) {
	report := &Report{
		Status:           core.StatusReady,
		SecurityRegister: core.SecurityRegister.Bytes()[:20],
	}

	err := Verify(report, core.BaseProfile)
	require.ErrorIs(t, err, ErrMismatch)
	assert.Contains(t, err.Error(), "byte 20")
}

func TestIdentifyNoChip(t *testing.T) {
	chip := &Chip{Bus: floatingBus{}}

	_, err := chip.Identify()
	require.ErrorIs(t, err, ErrNoResponse)
}

func TestBusError(t *testing.T) {
	chip, h := newSimChip(t, core.ExtendedProfile)
	chip.Select = nil // Bus is never selected

	_, err := chip.Status()
	require.ErrorIs(t, err, sim.ErrNotSelected)
	assert.Equal(t, uint32(0), h.Bus.Exchanges())
}

// floatingBus reads a pulled-up MISO with nothing attached
type floatingBus struct{}

func (floatingBus) Tx(w, r []byte) error {
	for i := range r {
		r[i] = 0xFF
	}
	return nil
}

func (floatingBus) Transfer(b byte) (byte, error) {
	return 0xFF, nil
}
