package core

// Mode is the protocol state of the emulated chip
type Mode uint8

const (
	AwaitingCommand Mode = iota // Next received byte is decoded as an opcode
	Streaming                   // Received bytes are filler; replies come from the active table
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case AwaitingCommand:
		return "awaiting_command"
	case Streaming:
		return "streaming"
	default:
		return "mode(" + itoa(int(m)) + ")"
	}
}

// Device is the protocol state machine of the emulated chip.
// It is owned by a single executor (the Responder loop) and is not safe for
// concurrent use.
type Device struct {
	profile *Profile

	mode   Mode
	active *ResponseTable // Only meaningful while Streaming
	cursor int            // Next index of active to transmit
}

// NewDevice returns a device in its power-up state
func NewDevice(profile *Profile) *Device {
	return &Device{
		profile: profile,
		mode:    AwaitingCommand,
	}
}

// Exchange consumes one received byte and returns the byte to transmit on
// the next exchange. ok is false when the byte was not an opcode the profile
// answers; in that case no new reply exists and the state is unchanged.
func (d *Device) Exchange(rx byte) (tx byte, ok bool) {
	if d.mode == Streaming {
		// Content of rx is irrelevant while streaming
		tx = d.active.Value(d.cursor)
		d.cursor++
		if d.cursor == d.active.Len() {
			d.mode = AwaitingCommand
		}
		return tx, true
	}

	cmd, found := d.profile.Lookup(rx)
	if !found {
		return 0, false
	}

	if !cmd.Streams() {
		return cmd.Status, true
	}

	// Index 0 goes out as the opcode reply, the stream continues from 1
	tx = cmd.Table.Value(0)
	if cmd.Table.Len() > 1 {
		d.mode = Streaming
		d.active = cmd.Table
		d.cursor = 1
	}
	return tx, true
}

// Deselect returns the device to AwaitingCommand.
// Called when chip-select was released, so an interrupted stream never
// leaks its next byte into the following transaction.
func (d *Device) Deselect() {
	d.mode = AwaitingCommand
	d.active = nil
	d.cursor = 0
}

// Mode returns the current protocol mode
func (d *Device) Mode() Mode {
	return d.mode
}

// Cursor returns the next table index to transmit (valid while Streaming)
func (d *Device) Cursor() int {
	return d.cursor
}

// Active returns the table being streamed, or nil when awaiting a command
func (d *Device) Active() *ResponseTable {
	if d.mode != Streaming {
		return nil
	}
	return d.active
}

// Profile returns the device revision profile
func (d *Device) Profile() *Profile {
	return d.profile
}
