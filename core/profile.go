package core

import "errors"

// Opcodes understood by the emulated chip
const (
	OpStatus           = 0xD7 // Status register read
	OpSecurityRegister = 0x77 // Security register read
	OpManufacturerID   = 0x9F // Manufacturer and device ID read

	StatusReady = 0x8C // Fixed status byte: ready, no protection bits set
)

var (
	ErrUnknownProfile  = errors.New("unknown device profile")
	ErrDuplicateOpcode = errors.New("duplicate opcode in profile")
	ErrEmptyProfile    = errors.New("profile has no commands")
)

// Command maps one opcode to its reply.
// A command with a nil Table answers with the single Status byte and does not
// enter streaming mode.
type Command struct {
	Opcode byte
	Status byte
	Table  *ResponseTable
}

// Streams reports whether the command starts a multi-byte reply
func (c Command) Streams() bool {
	return c.Table != nil
}

// Profile describes one device revision: the opcodes it answers and the
// tables behind them.
type Profile struct {
	Name     string
	Commands []Command

	// Opcode dispatch table, indexed by opcode; built once by NewProfile
	dispatch [256]int16
}

// NewProfile builds a profile and its constant-time dispatch table
func NewProfile(name string, commands ...Command) (*Profile, error) {
	if len(commands) == 0 {
		return nil, ErrEmptyProfile
	}

	p := &Profile{
		Name:     name,
		Commands: make([]Command, len(commands)),
	}
	copy(p.Commands, commands)

	for i := range p.dispatch {
		p.dispatch[i] = -1
	}
	for i, cmd := range p.Commands {
		if p.dispatch[cmd.Opcode] >= 0 {
			return nil, ErrDuplicateOpcode
		}
		if cmd.Table != nil && cmd.Table.Len() == 0 {
			return nil, errors.New("profile " + name + ": empty table for opcode " + hex8(cmd.Opcode))
		}
		p.dispatch[cmd.Opcode] = int16(i)
	}

	return p, nil
}

// MustProfile is NewProfile for static presets; it panics on error
func MustProfile(name string, commands ...Command) *Profile {
	p, err := NewProfile(name, commands...)
	if err != nil {
		panic(err)
	}
	return p
}

// Lookup returns the command registered for opcode
func (p *Profile) Lookup(opcode byte) (Command, bool) {
	idx := p.dispatch[opcode]
	if idx < 0 {
		return Command{}, false
	}
	return p.Commands[idx], true
}

// Tables returns the distinct tables the profile can stream, in command order
func (p *Profile) Tables() []*ResponseTable {
	var tables []*ResponseTable
	for _, cmd := range p.Commands {
		if cmd.Table == nil {
			continue
		}
		seen := false
		for _, t := range tables {
			if t == cmd.Table {
				seen = true
				break
			}
		}
		if !seen {
			tables = append(tables, cmd.Table)
		}
	}
	return tables
}

// Opcodes returns the accepted opcodes as a comma separated hex list
func (p *Profile) Opcodes() string {
	s := ""
	for i, cmd := range p.Commands {
		if i > 0 {
			s += ","
		}
		s += hex8(cmd.Opcode)
	}
	return s
}

// Device revision presets
var (
	// BaseProfile answers status and security register reads
	BaseProfile = MustProfile("base",
		Command{Opcode: OpStatus, Status: StatusReady},
		Command{Opcode: OpSecurityRegister, Table: SecurityRegister},
	)

	// ExtendedProfile adds the manufacturer ID read
	ExtendedProfile = MustProfile("extended",
		Command{Opcode: OpStatus, Status: StatusReady},
		Command{Opcode: OpSecurityRegister, Table: SecurityRegister},
		Command{Opcode: OpManufacturerID, Table: ManufacturerID},
	)
)

// ProfileByName returns a preset by name ("base" or "extended")
func ProfileByName(name string) (*Profile, error) {
	switch name {
	case "base":
		return BaseProfile, nil
	case "extended":
		return ExtendedProfile, nil
	default:
		return nil, ErrUnknownProfile
	}
}
