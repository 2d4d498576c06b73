// Package mcu is the host side of the telemetry link: it reads the data
// dictionary and decodes status and event reports from the firmware.
package mcu

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"greendot/core"
	"greendot/host/serial"
	"greendot/protocol"
)

// Bootstrap message IDs, fixed before the dictionary is known
const (
	identifyResponseID = 0
	identifyID         = 1

	identifyChunk = 40
	eventPage     = 8
)

var (
	ErrNotConnected = errors.New("mcu: not connected")
	ErrNoDictionary = errors.New("mcu: dictionary not loaded")
)

// MCU is a connection to the emulator firmware
type MCU struct {
	transport *protocol.HostTransport

	dictionary     *Dictionary
	dictionaryData []byte

	// ResponseTimeout bounds the wait for each reply
	ResponseTimeout time.Duration
}

// Response is a decoded firmware message
type Response struct {
	Name  string
	Ints  map[string]uint32
	Bytes map[string][]byte
}

// Status is the firmware's responder counters
type Status struct {
	Profile string
	core.Stats
}

// Event is one entry of the firmware event ring
type Event struct {
	core.ExchangeEvent
}

// String formats the event like the firmware's own dump
func (e Event) String() string {
	return fmt.Sprintf("%-14s op=0x%02X clock=%d v1=%d v2=%d",
		core.EventName(e.EventType), e.Opcode, e.Clock, e.Value1, e.Value2)
}

// Open connects to the firmware over a serial port
func Open(cfg *serial.Config) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	// Drop whatever the firmware sent before we were listening
	_ = port.Flush()
	return New(port), nil
}

// New starts a client on an already open byte stream
func New(port io.ReadWriteCloser) *MCU {
	return &MCU{
		transport:       protocol.NewHostTransport(port),
		ResponseTimeout: time.Second,
	}
}

// Close closes the link
func (m *MCU) Close() error {
	if m.transport == nil {
		return nil
	}
	err := m.transport.Close()
	m.transport = nil
	return err
}

// RetrieveDictionary downloads and parses the data dictionary
func (m *MCU) RetrieveDictionary() error {
	if m.transport == nil {
		return ErrNotConnected
	}

	var buf bytes.Buffer
	for offset := uint32(0); ; {
		chunk, err := m.identify(offset, identifyChunk)
		if err != nil {
			return fmt.Errorf("dictionary chunk at offset %d: %w", offset, err)
		}
		buf.Write(chunk)
		offset += uint32(len(chunk))
		if len(chunk) < identifyChunk {
			break
		}
	}

	dict, err := ParseDictionary(buf.Bytes())
	if err != nil {
		return err
	}
	m.dictionaryData = buf.Bytes()
	m.dictionary = dict
	return nil
}

// identify fetches one dictionary chunk
func (m *MCU) identify(offset uint32, count uint8) ([]byte, error) {
	err := m.transport.SendCommand(identifyID, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQUint(output, uint32(count))
	})
	if err != nil {
		return nil, err
	}

	for {
		msg, err := m.transport.ReceiveResponse(m.ResponseTimeout)
		if err != nil {
			return nil, err
		}
		id, err := msg.ID()
		if err != nil || id != identifyResponseID {
			continue
		}

		args := msg.Args()
		respOffset, err := protocol.DecodeVLQUint(&args)
		if err != nil {
			return nil, fmt.Errorf("decode offset: %w", err)
		}
		if respOffset != offset {
			return nil, fmt.Errorf("offset mismatch: expected %d, got %d", offset, respOffset)
		}
		data, err := protocol.DecodeVLQBytes(&args)
		if err != nil {
			return nil, fmt.Errorf("decode data: %w", err)
		}
		return data, nil
	}
}

// Dictionary returns the parsed dictionary
func (m *MCU) Dictionary() *Dictionary {
	return m.dictionary
}

// DictionaryRaw returns the dictionary JSON as downloaded
func (m *MCU) DictionaryRaw() []byte {
	return m.dictionaryData
}

// SendCommand sends a command by name with integer arguments in format order
func (m *MCU) SendCommand(name string, args ...uint32) error {
	if m.transport == nil {
		return ErrNotConnected
	}
	if m.dictionary == nil {
		return ErrNoDictionary
	}

	mf, ok := m.dictionary.Command(name)
	if !ok {
		return fmt.Errorf("mcu: unknown command %q", name)
	}
	if len(args) != len(mf.Args) {
		return fmt.Errorf("mcu: %s takes %d arguments, got %d", name, len(mf.Args), len(args))
	}

	return m.transport.SendCommand(mf.ID, func(output protocol.OutputBuffer) {
		for _, v := range args {
			protocol.EncodeVLQUint(output, v)
		}
	})
}

// Receive waits for the next response called name, skipping others
func (m *MCU) Receive(name string) (*Response, error) {
	deadline := time.Now().Add(m.ResponseTimeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("mcu: no %s response: %w", name, protocol.ErrResponseTimeout)
		}
		msg, err := m.transport.ReceiveResponse(remaining)
		if err != nil {
			return nil, err
		}
		resp, err := m.decode(msg)
		if err != nil {
			return nil, err
		}
		if resp.Name == name {
			return resp, nil
		}
	}
}

// decode turns a frame into a named response using the dictionary
func (m *MCU) decode(msg *protocol.Message) (*Response, error) {
	id, err := msg.ID()
	if err != nil {
		return nil, err
	}
	mf, ok := m.dictionary.Response(id)
	if !ok {
		return nil, fmt.Errorf("mcu: unknown response id %d", id)
	}

	resp := &Response{
		Name:  mf.Name,
		Ints:  make(map[string]uint32),
		Bytes: make(map[string][]byte),
	}
	args := msg.Args()
	for _, arg := range mf.Args {
		switch arg.Kind {
		case ArgInt:
			v, err := protocol.DecodeVLQUint(&args)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", mf.Name, arg.Name, err)
			}
			resp.Ints[arg.Name] = v
		case ArgBytes:
			b, err := protocol.DecodeVLQBytes(&args)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", mf.Name, arg.Name, err)
			}
			resp.Bytes[arg.Name] = b
		}
	}
	return resp, nil
}

// Status queries the responder counters
func (m *MCU) Status() (*Status, error) {
	if err := m.SendCommand("get_status"); err != nil {
		return nil, err
	}
	resp, err := m.Receive("status")
	if err != nil {
		return nil, err
	}

	return &Status{
		Profile: string(resp.Bytes["profile"]),
		Stats: core.Stats{
			Exchanges:      resp.Ints["exchanges"],
			Transactions:   resp.Ints["transactions"],
			UnknownOpcodes: resp.Ints["unknown"],
			Reselects:      resp.Ints["reselects"],
			Completed:      resp.Ints["completed"],
			Overruns:       resp.Ints["overruns"],
			Panics:         resp.Ints["panics"],
		},
	}, nil
}

// Uptime returns firmware ticks since boot
func (m *MCU) Uptime() (uint32, error) {
	if err := m.SendCommand("get_uptime"); err != nil {
		return 0, err
	}
	resp, err := m.Receive("uptime")
	if err != nil {
		return 0, err
	}
	return resp.Ints["clock"], nil
}

// Events downloads the event ring, oldest first, one page at a time
func (m *MCU) Events() ([]Event, error) {
	var events []Event
	for offset := uint32(0); ; {
		if err := m.SendCommand("dump_events", offset, eventPage); err != nil {
			return nil, err
		}
		header, err := m.Receive("events")
		if err != nil {
			return nil, err
		}

		count := header.Ints["count"]
		for i := uint32(0); i < count; i++ {
			resp, err := m.Receive("event")
			if err != nil {
				return nil, err
			}
			events = append(events, Event{core.ExchangeEvent{
				EventType: uint8(resp.Ints["type"]),
				Opcode:    uint8(resp.Ints["opcode"]),
				Clock:     resp.Ints["clock"],
				Value1:    resp.Ints["v1"],
				Value2:    resp.Ints["v2"],
			}})
		}

		offset += count
		if count == 0 || offset >= header.Ints["total"] {
			return events, nil
		}
	}
}

// ClearEvents empties the firmware event ring
func (m *MCU) ClearEvents() error {
	return m.SendCommand("clear_events")
}

// SetDebug toggles firmware debug output
func (m *MCU) SetDebug(enable bool) error {
	var v uint32
	if enable {
		v = 1
	}
	return m.SendCommand("set_debug", v)
}

// PrintDictionary prints a summary of the dictionary
func (m *MCU) PrintDictionary(w io.Writer) {
	if m.dictionary == nil {
		fmt.Fprintln(w, "No dictionary loaded")
		return
	}

	d := m.dictionary
	fmt.Fprintln(w, "=== Firmware Dictionary ===")
	fmt.Fprintf(w, "Version: %s\n", d.Version)
	fmt.Fprintf(w, "Build: %s\n", d.BuildVersions)

	fmt.Fprintln(w, "\nConfig:")
	for _, k := range sortedKeys(d.Config) {
		fmt.Fprintf(w, "  %s = %s\n", k, d.Config[k])
	}

	fmt.Fprintf(w, "\nCommands (%d):\n", len(d.Commands))
	for _, f := range sortedByID(d.Commands) {
		fmt.Fprintf(w, "  [%d] %s\n", d.Commands[f], f)
	}
	fmt.Fprintf(w, "\nResponses (%d):\n", len(d.Responses))
	for _, f := range sortedByID(d.Responses) {
		fmt.Fprintf(w, "  [%d] %s\n", d.Responses[f], f)
	}
}
