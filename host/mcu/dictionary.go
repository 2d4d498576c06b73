package mcu

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Dictionary is the parsed firmware data dictionary
type Dictionary struct {
	Version       string            `json:"version"`
	BuildVersions string            `json:"build_versions"`
	Config        map[string]string `json:"config"`
	Commands      map[string]int    `json:"commands"`
	Responses     map[string]int    `json:"responses"`

	commands  map[string]*MessageFormat // By name
	responses map[uint16]*MessageFormat // By ID
}

// ArgKind is how a message argument is encoded
type ArgKind uint8

const (
	ArgInt   ArgKind = iota // %u %i %c: VLQ integer
	ArgBytes                // %s %*s: length-prefixed bytes
)

// Arg is one named message argument
type Arg struct {
	Name string
	Kind ArgKind
}

// MessageFormat describes one message, e.g. "status profile=%s exchanges=%u"
type MessageFormat struct {
	ID   uint16
	Name string
	Args []Arg
}

// ParseDictionary decodes the dictionary JSON and indexes its messages
func ParseDictionary(data []byte) (*Dictionary, error) {
	dict := &Dictionary{}
	if err := json.Unmarshal(data, dict); err != nil {
		return nil, fmt.Errorf("unmarshal dictionary: %w", err)
	}

	dict.commands = make(map[string]*MessageFormat, len(dict.Commands))
	for format, id := range dict.Commands {
		mf, err := parseFormat(format, id)
		if err != nil {
			return nil, err
		}
		dict.commands[mf.Name] = mf
	}

	dict.responses = make(map[uint16]*MessageFormat, len(dict.Responses))
	for format, id := range dict.Responses {
		mf, err := parseFormat(format, id)
		if err != nil {
			return nil, err
		}
		dict.responses[mf.ID] = mf
	}
	return dict, nil
}

// parseFormat splits "name a=%u b=%s" into its parts
func parseFormat(format string, id int) (*MessageFormat, error) {
	if id < 0 || id > 0xFFFF {
		return nil, fmt.Errorf("message %q: id %d out of range", format, id)
	}
	fields := strings.Fields(format)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty message format (id %d)", id)
	}

	mf := &MessageFormat{ID: uint16(id), Name: fields[0]}
	for _, field := range fields[1:] {
		name, verb, ok := strings.Cut(field, "=")
		if !ok {
			return nil, fmt.Errorf("message %s: malformed argument %q", mf.Name, field)
		}
		var kind ArgKind
		switch verb {
		case "%u", "%i", "%c", "%hu", "%hi":
			kind = ArgInt
		case "%s", "%*s", "%.*s":
			kind = ArgBytes
		default:
			return nil, fmt.Errorf("message %s: unsupported type %q", mf.Name, verb)
		}
		mf.Args = append(mf.Args, Arg{Name: name, Kind: kind})
	}
	return mf, nil
}

// Command returns the format of a host command by name
func (d *Dictionary) Command(name string) (*MessageFormat, bool) {
	mf, ok := d.commands[name]
	return mf, ok
}

// Response returns the format of a firmware response by ID
func (d *Dictionary) Response(id uint16) (*MessageFormat, bool) {
	mf, ok := d.responses[id]
	return mf, ok
}

// ResponseID returns the ID of a firmware response by name
func (d *Dictionary) ResponseID(name string) (uint16, bool) {
	for id, mf := range d.responses {
		if mf.Name == name {
			return id, true
		}
	}
	return 0, false
}
