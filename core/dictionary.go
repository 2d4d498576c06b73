package core

import "sync"

// Constant is a firmware constant exposed to the host in the dictionary
type Constant struct {
	Name  string
	Value interface{} // string, int, uint8 or uint32
}

// Dictionary describes the telemetry link to the host: firmware version,
// build constants (profile, opcodes) and the message ID table
type Dictionary struct {
	mu            sync.RWMutex
	constants     map[string]*Constant
	commandReg    *CommandRegistry
	version       string
	buildVersions string
	cachedDict    []byte
}

var globalDictionary = NewDictionary(globalRegistry)

// NewDictionary creates a dictionary bound to a command registry
func NewDictionary(cmdReg *CommandRegistry) *Dictionary {
	return &Dictionary{
		constants:     make(map[string]*Constant),
		commandReg:    cmdReg,
		version:       "greendot-0.2.0",
		buildVersions: "go-tinygo",
	}
}

// RegisterConstant registers a constant in the global dictionary
func RegisterConstant(name string, value interface{}) {
	globalDictionary.AddConstant(name, value)
}

// AddConstant adds a constant to the dictionary
func (d *Dictionary) AddConstant(name string, value interface{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.constants[name] = &Constant{Name: name, Value: value}
	d.cachedDict = nil
}

// SetVersion sets the firmware version string
func (d *Dictionary) SetVersion(version string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.version = version
	d.cachedDict = nil
}

// BuildDictionary builds and caches the dictionary.
// Call after all messages and constants are registered.
func (d *Dictionary) BuildDictionary() {
	// Fetch registry data before taking our own lock (registry has its own)
	commands, responses := d.commandReg.GetCommandsAndResponses()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.cachedDict = d.buildJSONLocked(commands, responses)
	DebugPrintln("[DICT] built " + itoa(len(d.cachedDict)) + " bytes")
}

// Generate returns the dictionary JSON, building it if necessary
func (d *Dictionary) Generate() []byte {
	d.mu.RLock()
	cached := d.cachedDict
	d.mu.RUnlock()
	if cached != nil {
		return cached
	}

	commands, responses := d.commandReg.GetCommandsAndResponses()
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.buildJSONLocked(commands, responses)
}

// buildJSONLocked renders the dictionary without encoding/json (caller holds lock).
// Keys are sorted so the output is stable across builds.
func (d *Dictionary) buildJSONLocked(commands, responses map[string]int) []byte {
	result := make([]byte, 0, 512)

	result = append(result, `{"version":"`...)
	result = append(result, d.version...)
	result = append(result, `","build_versions":"`...)
	result = append(result, d.buildVersions...)
	result = append(result, `","config":{`...)

	names := make([]string, 0, len(d.constants))
	for name := range d.constants {
		names = append(names, name)
	}
	sortStrings(names)
	for i, name := range names {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, name...)
		result = append(result, `":"`...)
		result = append(result, valueToString(d.constants[name].Value)...)
		result = append(result, '"')
	}

	result = append(result, `},"commands":`...)
	result = appendIDMap(result, commands)
	result = append(result, `,"responses":`...)
	result = appendIDMap(result, responses)
	result = append(result, '}')

	return result
}

// appendIDMap renders a "format" -> ID map ordered by ID
func appendIDMap(result []byte, m map[string]int) []byte {
	formats := make([]string, len(m))
	ids := make([]int, 0, len(m))
	for _, id := range m {
		ids = append(ids, id)
	}
	sortInts(ids)
	for i, id := range ids {
		for format, fid := range m {
			if fid == id {
				formats[i] = format
				break
			}
		}
	}

	result = append(result, '{')
	for i, format := range formats {
		if i > 0 {
			result = append(result, ',')
		}
		result = append(result, '"')
		result = append(result, format...)
		result = append(result, `":`...)
		result = append(result, itoa(ids[i])...)
	}
	return append(result, '}')
}

// sortStrings is an insertion sort; dictionaries hold a handful of keys
func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// sortInts is an insertion sort
func sortInts(s []int) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j-1] > s[j]; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}

// GetChunk returns a copy of up to count dictionary bytes starting at offset
func (d *Dictionary) GetChunk(offset uint32, count uint8) []byte {
	data := d.Generate()
	if offset >= uint32(len(data)) {
		return []byte{}
	}

	end := offset + uint32(count)
	if end > uint32(len(data)) {
		end = uint32(len(data))
	}

	chunk := make([]byte, end-offset)
	copy(chunk, data[offset:end])
	return chunk
}

// GetGlobalDictionary returns the global dictionary instance
func GetGlobalDictionary() *Dictionary {
	return globalDictionary
}
