package core

import (
	"errors"
	"sync"
)

// CommandHandler handles one telemetry command.
// The handler decodes its own arguments from the data pointer.
type CommandHandler func(data *[]byte) error

// TelemetryCommand is a host command or (with a nil handler) a response
// message of the telemetry link
type TelemetryCommand struct {
	ID      uint16
	Name    string
	Format  string // Argument format for the dictionary (e.g. "offset=%u count=%c")
	Handler CommandHandler
}

// CommandRegistry holds all registered telemetry messages.
// IDs are assigned in registration order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands map[uint16]*TelemetryCommand
	nameToID map[string]uint16
	nextID   uint16
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		commands: make(map[uint16]*TelemetryCommand),
		nameToID: make(map[string]uint16),
	}
}

// RegisterCommand registers a command handler in the global registry
func RegisterCommand(name string, format string, handler CommandHandler) uint16 {
	return globalRegistry.Register(name, format, handler)
}

// RegisterResponse registers a response message (MCU -> host) in the global registry
func RegisterResponse(name string, format string) uint16 {
	return globalRegistry.Register(name, format, nil)
}

// Register adds a message to the registry; registering a name twice
// returns the existing ID
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}

	id := r.nextID
	r.nextID++

	r.commands[id] = &TelemetryCommand{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	}
	r.nameToID[name] = id

	return id
}

// GetCommand retrieves a message by ID
func (r *CommandRegistry) GetCommand(id uint16) (*TelemetryCommand, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// GetCommandByName retrieves a message by name
func (r *CommandRegistry) GetCommandByName(name string) (*TelemetryCommand, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	if !ok {
		return nil, false
	}
	return r.commands[id], true
}

// Count returns the number of registered messages
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch calls the handler registered for cmdID
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.GetCommand(cmdID)
	if !ok {
		return errors.New("unknown command ID: " + itoa(int(cmdID)))
	}
	if cmd.Handler == nil {
		return errors.New("message is a response, not a command: " + cmd.Name)
	}
	return cmd.Handler(data)
}

// GetCommandsAndResponses returns "name format" -> ID maps for the dictionary.
// Commands have handlers (host -> MCU), responses don't (MCU -> host).
func (r *CommandRegistry) GetCommandsAndResponses() (map[string]int, map[string]int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	commands := make(map[string]int)
	responses := make(map[string]int)

	for i := uint16(0); i < r.nextID; i++ {
		cmd, ok := r.commands[i]
		if !ok {
			continue
		}
		formatStr := cmd.Name
		if cmd.Format != "" {
			formatStr = cmd.Name + " " + cmd.Format
		}
		if cmd.Handler != nil {
			commands[formatStr] = int(cmd.ID)
		} else {
			responses[formatStr] = int(cmd.ID)
		}
	}

	return commands, responses
}

// DispatchCommand is a convenience function using the global registry
func DispatchCommand(cmdID uint16, data *[]byte) error {
	return globalRegistry.Dispatch(cmdID, data)
}

// GetGlobalRegistry returns the global command registry
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}
