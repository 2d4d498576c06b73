package core

import (
	"testing"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	// Register a command
	var called bool
	handler := func(data *[]byte) error {
		called = true
		return nil
	}

	id := registry.Register("test_command", "arg=%u", handler)

	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	// Verify command can be retrieved
	cmd, ok := registry.GetCommand(id)
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}

	if cmd.Name != "test_command" {
		t.Errorf("Expected command name 'test_command', got '%s'", cmd.Name)
	}

	// Test dispatch
	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}

	if !called {
		t.Error("Command handler was not called")
	}

	// Test unknown command
	if err := registry.Dispatch(999, &data); err == nil {
		t.Error("Expected error for unknown command ID")
	}
}

func TestCommandRegistryMultiple(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("command1", "arg1=%u", func(data *[]byte) error { return nil })
	id2 := registry.Register("command2", "arg2=%u", func(data *[]byte) error { return nil })
	id3 := registry.Register("command3", "arg3=%u", func(data *[]byte) error { return nil })

	if id1 != 0 || id2 != 1 || id3 != 2 {
		t.Errorf("Command IDs not sequential: %d, %d, %d", id1, id2, id3)
	}

	if n := registry.Count(); n != 3 {
		t.Errorf("Expected 3 commands, got %d", n)
	}

	// Registering a name twice keeps the first ID
	if again := registry.Register("command2", "other=%c", nil); again != id2 {
		t.Errorf("Re-registration returned ID %d, want %d", again, id2)
	}
	if n := registry.Count(); n != 3 {
		t.Errorf("Re-registration added a command, count %d", n)
	}
}

func TestCommandRegistryResponses(t *testing.T) {
	registry := NewCommandRegistry()

	registry.Register("identify_response", "offset=%u data=%*s", nil)
	registry.Register("identify", "offset=%u count=%c", func(data *[]byte) error { return nil })
	registry.Register("get_status", "", func(data *[]byte) error { return nil })

	commands, responses := registry.GetCommandsAndResponses()

	if id, ok := responses["identify_response offset=%u data=%*s"]; !ok || id != 0 {
		t.Errorf("identify_response missing or wrong ID: %v", responses)
	}
	if id, ok := commands["identify offset=%u count=%c"]; !ok || id != 1 {
		t.Errorf("identify missing or wrong ID: %v", commands)
	}
	// Commands without arguments are listed by name only
	if id, ok := commands["get_status"]; !ok || id != 2 {
		t.Errorf("get_status missing or wrong ID: %v", commands)
	}

	// Responses cannot be dispatched
	var data []byte
	if err := registry.Dispatch(0, &data); err == nil {
		t.Error("Expected error dispatching a response")
	}
}
