package commandstructure

import (
	"testing"
)

func TestNewCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()
	if registry == nil {
		t.Fatal("Expected non-nil registry")
	}
	if registry.factories == nil {
		t.Fatal("Expected non-nil factories map")
	}
}

func TestCommandRegistry_Register(t *testing.T) {
	registry := NewCommandRegistry()

	// Test successful registration
	err := registry.Register("TestCommand", func(params map[string]any) (Command, error) {
		return newMockCommand("TestCommand"), nil
	})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	// Test duplicate registration
	err = registry.Register("TestCommand", func(params map[string]any) (Command, error) {
		return newMockCommand("TestCommand"), nil
	})
	if err == nil {
		t.Error("Expected error for duplicate registration")
	}

	// Test empty name
	err = registry.Register("", func(params map[string]any) (Command, error) {
		return newMockCommand(""), nil
	})
	if err == nil {
		t.Error("Expected error for empty name")
	}

	// Test nil factory
	err = registry.Register("NilFactory", nil)
	if err == nil {
		t.Error("Expected error for nil factory")
	}
}

func TestCommandRegistry_Create(t *testing.T) {
	registry := NewCommandRegistry()

	// Register a test command
	err := registry.Register("TestCommand", func(params map[string]any) (Command, error) {
		return newMockCommand("TestCommand"), nil
	})
	if err != nil {
		t.Fatalf("Failed to register command: %v", err)
	}

	// Test creating registered command
	command, err := registry.Create("TestCommand", nil)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if command == nil {
		t.Fatal("Expected non-nil command")
	}
	if command.Name() != "TestCommand" {
		t.Errorf("Expected command name 'TestCommand', got '%s'", command.Name())
	}

	// Test creating unregistered command
	_, err = registry.Create("UnknownCommand", nil)
	if err == nil {
		t.Error("Expected error for unknown command")
	}
}

func TestCommandRegistry_IsRegistered(t *testing.T) {
	registry := NewCommandRegistry()

	// Register a test command
	err := registry.Register("TestCommand", func(params map[string]any) (Command, error) {
		return newMockCommand("TestCommand"), nil
	})
	if err != nil {
		t.Fatalf("Failed to register command: %v", err)
	}

	// Test registered command
	if !registry.IsRegistered("TestCommand") {
		t.Error("Expected TestCommand to be registered")
	}

	// Test unregistered command
	if registry.IsRegistered("UnknownCommand") {
		t.Error("Expected UnknownCommand to not be registered")
	}
}

func TestCommandRegistry_GetRegisteredNames(t *testing.T) {
	registry := NewCommandRegistry()

	// Test empty registry
	names := registry.GetRegisteredNames()
	if len(names) != 0 {
		t.Errorf("Expected 0 registered names, got %d", len(names))
	}

	// Register commands
	err := registry.Register("Command1", func(params map[string]any) (Command, error) {
		return newMockCommand("Command1"), nil
	})
	if err != nil {
		t.Fatalf("Failed to register Command1: %v", err)
	}
	err = registry.Register("Command2", func(params map[string]any) (Command, error) {
		return newMockCommand("Command2"), nil
	})
	if err != nil {
		t.Fatalf("Failed to register Command2: %v", err)
	}

	names = registry.GetRegisteredNames()
	if len(names) != 2 {
		t.Fatalf("Expected 2 registered names, got %d", len(names))
	}

	if names[0] != "Command1" || names[1] != "Command2" {
		t.Errorf("Expected sorted names [Command1 Command2], got %v", names)
	}
}
