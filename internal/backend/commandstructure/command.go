package commandstructure

// Command is one byte-to-byte step of the upload preprocessing pipeline
type Command interface {
	Name() string
	Execute(imageData []byte) ([]byte, error)
}

// CommandFactory is a function type that creates a command from configuration parameters
type CommandFactory func(params map[string]any) (Command, error)

// CommandConfig names a registered command and carries its parameters.
// In YAML the parameters sit next to the name:
//
//	- name: ScaleCommand
//	  width: 320
//	  height: 320
type CommandConfig struct {
	Name   string         `koanf:"name" yaml:"name"`
	Params map[string]any `koanf:",remain" yaml:",inline"`
}
