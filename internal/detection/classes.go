package detection

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed coco.yaml
var defaultClassesYAML []byte

type classList struct {
	Classes []string `yaml:"classes"`
}

// LoadClassNames reads the class name list from path, or the embedded COCO list when path is empty.
func LoadClassNames(path string) ([]string, error) {
	data := defaultClassesYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read class names file %s: %w", path, err)
		}
	}
	return parseClassNames(data)
}

func parseClassNames(data []byte) ([]string, error) {
	var list classList
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse class names: %w", err)
	}
	if len(list.Classes) == 0 {
		return nil, fmt.Errorf("class name list is empty")
	}
	for i, name := range list.Classes {
		if name == "" {
			return nil, fmt.Errorf("class at index %d has empty name", i)
		}
	}
	return list.Classes, nil
}
