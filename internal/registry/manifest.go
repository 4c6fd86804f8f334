package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// manifest is the on-disk shape of a capability manifest file.
type manifest struct {
	Capabilities []Capability `yaml:"capabilities"`
}

// LoadManifest reads extra capability definitions from a YAML file.
// The file lists tools provided by external collaborators; the core only
// needs their name and argument schema.
func LoadManifest(path string) ([]Capability, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capability manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse capability manifest %s: %w", path, err)
	}

	for i, c := range m.Capabilities {
		if c.Name == "" {
			return nil, fmt.Errorf("capability manifest %s: entry %d has no name", path, i)
		}
	}
	return m.Capabilities, nil
}

// FromManifest builds a registry from the builtin set plus an optional
// manifest file. An empty path means builtin only.
func FromManifest(path string) (*Registry, error) {
	caps := Builtin()
	if path != "" {
		extra, err := LoadManifest(path)
		if err != nil {
			return nil, err
		}
		caps = append(caps, extra...)
	}
	return New(caps...)
}
