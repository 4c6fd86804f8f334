// Package registry holds the capability registry: the set of tools the
// reasoning engine and workers may invoke. The registry is read-only after
// startup; workers only ever receive references to subsets of it.
package registry

import (
	"errors"
	"fmt"
	"sort"

	"github.com/anthropics/anthropic-sdk-go"
)

// ErrUnknownCapability indicates a requested tool name is not registered.
var ErrUnknownCapability = errors.New("unknown capability")

// Capability is an explicit tool value object: name plus argument schema.
// Capabilities are resolved against the registry at bind time; workers
// never probe tools by runtime inspection.
type Capability struct {
	// Name is the tool name presented to the reasoning engine.
	Name string `yaml:"name" json:"name"`
	// Description tells the reasoning engine what the tool does.
	Description string `yaml:"description" json:"description"`
	// Properties is the JSON-schema properties block for the arguments.
	Properties map[string]any `yaml:"properties" json:"properties"`
	// Required lists argument names that must be present.
	Required []string `yaml:"required" json:"required"`
}

// ToolParam converts the capability to the Anthropic tool schema format.
func (c Capability) ToolParam() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        c.Name,
			Description: anthropic.String(c.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: c.Properties,
				Required:   c.Required,
			},
		},
	}
}

// Registry is the master capability set. Construct it once at startup;
// all lookups afterwards are read-only.
type Registry struct {
	caps  map[string]Capability
	order []string
}

// New builds a registry from the given capabilities.
// Duplicate names are rejected.
func New(caps ...Capability) (*Registry, error) {
	r := &Registry{caps: make(map[string]Capability, len(caps))}
	for _, c := range caps {
		if c.Name == "" {
			return nil, fmt.Errorf("capability with empty name")
		}
		if _, dup := r.caps[c.Name]; dup {
			return nil, fmt.Errorf("duplicate capability %q", c.Name)
		}
		r.caps[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	return r, nil
}

// Lookup returns the capability for a tool name.
func (r *Registry) Lookup(name string) (Capability, error) {
	c, ok := r.caps[name]
	if !ok {
		return Capability{}, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	return c, nil
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.caps[name]
	return ok
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Subset resolves the given tool names against the registry.
// It fails if any name is unregistered, keeping worker capability sets
// honest at bind time rather than at first invocation.
func (r *Registry) Subset(names []string) ([]Capability, error) {
	subset := make([]Capability, 0, len(names))
	for _, n := range names {
		c, err := r.Lookup(n)
		if err != nil {
			return nil, err
		}
		subset = append(subset, c)
	}
	return subset, nil
}

// ToolParams converts a list of capabilities to Anthropic tool schemas.
func ToolParams(caps []Capability) []anthropic.ToolUnionParam {
	params := make([]anthropic.ToolUnionParam, 0, len(caps))
	for _, c := range caps {
		params = append(params, c.ToolParam())
	}
	return params
}

// Describe returns a name → description listing of the registry,
// sorted by name, for inclusion in system prompts.
func (r *Registry) Describe() []string {
	lines := make([]string, 0, len(r.caps))
	for name, c := range r.caps {
		lines = append(lines, fmt.Sprintf("%s: %s", name, c.Description))
	}
	sort.Strings(lines)
	return lines
}
