package tools

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Spec declares a tool's name, purpose and parameter contract
//
// Required and Optional map a parameter name to a human-readable description.
// A Spec is copied on registration and never mutated afterwards.
type Spec struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Required    map[string]string `json:"required_params,omitempty" yaml:"required"`
	Optional    map[string]string `json:"optional_params,omitempty" yaml:"optional"`
}

// Validate checks that every required parameter is present in the payload
func (s Spec) Validate(p Payload) error {
	var missing []string
	for name := range s.Required {
		if !p.Has(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)
	return &MissingRequiredParameterError{Tool: s.Name, Missing: missing}
}

// Instruction renders the tool contract for a prompt
func (s Spec) Instruction() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tool: %s\n", s.Name)
	fmt.Fprintf(&sb, "Description: %s\n", strings.TrimSpace(s.Description))
	writeParams(&sb, "Required parameters", s.Required)
	writeParams(&sb, "Optional parameters", s.Optional)
	return sb.String()
}

// ParamNames returns required then optional parameter names, each group sorted
func (s Spec) ParamNames() []string {
	names := slices.Sorted(maps.Keys(s.Required))
	return append(names, slices.Sorted(maps.Keys(s.Optional))...)
}

func (s Spec) clone() Spec {
	s.Required = maps.Clone(s.Required)
	s.Optional = maps.Clone(s.Optional)
	return s
}

func writeParams(sb *strings.Builder, title string, params map[string]string) {
	if len(params) == 0 {
		return
	}
	fmt.Fprintf(sb, "%s:\n", title)
	for _, name := range slices.Sorted(maps.Keys(params)) {
		fmt.Fprintf(sb, "- %s: %s\n", name, params[name])
	}
}
