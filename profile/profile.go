// Package profile composes application profiles into capability bindings.
// A Manifest declares the domain modules, what each needs from the core
// capabilities, and the variant every profile selects; Compose checks the
// selection against those needs before any binding code is generated.
package profile

import (
	"fmt"
	"slices"

	"github.com/reglet-dev/reglet-appcore/capability"
)

// Name identifies an application profile.
type Name string

const (
	WebApp     Name = "webapp"
	APIBackend Name = "api_backend"
	Desktop    Name = "desktop"
	Automation Name = "automation"
	Embedded   Name = "embedded"
)

// DefaultProfile is active when a build sets no profile tag.
const DefaultProfile = Desktop

// Module names with a fixed meaning.
const (
	ModuleCore        = "core"
	ModuleDiagnostics = "diagnostics"
)

// ImpliedModules are part of every composition.
var ImpliedModules = []string{ModuleCore, ModuleDiagnostics}

var names = []Name{WebApp, APIBackend, Desktop, Automation, Embedded}

// Names returns the known profiles.
func Names() []Name { return slices.Clone(names) }

// ParseName validates s as a known profile name.
func ParseName(s string) (Name, error) {
	n := Name(s)
	if !slices.Contains(names, n) {
		return "", fmt.Errorf("%w: %q", ErrUnknownProfile, s)
	}
	return n, nil
}

// BuildTag returns the build constraint selecting the profile.
func (n Name) BuildTag() string { return "appcore_" + string(n) }

func (n Name) String() string { return string(n) }

// Requirement is what a module needs from one capability.
type Requirement struct {
	Capability capability.ID      `json:"capability" yaml:"capability" jsonschema:"enum=concurrency,enum=memory,enum=system_api,enum=diagnostics"`
	Facets     []capability.Facet `json:"facets,omitempty" yaml:"facets,omitempty"`
	// Contract is a semantic version constraint on the capability contract.
	Contract string `json:"contract,omitempty" yaml:"contract,omitempty" jsonschema:"example=^1.0.0"`
}

// ModuleSpec declares a domain module.
type ModuleSpec struct {
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Depends     []string      `json:"depends,omitempty" yaml:"depends,omitempty"`
	Requires    []Requirement `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// Selection binds a variant to a capability for one profile.
type Selection struct {
	Capability capability.ID        `json:"capability" yaml:"capability"`
	Variant    capability.VariantID `json:"variant" yaml:"variant"`
}

// ProfileSpec declares the modules and variant selections of a profile.
type ProfileSpec struct {
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Modules     []string    `json:"modules" yaml:"modules"`
	Optional    []string    `json:"optional,omitempty" yaml:"optional,omitempty"`
	Select      []Selection `json:"select" yaml:"select" jsonschema:"minItems=1"`
	Sizing      Sizing      `json:"sizing,omitempty" yaml:"sizing,omitempty"`
}

// Manifest is the build-time profile matrix.
type Manifest struct {
	Version  int                   `json:"version" yaml:"version" jsonschema:"enum=1"`
	Modules  map[string]ModuleSpec `json:"modules" yaml:"modules"`
	Profiles map[Name]ProfileSpec  `json:"profiles" yaml:"profiles"`
}

// ProfileNames returns the profiles the manifest declares, in the canonical
// order followed by any others alphabetically.
func (m *Manifest) ProfileNames() []Name {
	out := make([]Name, 0, len(m.Profiles))
	for _, n := range names {
		if _, ok := m.Profiles[n]; ok {
			out = append(out, n)
		}
	}
	var extra []Name
	for n := range m.Profiles {
		if !slices.Contains(names, n) {
			extra = append(extra, n)
		}
	}
	slices.Sort(extra)
	return append(out, extra...)
}
