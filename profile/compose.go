package profile

import (
	"fmt"
	"slices"

	"github.com/Masterminds/semver/v3"

	"github.com/reglet-dev/reglet-appcore/capability"
)

// Binding is the variant selected for one capability.
type Binding struct {
	Capability capability.ID        `json:"capability" yaml:"capability"`
	Variant    capability.VariantID `json:"variant" yaml:"variant"`
	Contract   string               `json:"contract" yaml:"contract"`
}

// Composition is a validated profile: the module closure and exactly one
// binding per referenced capability, in initialization order.
type Composition struct {
	Profile  Name      `json:"profile" yaml:"profile"`
	Modules  []string  `json:"modules" yaml:"modules"`
	Bindings []Binding `json:"bindings" yaml:"bindings"`
	Sizing   Sizing    `json:"sizing" yaml:"sizing"`
}

// Variant returns the variant bound to id.
func (c *Composition) Variant(id capability.ID) (capability.VariantID, bool) {
	for _, b := range c.Bindings {
		if b.Capability == id {
			return b.Variant, true
		}
	}
	return "", false
}

// HasModule reports whether the closure contains name.
func (c *Composition) HasModule(name string) bool {
	return slices.Contains(c.Modules, name)
}

// Compose resolves profile name against m. extra names modules to include
// beyond the profile's list; each must be listed as optional for the
// profile. Every failure is a *CompositionError.
func Compose(m *Manifest, name Name, extra ...string) (*Composition, error) {
	spec, ok := m.Profiles[name]
	if !ok {
		return nil, &CompositionError{Profile: name, Err: ErrUnknownProfile}
	}
	if err := spec.Sizing.validate(); err != nil {
		return nil, &CompositionError{Profile: name, Err: ErrInvalidManifest, Detail: err.Error()}
	}

	requested := slices.Clone(spec.Modules)
	for _, mod := range extra {
		if slices.Contains(requested, mod) {
			continue
		}
		if !slices.Contains(spec.Optional, mod) {
			return nil, &CompositionError{Profile: name, Module: mod, Err: ErrUndefinedCombination}
		}
		requested = append(requested, mod)
	}

	modules, err := closure(m, name, append(slices.Clone(ImpliedModules), requested...))
	if err != nil {
		return nil, err
	}

	selected, err := selections(name, spec.Select)
	if err != nil {
		return nil, err
	}

	referenced := make(map[capability.ID]bool)
	for _, mod := range modules {
		for _, req := range m.Modules[mod].Requires {
			if err := check(name, mod, req, selected); err != nil {
				return nil, err
			}
			referenced[req.Capability] = true
		}
	}

	c := &Composition{Profile: name, Modules: modules, Sizing: spec.Sizing.Resolve(name)}
	for _, id := range capability.InitOrder() {
		if !referenced[id] {
			continue
		}
		v := selected[id]
		c.Bindings = append(c.Bindings, Binding{Capability: id, Variant: v.ID, Contract: v.Contract})
	}
	return c, nil
}

// ComposeAll composes every profile of m.
func ComposeAll(m *Manifest) ([]*Composition, error) {
	out := make([]*Composition, 0, len(m.Profiles))
	for _, n := range m.ProfileNames() {
		c, err := Compose(m, n)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// closure expands roots over depends, dependencies first.
func closure(m *Manifest, profile Name, roots []string) ([]string, error) {
	var (
		out     []string
		visited = make(map[string]bool)
		visit   func(name, from string) error
	)
	visit = func(name, from string) error {
		if visited[name] {
			return nil
		}
		spec, ok := m.Modules[name]
		if !ok {
			e := &CompositionError{Profile: profile, Module: name, Err: ErrUnknownModule}
			if from != "" {
				e.Detail = "required by " + from
			}
			return e
		}
		visited[name] = true
		for _, dep := range spec.Depends {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		out = append(out, name)
		return nil
	}
	for _, r := range roots {
		if err := visit(r, ""); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func selections(profile Name, sel []Selection) (map[capability.ID]capability.Variant, error) {
	out := make(map[capability.ID]capability.Variant, len(sel))
	for _, s := range sel {
		if _, dup := out[s.Capability]; dup {
			return nil, &CompositionError{
				Profile: profile, Capability: s.Capability, Variant: s.Variant, Err: ErrAmbiguous,
				Detail: fmt.Sprintf("already bound to %s", out[s.Capability].ID),
			}
		}
		v, ok := capability.LookupVariant(s.Capability, s.Variant)
		if !ok {
			return nil, &CompositionError{Profile: profile, Capability: s.Capability, Variant: s.Variant, Err: ErrUnknownVariant}
		}
		out[s.Capability] = v
	}
	return out, nil
}

func check(profile Name, module string, req Requirement, selected map[capability.ID]capability.Variant) error {
	v, ok := selected[req.Capability]
	if !ok {
		return &CompositionError{Profile: profile, Module: module, Capability: req.Capability, Err: ErrUnsatisfiable}
	}
	for _, f := range req.Facets {
		if !v.Provides(f) {
			return &CompositionError{
				Profile: profile, Module: module, Capability: req.Capability, Variant: v.ID,
				Err: ErrMissingFacet, Detail: string(f),
			}
		}
	}
	if req.Contract == "" {
		return nil
	}

	constraint, err := semver.NewConstraint(req.Contract)
	if err != nil {
		return &CompositionError{
			Profile: profile, Module: module, Capability: req.Capability, Err: ErrInvalidManifest,
			Detail: fmt.Sprintf("invalid contract constraint %q: %v", req.Contract, err),
		}
	}
	version, err := semver.NewVersion(v.Contract)
	if err != nil {
		return &CompositionError{
			Profile: profile, Module: module, Capability: req.Capability, Variant: v.ID, Err: ErrContract,
			Detail: fmt.Sprintf("variant contract %q is not a version", v.Contract),
		}
	}
	if !constraint.Check(version) {
		return &CompositionError{
			Profile: profile, Module: module, Capability: req.Capability, Variant: v.ID, Err: ErrContract,
			Detail: fmt.Sprintf("%s does not satisfy %s", v.Contract, req.Contract),
		}
	}
	return nil
}
