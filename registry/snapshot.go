package registry

import (
	"fmt"
	"strings"

	"github.com/reglet-dev/reglet-appcore/capability"
)

// Binding pairs a capability with its bound variant.
type Binding struct {
	Capability capability.ID        `json:"capability" yaml:"capability"`
	Variant    capability.VariantID `json:"variant" yaml:"variant"`
}

// Snapshot is a read-only description of the registry for debug dumps.
type Snapshot struct {
	Profile     string    `json:"profile" yaml:"profile"`
	Bindings    []Binding `json:"bindings" yaml:"bindings"`
	Initialized bool      `json:"initialized" yaml:"initialized"`
	Closed      bool      `json:"closed" yaml:"closed"`
}

// Snapshot lists built capabilities in initialization order.
func (r *Registry) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Snapshot{
		Profile:     r.profile,
		Bindings:    make([]Binding, 0, len(r.order)),
		Initialized: r.state.Load() == stateReady,
		Closed:      r.state.Load() == stateClosed,
	}
	for _, id := range r.order {
		s.Bindings = append(s.Bindings, Binding{Capability: id, Variant: r.entries[id].Variant})
	}
	return s
}

func (s Snapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "profile %s", s.Profile)
	for _, bd := range s.Bindings {
		fmt.Fprintf(&b, "\n  %-12s %s", bd.Capability, bd.Variant)
	}
	return b.String()
}

// Variant returns the variant bound to id.
func (s Snapshot) Variant(id capability.ID) (capability.VariantID, bool) {
	for _, b := range s.Bindings {
		if b.Capability == id {
			return b.Variant, true
		}
	}
	return "", false
}
