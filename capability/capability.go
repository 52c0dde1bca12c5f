// Package capability describes the cross-cutting capabilities of the application core
// and the variants each one offers. The catalog is static: it is defined once at
// build time and never modified afterwards.
package capability

import (
	"slices"
)

// ID names a core capability.
type ID string

const (
	Concurrency ID = "concurrency"
	Memory      ID = "memory"
	SystemAPI   ID = "system_api"
	Diagnostics ID = "diagnostics"
)

// VariantID names a concrete strategy bound to a capability.
type VariantID string

const (
	ThreadPool      VariantID = "thread_pool"
	CooperativeLoop VariantID = "cooperative_loop"
	SingleThread    VariantID = "single_thread"

	GeneralAllocator VariantID = "general"
	ArenaAllocator   VariantID = "arena"
	PoolAllocator    VariantID = "pool"

	FullOS      VariantID = "os"
	Constrained VariantID = "bare"

	Structured VariantID = "structured"
	RingBuffer VariantID = "ring"
)

// Facet is an optional feature a variant provides. Domain modules require facets
// (for example filesystem access) and composition fails when the selected variant
// does not provide them.
type Facet string

const (
	FacetParallel Facet = "parallel"
	FacetDeferred Facet = "deferred"
	FacetYield    Facet = "yield"
	FacetInline   Facet = "inline"

	FacetGrowable    Facet = "growable"
	FacetBounded     Facet = "bounded"
	FacetBulkReset   Facet = "bulk_reset"
	FacetSizeClasses Facet = "size_classes"

	FacetTiming     Facet = "timing"
	FacetIdentity   Facet = "identity"
	FacetFilesystem Facet = "filesystem"
	FacetNetwork    Facet = "network"
	FacetMMIO       Facet = "mmio"

	FacetConsole Facet = "console"
	FacetFile    Facet = "file"
	FacetTracing Facet = "tracing"
	FacetRing    Facet = "ring"
)

// Param documents an initialization parameter of a variant.
type Param struct {
	Name        string
	Description string
	Default     string
}

// Variant is one concrete implementation of a capability.
type Variant struct {
	ID         VariantID
	Capability ID
	// Contract is the semantic version of the capability contract the variant implements.
	Contract string
	Facets   []Facet
	Params   []Param
}

// Provides reports whether the variant offers the given facet.
func (v Variant) Provides(f Facet) bool {
	return slices.Contains(v.Facets, f)
}

// Descriptor lists a capability and the variants it supports.
type Descriptor struct {
	ID       ID
	Contract string
	Summary  string
	Variants []Variant
}

// Variant returns the named variant of the capability.
func (d Descriptor) Variant(id VariantID) (Variant, bool) {
	for _, v := range d.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// VariantIDs returns the identifiers of all variants in catalog order.
func (d Descriptor) VariantIDs() []VariantID {
	ids := make([]VariantID, 0, len(d.Variants))
	for _, v := range d.Variants {
		ids = append(ids, v.ID)
	}
	return ids
}

// initOrder is the fixed dependency order of capability initialization.
// Diagnostics come first so every other capability can report during its own
// initialization; memory and concurrency may depend on system primitives.
var initOrder = []ID{Diagnostics, SystemAPI, Memory, Concurrency}

// InitOrder returns the capability initialization order.
func InitOrder() []ID {
	return slices.Clone(initOrder)
}

// Rank returns the position of id in the initialization order, or -1.
func Rank(id ID) int {
	return slices.Index(initOrder, id)
}

// Valid reports whether id is a known capability.
func (id ID) Valid() bool {
	return Rank(id) >= 0
}

func (id ID) String() string { return string(id) }

func (v VariantID) String() string { return string(v) }
