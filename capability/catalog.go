package capability

import "slices"

const contractV1 = "1.0.0"

var catalog = []Descriptor{
	{
		ID:       Diagnostics,
		Contract: contractV1,
		Summary:  "structured events with severity filtering and pluggable sinks",
		Variants: []Variant{
			{
				ID: Structured, Capability: Diagnostics, Contract: contractV1,
				Facets: []Facet{FacetConsole, FacetFile, FacetTracing},
				Params: []Param{
					{Name: "log_dir", Description: "directory of the rotating file sink; empty disables it"},
					{Name: "max_file_bytes", Description: "rotation threshold of the file sink", Default: "16MiB"},
					{Name: "console_rate", Description: "console events per second, 0 for unlimited", Default: "0"},
				},
			},
			{
				ID: RingBuffer, Capability: Diagnostics, Contract: contractV1,
				Facets: []Facet{FacetRing},
				Params: []Param{{Name: "ring_size", Description: "events retained before eviction", Default: "256"}},
			},
		},
	},
	{
		ID:       SystemAPI,
		Contract: contractV1,
		Summary:  "timing, identity, memory regions and, where available, filesystem and network",
		Variants: []Variant{
			{
				ID: FullOS, Capability: SystemAPI, Contract: contractV1,
				Facets: []Facet{FacetTiming, FacetIdentity, FacetFilesystem, FacetNetwork},
			},
			{
				ID: Constrained, Capability: SystemAPI, Contract: contractV1,
				Facets: []Facet{FacetTiming, FacetIdentity, FacetMMIO},
				Params: []Param{{Name: "heap_bytes", Description: "static heap backing Reserve", Default: "5MiB"}},
			},
		},
	},
	{
		ID:       Memory,
		Contract: contractV1,
		Summary:  "block allocation with strategy-scoped ownership",
		Variants: []Variant{
			{
				ID: GeneralAllocator, Capability: Memory, Contract: contractV1,
				Facets: []Facet{FacetGrowable},
			},
			{
				ID: ArenaAllocator, Capability: Memory, Contract: contractV1,
				Facets: []Facet{FacetBounded, FacetBulkReset},
				Params: []Param{{Name: "arena_bytes", Description: "pre-reserved arena capacity"}},
			},
			{
				ID: PoolAllocator, Capability: Memory, Contract: contractV1,
				Facets: []Facet{FacetBounded, FacetSizeClasses},
				Params: []Param{{Name: "classes", Description: "size classes and slot counts"}},
			},
		},
	},
	{
		ID:       Concurrency,
		Contract: contractV1,
		Summary:  "unit-of-work submission with completion handles",
		Variants: []Variant{
			{
				ID: ThreadPool, Capability: Concurrency, Contract: contractV1,
				Facets: []Facet{FacetParallel, FacetDeferred},
				Params: []Param{
					{Name: "workers", Description: "worker count, 0 for the number of CPUs", Default: "0"},
					{Name: "queue_capacity", Description: "pending units before Submit blocks", Default: "1024"},
				},
			},
			{
				ID: CooperativeLoop, Capability: Concurrency, Contract: contractV1,
				Facets: []Facet{FacetDeferred, FacetYield},
			},
			{
				ID: SingleThread, Capability: Concurrency, Contract: contractV1,
				Facets: []Facet{FacetInline},
			},
		},
	},
}

// Catalog returns the descriptor set in initialization order.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	for i, d := range catalog {
		d.Variants = slices.Clone(d.Variants)
		out[i] = d
	}
	return out
}

// Lookup returns the descriptor of a capability.
func Lookup(id ID) (Descriptor, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// LookupVariant returns the variant v of capability id.
func LookupVariant(id ID, v VariantID) (Variant, bool) {
	d, ok := Lookup(id)
	if !ok {
		return Variant{}, false
	}
	return d.Variant(v)
}
