package profile

import "fmt"

// Sizing controls how much memory the bound allocators pre-reserve. Zero
// fields take the profile default.
type Sizing struct {
	// BufferBytes is the arena capacity.
	BufferBytes int64 `json:"buffer_bytes,omitempty" yaml:"buffer_bytes,omitempty" jsonschema:"minimum=0"`
	// PoolBytes is the budget split across pool size classes.
	PoolBytes int64 `json:"pool_bytes,omitempty" yaml:"pool_bytes,omitempty" jsonschema:"minimum=0"`
	// MemoryScale multiplies both figures.
	MemoryScale int `json:"memory_scale,omitempty" yaml:"memory_scale,omitempty" jsonschema:"minimum=0,maximum=255"`
}

const (
	kib = 1 << 10
	mib = 1 << 20
)

var defaultSizing = map[Name]Sizing{
	WebApp:     {BufferBytes: 16 * mib, PoolBytes: 150 * mib, MemoryScale: 1},
	APIBackend: {BufferBytes: 8 * mib, PoolBytes: 100 * mib, MemoryScale: 1},
	Desktop:    {BufferBytes: 4 * mib, PoolBytes: 50 * mib, MemoryScale: 1},
	Automation: {BufferBytes: 2 * mib, PoolBytes: 30 * mib, MemoryScale: 1},
	Embedded:   {BufferBytes: 512 * kib, PoolBytes: 5 * mib, MemoryScale: 1},
}

// DefaultSizing returns the built-in sizing of a profile. Profiles outside
// the built-in set get the desktop figures.
func DefaultSizing(n Name) Sizing {
	if s, ok := defaultSizing[n]; ok {
		return s
	}
	return defaultSizing[Desktop]
}

// Resolve fills zero fields from the defaults of n.
func (s Sizing) Resolve(n Name) Sizing {
	d := DefaultSizing(n)
	if s.BufferBytes == 0 {
		s.BufferBytes = d.BufferBytes
	}
	if s.PoolBytes == 0 {
		s.PoolBytes = d.PoolBytes
	}
	if s.MemoryScale == 0 {
		s.MemoryScale = d.MemoryScale
	}
	return s
}

// ArenaBytes is the scaled arena capacity.
func (s Sizing) ArenaBytes() int64 { return s.BufferBytes * int64(max(s.MemoryScale, 1)) }

// PoolBudget is the scaled pool budget.
func (s Sizing) PoolBudget() int64 { return s.PoolBytes * int64(max(s.MemoryScale, 1)) }

func (s Sizing) String() string {
	return fmt.Sprintf("buffer=%d pool=%d scale=%d", s.BufferBytes, s.PoolBytes, s.MemoryScale)
}

func (s Sizing) validate() error {
	if s.BufferBytes < 0 || s.PoolBytes < 0 || s.MemoryScale < 0 {
		return fmt.Errorf("negative sizing: %s", s)
	}
	if s.MemoryScale > 255 {
		return fmt.Errorf("memory_scale %d exceeds 255", s.MemoryScale)
	}
	return nil
}
