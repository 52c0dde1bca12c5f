package bare

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrOutOfRange is returned for accesses beyond the device window.
	ErrOutOfRange = errors.New("bare: register access out of range")
	// ErrMisaligned is returned for accesses not aligned to their width.
	ErrMisaligned = errors.New("bare: misaligned register access")
)

// Device is a memory-mapped register window. Registers are little endian and
// every access is bounds- and alignment-checked.
type Device struct {
	name string
	mem  []byte
	mu   sync.Mutex
}

func newDevice(name string, size int) *Device {
	return &Device{name: name, mem: make([]byte, size)}
}

// Name returns the device name.
func (d *Device) Name() string { return d.name }

// Size returns the window size in bytes.
func (d *Device) Size() int { return len(d.mem) }

func (d *Device) check(off, width int) error {
	if off < 0 || off+width > len(d.mem) {
		return fmt.Errorf("%w: %s+%#x width %d", ErrOutOfRange, d.name, off, width)
	}
	if off%width != 0 {
		return fmt.Errorf("%w: %s+%#x width %d", ErrMisaligned, d.name, off, width)
	}
	return nil
}

func (d *Device) Read8(off int) (uint8, error) {
	if err := d.check(off, 1); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mem[off], nil
}

func (d *Device) Write8(off int, v uint8) error {
	if err := d.check(off, 1); err != nil {
		return err
	}
	d.mu.Lock()
	d.mem[off] = v
	d.mu.Unlock()
	return nil
}

func (d *Device) Read16(off int) (uint16, error) {
	if err := d.check(off, 2); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return binary.LittleEndian.Uint16(d.mem[off:]), nil
}

func (d *Device) Write16(off int, v uint16) error {
	if err := d.check(off, 2); err != nil {
		return err
	}
	d.mu.Lock()
	binary.LittleEndian.PutUint16(d.mem[off:], v)
	d.mu.Unlock()
	return nil
}

func (d *Device) Read32(off int) (uint32, error) {
	if err := d.check(off, 4); err != nil {
		return 0, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return binary.LittleEndian.Uint32(d.mem[off:]), nil
}

func (d *Device) Write32(off int, v uint32) error {
	if err := d.check(off, 4); err != nil {
		return err
	}
	d.mu.Lock()
	binary.LittleEndian.PutUint32(d.mem[off:], v)
	d.mu.Unlock()
	return nil
}
