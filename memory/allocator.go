// Package memory models the two memory domains of the detector.  Small
// control state lives in the Internal domain whilst large buffers such as
// the model blob, tensor arena, decode scratch and resize canvases are
// assigned to the HighCapacity domain.  Each domain has a fixed byte budget
// and allocations beyond the budget fail rather than grow.
package memory

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrAllocationFailure is returned when a domain budget can not satisfy an
// allocation request
var ErrAllocationFailure = errors.New("allocation failure")

// Domain identifies a memory region
type Domain int

const (
	// Internal is the small fast memory domain
	Internal Domain = iota
	// HighCapacity is the large slower memory domain used for big buffers
	HighCapacity
)

// String returns a readable description of the Domain
func (d Domain) String() string {
	switch d {
	case Internal:
		return "internal"
	case HighCapacity:
		return "high-capacity"
	default:
		return "unknown"
	}
}

// ParseDomain converts a configuration string into a Domain
func ParseDomain(s string) (Domain, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "internal":
		return Internal, nil
	case "high-capacity", "highcapacity", "psram", "":
		return HighCapacity, nil
	default:
		return Internal, fmt.Errorf("unknown memory domain %q", s)
	}
}

// Usage is a snapshot of a domains budget
type Usage struct {
	Domain   Domain
	Capacity int
	Used     int
	Peak     int
}

// Free returns the number of unallocated bytes in the domain
func (u Usage) Free() int {
	return u.Capacity - u.Used
}

// String returns the Usage formatted for logging
func (u Usage) String() string {
	return fmt.Sprintf("%s: used=%d peak=%d free=%d capacity=%d",
		u.Domain, u.Used, u.Peak, u.Free(), u.Capacity)
}

// budget tracks the bytes allocated from a single domain
type budget struct {
	capacity int
	used     int
	peak     int
}

// Allocator hands out Blocks from a fixed per domain budget
type Allocator struct {
	mu      sync.Mutex
	budgets map[Domain]*budget
}

// NewAllocator returns an Allocator with the given capacity in bytes for each
// domain
func NewAllocator(internal, highCapacity int) *Allocator {
	return &Allocator{
		budgets: map[Domain]*budget{
			Internal:     {capacity: internal},
			HighCapacity: {capacity: highCapacity},
		},
	}
}

// Alloc reserves size bytes from the domain and returns the zeroed Block.  The
// name is only used in error messages.
func (a *Allocator) Alloc(d Domain, size int, name string) (*Block, error) {

	if size < 0 {
		return nil, fmt.Errorf("%w: %s negative size %d", ErrAllocationFailure, name, size)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.budgets[d]

	if !ok {
		return nil, fmt.Errorf("%w: %s unknown memory domain %d", ErrAllocationFailure, name, d)
	}

	if b.used+size > b.capacity {
		return nil, fmt.Errorf("%w: %s requested %d bytes from %s domain with %d free",
			ErrAllocationFailure, name, size, d, b.capacity-b.used)
	}

	b.used += size

	if b.used > b.peak {
		b.peak = b.used
	}

	return &Block{
		buf:    make([]byte, size),
		name:   name,
		domain: d,
		alloc:  a,
	}, nil
}

// release returns size bytes to the domains budget
func (a *Allocator) release(d Domain, size int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if b, ok := a.budgets[d]; ok {
		b.used -= size
	}
}

// Usage returns a snapshot of the domains budget
func (a *Allocator) Usage(d Domain) Usage {
	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.budgets[d]

	if !ok {
		return Usage{Domain: d}
	}

	return Usage{
		Domain:   d,
		Capacity: b.capacity,
		Used:     b.used,
		Peak:     b.peak,
	}
}

// Block is a buffer reserved from a domain
type Block struct {
	mu       sync.Mutex
	buf      []byte
	name     string
	domain   Domain
	alloc    *Allocator
	released bool
}

// Bytes returns the underlying buffer, nil after Release
func (b *Block) Bytes() []byte {
	return b.buf
}

// Len returns the size of the Block in bytes
func (b *Block) Len() int {
	return len(b.buf)
}

// Domain returns the memory domain the Block was allocated from
func (b *Block) Domain() Domain {
	return b.domain
}

// Name returns the name given when the Block was allocated
func (b *Block) Name() string {
	return b.name
}

// Release returns the Block to its domain.  Calling Release more than once is
// a no-op.
func (b *Block) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.released {
		return
	}

	b.released = true
	b.alloc.release(b.domain, len(b.buf))
	b.buf = nil
}
