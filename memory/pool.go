package memory

import (
	"fmt"
	"sync"
)

// Pool holds a set of named buffer pools whose buffers are reserved up front
// from a memory domain
type Pool struct {
	mu     sync.Mutex
	alloc  *Allocator
	domain Domain
	pools  map[string]*poolEntry
}

// poolEntry defines a single named free list
type poolEntry struct {
	maxSize int
	free    [][]byte
	blocks  []*Block
}

// NewPool returns an empty Pool drawing its buffers from the domain
func NewPool(a *Allocator, d Domain) *Pool {
	return &Pool{
		alloc:  a,
		domain: d,
		pools:  make(map[string]*poolEntry),
	}
}

// Create registers a new pool under 'name' holding count buffers of up to
// maxSize bytes.  All buffers are reserved immediately so an undersized
// domain fails at startup rather than mid frame.  Calling it twice with the
// same name returns an error.
func (p *Pool) Create(name string, maxSize, count int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.pools[name]; exists {
		return fmt.Errorf("buffer pool %q already exists", name)
	}

	if count < 1 {
		return fmt.Errorf("buffer pool %q needs at least one buffer", name)
	}

	entry := &poolEntry{maxSize: maxSize}

	for i := 0; i < count; i++ {
		block, err := p.alloc.Alloc(p.domain, maxSize, name)

		if err != nil {
			for _, b := range entry.blocks {
				b.Release()
			}
			return fmt.Errorf("error creating buffer pool %q: %w", name, err)
		}

		entry.blocks = append(entry.blocks, block)
		entry.free = append(entry.free, block.Bytes())
	}

	p.pools[name] = entry
	return nil
}

// Get returns a zeroed []byte slice of length 'size' from the named pool.  An
// error wrapping ErrAllocationFailure is returned if size exceeds the pools
// buffer size or every buffer is in use.  Panics if the pool name is unknown.
func (p *Pool) Get(name string, size int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.pools[name]

	if !ok {
		panic(fmt.Sprintf("buffer pool %q not registered", name))
	}

	if size > entry.maxSize {
		return nil, fmt.Errorf("%w: buffer pool %q size %d exceeds maximum %d",
			ErrAllocationFailure, name, size, entry.maxSize)
	}

	if len(entry.free) == 0 {
		return nil, fmt.Errorf("%w: buffer pool %q exhausted", ErrAllocationFailure, name)
	}

	buf := entry.free[len(entry.free)-1]
	entry.free = entry.free[:len(entry.free)-1]

	// get buffer of required size
	buf = buf[:size]

	// zero out the buffer
	for i := range buf {
		buf[i] = 0
	}

	return buf, nil
}

// Put returns a buffer back into it's named pool.  You must only call Put on
// a buffer you previously got via Get with the same name.
func (p *Pool) Put(name string, buf []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.pools[name]

	if !ok {
		panic(fmt.Sprintf("buffer pool %q not registered", name))
	}

	if cap(buf) < entry.maxSize {
		panic(fmt.Sprintf("buffer returned to pool %q has capacity %d, want %d",
			name, cap(buf), entry.maxSize))
	}

	// restore to full capacity so it matches the reserved block
	entry.free = append(entry.free, buf[:entry.maxSize])
}

// Available returns the number of free buffers in the named pool
func (p *Pool) Available(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if entry, ok := p.pools[name]; ok {
		return len(entry.free)
	}

	return 0
}

// Has reports whether a pool with the name has been created
func (p *Pool) Has(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, ok := p.pools[name]
	return ok
}

// Close releases every buffer of every pool back to the domain
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for name, entry := range p.pools {
		for _, b := range entry.blocks {
			b.Release()
		}
		delete(p.pools, name)
	}
}
