package memory

import (
	"fmt"
	"sync"
)

// Arena is a single fixed size region from which tensor buffers are carved.
// It is allocated once and reused for the life of the process, carving never
// reallocates.
type Arena struct {
	mu    sync.Mutex
	block *Block
	off   int
}

// NewArena allocates an Arena of size bytes from the domain
func NewArena(a *Allocator, d Domain, size int) (*Arena, error) {

	if size <= 0 {
		return nil, fmt.Errorf("%w: arena size must be positive, got %d",
			ErrAllocationFailure, size)
	}

	block, err := a.Alloc(d, size, "tensor-arena")

	if err != nil {
		return nil, err
	}

	return &Arena{block: block}, nil
}

// Carve returns the next size bytes of the Arena aligned to align bytes
func (r *Arena) Carve(size, align int) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := r.block.Bytes()

	if buf == nil {
		return nil, fmt.Errorf("%w: arena has been released", ErrAllocationFailure)
	}

	if align < 1 {
		align = 1
	}

	start := (r.off + align - 1) / align * align

	if size < 0 || start+size > len(buf) {
		return nil, fmt.Errorf("%w: arena needs %d bytes at offset %d, capacity %d",
			ErrAllocationFailure, size, start, len(buf))
	}

	r.off = start + size

	return buf[start:r.off:r.off], nil
}

// Used returns the number of bytes carved so far
func (r *Arena) Used() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.off
}

// Size returns the total capacity of the Arena
func (r *Arena) Size() int {
	return r.block.Len()
}

// Reset makes the whole Arena available for carving again.  Buffers carved
// previously must no longer be used.
func (r *Arena) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf := r.block.Bytes()

	for i := range buf[:r.off] {
		buf[i] = 0
	}

	r.off = 0
}

// Release frees the Arena back to its domain
func (r *Arena) Release() {
	r.block.Release()
}
