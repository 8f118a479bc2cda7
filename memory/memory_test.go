package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorBudget(t *testing.T) {

	a := NewAllocator(64, 1024)

	b1, err := a.Alloc(HighCapacity, 600, "model")
	require.NoError(t, err)
	assert.Equal(t, 600, b1.Len())
	assert.Equal(t, HighCapacity, b1.Domain())

	_, err = a.Alloc(HighCapacity, 600, "arena")
	assert.ErrorIs(t, err, ErrAllocationFailure)

	_, err = a.Alloc(Internal, 65, "state")
	assert.ErrorIs(t, err, ErrAllocationFailure)

	b1.Release()
	b1.Release()

	u := a.Usage(HighCapacity)
	assert.Equal(t, 0, u.Used)
	assert.Equal(t, 600, u.Peak)
	assert.Equal(t, 1024, u.Free())

	b2, err := a.Alloc(HighCapacity, 1024, "arena")
	require.NoError(t, err)
	assert.Nil(t, b1.Bytes())
	assert.Len(t, b2.Bytes(), 1024)
}

func TestArenaCarve(t *testing.T) {

	a := NewAllocator(0, 256)

	arena, err := NewArena(a, HighCapacity, 128)
	require.NoError(t, err)

	buf, err := arena.Carve(10, 1)
	require.NoError(t, err)
	assert.Len(t, buf, 10)

	buf, err = arena.Carve(16, 16)
	require.NoError(t, err)
	assert.Len(t, buf, 16)
	assert.Equal(t, 32, arena.Used())

	_, err = arena.Carve(100, 1)
	assert.ErrorIs(t, err, ErrAllocationFailure)

	buf[0] = 9
	arena.Reset()
	assert.Equal(t, 0, arena.Used())

	_, err = NewArena(a, HighCapacity, 512)
	assert.ErrorIs(t, err, ErrAllocationFailure)

	_, err = NewArena(a, HighCapacity, 0)
	assert.ErrorIs(t, err, ErrAllocationFailure)
}

func TestPool(t *testing.T) {

	a := NewAllocator(0, 1000)
	p := NewPool(a, HighCapacity)

	require.NoError(t, p.Create("canvas", 300, 2))
	assert.Error(t, p.Create("canvas", 300, 1))
	assert.Equal(t, 600, a.Usage(HighCapacity).Used)

	// not enough budget left for two more buffers
	err := p.Create("scratch", 300, 2)
	assert.ErrorIs(t, err, ErrAllocationFailure)
	assert.Equal(t, 600, a.Usage(HighCapacity).Used)
	assert.False(t, p.Has("scratch"))

	b1, err := p.Get("canvas", 200)
	require.NoError(t, err)
	assert.Len(t, b1, 200)
	b1[0] = 0xff

	b2, err := p.Get("canvas", 300)
	require.NoError(t, err)

	_, err = p.Get("canvas", 10)
	assert.ErrorIs(t, err, ErrAllocationFailure)

	p.Put("canvas", b1)
	assert.Equal(t, 1, p.Available("canvas"))

	b3, err := p.Get("canvas", 300)
	require.NoError(t, err)
	assert.Equal(t, byte(0), b3[0], "buffers are zeroed on Get")

	_, err = p.Get("canvas", 301)
	assert.ErrorIs(t, err, ErrAllocationFailure)

	p.Put("canvas", b2)
	p.Put("canvas", b3)

	assert.Panics(t, func() { p.Get("unknown", 1) })
	assert.Panics(t, func() { p.Put("unknown", nil) })

	p.Close()
	assert.Equal(t, 0, a.Usage(HighCapacity).Used)
}

func TestParseDomain(t *testing.T) {

	tests := []struct {
		in   string
		want Domain
		err  bool
	}{
		{"internal", Internal, false},
		{"PSRAM", HighCapacity, false},
		{"high-capacity", HighCapacity, false},
		{"flash", Internal, true},
	}

	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseDomain(tc.in)

			if tc.err {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
