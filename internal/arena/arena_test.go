package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultCapacity(t *testing.T) {
	a := New(0, 1)
	assert.Equal(t, DefaultCapacity, a.Capacity())
	assert.Equal(t, uint64(1), a.Generation())
	assert.Equal(t, 0, a.Used())
}

func TestAllocateAligned(t *testing.T) {
	a := New(64, 0)

	b := a.Allocate(3)
	require.Len(t, b, 3)
	assert.Equal(t, 8, a.Used())

	b2 := a.Allocate(8)
	require.Len(t, b2, 8)
	assert.Equal(t, 16, a.Used())

	a.Reserve(1)
	assert.Equal(t, 24, a.Used())
}

func TestAllocateZeroed(t *testing.T) {
	a := New(32, 0)
	b := a.Allocate(8)
	for i := range b {
		b[i] = 0xff
	}
	b2 := a.Allocate(8)
	assert.Equal(t, make([]byte, 8), b2)
}

func TestAllocateDoesNotOverlap(t *testing.T) {
	a := New(32, 0)
	b1 := a.Allocate(4)
	b2 := a.Allocate(4)
	copy(b1, "abcd")
	copy(b2, "wxyz")
	assert.Equal(t, "abcd", string(b1))
	assert.Equal(t, "wxyz", string(b2))

	// Appending to an allocated block must not spill into its neighbour.
	_ = append(b1, 'Z')
	assert.Equal(t, "wxyz", string(b2))
}

func TestExhaustion(t *testing.T) {
	a := New(16, 7)
	a.Allocate(16)

	defer func() {
		r := recover()
		require.NotNil(t, r)
		e, ok := r.(*ExhaustedError)
		require.True(t, ok)
		assert.Equal(t, uint64(7), e.Generation)
		assert.Equal(t, 1, e.Requested)
		assert.Contains(t, e.Error(), "program too large")
	}()
	a.Allocate(1)
	t.Fatal("allocation past capacity did not panic")
}

func TestExactFit(t *testing.T) {
	a := New(24, 0)
	assert.NotPanics(t, func() {
		a.Allocate(10)
		a.Allocate(8)
	})
	assert.Equal(t, 24, a.Used())
	assert.Panics(t, func() { a.Reserve(1) })
}

func TestMetrics(t *testing.T) {
	a := New(100, 3)
	a.Allocate(10)
	a.Reserve(30)

	m := a.Metrics()
	assert.Equal(t, uint64(3), m.Generation)
	assert.Equal(t, 2, m.Allocations)
	assert.Equal(t, 100, m.Capacity)
	assert.Equal(t, 48, m.Used)
	assert.InDelta(t, 0.48, m.Utilization, 0.0001)
	assert.Contains(t, m.String(), "generation 3")
}
