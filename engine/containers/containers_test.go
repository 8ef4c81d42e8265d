package containers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingQueue(t *testing.T) {
	rq := NewRingQueue[uint32](3)
	assert.True(t, rq.IsEmpty())

	_, err := rq.Dequeue()
	assert.ErrorIs(t, err, ErrQueueEmpty)

	for i := uint32(0); i < 3; i++ {
		require.NoError(t, rq.Enqueue(i))
	}
	assert.True(t, rq.IsFull())
	assert.ErrorIs(t, rq.Enqueue(9), ErrQueueFull)

	v, err := rq.Peek()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)

	v, err = rq.Dequeue()
	require.NoError(t, err)
	assert.Equal(t, uint32(0), v)

	// wraps around
	require.NoError(t, rq.Enqueue(3))
	got := []uint32{}
	for !rq.IsEmpty() {
		v, err := rq.Dequeue()
		require.NoError(t, err)
		got = append(got, v)
	}
	assert.Equal(t, []uint32{1, 2, 3}, got)

	require.NoError(t, rq.Enqueue(7))
	rq.Clear()
	assert.Equal(t, 0, rq.Len())
}

func TestArenaInsertAndSeal(t *testing.T) {
	a := NewArena[string]("names", 4)

	i0, err := a.Insert("a")
	require.NoError(t, err)
	i1, err := a.Insert("b")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), i0)
	assert.Equal(t, uint32(1), i1)

	a.Seal()
	_, err = a.Insert("c")
	assert.ErrorIs(t, err, ErrArenaSealed)
	assert.Equal(t, 2, a.Len())

	// replacing in place is still allowed while sealed
	require.NoError(t, a.Replace(i1, "B"))
	assert.Equal(t, "B", a.At(i1))

	a.Unseal()
	_, err = a.Insert("c")
	assert.NoError(t, err)
}

func TestArenaGenerations(t *testing.T) {
	a := NewArena[int]("ints", 1)
	idx, err := a.Insert(10)
	require.NoError(t, err)

	h, err := a.Handle(idx)
	require.NoError(t, err)

	v, err := a.Resolve(h)
	require.NoError(t, err)
	assert.Equal(t, 10, v)

	require.NoError(t, a.Replace(idx, 11))
	assert.Equal(t, uint32(1), a.Generation(idx))

	_, err = a.Resolve(h)
	assert.ErrorIs(t, err, ErrStaleIndex)

	_, err = a.Resolve(Handle{Index: 42})
	assert.ErrorIs(t, err, ErrInvalidIndex)
	assert.ErrorIs(t, a.Replace(42, 0), ErrInvalidIndex)

	_, ok := a.Get(42)
	assert.False(t, ok)
}
