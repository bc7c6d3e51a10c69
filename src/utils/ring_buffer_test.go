package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_WrapsAround(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 5; i++ {
		rb.Append(i)
	}

	assert.True(t, rb.IsFull())
	assert.Equal(t, 3, rb.Size())
	assert.Equal(t, []int{3, 4, 5}, rb.GetAll())
	assert.Equal(t, []int{4, 5}, rb.GetLatest(2))
	assert.Equal(t, []int{3, 4, 5}, rb.GetLatest(10))

	last, ok := rb.Last()
	assert.True(t, ok)
	assert.Equal(t, 5, last)
}

func TestRingBuffer_Empty(t *testing.T) {
	rb := NewRingBuffer[string](0)
	assert.Equal(t, DefaultHistorySize, rb.Capacity())
	assert.Empty(t, rb.GetAll())
	assert.Empty(t, rb.GetLatest(0))
	_, ok := rb.Last()
	assert.False(t, ok)
}

func TestRingBuffer_Resize(t *testing.T) {
	rb := NewRingBuffer[int](4)
	for i := 1; i <= 6; i++ {
		rb.Append(i)
	}

	rb.Resize(2)
	assert.Equal(t, []int{5, 6}, rb.GetAll())

	rb.Append(7)
	assert.Equal(t, []int{6, 7}, rb.GetAll())

	rb.Resize(5)
	rb.Append(8)
	assert.Equal(t, []int{6, 7, 8}, rb.GetAll())

	rb.Clear()
	assert.Zero(t, rb.Size())
}
