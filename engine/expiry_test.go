package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpiryIndex_DrainOrder(t *testing.T) {
	x := newExpiryIndex()
	x.insert(30, 5)
	x.insert(10, 9)
	x.insert(10, 2)
	x.insert(20, 7)

	assert.Empty(t, x.drain(5))
	assert.Equal(t, []AuctionID{2, 9, 7}, x.drain(20))
	assert.Equal(t, []AuctionID{5}, x.drain(30))
	assert.Empty(t, x.drain(100))
}

func TestExpiryIndex_DrainIsExhaustive(t *testing.T) {
	x := newExpiryIndex()
	x.insert(10, 1)
	x.insert(10, 2)

	assert.Equal(t, []AuctionID{1, 2}, x.drain(10))
	assert.Empty(t, x.drain(10))
}

func TestExpiryIndex_Remove(t *testing.T) {
	x := newExpiryIndex()
	x.insert(10, 1)
	x.insert(10, 2)
	x.remove(10, 1)

	assert.Equal(t, []AuctionID{2}, x.drain(10))

	// removing the last entry leaves a stale heap tick behind,
	// drain must skip it without yielding anything
	x.insert(20, 3)
	x.remove(20, 3)
	assert.Empty(t, x.drain(20))

	// removing from a tick that was never inserted is a no-op
	x.remove(99, 4)
}

func TestExpiryIndex_Reschedule(t *testing.T) {
	x := newExpiryIndex()
	x.insert(10, 1)
	x.reschedule(1, 10, 25)

	assert.Empty(t, x.drain(10))
	assert.Equal(t, []AuctionID{1}, x.drain(25))
}

func TestExpiryIndex_DuplicateInsert(t *testing.T) {
	x := newExpiryIndex()
	x.insert(10, 1)
	x.insert(10, 1)

	assert.Equal(t, []AuctionID{1}, x.drain(10))
	assert.Empty(t, x.drain(10))
}
