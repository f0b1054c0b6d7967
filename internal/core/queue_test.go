package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(code, orderID string) *Order {
	return &Order{
		UUID:           "uuid-" + orderID,
		RestaurantCode: code,
		OrderID:        orderID,
		CloudPrintID:   "cp-" + orderID,
		Status:         StatusPrintPending,
	}
}

func TestOrderQueue_FIFO(t *testing.T) {
	q := NewOrderQueue()

	for _, id := range []string{"100", "101", "102"} {
		q.Enqueue(testOrder("abc123", id))
	}
	require.Equal(t, 3, q.Depth("abc123"))

	var popped []string
	for q.IsJobReady("abc123") {
		popped = append(popped, q.Pop("abc123").OrderID)
	}

	assert.Equal(t, []string{"100", "101", "102"}, popped)
	assert.Equal(t, 0, q.Depth("abc123"))
}

func TestOrderQueue_Contains(t *testing.T) {
	q := NewOrderQueue()

	assert.False(t, q.Contains("abc123", "100"))

	q.Enqueue(testOrder("abc123", "100"))
	assert.True(t, q.Contains("abc123", "100"))
	assert.False(t, q.Contains("abc123", "101"))
	assert.False(t, q.Contains("other", "100"))

	q.Pop("abc123")
	assert.False(t, q.Contains("abc123", "100"))
}

func TestOrderQueue_NextOrderMatchesPop(t *testing.T) {
	q := NewOrderQueue()
	q.Enqueue(testOrder("abc123", "100"))
	q.Enqueue(testOrder("abc123", "101"))

	next := q.NextOrder("abc123")
	require.NotNil(t, next)

	popped := q.Pop("abc123")
	require.NotNil(t, popped)
	assert.Same(t, next, popped)

	// The next preview moves to the following order.
	assert.Equal(t, "101", q.NextOrder("abc123").OrderID)
}

func TestOrderQueue_EmptyAndUnknownRestaurant(t *testing.T) {
	q := NewOrderQueue()

	assert.False(t, q.IsJobReady("nope"))
	assert.Nil(t, q.NextOrder("nope"))
	assert.Nil(t, q.Pop("nope"))
	assert.Equal(t, 0, q.Depth("nope"))

	q.Enqueue(testOrder("abc123", "100"))
	q.Pop("abc123")
	assert.Nil(t, q.Pop("abc123"))
}

func TestOrderQueue_CaseInsensitiveCodes(t *testing.T) {
	q := NewOrderQueue()
	q.Enqueue(testOrder("ABC123", "100"))

	assert.True(t, q.IsJobReady("abc123"))
	assert.True(t, q.Contains("Abc123", "100"))
	require.NotNil(t, q.Pop("aBc123"))
	assert.False(t, q.IsJobReady("ABC123"))
}

func TestOrderQueue_IndependentRestaurants(t *testing.T) {
	q := NewOrderQueue()
	const perTenant = 50

	var wg sync.WaitGroup
	for _, code := range []string{"alpha", "beta", "gamma"} {
		code := code
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perTenant; i++ {
				q.Enqueue(testOrder(code, fmt.Sprintf("%d", i)))
			}
			for i := 0; i < perTenant; i++ {
				require.NotNil(t, q.Pop(code))
			}
		}()
	}
	wg.Wait()

	for _, code := range []string{"alpha", "beta", "gamma"} {
		assert.Equal(t, 0, q.Depth(code))
	}
}

func TestOrderQueue_Depths(t *testing.T) {
	q := NewOrderQueue()
	q.Enqueue(testOrder("alpha", "1"))
	q.Enqueue(testOrder("alpha", "2"))
	q.Enqueue(testOrder("beta", "3"))
	q.Pop("beta")

	assert.Equal(t, map[string]int{"alpha": 2, "beta": 0}, q.Depths())
}
