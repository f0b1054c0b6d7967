package core

import (
	"strings"
	"sync"
)

// OrderQueue holds the orders awaiting print, one FIFO sequence per
// restaurant. Restaurant codes are case-insensitive and normalized to
// lowercase. Each restaurant has its own lock, so traffic for one
// restaurant never blocks another.
type OrderQueue struct {
	mu     sync.RWMutex
	queues map[string]*restaurantQueue
}

type restaurantQueue struct {
	mu     sync.Mutex
	orders []*Order
}

func NewOrderQueue() *OrderQueue {
	return &OrderQueue{
		queues: make(map[string]*restaurantQueue),
	}
}

func (q *OrderQueue) get(restaurantCode string) *restaurantQueue {
	q.mu.RLock()
	rq := q.queues[restaurantCode]
	q.mu.RUnlock()
	return rq
}

func (q *OrderQueue) getOrCreate(restaurantCode string) *restaurantQueue {
	q.mu.Lock()
	defer q.mu.Unlock()

	rq, ok := q.queues[restaurantCode]
	if !ok {
		rq = &restaurantQueue{}
		q.queues[restaurantCode] = rq
	}
	return rq
}

// Enqueue appends the order to the tail of its restaurant's queue.
// Orders are popped in admission order, oldest first. The caller is
// responsible for the duplicate check (see Admitter), so that
// check-then-enqueue stays a single decision point.
func (q *OrderQueue) Enqueue(order *Order) {
	code := strings.ToLower(order.RestaurantCode)
	rq := q.getOrCreate(code)

	rq.mu.Lock()
	rq.orders = append(rq.orders, order)
	rq.mu.Unlock()
}

// Contains reports whether an order with this upstream order id is
// already queued for the restaurant.
func (q *OrderQueue) Contains(restaurantCode, orderID string) bool {
	rq := q.get(strings.ToLower(restaurantCode))
	if rq == nil {
		return false
	}

	rq.mu.Lock()
	defer rq.mu.Unlock()

	for _, o := range rq.orders {
		if o.OrderID == orderID {
			return true
		}
	}
	return false
}

// IsJobReady reports whether the restaurant has at least one order
// waiting to print.
func (q *OrderQueue) IsJobReady(restaurantCode string) bool {
	return q.Depth(restaurantCode) > 0
}

// NextOrder returns, without removing, the order the next Pop will
// return, or nil if the queue is empty. The job token minted on a poll
// must refer to the order the subsequent fetch actually pops.
func (q *OrderQueue) NextOrder(restaurantCode string) *Order {
	rq := q.get(strings.ToLower(restaurantCode))
	if rq == nil {
		return nil
	}

	rq.mu.Lock()
	defer rq.mu.Unlock()

	if len(rq.orders) == 0 {
		return nil
	}
	return rq.orders[0]
}

// Pop removes and returns the oldest admitted order for the restaurant,
// or nil if the queue is empty.
func (q *OrderQueue) Pop(restaurantCode string) *Order {
	rq := q.get(strings.ToLower(restaurantCode))
	if rq == nil {
		return nil
	}

	rq.mu.Lock()
	defer rq.mu.Unlock()

	if len(rq.orders) == 0 {
		return nil
	}

	order := rq.orders[0]
	rq.orders[0] = nil
	rq.orders = rq.orders[1:]
	return order
}

// Depth returns the number of queued orders for the restaurant, 0 if it
// has no queue yet.
func (q *OrderQueue) Depth(restaurantCode string) int {
	rq := q.get(strings.ToLower(restaurantCode))
	if rq == nil {
		return 0
	}

	rq.mu.Lock()
	defer rq.mu.Unlock()
	return len(rq.orders)
}

// Depths returns the queue depth of every restaurant that has ever had
// an order, including drained ones.
func (q *OrderQueue) Depths() map[string]int {
	q.mu.RLock()
	codes := make([]string, 0, len(q.queues))
	for code := range q.queues {
		codes = append(codes, code)
	}
	q.mu.RUnlock()

	depths := make(map[string]int, len(codes))
	for _, code := range codes {
		depths[code] = q.Depth(code)
	}
	return depths
}
