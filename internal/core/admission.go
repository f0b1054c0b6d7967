package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Admitter turns freshly fetched upstream orders into queued Orders,
// exactly once per upstream order id, and runs the periodic ingestion
// loop against the backend.
type Admitter struct {
	queue    *OrderQueue
	source   OrderSource
	store    OrderStore
	notifier StatusNotifier
	logger   *zap.Logger

	interval time.Duration
	announce bool

	tickMu sync.Mutex
	stopCh chan struct{}
	doneCh chan struct{}
}

func NewAdmitter(queue *OrderQueue, source OrderSource, store OrderStore, notifier StatusNotifier, interval time.Duration, announce bool, logger *zap.Logger) *Admitter {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	return &Admitter{
		queue:    queue,
		source:   source,
		store:    store,
		notifier: notifier,
		logger:   logger,
		interval: interval,
		announce: announce,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start fetches once immediately, then on every interval until Stop.
func (a *Admitter) Start() {
	go a.run()
}

func (a *Admitter) Stop() {
	close(a.stopCh)
	<-a.doneCh
}

func (a *Admitter) run() {
	defer close(a.doneCh)

	a.Tick(context.Background())

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.Tick(context.Background())
		}
	}
}

// Tick fetches the pending orders from the backend and admits them. A
// fetch failure aborts the whole tick; nothing is partially admitted and
// the next tick retries, which is safe because the duplicate check makes
// re-admission a no-op. A tick still running when the next fires makes
// the new one a no-op rather than running two concurrently.
func (a *Admitter) Tick(ctx context.Context) {
	if !a.tickMu.TryLock() {
		a.logger.Warn("ingestion tick still running, skipping")
		return
	}
	defer a.tickMu.Unlock()

	orders, err := a.source.FetchPendingOrders(ctx)
	if err != nil {
		a.logger.Error("failed to fetch orders from backend", zap.Error(err))
		return
	}

	if len(orders) == 0 {
		a.logger.Info("no new orders received from backend for printing")
		return
	}

	a.logger.Info("adding orders to queues", zap.Int("fetched", len(orders)))
	a.AdmitBatch(ctx, orders)
}

// AdmitBatch admits each upstream order in the order received, skipping
// unprintable and already-queued ones, and returns how many were newly
// admitted. Newly admitted orders are written to the durable store as
// print_pending in one batch at the end.
func (a *Admitter) AdmitBatch(ctx context.Context, upstream []UpstreamOrder) int {
	var admitted []*Order

	for _, uo := range upstream {
		code := strings.ToLower(uo.RestaurantCode)

		if _, err := ParsePrintOrder(uo.PrintOrder); err != nil {
			a.logger.Info("order skipped, contains empty print order",
				zap.String("restaurant_code", code),
				zap.String("order_id", uo.OrderID),
				zap.String("cloud_print_id", uo.CloudPrintID))
			continue
		}

		if !TokenSafe(code, uo.OrderID, uo.CloudPrintID) {
			a.logger.Warn("order skipped, field contains the token delimiter",
				zap.String("restaurant_code", code),
				zap.String("order_id", uo.OrderID))
			continue
		}

		if a.queue.Contains(code, uo.OrderID) {
			a.logger.Info("order already exists in queue, skipped",
				zap.String("restaurant_code", code),
				zap.String("order_id", uo.OrderID))
			continue
		}

		order := &Order{
			UUID:           uuid.NewString(),
			RestaurantCode: code,
			OrderID:        uo.OrderID,
			CloudPrintID:   uo.CloudPrintID,
			Restaurant:     uo.RestaurantDetails,
			PrintOrder:     uo.PrintOrder,
			Status:         StatusPrintPending,
		}

		// A row left over from a previous process lifetime carries a
		// stale uuid; delete it so the fresh insert supersedes it.
		exists, err := a.store.OrderExists(ctx, code, uo.OrderID)
		if err != nil {
			a.logger.Error("failed to check order in database",
				zap.String("restaurant_code", code),
				zap.String("order_id", uo.OrderID),
				zap.Error(err))
		} else if exists {
			if err := a.store.DeleteOrder(ctx, code, uo.OrderID); err != nil {
				a.logger.Error("failed to delete stale order record",
					zap.String("restaurant_code", code),
					zap.String("order_id", uo.OrderID),
					zap.Error(err))
			}
		}

		a.queue.Enqueue(order)
		admitted = append(admitted, order)

		a.logger.Info("order added to cloud print queue",
			zap.String("restaurant_code", code),
			zap.String("order_id", order.OrderID),
			zap.String("cloud_print_id", order.CloudPrintID),
			zap.String("uuid", order.UUID))
	}

	if len(admitted) > 0 {
		if err := a.store.InsertPendingOrders(ctx, admitted); err != nil {
			a.logger.Error("failed to persist admitted orders", zap.Error(err))
		}

		if a.announce && a.notifier != nil {
			updates := make([]StatusUpdate, 0, len(admitted))
			for _, o := range admitted {
				updates = append(updates, StatusUpdate{CloudPrintID: o.CloudPrintID, Status: StatusPrintInProgress})
			}
			if err := a.notifier.BulkUpdateStatus(ctx, updates); err != nil {
				a.logger.Error("failed to bulk update order status", zap.Error(err))
			}
		}
	}

	return len(admitted)
}
