// Package queue holds orders that failed to reach the POS and retries them
// with bounded attempts. State is process-local and does not survive a
// restart; pending orders are also announced over Telegram so the shop can
// enter them by hand if the process dies first.
package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/anmilktea/storefront-api/internal/models"
	"github.com/anmilktea/storefront-api/internal/pos"
	"github.com/anmilktea/storefront-api/pkg"
)

const MaxRetryCount = 5

// retryInterval paces sequential retries against the upstream POS API.
const retryInterval = 500 * time.Millisecond

var (
	ordersQueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront_api",
		Name:      "orders_queued_total",
		Help:      "Orders parked in the retry queue after a failed POS submission",
	})
	ordersSynced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "storefront_api",
		Name:      "orders_synced_total",
		Help:      "Queued orders successfully retried to the POS",
	})
)

// RetryOutcome is the per-order result of a bulk retry.
type RetryOutcome struct {
	OrderNo string `json:"orderNo"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// RetrySummary aggregates a RetryAll run.
type RetrySummary struct {
	Total   int            `json:"total"`
	Synced  int            `json:"synced"`
	Failed  int            `json:"failed"`
	Results []RetryOutcome `json:"results"`
}

// RetryQueue is the in-memory pending-order store.
type RetryQueue struct {
	mu     sync.Mutex
	orders map[int64]*models.PendingOrder
	nextID int64

	client pos.Client
	pacer  *rate.Limiter
	logger *zap.Logger

	retryInFlight atomic.Bool

	now func() time.Time
}

func NewRetryQueue(client pos.Client, logger *zap.Logger) *RetryQueue {
	return &RetryQueue{
		orders: make(map[int64]*models.PendingOrder),
		client: client,
		pacer:  rate.NewLimiter(rate.Every(retryInterval), 1),
		logger: logger,
		now:    time.Now,
	}
}

// Enqueue parks an order that failed to reach the POS.
func (q *RetryQueue) Enqueue(order models.Order, submitErr string) *models.PendingOrder {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextID++
	pending := &models.PendingOrder{
		ID:        q.nextID,
		Order:     order,
		Status:    pkg.OrderStatusPending,
		LastError: submitErr,
		CreatedAt: q.now(),
	}
	q.orders[pending.ID] = pending

	ordersQueued.Inc()
	q.logger.Info("order queued for retry",
		zap.Int64("queue_id", pending.ID),
		zap.String("order_no", order.OrderNo),
		zap.String("error", submitErr))
	return pending
}

// CountPending returns the number of orders still waiting to sync.
func (q *RetryQueue) CountPending() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, order := range q.orders {
		if order.Status == pkg.OrderStatusPending {
			count++
		}
	}
	return count
}

// Status looks up an order by its order number.
func (q *RetryQueue) Status(orderNo string) (models.PendingOrder, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, order := range q.orders {
		if order.Order.OrderNo == orderNo {
			return *order, true
		}
	}
	return models.PendingOrder{}, false
}

// RetryOne re-submits a single pending order. On success the order becomes
// synced (terminal); on failure the retry count increments and the order
// becomes failed (terminal) once MaxRetryCount is exhausted.
func (q *RetryQueue) RetryOne(ctx context.Context, id int64) (string, error) {
	q.mu.Lock()
	order, ok := q.orders[id]
	if !ok {
		q.mu.Unlock()
		return "", pkg.ErrOrderNotFound
	}
	if order.Status != pkg.OrderStatusPending {
		status := order.Status
		q.mu.Unlock()
		return "", fmt.Errorf("%w: status %s", pkg.ErrOrderNotPending, status)
	}
	submitted := order.Order
	q.mu.Unlock()

	// The POS call happens outside the lock; only this method mutates the
	// entry afterwards, and RetryAll serializes itself.
	orderCode, err := q.client.SubmitOrder(ctx, submitted)

	q.mu.Lock()
	defer q.mu.Unlock()
	if err == nil {
		order.Status = pkg.OrderStatusSynced
		ordersSynced.Inc()
		q.logger.Info("queued order synced", zap.String("order_no", order.Order.OrderNo))
		return orderCode, nil
	}

	order.RetryCount++
	order.LastError = err.Error()
	if order.RetryCount >= MaxRetryCount {
		order.Status = pkg.OrderStatusFailed
		q.logger.Error("queued order exhausted retries",
			zap.String("order_no", order.Order.OrderNo),
			zap.Int("retry_count", order.RetryCount),
			zap.Error(err))
	} else {
		q.logger.Warn("queued order retry failed",
			zap.String("order_no", order.Order.OrderNo),
			zap.Int("retry_count", order.RetryCount),
			zap.Error(err))
	}
	return "", err
}

// RetryAll retries every pending order sequentially, paced to avoid bursting
// the upstream API. Concurrent invocations are rejected so the same pending
// order cannot be double-submitted.
func (q *RetryQueue) RetryAll(ctx context.Context) (RetrySummary, error) {
	if !q.retryInFlight.CompareAndSwap(false, true) {
		return RetrySummary{}, pkg.ErrRetryInFlight
	}
	defer q.retryInFlight.Store(false)

	ids := q.pendingIDs()
	summary := RetrySummary{Total: len(ids), Results: make([]RetryOutcome, 0, len(ids))}

	for _, id := range ids {
		if err := q.pacer.Wait(ctx); err != nil {
			return summary, err
		}

		q.mu.Lock()
		orderNo := q.orders[id].Order.OrderNo
		q.mu.Unlock()

		_, err := q.RetryOne(ctx, id)
		outcome := RetryOutcome{OrderNo: orderNo, Success: err == nil}
		if err != nil {
			outcome.Error = err.Error()
			summary.Failed++
		} else {
			summary.Synced++
		}
		summary.Results = append(summary.Results, outcome)
	}

	q.logger.Info("retry all completed",
		zap.Int("total", summary.Total),
		zap.Int("synced", summary.Synced),
		zap.Int("failed", summary.Failed))
	return summary, nil
}

// pendingIDs snapshots the retryable orders in enqueue order.
func (q *RetryQueue) pendingIDs() []int64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]int64, 0, len(q.orders))
	for id, order := range q.orders {
		if order.Status == pkg.OrderStatusPending && order.RetryCount < MaxRetryCount {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Cleanup removes synced entries only. Pending and failed orders stay
// visible for manual intervention.
func (q *RetryQueue) Cleanup() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	cleaned := 0
	for id, order := range q.orders {
		if order.Status == pkg.OrderStatusSynced {
			delete(q.orders, id)
			cleaned++
		}
	}
	if cleaned > 0 {
		q.logger.Info("cleaned up synced orders", zap.Int("count", cleaned))
	}
	return cleaned
}
